package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidAmount indicates a non-positive or otherwise unusable amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrAmountExceedsBalance indicates a payment larger than the outstanding balance.
	ErrAmountExceedsBalance = fmt.Errorf("%w: exceeds remaining balance", ErrInvalidAmount)
	// ErrInvalidInput indicates a malformed request value such as an unknown account or method.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidState indicates an operation not allowed in the current lifecycle state.
	ErrInvalidState = errors.New("invalid state")
	// ErrDuplicateReference indicates the source document was already processed.
	ErrDuplicateReference = errors.New("duplicate reference")
	// ErrLedgerImbalance indicates an unbalanced or malformed posting. Never retried.
	ErrLedgerImbalance = errors.New("ledger imbalance")
	// ErrConcurrencyConflict indicates a serialization failure; callers may retry.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// Retryable reports whether err is worth retrying by the caller.
func Retryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
