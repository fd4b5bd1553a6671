package payment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/finledger/internal/accounting"
	"github.com/odyssey-erp/finledger/internal/debt"
	"github.com/odyssey-erp/finledger/internal/shared"
)

// StatusCompleted is the only status a recorded payment has.
const StatusCompleted = "completed"

// Methods accepted for payments.
const (
	MethodCash         = "cash"
	MethodBankTransfer = "bank_transfer"
	MethodCheck        = "check"
	MethodCreditCard   = "credit_card"
)

// Payment is money applied to one debt.
type Payment struct {
	ID              uuid.UUID `json:"id"`
	DebtID          uuid.UUID `json:"debtId"`
	Amount          float64   `json:"amount"`
	Method          string    `json:"method"`
	ReferenceNumber string    `json:"referenceNumber"`
	Notes           string    `json:"notes"`
	RecordedBy      string    `json:"recordedBy"`
	Date            time.Time `json:"date"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}

// RecordInput carries a payment against a known debt.
type RecordInput struct {
	DebtID          uuid.UUID
	Amount          float64
	Method          string
	ReferenceNumber string
	Notes           string
	Date            time.Time
	UserID          string
}

// SettleType selects which side of the book a settlement targets.
type SettleType string

const (
	SettleReceivable SettleType = "receivable"
	SettlePayable    SettleType = "payable"
)

// debtor maps the settlement side to the debtor type and source document.
func (t SettleType) debtor() (debt.DebtorType, string, error) {
	switch t {
	case SettleReceivable:
		return debt.DebtorCustomer, accounting.RefInvoice, nil
	case SettlePayable:
		return debt.DebtorSupplier, accounting.RefPurchaseOrder, nil
	default:
		return "", "", fmt.Errorf("payment: %w: settle type %q", shared.ErrInvalidInput, t)
	}
}

// SettleInput identifies a debt by id or by its source document.
type SettleInput struct {
	Type   SettleType
	ID     string
	Amount float64
	Method string
	Note   string
	UserID string

	// IdempotencyKey rejects a replayed request with ErrIdempotencyConflict.
	IdempotencyKey string
}

// Receipt is the outcome of a recorded payment.
type Receipt struct {
	Payment      Payment          `json:"payment"`
	Debt         debt.Debt        `json:"debt"`
	Installments []debt.Schedule  `json:"installments"`
	Entry        accounting.Entry `json:"entry"`
}
