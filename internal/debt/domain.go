package debt

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/finledger/internal/shared"
)

// DebtorType distinguishes receivables from payables.
type DebtorType string

const (
	DebtorCustomer DebtorType = "Customer"
	DebtorSupplier DebtorType = "Supplier"
)

// Valid reports whether the debtor type is known.
func (t DebtorType) Valid() bool {
	return t == DebtorCustomer || t == DebtorSupplier
}

// Status enumerates the debt lifecycle.
type Status string

const (
	StatusActive     Status = "active"
	StatusOverdue    Status = "overdue"
	StatusSettled    Status = "settled"
	StatusWrittenOff Status = "written-off"
)

// Open reports whether the debt still expects payments.
func (s Status) Open() bool {
	return s == StatusActive || s == StatusOverdue
}

// Metadata replaces the free-form meta bag of a debt.
type Metadata struct {
	WriteOffReason      string     `json:"writeOffReason,omitempty"`
	WriteOffBy          string     `json:"writeOffBy,omitempty"`
	WriteOffDate        *time.Time `json:"writeOffDate,omitempty"`
	IsScheduled         bool       `json:"isScheduled,omitempty"`
	InstallmentsCount   int        `json:"installmentsCount,omitempty"`
	LastScheduledUpdate *time.Time `json:"lastScheduledUpdate,omitempty"`
}

// Debt is one credit obligation of a customer or towards a supplier.
type Debt struct {
	ID              uuid.UUID  `json:"id"`
	DebtorType      DebtorType `json:"debtorType"`
	DebtorID        string     `json:"debtorId"`
	OriginalAmount  float64    `json:"originalAmount"`
	RemainingAmount float64    `json:"remainingAmount"`
	DueDate         time.Time  `json:"dueDate"`
	ReferenceType   string     `json:"referenceType"`
	ReferenceID     string     `json:"referenceId"`
	Description     string     `json:"description"`
	Status          Status     `json:"status"`
	Meta            Metadata   `json:"meta"`
	CreatedBy       string     `json:"createdBy"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// DeriveStatus computes the status implied by the balance and due date.
// Written-off is terminal and never derived.
func DeriveStatus(remaining float64, due, now time.Time) Status {
	if remaining <= shared.Epsilon {
		return StatusSettled
	}
	if due.Before(now) {
		return StatusOverdue
	}
	return StatusActive
}

// CreateInput carries the fields of a new debt.
type CreateInput struct {
	DebtorType    DebtorType
	DebtorID      string
	Amount        float64
	DueDate       time.Time
	ReferenceType string
	ReferenceID   string
	Description   string
	CreatedBy     string
}

// Filter narrows GetDebts.
type Filter struct {
	DebtorID   string
	DebtorType DebtorType
	Status     Status
	DueFrom    time.Time
	DueTo      time.Time
}

// DebtPage is one page of debts.
type DebtPage struct {
	Debts      []Debt            `json:"debts"`
	Pagination shared.Pagination `json:"pagination"`
}

// ScheduleStatus enumerates installment states.
type ScheduleStatus string

const (
	SchedulePending ScheduleStatus = "PENDING"
	SchedulePaid    ScheduleStatus = "PAID"
	ScheduleOverdue ScheduleStatus = "OVERDUE"
)

// Schedule is one planned installment. DebtID is nil for free-standing
// schedules registered against a counterparty.
type Schedule struct {
	ID         uuid.UUID      `json:"id"`
	EntityType DebtorType     `json:"entityType"`
	EntityID   string         `json:"entityId"`
	DebtID     *uuid.UUID     `json:"debtId,omitempty"`
	Amount     float64        `json:"amount"`
	DueDate    time.Time      `json:"dueDate"`
	Status     ScheduleStatus `json:"status"`
	Notes      string         `json:"notes"`
	CreatedBy  string         `json:"createdBy"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Interval is the spacing between installments.
type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

// Step returns start moved forward by n intervals.
func (i Interval) Step(start time.Time, n int) (time.Time, error) {
	switch i {
	case IntervalDaily:
		return start.AddDate(0, 0, n), nil
	case IntervalWeekly:
		return start.AddDate(0, 0, 7*n), nil
	case IntervalMonthly:
		return start.AddDate(0, n, 0), nil
	default:
		return time.Time{}, fmt.Errorf("debt: %w: unknown interval %q", shared.ErrInvalidInput, i)
	}
}

// PlanInput requests an installment plan for a debt.
type PlanInput struct {
	DebtID    uuid.UUID
	Count     int
	Interval  Interval
	StartDate time.Time
	UserID    string
}

// ScheduleInput is one manually registered installment.
type ScheduleInput struct {
	Amount  float64   `json:"amount" validate:"gt=0"`
	DueDate time.Time `json:"dueDate" validate:"required"`
	Notes   string    `json:"notes" validate:"max=500"`
}

// SaveSchedulesInput registers manual installments for a counterparty.
type SaveSchedulesInput struct {
	EntityType DebtorType
	EntityID   string
	DebtID     *uuid.UUID
	Schedules  []ScheduleInput
	UserID     string
}

var (
	// ErrDebtNotFound indicates a missing debt.
	ErrDebtNotFound = fmt.Errorf("debt: %w", shared.ErrNotFound)
	// ErrDebtClosed indicates the debt is settled or written off.
	ErrDebtClosed = fmt.Errorf("debt: %w: debt is closed", shared.ErrInvalidState)
)
