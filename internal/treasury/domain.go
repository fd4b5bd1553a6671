package treasury

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/finledger/internal/shared"
)

// Direction of a manual cashbox entry.
type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// Expense categories accepted for manual expenses.
var expenseCategories = map[string]bool{
	"rent": true, "utilities": true, "salaries": true, "supplies": true, "other": true,
}

// ManualEntry is a cash movement typed in by a cashier.
type ManualEntry struct {
	ID        uuid.UUID `json:"id"`
	Day       time.Time `json:"date"`
	Direction Direction `json:"direction"`
	Amount    float64   `json:"amount"`
	Reason    string    `json:"reason"`
	Category  string    `json:"category,omitempty"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// CashboxDaily is the cash summary of one calendar day.
type CashboxDaily struct {
	Date             time.Time     `json:"date"`
	OpeningBalance   float64       `json:"openingBalance"`
	SalesIncome      float64       `json:"salesIncome"`
	PurchaseExpenses float64       `json:"purchaseExpenses"`
	ManualIncome     []ManualEntry `json:"manualIncome"`
	ManualExpenses   []ManualEntry `json:"manualExpenses"`
	TotalIncome      float64       `json:"totalIncome"`
	TotalExpenses    float64       `json:"totalExpenses"`
	NetChange        float64       `json:"netChange"`
	ClosingBalance   float64       `json:"closingBalance"`
	Difference       float64       `json:"difference"`
	IsReconciled     bool          `json:"isReconciled"`
	ReconciledBy     string        `json:"reconciledBy,omitempty"`
	ReconciledAt     *time.Time    `json:"reconciledAt,omitempty"`
	Notes            string        `json:"reconciliationNotes,omitempty"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// Expected is the closing balance implied by the day's movements.
func (c CashboxDaily) Expected() float64 {
	return shared.Add(c.OpeningBalance, c.NetChange)
}

// Recalculate refreshes totals. An unreconciled day closes at its expected
// balance; a reconciled one keeps the counted balance.
func (c *CashboxDaily) Recalculate() {
	income := c.SalesIncome
	for _, e := range c.ManualIncome {
		income = shared.Add(income, e.Amount)
	}
	expenses := c.PurchaseExpenses
	for _, e := range c.ManualExpenses {
		expenses = shared.Add(expenses, e.Amount)
	}
	c.TotalIncome = income
	c.TotalExpenses = expenses
	c.NetChange = shared.Sub(income, expenses)
	if !c.IsReconciled {
		c.ClosingBalance = c.Expected()
	}
	c.Difference = shared.Sub(c.ClosingBalance, c.Expected())
}

// Balance is the most recent cash position.
func (c CashboxDaily) Balance() float64 {
	if c.IsReconciled {
		return c.ClosingBalance
	}
	return c.Expected()
}

// Increments are additive changes to the auto-calculated day totals.
type Increments struct {
	SalesIncome      float64
	PurchaseExpenses float64
}

// TxType classifies treasury transactions.
type TxType string

const (
	TxIncome  TxType = "INCOME"
	TxExpense TxType = "EXPENSE"
)

// Transaction is one movement in the treasury journal.
type Transaction struct {
	ID            uuid.UUID `json:"id"`
	Type          TxType    `json:"type"`
	Amount        float64   `json:"amount"`
	Description   string    `json:"description"`
	ReferenceType string    `json:"referenceType"`
	ReferenceID   string    `json:"referenceId,omitempty"`
	Date          time.Time `json:"date"`
	CreatedBy     string    `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

// SourceInput describes a sale or purchase reaching the cash drawer.
type SourceInput struct {
	ReferenceID string
	Number      string
	Amount      float64
	Date        time.Time
	UserID      string
}

// ManualInput is a manual income or expense.
type ManualInput struct {
	Date     time.Time
	Amount   float64
	Reason   string
	Category string
	UserID   string
}

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	From time.Time
	To   time.Time
	Type TxType
}

// Summary aggregates treasury transactions of a period.
type Summary struct {
	Balance      float64       `json:"balance"`
	Income       float64       `json:"income"`
	Expenses     float64       `json:"expenses"`
	Transactions []Transaction `json:"transactions"`
}

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ErrDayNotFound indicates no cashbox exists for the requested day.
var ErrDayNotFound = fmt.Errorf("treasury: cashbox day %w", shared.ErrNotFound)
