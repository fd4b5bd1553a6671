package accounting

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/finledger/internal/shared"
)

// Reference types used by the builders.
const (
	RefInvoice       = "Invoice"
	RefPurchaseOrder = "PurchaseOrder"
	RefSalesReturn   = "SalesReturn"
	RefInventoryAdj  = "InventoryAdjustment"
	RefManual        = "Manual"
)

var amountPrinter = message.NewPrinter(language.English)

func formatAmount(v float64) string {
	return amountPrinter.Sprintf("%.2f", v)
}

// SourceKeyFor composes the idempotency key stored with an entry.
func SourceKeyFor(ref Reference, typ EntryType) string {
	if ref.ID == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s:%s", ref.Type, ref.ID, typ)
}

// EntryID derives a stable id from the source key, or a random one when the
// entry has no source.
func EntryID(sourceKey string) uuid.UUID {
	if sourceKey == "" {
		return uuid.New()
	}
	return uuid.NewSHA1(uuid.Nil, []byte("ledger:"+sourceKey))
}

func newEntry(typ EntryType, debit, credit Account, amount float64, description string, ref Reference, date time.Time, userID string) Entry {
	e := Entry{
		Type:              typ,
		DebitAccount:      debit,
		CreditAccount:     credit,
		Amount:            shared.Round2(amount),
		Description:       description,
		Reference:         ref,
		Date:              date,
		CreatedBy:         userID,
		IsSystemGenerated: true,
	}
	e.SourceKey = SourceKeyFor(ref, typ)
	return e
}

func validateAll(entries []Entry) ([]Entry, error) {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// SaleInput describes a finalized invoice.
type SaleInput struct {
	InvoiceID     string
	InvoiceNumber string
	// PaymentType is cash, bank or credit.
	PaymentType string
	Total       float64
	TotalCost   float64
	Date        time.Time
	UserID      string
}

// IsCredit reports whether the sale creates a receivable.
func (in SaleInput) IsCredit() bool {
	return strings.EqualFold(in.PaymentType, "credit")
}

// SaleEntries recognises revenue and, when cost data is present, COGS.
func SaleEntries(in SaleInput) ([]Entry, error) {
	ref := Reference{Type: RefInvoice, ID: in.InvoiceID}
	debit := AccountCash
	label := "Cash sale"
	switch {
	case in.IsCredit():
		debit = AccountReceivables
		label = "Credit sale"
	case strings.EqualFold(in.PaymentType, "bank"):
		debit = AccountBank
		label = "Bank sale"
	}
	entries := []Entry{newEntry(EntrySale, debit, AccountSalesRevenue, in.Total,
		fmt.Sprintf("%s - invoice %s (%s)", label, in.InvoiceNumber, formatAmount(in.Total)), ref, in.Date, in.UserID)}
	if in.TotalCost > 0 {
		entries = append(entries, newEntry(EntryCOGS, AccountCOGS, AccountInventory, in.TotalCost,
			fmt.Sprintf("Cost of goods sold - invoice %s", in.InvoiceNumber), ref, in.Date, in.UserID))
	}
	return validateAll(entries)
}

// PurchaseInput describes a received purchase order.
type PurchaseInput struct {
	OrderID     string
	OrderNumber string
	// PaymentType is credit, bank, cash or wallet.
	PaymentType string
	Total       float64
	Date        time.Time
	UserID      string
}

// IsCredit reports whether the purchase creates a payable.
func (in PurchaseInput) IsCredit() bool {
	return strings.EqualFold(in.PaymentType, "credit")
}

// PurchaseEntries capitalises received goods into inventory.
func PurchaseEntries(in PurchaseInput) ([]Entry, error) {
	credit := AccountCash
	switch {
	case in.IsCredit():
		credit = AccountPayables
	case strings.EqualFold(in.PaymentType, "bank"):
		credit = AccountBank
	}
	ref := Reference{Type: RefPurchaseOrder, ID: in.OrderID}
	return validateAll([]Entry{newEntry(EntryPurchase, AccountInventory, credit, in.Total,
		fmt.Sprintf("Purchase - order %s (%s)", in.OrderNumber, formatAmount(in.Total)), ref, in.Date, in.UserID)})
}

// MethodAccount maps a payment method to the cash or bank account.
func MethodAccount(method string) Account {
	switch strings.ToLower(method) {
	case "bank_transfer", "check", "credit_card":
		return AccountBank
	default:
		return AccountCash
	}
}

// PaymentPosting carries what the ledger needs from an applied payment.
type PaymentPosting struct {
	PaymentID    uuid.UUID
	Amount       float64
	Method       string
	Reference    Reference
	Counterparty string
	Date         time.Time
	UserID       string
}

// PaymentSourceKey is the idempotency key of a payment entry.
func PaymentSourceKey(paymentID uuid.UUID) string {
	return "payment:" + paymentID.String()
}

func paymentEntry(p PaymentPosting, debit, credit Account, label string) (Entry, error) {
	e := newEntry(EntryPayment, debit, credit, p.Amount,
		fmt.Sprintf("%s %s - %s %s (%s)", label, p.Counterparty, p.Reference.Type, p.Reference.ID, formatAmount(p.Amount)),
		p.Reference, p.Date, p.UserID)
	e.SourceKey = PaymentSourceKey(p.PaymentID)
	return e, e.Validate()
}

// CustomerPaymentEntry collects a receivable.
func CustomerPaymentEntry(p PaymentPosting) (Entry, error) {
	return paymentEntry(p, MethodAccount(p.Method), AccountReceivables, "Collection from")
}

// SupplierPaymentEntry settles a payable.
func SupplierPaymentEntry(p PaymentPosting) (Entry, error) {
	return paymentEntry(p, AccountPayables, MethodAccount(p.Method), "Payment to")
}

// ReturnInput describes a posted sales return.
type ReturnInput struct {
	ReturnID     string
	ReturnNumber string
	// RefundType is cash or credit.
	RefundType  string
	TotalRefund float64
	TotalCost   float64
	Date        time.Time
	UserID      string
}

// ReturnEntries books the contra-revenue and restores returned stock value.
func ReturnEntries(in ReturnInput) ([]Entry, error) {
	credit := AccountReceivables
	if strings.EqualFold(in.RefundType, "cash") {
		credit = AccountCash
	}
	ref := Reference{Type: RefSalesReturn, ID: in.ReturnID}
	entries := []Entry{newEntry(EntryReturn, AccountSalesReturns, credit, in.TotalRefund,
		fmt.Sprintf("Sales return - note %s (%s)", in.ReturnNumber, formatAmount(in.TotalRefund)), ref, in.Date, in.UserID)}
	if in.TotalCost > 0 {
		entries = append(entries, newEntry(EntryReturnCOGS, AccountInventory, AccountCOGS, in.TotalCost,
			fmt.Sprintf("Returned goods to stock - note %s", in.ReturnNumber), ref, in.Date, in.UserID))
	}
	return validateAll(entries)
}

// AdjustmentInput describes an approved physical inventory count.
type AdjustmentInput struct {
	AdjustmentID string
	Number       string
	// ValueImpact is negative for a shortage and positive for a surplus.
	ValueImpact float64
	Date        time.Time
	UserID      string
}

// AdjustmentEntries books the valuation difference of a stock count.
// A zero impact produces no entries.
func AdjustmentEntries(in AdjustmentInput) ([]Entry, error) {
	ref := Reference{Type: RefInventoryAdj, ID: in.AdjustmentID}
	switch {
	case in.ValueImpact < 0:
		amount := -in.ValueImpact
		return validateAll([]Entry{newEntry(EntryAdjustment, AccountShortageExpense, AccountInventory, amount,
			fmt.Sprintf("Inventory shortage - count %s (%s)", in.Number, formatAmount(amount)), ref, in.Date, in.UserID)})
	case in.ValueImpact > 0:
		return validateAll([]Entry{newEntry(EntryAdjustment, AccountInventory, AccountSurplusIncome, in.ValueImpact,
			fmt.Sprintf("Inventory surplus - count %s (%s)", in.Number, formatAmount(in.ValueImpact)), ref, in.Date, in.UserID)})
	default:
		return nil, nil
	}
}

var expenseAccounts = map[string]Account{
	"rent":      AccountRentExpense,
	"utilities": AccountUtilitiesExpense,
	"salaries":  AccountSalariesExpense,
	"supplies":  AccountSuppliesExpense,
	"other":     AccountOtherExpense,
}

// ExpenseAccount maps an expense category, falling back to OTHER_EXPENSE.
func ExpenseAccount(category string) Account {
	if a, ok := expenseAccounts[strings.ToLower(category)]; ok {
		return a
	}
	return AccountOtherExpense
}

// ManualInput describes a user-entered expense or income.
type ManualInput struct {
	ID          string
	Amount      float64
	Category    string
	Description string
	Date        time.Time
	UserID      string
}

// ExpenseEntry pays an operating expense from the cashbox.
func ExpenseEntry(in ManualInput) (Entry, error) {
	e := newEntry(EntryExpense, ExpenseAccount(in.Category), AccountCash, in.Amount, in.Description,
		Reference{Type: RefManual, ID: in.ID}, in.Date, in.UserID)
	e.IsSystemGenerated = false
	return e, e.Validate()
}

// IncomeEntry records other income received in cash.
func IncomeEntry(in ManualInput) (Entry, error) {
	e := newEntry(EntryIncome, AccountCash, AccountOtherIncome, in.Amount, in.Description,
		Reference{Type: RefManual, ID: in.ID}, in.Date, in.UserID)
	e.IsSystemGenerated = false
	return e, e.Validate()
}
