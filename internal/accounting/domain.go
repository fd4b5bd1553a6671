package accounting

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/finledger/internal/shared"
)

// Account is a node of the fixed chart of accounts.
type Account string

const (
	AccountCash             Account = "CASH"
	AccountBank             Account = "BANK"
	AccountInventory        Account = "INVENTORY"
	AccountReceivables      Account = "RECEIVABLES"
	AccountPayables         Account = "PAYABLES"
	AccountSalesRevenue     Account = "SALES_REVENUE"
	AccountOtherIncome      Account = "OTHER_INCOME"
	AccountSurplusIncome    Account = "SURPLUS_INCOME"
	AccountCOGS             Account = "COGS"
	AccountSalesReturns     Account = "SALES_RETURNS"
	AccountRentExpense      Account = "RENT_EXPENSE"
	AccountUtilitiesExpense Account = "UTILITIES_EXPENSE"
	AccountSalariesExpense  Account = "SALARIES_EXPENSE"
	AccountSuppliesExpense  Account = "SUPPLIES_EXPENSE"
	AccountOtherExpense     Account = "OTHER_EXPENSE"
	AccountShortageExpense  Account = "SHORTAGE_EXPENSE"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeContra    AccountType = "CONTRA_REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Side is the normal balance side of an account.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// AccountInfo describes a chart of accounts node.
type AccountInfo struct {
	Code       Account     `json:"code"`
	Name       string      `json:"name"`
	Type       AccountType `json:"type"`
	NormalSide Side        `json:"normalSide"`
}

var chart = []AccountInfo{
	{AccountCash, "Cash on hand", AccountTypeAsset, SideDebit},
	{AccountBank, "Bank account", AccountTypeAsset, SideDebit},
	{AccountInventory, "Inventory", AccountTypeAsset, SideDebit},
	{AccountReceivables, "Customer receivables", AccountTypeAsset, SideDebit},
	{AccountPayables, "Supplier payables", AccountTypeLiability, SideCredit},
	{AccountSalesRevenue, "Sales revenue", AccountTypeRevenue, SideCredit},
	{AccountOtherIncome, "Other income", AccountTypeRevenue, SideCredit},
	{AccountSurplusIncome, "Inventory surplus income", AccountTypeRevenue, SideCredit},
	{AccountSalesReturns, "Sales returns", AccountTypeContra, SideDebit},
	{AccountCOGS, "Cost of goods sold", AccountTypeExpense, SideDebit},
	{AccountRentExpense, "Rent expense", AccountTypeExpense, SideDebit},
	{AccountUtilitiesExpense, "Utilities expense", AccountTypeExpense, SideDebit},
	{AccountSalariesExpense, "Salaries expense", AccountTypeExpense, SideDebit},
	{AccountSuppliesExpense, "Supplies expense", AccountTypeExpense, SideDebit},
	{AccountOtherExpense, "Other expenses", AccountTypeExpense, SideDebit},
	{AccountShortageExpense, "Inventory shortage loss", AccountTypeExpense, SideDebit},
}

var chartIndex = func() map[Account]int {
	idx := make(map[Account]int, len(chart))
	for i, a := range chart {
		idx[a.Code] = i
	}
	return idx
}()

// Valid reports whether the account belongs to the chart.
func (a Account) Valid() bool {
	_, ok := chartIndex[a]
	return ok
}

// Info returns the chart metadata for the account.
func (a Account) Info() (AccountInfo, bool) {
	i, ok := chartIndex[a]
	if !ok {
		return AccountInfo{}, false
	}
	return chart[i], true
}

// ParseAccount resolves an account code.
func ParseAccount(raw string) (Account, error) {
	a := Account(raw)
	if !a.Valid() {
		return "", fmt.Errorf("%w: unknown account %q", shared.ErrInvalidInput, raw)
	}
	return a, nil
}

// EntryType classifies the business event behind an entry.
type EntryType string

const (
	EntrySale       EntryType = "SALE"
	EntryCOGS       EntryType = "COGS"
	EntryPayment    EntryType = "PAYMENT"
	EntryPurchase   EntryType = "PURCHASE"
	EntryAdjustment EntryType = "ADJUSTMENT"
	EntryReturn     EntryType = "RETURN"
	EntryReturnCOGS EntryType = "RETURN_COGS"
	EntryExpense    EntryType = "EXPENSE"
	EntryIncome     EntryType = "INCOME"
)

var entryTypes = map[EntryType]struct{}{
	EntrySale: {}, EntryCOGS: {}, EntryPayment: {}, EntryPurchase: {}, EntryAdjustment: {},
	EntryReturn: {}, EntryReturnCOGS: {}, EntryExpense: {}, EntryIncome: {},
}

// Valid reports whether the entry type is known.
func (t EntryType) Valid() bool {
	_, ok := entryTypes[t]
	return ok
}

// Reference links an entry to its source document.
type Reference struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Entry is one balanced debit/credit pair. Entries are append-only.
type Entry struct {
	ID                uuid.UUID `json:"id"`
	Type              EntryType `json:"type"`
	DebitAccount      Account   `json:"debitAccount"`
	CreditAccount     Account   `json:"creditAccount"`
	Amount            float64   `json:"amount"`
	Description       string    `json:"description"`
	Reference         Reference `json:"reference"`
	SourceKey         string    `json:"sourceKey,omitempty"`
	Date              time.Time `json:"date"`
	CreatedBy         string    `json:"createdBy"`
	IsSystemGenerated bool      `json:"isSystemGenerated"`
	CreatedAt         time.Time `json:"createdAt"`
}

// ErrInvalidEntry marks a posting that cannot keep the ledger balanced.
var ErrInvalidEntry = fmt.Errorf("%w: invalid entry", shared.ErrLedgerImbalance)

// Validate enforces the double-entry shape of a single entry.
func (e Entry) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEntry, e.Type)
	}
	if !e.DebitAccount.Valid() || !e.CreditAccount.Valid() {
		return fmt.Errorf("%w: unknown account %s/%s", ErrInvalidEntry, e.DebitAccount, e.CreditAccount)
	}
	if e.DebitAccount == e.CreditAccount {
		return fmt.Errorf("%w: debit and credit account are both %s", ErrInvalidEntry, e.DebitAccount)
	}
	if !(e.Amount > 0) {
		return fmt.Errorf("%w: amount %.2f must be positive", ErrInvalidEntry, e.Amount)
	}
	return nil
}

// DateRange bounds a ledger query; zero values are open ends.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls within the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// EntryFilter narrows GetEntries.
type EntryFilter struct {
	From    time.Time
	To      time.Time
	Type    EntryType
	Account Account
	Limit   int
}

const (
	defaultEntryLimit = 100
	maxEntryLimit     = 1000
)

func (f EntryFilter) normalize() EntryFilter {
	if f.Limit <= 0 {
		f.Limit = defaultEntryLimit
	}
	if f.Limit > maxEntryLimit {
		f.Limit = maxEntryLimit
	}
	return f
}

// Matches reports whether the entry satisfies the filter.
func (f EntryFilter) Matches(e Entry) bool {
	if !(DateRange{From: f.From, To: f.To}).Contains(e.Date) {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Account != "" && e.DebitAccount != f.Account && e.CreditAccount != f.Account {
		return false
	}
	return true
}

// LedgerLine is an entry seen from one account with its running balance.
type LedgerLine struct {
	Entry   Entry   `json:"entry"`
	Debit   float64 `json:"debit"`
	Credit  float64 `json:"credit"`
	Balance float64 `json:"balance"`
}

// Ledger is the chronological history of one account.
type Ledger struct {
	Account      Account      `json:"account"`
	Name         string       `json:"name"`
	Lines        []LedgerLine `json:"lines"`
	TotalDebit   float64      `json:"totalDebit"`
	TotalCredit  float64      `json:"totalCredit"`
	FinalBalance float64      `json:"finalBalance"`
}

// AccountTotal aggregates both sides of one account.
type AccountTotal struct {
	Account Account `json:"account"`
	Debit   float64 `json:"debit"`
	Credit  float64 `json:"credit"`
}

// TrialBalanceLine is one account row of the trial balance.
type TrialBalanceLine struct {
	Account Account `json:"account"`
	Name    string  `json:"name"`
	Debit   float64 `json:"debit"`
	Credit  float64 `json:"credit"`
	Balance float64 `json:"balance"`
}

// TrialBalance is the global debit/credit check as of a date.
type TrialBalance struct {
	AsOf        time.Time          `json:"asOfDate"`
	Accounts    []TrialBalanceLine `json:"accounts"`
	TotalDebit  float64            `json:"totalDebit"`
	TotalCredit float64            `json:"totalCredit"`
	Difference  float64            `json:"difference"`
	IsBalanced  bool               `json:"isBalanced"`
}

var errNilTx = errors.New("accounting: transaction repository required")
