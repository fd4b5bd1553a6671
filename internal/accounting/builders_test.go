package accounting

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/finledger/internal/shared"
)

var day = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func TestSaleEntriesByPaymentType(t *testing.T) {
	cash, err := SaleEntries(SaleInput{InvoiceID: "inv-1", InvoiceNumber: "INV-1", PaymentType: "cash", Total: 1500, TotalCost: 900, Date: day})
	require.NoError(t, err)
	require.Len(t, cash, 2)
	require.Equal(t, AccountCash, cash[0].DebitAccount)
	require.Equal(t, AccountSalesRevenue, cash[0].CreditAccount)
	require.Equal(t, EntryCOGS, cash[1].Type)
	require.Equal(t, AccountCOGS, cash[1].DebitAccount)
	require.Equal(t, AccountInventory, cash[1].CreditAccount)
	require.Equal(t, "Invoice:inv-1:SALE", cash[0].SourceKey)
	require.Contains(t, cash[0].Description, "1,500.00")

	bank, err := SaleEntries(SaleInput{InvoiceID: "inv-2", PaymentType: "bank", Total: 100, Date: day})
	require.NoError(t, err)
	require.Len(t, bank, 1, "no COGS entry without cost data")
	require.Equal(t, AccountBank, bank[0].DebitAccount)

	credit, err := SaleEntries(SaleInput{InvoiceID: "inv-3", PaymentType: "credit", Total: 100, TotalCost: 40, Date: day})
	require.NoError(t, err)
	require.Equal(t, AccountReceivables, credit[0].DebitAccount)
	require.Len(t, credit, 2)
}

func TestPurchaseEntriesCreditSide(t *testing.T) {
	cases := map[string]Account{
		"credit": AccountPayables,
		"bank":   AccountBank,
		"cash":   AccountCash,
		"wallet": AccountCash,
	}
	for paymentType, want := range cases {
		entries, err := PurchaseEntries(PurchaseInput{OrderID: "po-1", PaymentType: paymentType, Total: 250, Date: day})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, AccountInventory, entries[0].DebitAccount)
		require.Equal(t, want, entries[0].CreditAccount, paymentType)
	}
}

func TestPaymentEntriesUseRealReference(t *testing.T) {
	pid := uuid.New()
	posting := PaymentPosting{
		PaymentID: pid,
		Amount:    450,
		Method:    "bank_transfer",
		Reference: Reference{Type: RefInvoice, ID: "inv-9"},
		Date:      day,
	}
	in, err := CustomerPaymentEntry(posting)
	require.NoError(t, err)
	require.Equal(t, AccountBank, in.DebitAccount)
	require.Equal(t, AccountReceivables, in.CreditAccount)
	require.Equal(t, Reference{Type: RefInvoice, ID: "inv-9"}, in.Reference)
	require.Equal(t, "payment:"+pid.String(), in.SourceKey)

	posting.Method = "cash"
	out, err := SupplierPaymentEntry(posting)
	require.NoError(t, err)
	require.Equal(t, AccountPayables, out.DebitAccount)
	require.Equal(t, AccountCash, out.CreditAccount)

	for _, m := range []string{"check", "credit_card", "bank_transfer"} {
		require.Equal(t, AccountBank, MethodAccount(m))
	}
	require.Equal(t, AccountCash, MethodAccount("wallet"))
}

func TestReturnAndAdjustmentEntries(t *testing.T) {
	ret, err := ReturnEntries(ReturnInput{ReturnID: "r-1", RefundType: "cash", TotalRefund: 80, TotalCost: 50, Date: day})
	require.NoError(t, err)
	require.Len(t, ret, 2)
	require.Equal(t, AccountSalesReturns, ret[0].DebitAccount)
	require.Equal(t, AccountCash, ret[0].CreditAccount)
	require.Equal(t, EntryReturnCOGS, ret[1].Type)
	require.Equal(t, AccountInventory, ret[1].DebitAccount)

	ret, err = ReturnEntries(ReturnInput{ReturnID: "r-2", RefundType: "credit", TotalRefund: 80, Date: day})
	require.NoError(t, err)
	require.Len(t, ret, 1)
	require.Equal(t, AccountReceivables, ret[0].CreditAccount)

	short, err := AdjustmentEntries(AdjustmentInput{AdjustmentID: "a-1", ValueImpact: -35.5, Date: day})
	require.NoError(t, err)
	require.Equal(t, AccountShortageExpense, short[0].DebitAccount)
	require.Equal(t, AccountInventory, short[0].CreditAccount)
	require.Equal(t, 35.5, short[0].Amount)

	surplus, err := AdjustmentEntries(AdjustmentInput{AdjustmentID: "a-2", ValueImpact: 12, Date: day})
	require.NoError(t, err)
	require.Equal(t, AccountSurplusIncome, surplus[0].CreditAccount)

	none, err := AdjustmentEntries(AdjustmentInput{AdjustmentID: "a-3"})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestManualEntries(t *testing.T) {
	e, err := ExpenseEntry(ManualInput{Amount: 1200, Category: "rent", Description: "October rent", Date: day})
	require.NoError(t, err)
	require.Equal(t, AccountRentExpense, e.DebitAccount)
	require.Equal(t, AccountCash, e.CreditAccount)
	require.False(t, e.IsSystemGenerated)
	require.Empty(t, e.SourceKey)

	e, err = ExpenseEntry(ManualInput{Amount: 10, Category: "misc", Description: "x", Date: day})
	require.NoError(t, err)
	require.Equal(t, AccountOtherExpense, e.DebitAccount)

	inc, err := IncomeEntry(ManualInput{Amount: 55, Description: "scrap sale", Date: day})
	require.NoError(t, err)
	require.Equal(t, AccountCash, inc.DebitAccount)
	require.Equal(t, AccountOtherIncome, inc.CreditAccount)
	require.False(t, inc.IsSystemGenerated)
}

func TestBuildersRejectInvalidEntries(t *testing.T) {
	_, err := SaleEntries(SaleInput{InvoiceID: "inv-0", Total: 0})
	require.ErrorIs(t, err, ErrInvalidEntry)
	require.ErrorIs(t, err, shared.ErrLedgerImbalance)

	_, err = PurchaseEntries(PurchaseInput{OrderID: "po", Total: -5})
	require.ErrorIs(t, err, ErrInvalidEntry)

	bad := Entry{Type: EntrySale, DebitAccount: AccountCash, CreditAccount: AccountCash, Amount: 10}
	require.ErrorIs(t, bad.Validate(), ErrInvalidEntry)

	bad = Entry{Type: EntrySale, DebitAccount: "PETTY", CreditAccount: AccountCash, Amount: 10}
	require.ErrorIs(t, bad.Validate(), ErrInvalidEntry)
}

func TestEveryBuilderKeepsTrialBalance(t *testing.T) {
	var all []Entry
	add := func(entries []Entry, err error) {
		require.NoError(t, err)
		all = append(all, entries...)
	}
	add(SaleEntries(SaleInput{InvoiceID: "1", PaymentType: "credit", Total: 1000.10, TotalCost: 600.05, Date: day}))
	add(PurchaseEntries(PurchaseInput{OrderID: "2", PaymentType: "credit", Total: 333.33, Date: day}))
	add(ReturnEntries(ReturnInput{ReturnID: "3", RefundType: "cash", TotalRefund: 19.99, TotalCost: 9.99, Date: day}))
	add(AdjustmentEntries(AdjustmentInput{AdjustmentID: "4", ValueImpact: -7.77, Date: day}))
	e, err := CustomerPaymentEntry(PaymentPosting{PaymentID: uuid.New(), Amount: 500, Method: "cash", Reference: Reference{Type: RefInvoice, ID: "1"}, Date: day})
	add([]Entry{e}, err)

	totals := map[Account]*AccountTotal{}
	for _, e := range all {
		if totals[e.DebitAccount] == nil {
			totals[e.DebitAccount] = &AccountTotal{Account: e.DebitAccount}
		}
		if totals[e.CreditAccount] == nil {
			totals[e.CreditAccount] = &AccountTotal{Account: e.CreditAccount}
		}
		totals[e.DebitAccount].Debit = shared.Add(totals[e.DebitAccount].Debit, e.Amount)
		totals[e.CreditAccount].Credit = shared.Add(totals[e.CreditAccount].Credit, e.Amount)
	}
	var list []AccountTotal
	for _, v := range totals {
		list = append(list, *v)
	}
	tb := BuildTrialBalance(day, list)
	require.True(t, tb.IsBalanced)
	require.InDelta(t, 0, tb.Difference, 0.001)
	require.Equal(t, AccountCash, tb.Accounts[0].Account, "lines follow chart order")
}
