package treasury

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/finledger/internal/accounting"
	"github.com/odyssey-erp/finledger/internal/shared"
)

type memoryRepo struct {
	mu           sync.Mutex
	days         map[time.Time]CashboxDaily
	transactions []Transaction
	entries      []accounting.Entry
	failTx       bool
	failEntries  error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{days: map[time.Time]CashboxDaily{}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{repo: r, days: map[time.Time]CashboxDaily{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for d, c := range tx.days {
		r.days[d] = c
	}
	r.transactions = append(r.transactions, tx.transactions...)
	r.entries = append(r.entries, tx.entries...)
	return nil
}

func (r *memoryRepo) GetDay(_ context.Context, day time.Time) (CashboxDaily, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.days[day]
	if !ok {
		return CashboxDaily{}, ErrDayNotFound
	}
	return c, nil
}

func (r *memoryRepo) LatestDay(ctx context.Context) (CashboxDaily, error) {
	days, _ := r.ListDays(ctx, time.Time{}, time.Time{})
	if len(days) == 0 {
		return CashboxDaily{}, ErrDayNotFound
	}
	return days[0], nil
}

func (r *memoryRepo) ListDays(_ context.Context, from, to time.Time) ([]CashboxDaily, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CashboxDaily
	for d, c := range r.days {
		if (!from.IsZero() && d.Before(from)) || (!to.IsZero() && d.After(to)) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (r *memoryRepo) ListTransactions(_ context.Context, filter TransactionFilter) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Transaction
	for _, t := range r.transactions {
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type memoryTx struct {
	repo         *memoryRepo
	days         map[time.Time]CashboxDaily
	transactions []Transaction
	entries      []accounting.Entry
}

func (tx *memoryTx) GetDayForUpdate(_ context.Context, day time.Time) (CashboxDaily, error) {
	if c, ok := tx.days[day]; ok {
		return c, nil
	}
	c, ok := tx.repo.days[day]
	if !ok {
		return CashboxDaily{}, ErrDayNotFound
	}
	return c, nil
}

func (tx *memoryTx) ClosingOf(ctx context.Context, day time.Time) (float64, bool, error) {
	c, err := tx.GetDayForUpdate(ctx, day)
	if errors.Is(err, ErrDayNotFound) {
		return 0, false, nil
	}
	return c.ClosingBalance, true, err
}

func (tx *memoryTx) CreateDay(_ context.Context, day time.Time, opening float64, at time.Time) error {
	if _, ok := tx.repo.days[day]; ok {
		return nil
	}
	tx.days[day] = CashboxDaily{Date: day, OpeningBalance: opening, ClosingBalance: opening, UpdatedAt: at}
	return nil
}

func (tx *memoryTx) SaveDay(_ context.Context, c CashboxDaily) error {
	tx.days[c.Date] = c
	return nil
}

func (tx *memoryTx) InsertManual(context.Context, ManualEntry) error { return nil }

func (tx *memoryTx) InsertTransaction(_ context.Context, t Transaction) (bool, error) {
	if tx.repo.failTx {
		return false, errors.New("journal unavailable")
	}
	if t.ReferenceType != "Manual" {
		for _, list := range [][]Transaction{tx.repo.transactions, tx.transactions} {
			for _, existing := range list {
				if existing.ReferenceType == t.ReferenceType && existing.ReferenceID == t.ReferenceID {
					return false, nil
				}
			}
		}
	}
	tx.transactions = append(tx.transactions, t)
	return true, nil
}

func (tx *memoryTx) InsertEntries(_ context.Context, entries []accounting.Entry) error {
	if tx.repo.failEntries != nil {
		return tx.repo.failEntries
	}
	tx.entries = append(tx.entries, entries...)
	return nil
}

var testNow = time.Date(2026, 10, 18, 15, 30, 0, 0, time.UTC)

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil, nil).WithLedger(accounting.NewService(nil, nil, nil))
	svc.WithNow(func() time.Time { return testNow })
	return svc
}

func TestUpdateDailyCashboxCreatesAndIncrements(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo)

	c, err := svc.UpdateDailyCashbox(ctx, testNow, Increments{SalesIncome: 500})
	require.NoError(t, err)
	require.Equal(t, Day(testNow), c.Date)
	require.Zero(t, c.OpeningBalance)

	c, err = svc.UpdateDailyCashbox(ctx, testNow.Add(time.Hour), Increments{SalesIncome: 250, PurchaseExpenses: 100})
	require.NoError(t, err)
	require.Equal(t, 750.0, c.SalesIncome)
	require.Equal(t, 100.0, c.PurchaseExpenses)
	require.Equal(t, 650.0, c.NetChange)
	require.Equal(t, 650.0, c.ClosingBalance)
	require.Zero(t, c.Difference)
	require.Len(t, repo.days, 1)

	_, err = svc.UpdateDailyCashbox(ctx, testNow, Increments{SalesIncome: -1})
	require.ErrorIs(t, err, shared.ErrInvalidAmount)
}

func TestOpeningCarriesPriorClosing(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo)
	yesterday := testNow.AddDate(0, 0, -1)

	_, err := svc.UpdateDailyCashbox(ctx, yesterday, Increments{SalesIncome: 400})
	require.NoError(t, err)
	_, err = svc.Reconcile(ctx, yesterday, 380, "u-1", "short 20")
	require.NoError(t, err)

	today, err := svc.UpdateDailyCashbox(ctx, testNow, Increments{SalesIncome: 100})
	require.NoError(t, err)
	require.Equal(t, 380.0, today.OpeningBalance)
	require.Equal(t, 480.0, today.ClosingBalance)

	nextWeek, err := svc.UpdateDailyCashbox(ctx, testNow.AddDate(0, 0, 7), Increments{})
	require.NoError(t, err)
	require.Zero(t, nextWeek.OpeningBalance)
}

func TestReconcileComputesDifference(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.Reconcile(ctx, testNow, 100, "u-1", "")
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.UpdateDailyCashbox(ctx, testNow, Increments{SalesIncome: 1000, PurchaseExpenses: 300})
	require.NoError(t, err)
	_, err = svc.AddManualExpense(ctx, ManualInput{Date: testNow, Amount: 50, Reason: "cleaning", Category: "supplies"})
	require.NoError(t, err)

	c, err := svc.Reconcile(ctx, testNow, 640, "u-9", "counted twice")
	require.NoError(t, err)
	require.True(t, c.IsReconciled)
	require.Equal(t, "u-9", c.ReconciledBy)
	require.NotNil(t, c.ReconciledAt)
	require.Equal(t, 650.0, c.Expected())
	require.Equal(t, 640.0, c.ClosingBalance)
	require.Equal(t, -10.0, c.Difference)

	balance, err := svc.GetCurrentBalance(ctx)
	require.NoError(t, err)
	require.Equal(t, 640.0, balance)
}

func TestManualEntriesJournalAndTotals(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo)

	c, err := svc.AddManualIncome(ctx, ManualInput{Amount: 70, Reason: "owner top-up"})
	require.NoError(t, err)
	require.Len(t, c.ManualIncome, 1)
	require.Equal(t, 70.0, c.TotalIncome)

	c, err = svc.AddManualExpense(ctx, ManualInput{Amount: 20, Reason: "lunch"})
	require.NoError(t, err)
	require.Equal(t, "other", c.ManualExpenses[0].Category)
	require.Equal(t, 50.0, c.NetChange)

	_, err = svc.AddManualExpense(ctx, ManualInput{Amount: 20, Reason: "x", Category: "travel"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = svc.AddManualIncome(ctx, ManualInput{Amount: 20, Reason: " "})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = svc.AddManualIncome(ctx, ManualInput{Amount: 0, Reason: "zero"})
	require.ErrorIs(t, err, shared.ErrInvalidAmount)

	txs, err := svc.ListTransactions(ctx, TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.Equal(t, "Manual", txs[0].ReferenceType)

	expenses, err := svc.ListTransactions(ctx, TransactionFilter{Type: TxExpense})
	require.NoError(t, err)
	require.Len(t, expenses, 1)

	_, err = svc.ListTransactions(ctx, TransactionFilter{Type: "REFUND"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestRecordSaleAndPurchase(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo)

	sale, err := svc.RecordSaleIncome(ctx, SourceInput{ReferenceID: "inv-1", Number: "INV-1", Amount: 300, UserID: "u-1"})
	require.NoError(t, err)
	require.Equal(t, TxIncome, sale.Type)
	require.Equal(t, "Invoice", sale.ReferenceType)

	_, err = svc.RecordPurchaseExpense(ctx, SourceInput{ReferenceID: "po-1", Number: "PO-1", Amount: 120})
	require.NoError(t, err)

	day, err := svc.GetDailyCashbox(ctx, testNow)
	require.NoError(t, err)
	require.Equal(t, 300.0, day.SalesIncome)
	require.Equal(t, 120.0, day.PurchaseExpenses)

	summary, err := svc.GetSummary(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 180.0, summary.Balance)
	require.Equal(t, 300.0, summary.Income)
	require.Equal(t, 120.0, summary.Expenses)

	repo.failTx = true
	_, err = svc.RecordSaleIncome(ctx, SourceInput{ReferenceID: "inv-2", Amount: 50})
	require.Error(t, err)
	day, err = svc.GetDailyCashbox(ctx, testNow)
	require.NoError(t, err)
	require.Equal(t, 300.0, day.SalesIncome)
}

func TestRecordSaleIsRecordedOncePerInvoice(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo)

	in := SourceInput{ReferenceID: "inv-7", Number: "INV-7", Amount: 90}
	_, err := svc.RecordSaleIncome(ctx, in)
	require.NoError(t, err)
	_, err = svc.RecordSaleIncome(ctx, in)
	require.NoError(t, err)

	day, err := svc.GetDailyCashbox(ctx, testNow)
	require.NoError(t, err)
	require.Equal(t, 90.0, day.SalesIncome)
	require.Len(t, repo.transactions, 1)

	_, err = svc.RecordPurchaseExpense(ctx, SourceInput{ReferenceID: "inv-7", Number: "PO-7", Amount: 40})
	require.NoError(t, err)
	day, err = svc.GetDailyCashbox(ctx, testNow)
	require.NoError(t, err)
	require.Equal(t, 40.0, day.PurchaseExpenses)
}

func TestBookManualExpensePostsWithCashbox(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo)

	entry, err := accounting.ExpenseEntry(accounting.ManualInput{ID: "exp-1", Amount: 60, Category: "utilities",
		Description: "Power bill", Date: testNow, UserID: "u-1"})
	require.NoError(t, err)
	c, posted, err := svc.BookManualExpense(ctx, ManualInput{Amount: 60, Reason: "Power bill", Category: "utilities", UserID: "u-1"}, entry)
	require.NoError(t, err)
	require.Equal(t, 60.0, c.TotalExpenses)
	require.Equal(t, accounting.AccountCash, posted.CreditAccount)
	require.Len(t, repo.entries, 1)
	require.Equal(t, 60.0, repo.entries[0].Amount)

	repo.failEntries = errors.New("ledger unavailable")
	income, err := accounting.IncomeEntry(accounting.ManualInput{ID: "inc-1", Amount: 25, Description: "Scrap", Date: testNow})
	require.NoError(t, err)
	_, _, err = svc.BookManualIncome(ctx, ManualInput{Amount: 25, Reason: "Scrap"}, income)
	require.Error(t, err)

	day, err := svc.GetDailyCashbox(ctx, testNow)
	require.NoError(t, err)
	require.Empty(t, day.ManualIncome)
	require.Equal(t, 0.0, day.TotalIncome)
	require.Equal(t, -60.0, day.ClosingBalance)
	require.Len(t, repo.transactions, 1)
	require.Len(t, repo.entries, 1)

	_, _, err = NewService(repo, nil, nil).BookManualIncome(ctx, ManualInput{Amount: 25, Reason: "Scrap"}, income)
	require.Error(t, err)
}

func TestHistoryAndBalanceWithoutDays(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo)

	balance, err := svc.GetCurrentBalance(ctx)
	require.NoError(t, err)
	require.Zero(t, balance)

	for i := 0; i < 3; i++ {
		_, err := svc.UpdateDailyCashbox(ctx, testNow.AddDate(0, 0, -i), Increments{SalesIncome: 10})
		require.NoError(t, err)
	}
	history, err := svc.GetCashboxHistory(ctx, testNow.AddDate(0, 0, -1), testNow)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.True(t, history[0].Date.After(history[1].Date))

	_, err = svc.GetCashboxHistory(ctx, testNow, testNow.AddDate(0, 0, -1))
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}
