package accounting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/finledger/internal/shared"
)

type memoryRepo struct {
	mu      sync.Mutex
	entries []Entry
	failOn  EntryType
}

type memoryTx struct {
	repo    *memoryRepo
	pending []Entry
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{repo: r}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.entries = append(r.entries, tx.pending...)
	return nil
}

func (tx *memoryTx) InsertEntries(_ context.Context, entries []Entry) error {
	seen := map[string]bool{}
	for _, e := range append(append([]Entry{}, tx.repo.entries...), tx.pending...) {
		if e.SourceKey != "" {
			seen[e.SourceKey] = true
		}
	}
	for _, e := range entries {
		if tx.repo.failOn != "" && e.Type == tx.repo.failOn {
			return errors.New("insert failed")
		}
		if e.SourceKey != "" && seen[e.SourceKey] {
			return fmt.Errorf("%w: %s", shared.ErrDuplicateReference, e.SourceKey)
		}
		seen[e.SourceKey] = true
		tx.pending = append(tx.pending, e)
	}
	return nil
}

func (r *memoryRepo) ListEntries(_ context.Context, f EntryFilter) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.entries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memoryRepo) AccountEntries(_ context.Context, a Account, dr DateRange) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.entries {
		if (e.DebitAccount == a || e.CreditAccount == a) && dr.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryRepo) AccountTotals(_ context.Context, asOf time.Time) ([]AccountTotal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	totals := map[Account]*AccountTotal{}
	get := func(a Account) *AccountTotal {
		if totals[a] == nil {
			totals[a] = &AccountTotal{Account: a}
		}
		return totals[a]
	}
	for _, e := range r.entries {
		if e.Date.After(asOf) {
			continue
		}
		get(e.DebitAccount).Debit = shared.Add(get(e.DebitAccount).Debit, e.Amount)
		get(e.CreditAccount).Credit = shared.Add(get(e.CreditAccount).Credit, e.Amount)
	}
	var out []AccountTotal
	for _, t := range totals {
		out = append(out, *t)
	}
	return out, nil
}

type countingObserver struct{ n int }

func (o *countingObserver) ObservePosting(string, float64) { o.n++ }

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil, nil)
	svc.WithNow(func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) })
	return svc
}

func TestPostStampsAndDetectsDuplicates(t *testing.T) {
	repo := &memoryRepo{}
	obs := &countingObserver{}
	svc := newTestService(repo).WithObserver(obs)
	ctx := shared.ContextWithActor(context.Background(), "u-7")

	entries, err := SaleEntries(SaleInput{InvoiceID: "inv-1", PaymentType: "cash", Total: 100, TotalCost: 60, Date: day})
	require.NoError(t, err)
	posted, err := svc.Post(ctx, entries...)
	require.NoError(t, err)
	require.Len(t, posted, 2)
	require.Equal(t, EntryID("Invoice:inv-1:SALE"), posted[0].ID)
	require.Equal(t, "u-7", posted[0].CreatedBy)
	require.Equal(t, 2, obs.n)

	_, err = svc.Post(ctx, entries...)
	require.ErrorIs(t, err, shared.ErrDuplicateReference)
	require.Len(t, repo.entries, 2)

	again, err := svc.PostIdempotent(ctx, entries...)
	require.NoError(t, err)
	require.Empty(t, again)
}

func TestPostIsAllOrNothing(t *testing.T) {
	repo := &memoryRepo{failOn: EntryCOGS}
	svc := newTestService(repo)
	entries, err := SaleEntries(SaleInput{InvoiceID: "inv-2", PaymentType: "cash", Total: 100, TotalCost: 60, Date: day})
	require.NoError(t, err)
	_, err = svc.Post(context.Background(), entries...)
	require.Error(t, err)
	require.Empty(t, repo.entries)

	_, err = svc.Post(context.Background(), Entry{Type: EntrySale, DebitAccount: AccountCash, CreditAccount: AccountCash, Amount: 1})
	require.ErrorIs(t, err, shared.ErrLedgerImbalance)
}

func TestGetLedgerRunningBalance(t *testing.T) {
	repo := &memoryRepo{}
	svc := newTestService(repo)
	ctx := context.Background()

	sale, _ := SaleEntries(SaleInput{InvoiceID: "a", PaymentType: "cash", Total: 500, Date: day})
	purchase, _ := PurchaseEntries(PurchaseInput{OrderID: "b", PaymentType: "cash", Total: 200, Date: day.Add(time.Hour)})
	expense, _ := ExpenseEntry(ManualInput{Amount: 50, Category: "utilities", Description: "power", Date: day.Add(-time.Hour)})
	for _, batch := range [][]Entry{sale, purchase, {expense}} {
		_, err := svc.Post(ctx, batch...)
		require.NoError(t, err)
	}

	ledger, err := svc.GetLedger(ctx, AccountCash, DateRange{})
	require.NoError(t, err)
	require.Len(t, ledger.Lines, 3)
	require.Equal(t, -50.0, ledger.Lines[0].Balance)
	require.Equal(t, 450.0, ledger.Lines[1].Balance)
	require.Equal(t, 250.0, ledger.Lines[2].Balance)
	require.Equal(t, 250.0, ledger.FinalBalance)
	require.Equal(t, 500.0, ledger.TotalDebit)
	require.Equal(t, 250.0, ledger.TotalCredit)

	ranged, err := svc.GetLedger(ctx, AccountCash, DateRange{From: day})
	require.NoError(t, err)
	require.Len(t, ranged.Lines, 2)

	_, err = svc.GetLedger(ctx, Account("NOPE"), DateRange{})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestTrialBalanceAsOf(t *testing.T) {
	repo := &memoryRepo{}
	svc := newTestService(repo)
	ctx := context.Background()

	sale, _ := SaleEntries(SaleInput{InvoiceID: "a", PaymentType: "credit", Total: 900, TotalCost: 400, Date: day})
	later, _ := PurchaseEntries(PurchaseInput{OrderID: "b", PaymentType: "credit", Total: 300, Date: day.AddDate(0, 1, 0)})
	_, err := svc.Post(ctx, sale...)
	require.NoError(t, err)
	_, err = svc.Post(ctx, later...)
	require.NoError(t, err)

	tb, err := svc.GetTrialBalance(ctx, day)
	require.NoError(t, err)
	require.True(t, tb.IsBalanced)
	require.Equal(t, 1300.0, tb.TotalDebit)
	require.Equal(t, 1300.0, tb.TotalCredit)
	for _, line := range tb.Accounts {
		require.NotEqual(t, AccountPayables, line.Account)
		if line.Account == AccountReceivables {
			require.Equal(t, 900.0, line.Balance)
		}
		if line.Account == AccountSalesRevenue {
			require.Equal(t, -900.0, line.Balance)
		}
	}

	tb, err = svc.GetTrialBalance(ctx, time.Time{})
	require.NoError(t, err)
	require.True(t, tb.IsBalanced)
	require.Equal(t, 1600.0, tb.TotalDebit)
}

func TestGetEntriesFilters(t *testing.T) {
	repo := &memoryRepo{}
	svc := newTestService(repo)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		e, err := IncomeEntry(ManualInput{ID: fmt.Sprintf("m-%d", i), Amount: float64(i + 1), Description: "tip", Date: day.AddDate(0, 0, i)})
		require.NoError(t, err)
		_, err = svc.Post(ctx, e)
		require.NoError(t, err)
	}
	entries, err := svc.GetEntries(ctx, EntryFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 5.0, entries[0].Amount, "newest first")

	entries, err = svc.GetEntries(ctx, EntryFilter{Type: EntrySale})
	require.NoError(t, err)
	require.Empty(t, entries)

	_, err = svc.GetEntries(ctx, EntryFilter{Account: "BOGUS"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestManualPostingRejectsNonPositive(t *testing.T) {
	svc := newTestService(&memoryRepo{})
	_, err := svc.RecordExpense(context.Background(), ManualInput{Amount: 0, Description: "x"})
	require.ErrorIs(t, err, shared.ErrInvalidAmount)

	e, err := svc.RecordIncome(context.Background(), ManualInput{Amount: 15, Description: "refund"})
	require.NoError(t, err)
	require.Equal(t, shared.SystemActor, e.CreatedBy)
	require.False(t, e.Date.IsZero())
	require.Len(t, svc.Accounts(), 16)
}
