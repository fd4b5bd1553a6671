package accounting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/odyssey-erp/finledger/internal/shared"
)

// RepositoryPort abstracts ledger persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error)
	AccountEntries(ctx context.Context, account Account, r DateRange) ([]Entry, error)
	AccountTotals(ctx context.Context, asOf time.Time) ([]AccountTotal, error)
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// PostingObserver receives a callback for every committed entry.
type PostingObserver interface {
	ObservePosting(entryType string, amount float64)
}

// Service builds, validates and persists double-entry postings and serves
// the ledger read paths.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	logger   *slog.Logger
	observer PostingObserver
	now      func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithObserver attaches a metrics observer.
func (s *Service) WithObserver(o PostingObserver) *Service {
	s.observer = o
	return s
}

// Post validates the entries and persists them in one transaction.
// A source key that was already posted yields shared.ErrDuplicateReference.
func (s *Service) Post(ctx context.Context, entries ...Entry) ([]Entry, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	var posted []Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		posted, err = s.PostWith(ctx, tx, entries...)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, posted)
	return posted, nil
}

// PostWith posts inside a transaction owned by the caller. The caller is
// responsible for commit; observers are notified through Committed.
func (s *Service) PostWith(ctx context.Context, tx TxRepository, entries ...Entry) ([]Entry, error) {
	if tx == nil {
		return nil, errNilTx
	}
	now := s.now()
	stamped := make([]Entry, len(entries))
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if e.Date.IsZero() {
			e.Date = now
		}
		if e.CreatedBy == "" {
			e.CreatedBy = shared.ActorFromContext(ctx)
		}
		e.ID = EntryID(e.SourceKey)
		e.CreatedAt = now
		stamped[i] = e
	}
	if err := tx.InsertEntries(ctx, stamped); err != nil {
		return nil, err
	}
	return stamped, nil
}

// Committed reports entries posted through PostWith once the outer
// transaction has committed.
func (s *Service) Committed(ctx context.Context, entries []Entry) {
	s.afterCommit(ctx, entries)
}

func (s *Service) afterCommit(ctx context.Context, entries []Entry) {
	for _, e := range entries {
		if s.observer != nil {
			s.observer.ObservePosting(string(e.Type), e.Amount)
		}
		s.logger.Debug("ledger entry posted",
			slog.String("id", e.ID.String()),
			slog.String("type", string(e.Type)),
			slog.String("debit", string(e.DebitAccount)),
			slog.String("credit", string(e.CreditAccount)),
			slog.Float64("amount", e.Amount))
		if s.audit != nil && !e.IsSystemGenerated {
			if err := s.audit.Record(ctx, shared.AuditLog{
				ActorID:  e.CreatedBy,
				Action:   "ledger.post",
				Entity:   "accounting_entry",
				EntityID: e.ID.String(),
				Meta: map[string]any{
					"type":   e.Type,
					"debit":  e.DebitAccount,
					"credit": e.CreditAccount,
					"amount": e.Amount,
				},
			}); err != nil {
				s.logger.Warn("audit ledger post", slog.Any("error", err))
			}
		}
	}
}

// PostIdempotent posts entries and treats an already-posted source as success.
func (s *Service) PostIdempotent(ctx context.Context, entries ...Entry) ([]Entry, error) {
	posted, err := s.Post(ctx, entries...)
	if errors.Is(err, shared.ErrDuplicateReference) {
		s.logger.Info("ledger source already posted", slog.String("source", firstSource(entries)))
		return nil, nil
	}
	return posted, err
}

func firstSource(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}
	return entries[0].SourceKey
}

// GetLedger returns the entries touching account in chronological order with
// a running balance where debits add and credits subtract.
func (s *Service) GetLedger(ctx context.Context, account Account, r DateRange) (Ledger, error) {
	info, ok := account.Info()
	if !ok {
		return Ledger{}, fmt.Errorf("%w: unknown account %q", shared.ErrInvalidInput, account)
	}
	entries, err := s.repo.AccountEntries(ctx, account, r)
	if err != nil {
		return Ledger{}, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Date.Equal(entries[j].Date) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].Date.Before(entries[j].Date)
	})
	ledger := Ledger{Account: account, Name: info.Name, Lines: make([]LedgerLine, 0, len(entries))}
	balance := 0.0
	for _, e := range entries {
		line := LedgerLine{Entry: e}
		if e.DebitAccount == account {
			line.Debit = e.Amount
			balance = shared.Add(balance, e.Amount)
			ledger.TotalDebit = shared.Add(ledger.TotalDebit, e.Amount)
		} else {
			line.Credit = e.Amount
			balance = shared.Sub(balance, e.Amount)
			ledger.TotalCredit = shared.Add(ledger.TotalCredit, e.Amount)
		}
		line.Balance = balance
		ledger.Lines = append(ledger.Lines, line)
	}
	ledger.FinalBalance = balance
	return ledger, nil
}

// GetTrialBalance aggregates every entry dated up to asOf.
func (s *Service) GetTrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	totals, err := s.repo.AccountTotals(ctx, asOf)
	if err != nil {
		return TrialBalance{}, err
	}
	return BuildTrialBalance(asOf, totals), nil
}

// BuildTrialBalance turns per-account totals into the ordered trial balance.
func BuildTrialBalance(asOf time.Time, totals []AccountTotal) TrialBalance {
	sort.SliceStable(totals, func(i, j int) bool {
		return chartIndex[totals[i].Account] < chartIndex[totals[j].Account]
	})
	tb := TrialBalance{AsOf: asOf, Accounts: make([]TrialBalanceLine, 0, len(totals))}
	for _, t := range totals {
		info, _ := t.Account.Info()
		tb.Accounts = append(tb.Accounts, TrialBalanceLine{
			Account: t.Account,
			Name:    info.Name,
			Debit:   t.Debit,
			Credit:  t.Credit,
			Balance: shared.Sub(t.Debit, t.Credit),
		})
		tb.TotalDebit = shared.Add(tb.TotalDebit, t.Debit)
		tb.TotalCredit = shared.Add(tb.TotalCredit, t.Credit)
	}
	tb.Difference = shared.Sub(tb.TotalDebit, tb.TotalCredit)
	diff := tb.Difference
	if diff < 0 {
		diff = -diff
	}
	tb.IsBalanced = diff < shared.Epsilon
	return tb
}

// GetEntries lists entries newest first.
func (s *Service) GetEntries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	filter = filter.normalize()
	if filter.Account != "" && !filter.Account.Valid() {
		return nil, fmt.Errorf("%w: unknown account %q", shared.ErrInvalidInput, filter.Account)
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown entry type %q", shared.ErrInvalidInput, filter.Type)
	}
	return s.repo.ListEntries(ctx, filter)
}

// Accounts returns the chart of accounts.
func (s *Service) Accounts() []AccountInfo {
	out := make([]AccountInfo, len(chart))
	copy(out, chart)
	return out
}

// RecordExpense posts a manual expense entry.
func (s *Service) RecordExpense(ctx context.Context, in ManualInput) (Entry, error) {
	return s.postManual(ctx, in, ExpenseEntry)
}

// RecordIncome posts a manual income entry.
func (s *Service) RecordIncome(ctx context.Context, in ManualInput) (Entry, error) {
	return s.postManual(ctx, in, IncomeEntry)
}

func (s *Service) postManual(ctx context.Context, in ManualInput, build func(ManualInput) (Entry, error)) (Entry, error) {
	if !(in.Amount > 0) {
		return Entry{}, shared.ErrInvalidAmount
	}
	if in.Date.IsZero() {
		in.Date = s.now()
	}
	if in.UserID == "" {
		in.UserID = shared.ActorFromContext(ctx)
	}
	entry, err := build(in)
	if err != nil {
		return Entry{}, err
	}
	posted, err := s.Post(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	return posted[0], nil
}
