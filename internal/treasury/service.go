package treasury

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/finledger/internal/accounting"
	"github.com/odyssey-erp/finledger/internal/shared"
)

// RepositoryPort abstracts cashbox persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetDay(ctx context.Context, day time.Time) (CashboxDaily, error)
	LatestDay(ctx context.Context) (CashboxDaily, error)
	ListDays(ctx context.Context, from, to time.Time) ([]CashboxDaily, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
}

// Ledger posts entries on a cashbox transaction.
type Ledger interface {
	PostWith(ctx context.Context, tx accounting.TxRepository, entries ...accounting.Entry) ([]accounting.Entry, error)
	Committed(ctx context.Context, entries []accounting.Entry)
}

// AuditPort records treasury events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service maintains the daily cashbox and the treasury journal.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	ledger Ledger
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// WithLedger enables booking manual entries into the ledger.
func (s *Service) WithLedger(l Ledger) *Service {
	s.ledger = l
	return s
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ensureDay locks the cashbox of day, creating it with the previous day's
// closing balance as opening when missing.
func (s *Service) ensureDay(ctx context.Context, tx TxRepository, day time.Time) (CashboxDaily, error) {
	c, err := tx.GetDayForUpdate(ctx, day)
	if err == nil || !errors.Is(err, ErrDayNotFound) {
		return c, err
	}
	opening, _, err := tx.ClosingOf(ctx, day.AddDate(0, 0, -1))
	if err != nil {
		return CashboxDaily{}, err
	}
	if err := tx.CreateDay(ctx, day, opening, s.now()); err != nil {
		return CashboxDaily{}, err
	}
	return tx.GetDayForUpdate(ctx, day)
}

// UpdateDailyCashbox adds the increments to the day, creating it if needed.
func (s *Service) UpdateDailyCashbox(ctx context.Context, date time.Time, inc Increments) (CashboxDaily, error) {
	if inc.SalesIncome < 0 || inc.PurchaseExpenses < 0 {
		return CashboxDaily{}, fmt.Errorf("treasury: %w: increments must not be negative", shared.ErrInvalidAmount)
	}
	var out CashboxDaily
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = s.applyIncrements(ctx, tx, Day(date), inc)
		return err
	})
	return out, err
}

func (s *Service) applyIncrements(ctx context.Context, tx TxRepository, day time.Time, inc Increments) (CashboxDaily, error) {
	c, err := s.ensureDay(ctx, tx, day)
	if err != nil {
		return CashboxDaily{}, err
	}
	c.SalesIncome = shared.Add(c.SalesIncome, inc.SalesIncome)
	c.PurchaseExpenses = shared.Add(c.PurchaseExpenses, inc.PurchaseExpenses)
	c.Recalculate()
	c.UpdatedAt = s.now()
	if err := tx.SaveDay(ctx, c); err != nil {
		return CashboxDaily{}, err
	}
	return c, nil
}

// RecordSaleIncome journals cash taken for an invoice and adds it to the day.
func (s *Service) RecordSaleIncome(ctx context.Context, in SourceInput) (Transaction, error) {
	return s.recordSource(ctx, TxIncome, "Invoice", fmt.Sprintf("Sales - invoice #%s", in.Number), in,
		Increments{SalesIncome: in.Amount})
}

// RecordPurchaseExpense journals cash paid for a purchase order and adds it to the day.
func (s *Service) RecordPurchaseExpense(ctx context.Context, in SourceInput) (Transaction, error) {
	return s.recordSource(ctx, TxExpense, "PurchaseOrder", fmt.Sprintf("Purchases - order #%s", in.Number), in,
		Increments{PurchaseExpenses: in.Amount})
}

func (s *Service) recordSource(ctx context.Context, typ TxType, refType, description string, in SourceInput, inc Increments) (Transaction, error) {
	if !(in.Amount > 0) {
		return Transaction{}, fmt.Errorf("treasury: %w: amount must be greater than zero", shared.ErrInvalidAmount)
	}
	now := s.now()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	t := Transaction{
		ID:            uuid.New(),
		Type:          typ,
		Amount:        shared.Round2(in.Amount),
		Description:   description,
		ReferenceType: refType,
		ReferenceID:   in.ReferenceID,
		Date:          date,
		CreatedBy:     in.UserID,
		CreatedAt:     now,
	}
	var recorded bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if recorded, err = tx.InsertTransaction(ctx, t); err != nil || !recorded {
			return err
		}
		_, err = s.applyIncrements(ctx, tx, Day(date), inc)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	if !recorded {
		s.logger.Info("cash movement already recorded",
			slog.String("reference", refType+":"+in.ReferenceID))
	}
	return t, nil
}

// AddManualIncome records cash received outside sales.
func (s *Service) AddManualIncome(ctx context.Context, in ManualInput) (CashboxDaily, error) {
	c, _, err := s.addManual(ctx, DirectionIncome, in, nil)
	return c, err
}

// AddManualExpense records cash paid outside purchases. Category defaults to other.
func (s *Service) AddManualExpense(ctx context.Context, in ManualInput) (CashboxDaily, error) {
	in, err := expenseInput(in)
	if err != nil {
		return CashboxDaily{}, err
	}
	c, _, err := s.addManual(ctx, DirectionExpense, in, nil)
	return c, err
}

// BookManualIncome records manual income and posts its ledger entry in the
// same transaction.
func (s *Service) BookManualIncome(ctx context.Context, in ManualInput, entry accounting.Entry) (CashboxDaily, accounting.Entry, error) {
	return s.addManual(ctx, DirectionIncome, in, &entry)
}

// BookManualExpense records a manual expense and posts its ledger entry in the
// same transaction.
func (s *Service) BookManualExpense(ctx context.Context, in ManualInput, entry accounting.Entry) (CashboxDaily, accounting.Entry, error) {
	in, err := expenseInput(in)
	if err != nil {
		return CashboxDaily{}, accounting.Entry{}, err
	}
	return s.addManual(ctx, DirectionExpense, in, &entry)
}

func expenseInput(in ManualInput) (ManualInput, error) {
	if in.Category == "" {
		in.Category = "other"
	}
	if !expenseCategories[in.Category] {
		return in, fmt.Errorf("treasury: %w: category %q", shared.ErrInvalidInput, in.Category)
	}
	return in, nil
}

func (s *Service) addManual(ctx context.Context, dir Direction, in ManualInput, entry *accounting.Entry) (CashboxDaily, accounting.Entry, error) {
	if !(in.Amount > 0) {
		return CashboxDaily{}, accounting.Entry{}, fmt.Errorf("treasury: %w: amount must be greater than zero", shared.ErrInvalidAmount)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return CashboxDaily{}, accounting.Entry{}, fmt.Errorf("treasury: %w: reason required", shared.ErrInvalidInput)
	}
	if entry != nil && s.ledger == nil {
		return CashboxDaily{}, accounting.Entry{}, errors.New("treasury: ledger not configured")
	}
	if in.UserID == "" {
		in.UserID = shared.ActorFromContext(ctx)
	}
	now := s.now()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	day := Day(date)
	manual := ManualEntry{
		ID:        uuid.New(),
		Day:       day,
		Direction: dir,
		Amount:    shared.Round2(in.Amount),
		Reason:    in.Reason,
		CreatedBy: in.UserID,
		CreatedAt: now,
	}
	txType := TxIncome
	if dir == DirectionExpense {
		manual.Category = in.Category
		txType = TxExpense
	}

	var out CashboxDaily
	var posted []accounting.Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := s.ensureDay(ctx, tx, day)
		if err != nil {
			return err
		}
		if err := tx.InsertManual(ctx, manual); err != nil {
			return err
		}
		if dir == DirectionIncome {
			c.ManualIncome = append(c.ManualIncome, manual)
		} else {
			c.ManualExpenses = append(c.ManualExpenses, manual)
		}
		c.Recalculate()
		c.UpdatedAt = now
		if err := tx.SaveDay(ctx, c); err != nil {
			return err
		}
		if _, err := tx.InsertTransaction(ctx, Transaction{
			ID:            uuid.New(),
			Type:          txType,
			Amount:        manual.Amount,
			Description:   in.Reason,
			ReferenceType: "Manual",
			Date:          date,
			CreatedBy:     in.UserID,
			CreatedAt:     now,
		}); err != nil {
			return err
		}
		out = c
		if entry == nil {
			return nil
		}
		posted, err = s.ledger.PostWith(ctx, tx, *entry)
		return err
	})
	if err != nil {
		return CashboxDaily{}, accounting.Entry{}, err
	}
	if len(posted) == 0 {
		return out, accounting.Entry{}, nil
	}
	s.ledger.Committed(ctx, posted)
	return out, posted[0], nil
}

// Reconcile stores the counted closing balance of a day and the difference
// against the expected balance.
func (s *Service) Reconcile(ctx context.Context, date time.Time, actual float64, userID, notes string) (CashboxDaily, error) {
	if userID == "" {
		userID = shared.ActorFromContext(ctx)
	}
	var out CashboxDaily
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetDayForUpdate(ctx, Day(date))
		if err != nil {
			return err
		}
		now := s.now()
		c.ClosingBalance = shared.Round2(actual)
		c.IsReconciled = true
		c.ReconciledBy = userID
		c.ReconciledAt = &now
		c.Notes = notes
		c.UpdatedAt = now
		c.Recalculate()
		if err := tx.SaveDay(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return CashboxDaily{}, err
	}
	if out.Difference != 0 {
		s.logger.Warn("cashbox difference on reconcile",
			slog.String("day", out.Date.Format("2006-01-02")),
			slog.Float64("expected", out.Expected()),
			slog.Float64("actual", out.ClosingBalance),
			slog.Float64("difference", out.Difference))
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  userID,
			Action:   "cashbox.reconcile",
			Entity:   "cashbox_daily",
			EntityID: out.Date.Format("2006-01-02"),
			Meta:     map[string]any{"actual": out.ClosingBalance, "difference": out.Difference, "notes": notes},
		}); err != nil {
			s.logger.Warn("audit reconcile", slog.Any("error", err))
		}
	}
	return out, nil
}

// GetDailyCashbox loads one day with its manual entries.
func (s *Service) GetDailyCashbox(ctx context.Context, date time.Time) (CashboxDaily, error) {
	return s.repo.GetDay(ctx, Day(date))
}

// GetCashboxHistory lists days between from and to, newest first.
func (s *Service) GetCashboxHistory(ctx context.Context, from, to time.Time) ([]CashboxDaily, error) {
	if !from.IsZero() {
		from = Day(from)
	}
	if !to.IsZero() {
		to = Day(to)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, fmt.Errorf("treasury: %w: range end before start", shared.ErrInvalidInput)
	}
	days, err := s.repo.ListDays(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if days == nil {
		days = []CashboxDaily{}
	}
	return days, nil
}

// GetCurrentBalance is the balance of the latest day: the counted closing
// when reconciled, the expected one otherwise, 0 without any day.
func (s *Service) GetCurrentBalance(ctx context.Context) (float64, error) {
	c, err := s.repo.LatestDay(ctx)
	if errors.Is(err, ErrDayNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return c.Balance(), nil
}

// ListTransactions returns treasury transactions newest first.
func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	if filter.Type != "" && filter.Type != TxIncome && filter.Type != TxExpense {
		return nil, fmt.Errorf("treasury: %w: transaction type %q", shared.ErrInvalidInput, filter.Type)
	}
	txs, err := s.repo.ListTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []Transaction{}
	}
	return txs, nil
}

// GetSummary totals the transactions of a period next to the current balance.
func (s *Service) GetSummary(ctx context.Context, from, to time.Time) (Summary, error) {
	balance, err := s.GetCurrentBalance(ctx)
	if err != nil {
		return Summary{}, err
	}
	txs, err := s.ListTransactions(ctx, TransactionFilter{From: from, To: to})
	if err != nil {
		return Summary{}, err
	}
	out := Summary{Balance: balance, Transactions: txs}
	for _, t := range txs {
		if t.Type == TxIncome {
			out.Income = shared.Add(out.Income, t.Amount)
		} else {
			out.Expenses = shared.Add(out.Expenses, t.Amount)
		}
	}
	return out, nil
}
