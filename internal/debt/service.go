package debt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/finledger/internal/shared"
)

// RepositoryPort abstracts debt persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	InsertDebt(ctx context.Context, d Debt) error
	FindByReference(ctx context.Context, ref ReferenceKey) (Debt, error)
	GetDebt(ctx context.Context, id uuid.UUID) (Debt, error)
	ListDebts(ctx context.Context, filter Filter, page shared.Page) ([]Debt, int, error)
	ListOpen(ctx context.Context, debtorType DebtorType) ([]Debt, error)
	InsertSchedules(ctx context.Context, schedules []Schedule) error
	ListSchedules(ctx context.Context, entityType DebtorType, entityID string) ([]Schedule, error)
	ListInstallments(ctx context.Context, debtID uuid.UUID) ([]Schedule, error)
	MarkOverdue(ctx context.Context, asOf time.Time) (SweepResult, error)
}

// AuditPort records debt lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// OverviewCache memoises the aging overview between mutations.
type OverviewCache interface {
	BuildKey(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
	Bump(ctx context.Context) error
}

// ReferenceKey identifies the source document of a debt. An empty DebtorID
// matches any debtor.
type ReferenceKey struct {
	ReferenceType string
	ReferenceID   string
	DebtorType    DebtorType
	DebtorID      string
}

// SweepResult counts rows flipped to overdue.
type SweepResult struct {
	Debts     int64 `json:"debts"`
	Schedules int64 `json:"schedules"`
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Risk  RiskPolicy
	Cache OverviewCache
}

// Service owns debt records, aging, write-off and installment plans.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	cache  OverviewCache
	risk   RiskPolicy
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, cache: cfg.Cache, risk: cfg.Risk.Normalize(), logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateDebt registers a credit obligation. Creating the same source document
// twice returns the existing debt unchanged.
func (s *Service) CreateDebt(ctx context.Context, in CreateInput) (Debt, error) {
	amount := shared.Round2(in.Amount)
	if !(amount > 0) {
		return Debt{}, fmt.Errorf("debt: %w: amount must be greater than zero", shared.ErrInvalidAmount)
	}
	if !in.DebtorType.Valid() {
		return Debt{}, fmt.Errorf("debt: %w: debtor type %q", shared.ErrInvalidInput, in.DebtorType)
	}
	if in.DebtorID == "" || in.ReferenceType == "" || in.ReferenceID == "" {
		return Debt{}, fmt.Errorf("debt: %w: debtor and reference required", shared.ErrInvalidInput)
	}
	key := ReferenceKey{ReferenceType: in.ReferenceType, ReferenceID: in.ReferenceID, DebtorType: in.DebtorType, DebtorID: in.DebtorID}
	existing, err := s.repo.FindByReference(ctx, key)
	if err == nil {
		s.logDuplicate(existing)
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Debt{}, err
	}

	now := s.now()
	if in.CreatedBy == "" {
		in.CreatedBy = shared.ActorFromContext(ctx)
	}
	d := Debt{
		ID:              uuid.New(),
		DebtorType:      in.DebtorType,
		DebtorID:        in.DebtorID,
		OriginalAmount:  amount,
		RemainingAmount: amount,
		DueDate:         in.DueDate,
		ReferenceType:   in.ReferenceType,
		ReferenceID:     in.ReferenceID,
		Description:     in.Description,
		Status:          StatusActive,
		CreatedBy:       in.CreatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if d.DueDate.IsZero() {
		d.DueDate = now
	}
	if d.DueDate.Before(now) {
		d.Status = StatusOverdue
	}
	if err := s.repo.InsertDebt(ctx, d); err != nil {
		if !errors.Is(err, shared.ErrDuplicateReference) {
			return Debt{}, err
		}
		// Lost the race against a concurrent create of the same document.
		existing, ferr := s.repo.FindByReference(ctx, key)
		if ferr != nil {
			return Debt{}, ferr
		}
		s.logDuplicate(existing)
		return existing, nil
	}
	s.Invalidate(ctx)
	s.logger.Info("debt created",
		slog.String("id", d.ID.String()),
		slog.String("debtor_type", string(d.DebtorType)),
		slog.String("reference", d.ReferenceType+":"+d.ReferenceID),
		slog.Float64("amount", d.OriginalAmount))
	return d, nil
}

func (s *Service) logDuplicate(d Debt) {
	s.logger.Info("debt already exists for reference",
		slog.String("id", d.ID.String()),
		slog.String("reference", d.ReferenceType+":"+d.ReferenceID))
}

// GetDebt loads one debt.
func (s *Service) GetDebt(ctx context.Context, id uuid.UUID) (Debt, error) {
	return s.repo.GetDebt(ctx, id)
}

// ResolveByReference finds the debt created for a source document.
func (s *Service) ResolveByReference(ctx context.Context, referenceType, referenceID string, debtorType DebtorType) (Debt, error) {
	return s.repo.FindByReference(ctx, ReferenceKey{ReferenceType: referenceType, ReferenceID: referenceID, DebtorType: debtorType})
}

// GetDebts returns a page of debts, soonest due first.
func (s *Service) GetDebts(ctx context.Context, filter Filter, page shared.Page) (DebtPage, error) {
	page = page.Normalize()
	if filter.DebtorType != "" && !filter.DebtorType.Valid() {
		return DebtPage{}, fmt.Errorf("debt: %w: debtor type %q", shared.ErrInvalidInput, filter.DebtorType)
	}
	debts, total, err := s.repo.ListDebts(ctx, filter, page)
	if err != nil {
		return DebtPage{}, err
	}
	if debts == nil {
		debts = []Debt{}
	}
	return DebtPage{Debts: debts, Pagination: shared.NewPagination(page, total)}, nil
}

// WriteOff marks a debt uncollectible. The remaining amount is kept for audit
// and no bad-debt entry is posted.
func (s *Service) WriteOff(ctx context.Context, id uuid.UUID, reason, userID string) (Debt, error) {
	if strings.TrimSpace(reason) == "" {
		return Debt{}, fmt.Errorf("debt: %w: write-off reason required", shared.ErrInvalidInput)
	}
	if userID == "" {
		userID = shared.ActorFromContext(ctx)
	}
	var out Debt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		d, err := tx.GetDebtForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch d.Status {
		case StatusSettled:
			return fmt.Errorf("debt: %w: cannot write off a settled debt", shared.ErrInvalidState)
		case StatusWrittenOff:
			return fmt.Errorf("debt: %w: debt already written off", shared.ErrInvalidState)
		}
		now := s.now()
		d.Status = StatusWrittenOff
		d.Meta.WriteOffReason = reason
		d.Meta.WriteOffBy = userID
		d.Meta.WriteOffDate = &now
		d.UpdatedAt = now
		if err := tx.UpdateDebt(ctx, d); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return Debt{}, err
	}
	s.Invalidate(ctx)
	s.record(ctx, userID, "debt.write_off", out.ID.String(), map[string]any{
		"reason":    reason,
		"remaining": out.RemainingAmount,
	})
	s.logger.Warn("debt written off",
		slog.String("id", out.ID.String()),
		slog.Float64("remaining", out.RemainingAmount),
		slog.String("reason", reason))
	return out, nil
}

// GetDebtOverview ages open receivables and payables as of now.
func (s *Service) GetDebtOverview(ctx context.Context) (Overview, error) {
	asOf := s.now()
	if s.cache == nil {
		return s.computeOverview(ctx, asOf)
	}
	key, err := s.cache.BuildKey(ctx, "debt-overview", asOf.UTC().Format("2006-01-02"))
	if err != nil {
		s.logger.Warn("overview cache key", slog.Any("error", err))
		return s.computeOverview(ctx, asOf)
	}
	var out Overview
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.computeOverview(ctx, asOf)
	})
	if err != nil {
		return Overview{}, err
	}
	return out, nil
}

func (s *Service) computeOverview(ctx context.Context, asOf time.Time) (Overview, error) {
	var receivables, payables []Debt
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		receivables, err = s.repo.ListOpen(gctx, DebtorCustomer)
		return err
	})
	g.Go(func() error {
		var err error
		payables, err = s.repo.ListOpen(gctx, DebtorSupplier)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return BuildOverview(BuildAging(receivables, asOf), BuildAging(payables, asOf), asOf, s.risk), nil
}

// Invalidate drops cached overviews after a balance-changing mutation.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("overview cache bump", slog.Any("error", err))
	}
}

// CreateInstallmentPlan replaces the unpaid (pending or overdue) installments
// of a debt with a fresh plan covering its remaining amount.
func (s *Service) CreateInstallmentPlan(ctx context.Context, in PlanInput) ([]Schedule, error) {
	if in.Count < 1 {
		return nil, fmt.Errorf("debt: %w: installments count must be at least 1", shared.ErrInvalidAmount)
	}
	if _, err := in.Interval.Step(time.Time{}, 0); err != nil {
		return nil, err
	}
	if in.UserID == "" {
		in.UserID = shared.ActorFromContext(ctx)
	}
	var plan []Schedule
	var removed int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		d, err := tx.GetDebtForUpdate(ctx, in.DebtID)
		if err != nil {
			return err
		}
		if !d.Status.Open() {
			return fmt.Errorf("%w: status %s", ErrDebtClosed, d.Status)
		}
		now := s.now()
		start := in.StartDate
		if start.IsZero() {
			start = now
		}
		plan, err = BuildInstallments(d, in.Count, in.Interval, start, in.UserID, now)
		if err != nil {
			return err
		}
		if removed, err = tx.DeleteUnpaidInstallments(ctx, d.ID); err != nil {
			return err
		}
		if err := tx.InsertSchedules(ctx, plan); err != nil {
			return err
		}
		d.Meta.IsScheduled = true
		d.Meta.InstallmentsCount = in.Count
		d.Meta.LastScheduledUpdate = &now
		d.UpdatedAt = now
		return tx.UpdateDebt(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, in.UserID, "debt.schedule", in.DebtID.String(), map[string]any{
		"installments": in.Count,
		"interval":     in.Interval,
		"replaced":     removed,
	})
	return plan, nil
}

// GetInstallments lists every installment of a debt by due date.
func (s *Service) GetInstallments(ctx context.Context, debtID uuid.UUID) ([]Schedule, error) {
	if _, err := s.repo.GetDebt(ctx, debtID); err != nil {
		return nil, err
	}
	return s.repo.ListInstallments(ctx, debtID)
}

// SaveSchedules registers manual PENDING installments for a counterparty.
// Installments bound to a debt replace its unpaid plan and must add up to the
// remaining amount.
func (s *Service) SaveSchedules(ctx context.Context, in SaveSchedulesInput) ([]Schedule, error) {
	if !in.EntityType.Valid() {
		return nil, fmt.Errorf("debt: %w: entity type %q", shared.ErrInvalidInput, in.EntityType)
	}
	if in.EntityID == "" {
		return nil, fmt.Errorf("debt: %w: entity id required", shared.ErrInvalidInput)
	}
	if in.UserID == "" {
		in.UserID = shared.ActorFromContext(ctx)
	}
	now := s.now()
	rows := make([]Schedule, 0, len(in.Schedules))
	var total float64
	for _, item := range in.Schedules {
		amount := shared.Round2(item.Amount)
		if !(amount > 0) {
			return nil, fmt.Errorf("debt: %w: schedule amount must be positive", shared.ErrInvalidAmount)
		}
		if item.DueDate.IsZero() {
			return nil, fmt.Errorf("debt: %w: schedule due date required", shared.ErrInvalidInput)
		}
		total = shared.Add(total, amount)
		rows = append(rows, Schedule{
			ID:         uuid.New(),
			EntityType: in.EntityType,
			EntityID:   in.EntityID,
			DebtID:     in.DebtID,
			Amount:     amount,
			DueDate:    item.DueDate,
			Status:     SchedulePending,
			Notes:      item.Notes,
			CreatedBy:  in.UserID,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if in.DebtID == nil {
		if len(rows) == 0 {
			return rows, nil
		}
		if err := s.repo.InsertSchedules(ctx, rows); err != nil {
			return nil, err
		}
		return rows, nil
	}

	var removed int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		d, err := tx.GetDebtForUpdate(ctx, *in.DebtID)
		if err != nil {
			return err
		}
		if d.DebtorType != in.EntityType || d.DebtorID != in.EntityID {
			return fmt.Errorf("debt: %w: debt belongs to another counterparty", shared.ErrInvalidInput)
		}
		if !d.Status.Open() {
			return fmt.Errorf("%w: status %s", ErrDebtClosed, d.Status)
		}
		if math.Abs(shared.Sub(total, d.RemainingAmount)) > shared.Epsilon {
			return fmt.Errorf("debt: %w: installments total %s but remaining amount is %s",
				shared.ErrInvalidAmount, shared.Numeric(total), shared.Numeric(d.RemainingAmount))
		}
		if removed, err = tx.DeleteUnpaidInstallments(ctx, d.ID); err != nil {
			return err
		}
		if err := tx.InsertSchedules(ctx, rows); err != nil {
			return err
		}
		d.Meta.IsScheduled = true
		d.Meta.InstallmentsCount = len(rows)
		d.Meta.LastScheduledUpdate = &now
		d.UpdatedAt = now
		return tx.UpdateDebt(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, in.UserID, "debt.schedule", in.DebtID.String(), map[string]any{
		"installments": len(rows),
		"manual":       true,
		"replaced":     removed,
	})
	return rows, nil
}

// ListSchedules returns the open installments of a counterparty by due date.
func (s *Service) ListSchedules(ctx context.Context, entityType DebtorType, entityID string) ([]Schedule, error) {
	if !entityType.Valid() || entityID == "" {
		return nil, fmt.Errorf("debt: %w: entity id and type are required", shared.ErrInvalidInput)
	}
	schedules, err := s.repo.ListSchedules(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(schedules, func(i, j int) bool { return schedules[i].DueDate.Before(schedules[j].DueDate) })
	return schedules, nil
}

// MarkOverdue flips active debts and pending installments past their due date.
func (s *Service) MarkOverdue(ctx context.Context) (SweepResult, error) {
	res, err := s.repo.MarkOverdue(ctx, s.now())
	if err != nil {
		return SweepResult{}, err
	}
	if res.Debts > 0 || res.Schedules > 0 {
		s.Invalidate(ctx)
	}
	s.logger.Info("overdue sweep", slog.Int64("debts", res.Debts), slog.Int64("schedules", res.Schedules))
	return res, nil
}

func (s *Service) record(ctx context.Context, actor, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "debt",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit debt event", slog.String("action", action), slog.Any("error", err))
	}
}
