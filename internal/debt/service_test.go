package debt

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/finledger/internal/platform/cache"
	"github.com/odyssey-erp/finledger/internal/shared"
)

type memoryRepo struct {
	mu          sync.Mutex
	debts       map[uuid.UUID]Debt
	schedules   map[uuid.UUID]Schedule
	openCalls   int
	insertRaced bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{debts: map[uuid.UUID]Debt{}, schedules: map[uuid.UUID]Schedule{}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	debts := make(map[uuid.UUID]Debt, len(r.debts))
	for k, v := range r.debts {
		debts[k] = v
	}
	schedules := make(map[uuid.UUID]Schedule, len(r.schedules))
	for k, v := range r.schedules {
		schedules[k] = v
	}
	if err := fn(ctx, &memoryTx{debts: debts, schedules: schedules}); err != nil {
		return err
	}
	r.debts, r.schedules = debts, schedules
	return nil
}

func (r *memoryRepo) InsertDebt(_ context.Context, d Debt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.debts {
		if existing.ReferenceType == d.ReferenceType && existing.ReferenceID == d.ReferenceID &&
			existing.DebtorType == d.DebtorType && existing.DebtorID == d.DebtorID {
			return shared.ErrDuplicateReference
		}
	}
	r.debts[d.ID] = d
	return nil
}

func (r *memoryRepo) FindByReference(_ context.Context, ref ReferenceKey) (Debt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertRaced {
		// Simulates a concurrent create landing between lookup and insert.
		r.insertRaced = false
		return Debt{}, ErrDebtNotFound
	}
	for _, d := range r.debts {
		if d.ReferenceType == ref.ReferenceType && d.ReferenceID == ref.ReferenceID && d.DebtorType == ref.DebtorType &&
			(ref.DebtorID == "" || d.DebtorID == ref.DebtorID) {
			return d, nil
		}
	}
	return Debt{}, ErrDebtNotFound
}

func (r *memoryRepo) GetDebt(_ context.Context, id uuid.UUID) (Debt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.debts[id]
	if !ok {
		return Debt{}, ErrDebtNotFound
	}
	return d, nil
}

func (r *memoryRepo) ListDebts(_ context.Context, filter Filter, page shared.Page) ([]Debt, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Debt
	for _, d := range r.debts {
		if filter.DebtorType != "" && d.DebtorType != filter.DebtorType {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		if filter.DebtorID != "" && d.DebtorID != filter.DebtorID {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	total := len(out)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (r *memoryRepo) ListOpen(_ context.Context, debtorType DebtorType) ([]Debt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openCalls++
	var out []Debt
	for _, d := range r.debts {
		if d.DebtorType == debtorType && d.Status.Open() {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memoryRepo) InsertSchedules(_ context.Context, schedules []Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range schedules {
		r.schedules[s.ID] = s
	}
	return nil
}

func (r *memoryRepo) ListSchedules(_ context.Context, entityType DebtorType, entityID string) ([]Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Schedule
	for _, s := range r.schedules {
		if s.EntityType == entityType && s.EntityID == entityID && s.Status != SchedulePaid {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListInstallments(_ context.Context, debtID uuid.UUID) ([]Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Schedule
	for _, s := range r.schedules {
		if s.DebtID != nil && *s.DebtID == debtID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (r *memoryRepo) MarkOverdue(_ context.Context, asOf time.Time) (SweepResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res SweepResult
	for id, d := range r.debts {
		if d.Status == StatusActive && d.RemainingAmount > 0 && d.DueDate.Before(asOf) {
			d.Status = StatusOverdue
			r.debts[id] = d
			res.Debts++
		}
	}
	for id, s := range r.schedules {
		if s.Status == SchedulePending && s.DueDate.Before(asOf) {
			s.Status = ScheduleOverdue
			r.schedules[id] = s
			res.Schedules++
		}
	}
	return res, nil
}

type memoryTx struct {
	debts     map[uuid.UUID]Debt
	schedules map[uuid.UUID]Schedule
}

func (tx *memoryTx) GetDebtForUpdate(_ context.Context, id uuid.UUID) (Debt, error) {
	d, ok := tx.debts[id]
	if !ok {
		return Debt{}, ErrDebtNotFound
	}
	return d, nil
}

func (tx *memoryTx) UpdateDebt(_ context.Context, d Debt) error {
	if _, ok := tx.debts[d.ID]; !ok {
		return ErrDebtNotFound
	}
	tx.debts[d.ID] = d
	return nil
}

func (tx *memoryTx) DeleteUnpaidInstallments(_ context.Context, debtID uuid.UUID) (int64, error) {
	var n int64
	for id, s := range tx.schedules {
		if s.DebtID != nil && *s.DebtID == debtID && (s.Status == SchedulePending || s.Status == ScheduleOverdue) {
			delete(tx.schedules, id)
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) InsertSchedules(_ context.Context, schedules []Schedule) error {
	for _, s := range schedules {
		tx.schedules[s.ID] = s
	}
	return nil
}

func (tx *memoryTx) OpenInstallmentsForUpdate(_ context.Context, debtID uuid.UUID) ([]Schedule, error) {
	var out []Schedule
	for _, s := range tx.schedules {
		if s.DebtID != nil && *s.DebtID == debtID && (s.Status == SchedulePending || s.Status == ScheduleOverdue) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (tx *memoryTx) UpdateSchedule(_ context.Context, s Schedule) error {
	tx.schedules[s.ID] = s
	return nil
}

type auditStub struct {
	mu      sync.Mutex
	actions []string
}

func (a *auditStub) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, log.Action)
	return nil
}

var testNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func newTestService(repo *memoryRepo, cfg ServiceConfig) (*Service, *auditStub) {
	audit := &auditStub{}
	svc := NewService(repo, audit, cfg, nil)
	svc.WithNow(func() time.Time { return testNow })
	return svc, audit
}

func invoiceDebt(ref string, amount float64) CreateInput {
	return CreateInput{
		DebtorType:    DebtorCustomer,
		DebtorID:      "cust-1",
		Amount:        amount,
		DueDate:       testNow.AddDate(0, 0, 30),
		ReferenceType: "Invoice",
		ReferenceID:   ref,
	}
}

func TestCreateDebtIsIdempotentPerReference(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, ServiceConfig{})

	first, err := svc.CreateDebt(ctx, invoiceDebt("INV-1", 900))
	require.NoError(t, err)
	require.Equal(t, StatusActive, first.Status)
	require.Equal(t, 900.0, first.RemainingAmount)
	require.Equal(t, shared.SystemActor, first.CreatedBy)

	again, err := svc.CreateDebt(ctx, invoiceDebt("INV-1", 500))
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)
	require.Equal(t, 900.0, again.OriginalAmount)
	require.Len(t, repo.debts, 1)

	other := invoiceDebt("INV-1", 200)
	other.DebtorID = "cust-2"
	_, err = svc.CreateDebt(ctx, other)
	require.NoError(t, err)
	require.Len(t, repo.debts, 2)
}

func TestCreateDebtRaceReturnsExisting(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, ServiceConfig{})

	first, err := svc.CreateDebt(ctx, invoiceDebt("INV-9", 100))
	require.NoError(t, err)

	repo.insertRaced = true
	got, err := svc.CreateDebt(ctx, invoiceDebt("INV-9", 100))
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)
}

func TestCreateDebtValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(newMemoryRepo(), ServiceConfig{})

	_, err := svc.CreateDebt(ctx, invoiceDebt("INV-2", 0))
	require.ErrorIs(t, err, shared.ErrInvalidAmount)

	bad := invoiceDebt("INV-3", 10)
	bad.DebtorType = "Employee"
	_, err = svc.CreateDebt(ctx, bad)
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	bad = invoiceDebt("", 10)
	_, err = svc.CreateDebt(ctx, bad)
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.CreateDebt(ctx, invoiceDebt("INV-TINY", 0.004))
	require.ErrorIs(t, err, shared.ErrInvalidAmount)
}

func TestCreateDebtPastDueStartsOverdue(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, ServiceConfig{})

	late := invoiceDebt("INV-LATE", 120)
	late.DueDate = testNow.AddDate(0, 0, -45)
	d, err := svc.CreateDebt(ctx, late)
	require.NoError(t, err)
	require.Equal(t, StatusOverdue, d.Status)
	require.Equal(t, StatusOverdue, repo.debts[d.ID].Status)

	undated := invoiceDebt("INV-NODATE", 120)
	undated.DueDate = time.Time{}
	d, err = svc.CreateDebt(ctx, undated)
	require.NoError(t, err)
	require.Equal(t, StatusActive, d.Status)
	require.Equal(t, testNow, d.DueDate)
}

func TestWriteOffRules(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc, audit := newTestService(repo, ServiceConfig{})

	d, err := svc.CreateDebt(ctx, invoiceDebt("INV-4", 250))
	require.NoError(t, err)

	_, err = svc.WriteOff(ctx, d.ID, " ", "u-1")
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	out, err := svc.WriteOff(ctx, d.ID, "customer bankrupt", "u-1")
	require.NoError(t, err)
	require.Equal(t, StatusWrittenOff, out.Status)
	require.Equal(t, 250.0, out.RemainingAmount)
	require.Equal(t, "customer bankrupt", out.Meta.WriteOffReason)
	require.Equal(t, "u-1", out.Meta.WriteOffBy)
	require.NotNil(t, out.Meta.WriteOffDate)
	require.Equal(t, []string{"debt.write_off"}, audit.actions)

	_, err = svc.WriteOff(ctx, d.ID, "again", "u-1")
	require.ErrorIs(t, err, shared.ErrInvalidState)

	settled, err := svc.CreateDebt(ctx, invoiceDebt("INV-5", 10))
	require.NoError(t, err)
	settled.Status = StatusSettled
	settled.RemainingAmount = 0
	repo.debts[settled.ID] = settled
	_, err = svc.WriteOff(ctx, settled.ID, "late", "u-1")
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = svc.WriteOff(ctx, uuid.New(), "missing", "u-1")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateInstallmentPlanReplacesPending(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, ServiceConfig{})

	d, err := svc.CreateDebt(ctx, invoiceDebt("INV-6", 900))
	require.NoError(t, err)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err = svc.CreateInstallmentPlan(ctx, PlanInput{DebtID: d.ID, Count: 2, Interval: IntervalWeekly, StartDate: start})
	require.NoError(t, err)

	plan, err := svc.CreateInstallmentPlan(ctx, PlanInput{DebtID: d.ID, Count: 3, Interval: IntervalMonthly, StartDate: start})
	require.NoError(t, err)
	require.Len(t, plan, 3)

	installments, err := svc.GetInstallments(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, installments, 3)
	for i, s := range installments {
		require.Equal(t, 300.0, s.Amount)
		require.Equal(t, start.AddDate(0, i, 0), s.DueDate)
	}

	stored := repo.debts[d.ID]
	require.True(t, stored.Meta.IsScheduled)
	require.Equal(t, 3, stored.Meta.InstallmentsCount)
	require.NotNil(t, stored.Meta.LastScheduledUpdate)
}

func TestCreateInstallmentPlanReplacesOverdueInstallments(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, ServiceConfig{})

	d, err := svc.CreateDebt(ctx, invoiceDebt("INV-RS", 900))
	require.NoError(t, err)
	_, err = svc.CreateInstallmentPlan(ctx, PlanInput{DebtID: d.ID, Count: 3, Interval: IntervalMonthly,
		StartDate: testNow.AddDate(0, -2, 0)})
	require.NoError(t, err)

	res, err := svc.MarkOverdue(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), res.Schedules)

	_, err = svc.CreateInstallmentPlan(ctx, PlanInput{DebtID: d.ID, Count: 2, Interval: IntervalMonthly,
		StartDate: testNow.AddDate(0, 1, 0)})
	require.NoError(t, err)

	installments, err := svc.GetInstallments(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, installments, 2)
	var open float64
	for _, s := range installments {
		require.Equal(t, SchedulePending, s.Status)
		open = shared.Add(open, s.Amount)
	}
	require.Equal(t, repo.debts[d.ID].RemainingAmount, open)
}

func TestCreateInstallmentPlanRejects(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, ServiceConfig{})

	d, err := svc.CreateDebt(ctx, invoiceDebt("INV-7", 100))
	require.NoError(t, err)

	_, err = svc.CreateInstallmentPlan(ctx, PlanInput{DebtID: d.ID, Count: 0, Interval: IntervalDaily})
	require.ErrorIs(t, err, shared.ErrInvalidAmount)

	_, err = svc.CreateInstallmentPlan(ctx, PlanInput{DebtID: d.ID, Count: 2, Interval: "hourly"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.WriteOff(ctx, d.ID, "gone", "u-1")
	require.NoError(t, err)
	_, err = svc.CreateInstallmentPlan(ctx, PlanInput{DebtID: d.ID, Count: 2, Interval: IntervalDaily})
	require.ErrorIs(t, err, ErrDebtClosed)
	require.Empty(t, repo.schedules)
}

func TestSaveAndListSchedules(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, ServiceConfig{})

	saved, err := svc.SaveSchedules(ctx, SaveSchedulesInput{
		EntityType: DebtorSupplier,
		EntityID:   "sup-1",
		Schedules: []ScheduleInput{
			{Amount: 200, DueDate: testNow.AddDate(0, 2, 0)},
			{Amount: 100, DueDate: testNow.AddDate(0, 1, 0), Notes: "first"},
		},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	require.Equal(t, SchedulePending, saved[0].Status)

	list, err := svc.ListSchedules(ctx, DebtorSupplier, "sup-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "first", list[0].Notes)

	_, err = svc.ListSchedules(ctx, DebtorSupplier, "")
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.SaveSchedules(ctx, SaveSchedulesInput{EntityType: DebtorSupplier, EntityID: "sup-1",
		Schedules: []ScheduleInput{{Amount: -1, DueDate: testNow}}})
	require.ErrorIs(t, err, shared.ErrInvalidAmount)

	d, err := svc.CreateDebt(ctx, invoiceDebt("INV-8", 50))
	require.NoError(t, err)
	_, err = svc.SaveSchedules(ctx, SaveSchedulesInput{EntityType: DebtorSupplier, EntityID: "sup-1", DebtID: &d.ID,
		Schedules: []ScheduleInput{{Amount: 10, DueDate: testNow}}})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestSaveSchedulesForDebtReplacesPlan(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc, audit := newTestService(repo, ServiceConfig{})

	d, err := svc.CreateDebt(ctx, invoiceDebt("INV-MS", 500))
	require.NoError(t, err)
	_, err = svc.CreateInstallmentPlan(ctx, PlanInput{DebtID: d.ID, Count: 5, Interval: IntervalWeekly, StartDate: testNow})
	require.NoError(t, err)

	_, err = svc.SaveSchedules(ctx, SaveSchedulesInput{EntityType: DebtorCustomer, EntityID: "cust-1", DebtID: &d.ID,
		Schedules: []ScheduleInput{{Amount: 200, DueDate: testNow.AddDate(0, 1, 0)}, {Amount: 200, DueDate: testNow.AddDate(0, 2, 0)}}})
	require.ErrorIs(t, err, shared.ErrInvalidAmount)
	installments, err := svc.GetInstallments(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, installments, 5)

	saved, err := svc.SaveSchedules(ctx, SaveSchedulesInput{EntityType: DebtorCustomer, EntityID: "cust-1", DebtID: &d.ID,
		Schedules: []ScheduleInput{{Amount: 300, DueDate: testNow.AddDate(0, 1, 0)}, {Amount: 200.004, DueDate: testNow.AddDate(0, 2, 0)}}})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	require.Equal(t, 200.0, saved[1].Amount)

	installments, err = svc.GetInstallments(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, installments, 2)
	require.Equal(t, 300.0, installments[0].Amount)
	stored := repo.debts[d.ID]
	require.True(t, stored.Meta.IsScheduled)
	require.Equal(t, 2, stored.Meta.InstallmentsCount)
	require.Equal(t, []string{"debt.schedule", "debt.schedule"}, audit.actions)

	_, err = svc.SaveSchedules(ctx, SaveSchedulesInput{EntityType: DebtorCustomer, EntityID: "cust-1", DebtID: &d.ID,
		Schedules: []ScheduleInput{{Amount: 0.004, DueDate: testNow}}})
	require.ErrorIs(t, err, shared.ErrInvalidAmount)

	_, err = svc.WriteOff(ctx, d.ID, "gone", "u-1")
	require.NoError(t, err)
	_, err = svc.SaveSchedules(ctx, SaveSchedulesInput{EntityType: DebtorCustomer, EntityID: "cust-1", DebtID: &d.ID,
		Schedules: []ScheduleInput{{Amount: 500, DueDate: testNow}}})
	require.ErrorIs(t, err, ErrDebtClosed)
}

func TestGetDebtsPaginates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(newMemoryRepo(), ServiceConfig{})
	for _, ref := range []string{"A", "B", "C"} {
		_, err := svc.CreateDebt(ctx, invoiceDebt(ref, 10))
		require.NoError(t, err)
	}

	page, err := svc.GetDebts(ctx, Filter{DebtorType: DebtorCustomer}, shared.Page{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Debts, 1)
	require.Equal(t, 3, page.Pagination.Total)
	require.Equal(t, 2, page.Pagination.TotalPages)

	_, err = svc.GetDebts(ctx, Filter{DebtorType: "Nobody"}, shared.Page{})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestMarkOverdue(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, ServiceConfig{})

	soon := invoiceDebt("OLD", 100)
	soon.DueDate = testNow.AddDate(0, 0, 2)
	d, err := svc.CreateDebt(ctx, soon)
	require.NoError(t, err)
	require.Equal(t, StatusActive, d.Status)
	_, err = svc.CreateDebt(ctx, invoiceDebt("NEW", 100))
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return testNow.AddDate(0, 0, 5) })
	res, err := svc.MarkOverdue(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Debts)
	require.Equal(t, StatusOverdue, repo.debts[d.ID].Status)

	res, err = svc.MarkOverdue(ctx)
	require.NoError(t, err)
	require.Zero(t, res.Debts)
}

func TestDebtOverviewIsCachedUntilMutation(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemoryRepo()
	svc, _ := newTestService(repo, ServiceConfig{Cache: cache.NewVersioned(client, "finledger", time.Minute)})

	receivable := invoiceDebt("INV-45", 300)
	receivable.DueDate = testNow.AddDate(0, 0, -45)
	_, err := svc.CreateDebt(ctx, receivable)
	require.NoError(t, err)

	overview, err := svc.GetDebtOverview(ctx)
	require.NoError(t, err)
	require.Equal(t, 300.0, overview.Receivables.Tiers.Tier2.Amount)
	require.Equal(t, 300.0, overview.TotalNet)
	require.Equal(t, RiskHealthy, overview.RiskScore)
	require.Equal(t, 2, repo.openCalls)

	_, err = svc.GetDebtOverview(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, repo.openCalls)

	_, err = svc.CreateDebt(ctx, CreateInput{DebtorType: DebtorSupplier, DebtorID: "sup-1", Amount: 100,
		DueDate: testNow.AddDate(0, 0, 10), ReferenceType: "PurchaseOrder", ReferenceID: "PO-1"})
	require.NoError(t, err)

	overview, err = svc.GetDebtOverview(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, repo.openCalls)
	require.Equal(t, 200.0, overview.TotalNet)
	require.Equal(t, 3.0, overview.LiquidityPulse)
}
