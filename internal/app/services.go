package app

import (
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/finledger/internal/accounting"
	"github.com/odyssey-erp/finledger/internal/audit"
	"github.com/odyssey-erp/finledger/internal/debt"
	"github.com/odyssey-erp/finledger/internal/integration"
	"github.com/odyssey-erp/finledger/internal/inventory"
	"github.com/odyssey-erp/finledger/internal/observability"
	"github.com/odyssey-erp/finledger/internal/payment"
	"github.com/odyssey-erp/finledger/internal/platform/cache"
	"github.com/odyssey-erp/finledger/internal/shared"
	"github.com/odyssey-erp/finledger/internal/treasury"
	"github.com/odyssey-erp/finledger/jobs"
)

// Services holds the wired domain services shared by the API, the worker
// and the CLI.
type Services struct {
	Accounting  *accounting.Service
	Inventory   *inventory.Service
	Debts       *debt.Service
	Payments    *payment.Service
	Treasury    *treasury.Service
	Hooks       *integration.Hooks
	Audit       *audit.Service
	Idempotency *shared.IdempotencyStore

	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewServices wires repositories and services. redisClient and metrics may be
// nil; the overview is then computed on every request.
func NewServices(cfg *Config, pool *pgxpool.Pool, redisClient *redis.Client, metrics *observability.Metrics, logger *slog.Logger) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	retry := cfg.RetryPolicy()
	auditLog := shared.NewAuditLogger(pool)

	ledger := accounting.NewService(accounting.NewRepository(pool, retry), auditLog, logger)
	if metrics != nil {
		ledger.WithObserver(metrics)
	}

	debtCfg := debt.ServiceConfig{Risk: cfg.RiskPolicy()}
	if redisClient != nil {
		debtCfg.Cache = cache.NewVersioned(redisClient, "finledger", cfg.OverviewCacheTTL)
	}
	debts := debt.NewService(debt.NewRepository(pool, retry), auditLog, debtCfg, logger)

	idem := shared.NewIdempotencyStore(pool)
	payments := payment.NewService(payment.NewRepository(pool, retry), debts, ledger, auditLog, logger).
		WithIdempotency(idem)
	if metrics != nil {
		payments.WithObserver(metrics)
	}

	cashbox := treasury.NewService(treasury.NewRepository(pool, retry), auditLog, logger).WithLedger(ledger)
	stock := inventory.NewService(inventory.NewRepository(pool, retry), ledger, auditLog, logger)
	hooks := integration.NewHooks(ledger, stock, debts, cashbox, integration.Terms{
		CustomerDays: cfg.CustomerTermsDays,
		SupplierDays: cfg.SupplierTermsDays,
	}, logger)

	return &Services{
		Accounting:  ledger,
		Inventory:   stock,
		Debts:       debts,
		Payments:    payments,
		Treasury:    cashbox,
		Hooks:       hooks,
		Audit:       audit.NewService(audit.NewRepository(pool)),
		Idempotency: idem,
		logger:      logger,
		metrics:     metrics,
	}
}

// RouterParams builds the HTTP handlers for every service.
func (s *Services) RouterParams(cfg *Config, pool *pgxpool.Pool, inspector jobs.QueueInspector) RouterParams {
	params := RouterParams{
		Logger:             s.logger,
		Config:             cfg,
		AccountingHandler:  accounting.NewHandler(s.logger, s.Accounting),
		DebtHandler:        debt.NewHandler(s.logger, s.Debts),
		PaymentHandler:     payment.NewHandler(s.logger, s.Payments),
		TreasuryHandler:    treasury.NewHandler(s.logger, s.Treasury),
		InventoryHandler:   inventory.NewHandler(s.logger, s.Inventory),
		IntegrationHandler: integration.NewHandler(s.logger, s.Hooks),
		AuditHandler:       audit.NewHandler(s.logger, s.Audit),
		JobHandler:         jobs.NewHandler(inspector, s.logger),
		Metrics:            s.metrics,
	}
	if pool != nil {
		params.Database = pool
	}
	return params
}

// TaskHandlers binds every background task to its service.
func (s *Services) TaskHandlers() []jobs.TaskHandler {
	jm := s.metrics.Jobs()
	return []jobs.TaskHandler{
		{Type: jobs.TaskDebtOverdueSweep, Handler: jobs.NewOverdueSweepJob(s.Debts, s.logger, jm).Handle},
		{Type: jobs.TaskLedgerIntegrity, Handler: jobs.NewLedgerIntegrityJob(s.Accounting, s.Inventory, s.logger, jm).Handle},
		{Type: jobs.TaskDebtOverviewWarmup, Handler: jobs.NewOverviewWarmupJob(s.Debts, s.logger, jm).Handle},
		{Type: jobs.TaskIdempotencyCleanup, Handler: jobs.NewIdempotencyCleanupJob(s.Idempotency, s.logger, jm).Handle},
	}
}

// CronSchedule lists the recurring tasks, in UTC.
func CronSchedule() ([]jobs.CronRegistration, error) {
	specs := []struct {
		spec string
		name string
	}{
		{"5 0 * * *", jobs.TaskDebtOverdueSweep},
		{"30 1 * * *", jobs.TaskLedgerIntegrity},
		{"0 * * * *", jobs.TaskDebtOverviewWarmup},
		{"45 2 * * *", jobs.TaskIdempotencyCleanup},
	}
	out := make([]jobs.CronRegistration, 0, len(specs))
	for _, s := range specs {
		task, err := jobs.NewTask(s.name)
		if err != nil {
			return nil, err
		}
		out = append(out, jobs.CronRegistration{Spec: s.spec, Task: task, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}
	return out, nil
}
