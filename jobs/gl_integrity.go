package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/finledger/internal/accounting"
	jobmetrics "github.com/odyssey-erp/finledger/internal/jobs"
	"github.com/odyssey-erp/finledger/internal/shared"
)

// DefaultDriftTolerance is the inventory drift accepted without an anomaly.
const DefaultDriftTolerance = 1.0

// TrialBalancer builds the trial balance.
type TrialBalancer interface {
	GetTrialBalance(ctx context.Context, asOf time.Time) (accounting.TrialBalance, error)
}

// StockValuer values the stock on hand.
type StockValuer interface {
	Valuation(ctx context.Context) (float64, error)
}

// IntegrityReport is the outcome of one ledger integrity run.
type IntegrityReport struct {
	AsOf           time.Time `json:"asOf"`
	TotalDebit     float64   `json:"totalDebit"`
	TotalCredit    float64   `json:"totalCredit"`
	Balanced       bool      `json:"balanced"`
	InventoryBook  float64   `json:"inventoryBook"`
	InventoryStock float64   `json:"inventoryStock"`
	InventoryDrift float64   `json:"inventoryDrift"`
}

// LedgerIntegrityJob verifies that debits equal credits and that the
// INVENTORY account agrees with the valued stock.
type LedgerIntegrityJob struct {
	Ledger  TrialBalancer
	Stock   StockValuer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLedgerIntegrityJob wires the integrity check. stock may be nil.
func NewLedgerIntegrityJob(ledger TrialBalancer, stock StockValuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{
		Ledger:  ledger,
		Stock:   stock,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskLedgerIntegrity tasks.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskLedgerIntegrity)
	_, err := j.Run(ctx, payload)
	return tracker.End(err)
}

// Run executes the check and reports what it found. Findings are logged and
// counted; only a failure to read the data is returned as an error.
func (j *LedgerIntegrityJob) Run(ctx context.Context, payload LedgerIntegrityPayload) (IntegrityReport, error) {
	if payload.AsOf.IsZero() {
		payload.AsOf = j.clock()
	}
	if payload.Tolerance <= 0 {
		payload.Tolerance = DefaultDriftTolerance
	}
	logger := jobLogger(j.Logger, TaskLedgerIntegrity)
	metrics := metricsOrDefault(j.Metrics)

	tb, err := j.Ledger.GetTrialBalance(ctx, payload.AsOf)
	if err != nil {
		logger.Error("load trial balance", slog.Any("error", err))
		return IntegrityReport{}, err
	}
	report := IntegrityReport{
		AsOf:        payload.AsOf,
		TotalDebit:  tb.TotalDebit,
		TotalCredit: tb.TotalCredit,
		Balanced:    tb.IsBalanced,
	}
	if !tb.IsBalanced {
		metrics.AddAnomalies("imbalance", 1)
		logger.Error("trial balance out of balance",
			slog.Float64("debit", tb.TotalDebit),
			slog.Float64("credit", tb.TotalCredit),
			slog.Float64("difference", tb.Difference))
	}

	if j.Stock != nil {
		stock, err := j.Stock.Valuation(ctx)
		if err != nil {
			logger.Error("value stock", slog.Any("error", err))
			return report, err
		}
		for _, line := range tb.Accounts {
			if line.Account == accounting.AccountInventory {
				report.InventoryBook = line.Balance
			}
		}
		report.InventoryStock = stock
		report.InventoryDrift = shared.Sub(report.InventoryBook, stock)
		if math.Abs(report.InventoryDrift) > payload.Tolerance {
			metrics.AddAnomalies("inventory_drift", 1)
			logger.Warn("inventory account drifts from stock valuation",
				slog.Float64("book", report.InventoryBook),
				slog.Float64("stock", stock),
				slog.Float64("drift", report.InventoryDrift))
		}
	}

	logger.Info("ledger integrity checked",
		slog.Bool("balanced", report.Balanced),
		slog.Float64("inventory_drift", report.InventoryDrift))
	return report, nil
}
