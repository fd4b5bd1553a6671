package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/finledger/internal/debt"
	jobmetrics "github.com/odyssey-erp/finledger/internal/jobs"
)

// OverviewSource computes and caches the debt overview.
type OverviewSource interface {
	Invalidate(ctx context.Context)
	GetDebtOverview(ctx context.Context) (debt.Overview, error)
}

// OverviewWarmupJob rebuilds the cached overview ahead of dashboard traffic.
type OverviewWarmupJob struct {
	Debts   OverviewSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewOverviewWarmupJob wires dependencies for the warmup handler.
func NewOverviewWarmupJob(debts OverviewSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverviewWarmupJob {
	return &OverviewWarmupJob{Debts: debts, Logger: logger, Metrics: metrics}
}

// Handle processes TaskDebtOverviewWarmup tasks.
func (j *OverviewWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Debts == nil {
		return errors.New("overview warmup: handler not configured")
	}
	var payload OverviewWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskDebtOverviewWarmup)
	logger := jobLogger(j.Logger, TaskDebtOverviewWarmup)

	// Tighten the run with a timeout to avoid long-running jobs.
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	j.Debts.Invalidate(runCtx)
	ov, err := j.Debts.GetDebtOverview(runCtx)
	if err != nil {
		logger.Error("warm overview", slog.Any("error", err))
		return tracker.End(err)
	}
	logger.Info("completed overview warmup",
		slog.String("reason", payload.Reason),
		slog.Float64("net", ov.TotalNet),
		slog.String("risk", ov.RiskScore))
	return tracker.End(nil)
}
