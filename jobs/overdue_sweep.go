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

// OverdueSweeper is the debt operation behind the sweep.
type OverdueSweeper interface {
	MarkOverdue(ctx context.Context) (debt.SweepResult, error)
}

// OverdueSweepJob flips past-due active debts and pending installments.
type OverdueSweepJob struct {
	Debts   OverdueSweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewOverdueSweepJob wires dependencies for the sweep handler.
func NewOverdueSweepJob(debts OverdueSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueSweepJob {
	return &OverdueSweepJob{Debts: debts, Logger: logger, Metrics: metrics}
}

// Handle processes TaskDebtOverdueSweep tasks.
func (j *OverdueSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Debts == nil {
		return errors.New("overdue sweep: handler not configured")
	}
	var payload OverdueSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := metricsOrDefault(j.Metrics).Track(TaskDebtOverdueSweep)
	logger := jobLogger(j.Logger, TaskDebtOverdueSweep)
	start := time.Now()

	res, err := j.Debts.MarkOverdue(ctx)
	if err != nil {
		logger.Error("sweep failed", slog.Any("error", err))
		return tracker.End(err)
	}
	metricsOrDefault(j.Metrics).AddSwept("debts", res.Debts)
	metricsOrDefault(j.Metrics).AddSwept("installments", res.Schedules)
	logger.Info("completed overdue sweep",
		slog.Int64("debts", res.Debts),
		slog.Int64("installments", res.Schedules),
		slog.Duration("duration", time.Since(start)))
	return tracker.End(nil)
}
