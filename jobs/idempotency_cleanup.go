package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/finledger/internal/jobs"
)

// DefaultKeyRetention is how long settle idempotency keys are kept.
const DefaultKeyRetention = 72 * time.Hour

// KeyStore prunes stored idempotency keys.
type KeyStore interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob deletes expired idempotency keys.
type IdempotencyCleanupJob struct {
	Keys    KeyStore
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob wires the cleanup handler.
func NewIdempotencyCleanupJob(keys KeyStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Keys: keys, Logger: logger, Metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Keys == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := time.Duration(payload.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = DefaultKeyRetention
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskIdempotencyCleanup)
	logger := jobLogger(j.Logger, TaskIdempotencyCleanup)

	n, err := j.Keys.Cleanup(ctx, retention)
	if err != nil {
		logger.Error("cleanup failed", slog.Any("error", err))
		return tracker.End(err)
	}
	logger.Info("pruned idempotency keys", slog.Int64("deleted", n), slog.Duration("retention", retention))
	return tracker.End(nil)
}
