package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskDebtOverdueSweep moves past-due debts and installments to overdue.
	TaskDebtOverdueSweep = "debt:overdue_sweep"
	// TaskLedgerIntegrity checks the trial balance and stock valuation.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskDebtOverviewWarmup refreshes the cached debt overview.
	TaskDebtOverviewWarmup = "debt:overview_warmup"
	// TaskIdempotencyCleanup prunes expired settle idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// OverdueSweepPayload carries the sweep reference date. A zero AsOf means now.
type OverdueSweepPayload struct {
	AsOf time.Time `json:"as_of"`
}

// LedgerIntegrityPayload tunes the integrity check.
type LedgerIntegrityPayload struct {
	AsOf time.Time `json:"as_of"`
	// Tolerance is the accepted inventory drift before an anomaly is raised.
	Tolerance float64 `json:"tolerance"`
}

// OverviewWarmupPayload is empty today; it keeps the task payload decodable.
type OverviewWarmupPayload struct {
	Reason string `json:"reason,omitempty"`
}

// IdempotencyCleanupPayload sets the key retention. Zero keeps the default.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewOverdueSweepTask constructs the sweep task.
func NewOverdueSweepTask(asOf time.Time) (*asynq.Task, error) {
	return newTask(TaskDebtOverdueSweep, OverdueSweepPayload{AsOf: asOf})
}

// NewLedgerIntegrityTask constructs the integrity check task.
func NewLedgerIntegrityTask(tolerance float64) (*asynq.Task, error) {
	return newTask(TaskLedgerIntegrity, LedgerIntegrityPayload{Tolerance: tolerance})
}

// NewOverviewWarmupTask constructs the overview warmup task.
func NewOverviewWarmupTask(reason string) (*asynq.Task, error) {
	return newTask(TaskDebtOverviewWarmup, OverviewWarmupPayload{Reason: reason})
}

// NewIdempotencyCleanupTask constructs the key cleanup task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	return newTask(TaskIdempotencyCleanup, IdempotencyCleanupPayload{RetentionHours: retentionHours})
}

// NewTask builds a task by name with its default payload.
func NewTask(name string) (*asynq.Task, error) {
	switch name {
	case TaskDebtOverdueSweep:
		return NewOverdueSweepTask(time.Time{})
	case TaskLedgerIntegrity:
		return NewLedgerIntegrityTask(DefaultDriftTolerance)
	case TaskDebtOverviewWarmup:
		return NewOverviewWarmupTask("manual")
	case TaskIdempotencyCleanup:
		return NewIdempotencyCleanupTask(0)
	default:
		return nil, fmt.Errorf("jobs: unsupported task %q", name)
	}
}

// TaskNames lists the tasks the worker serves.
func TaskNames() []string {
	return []string{TaskDebtOverdueSweep, TaskLedgerIntegrity, TaskDebtOverviewWarmup, TaskIdempotencyCleanup}
}

func newTask(typ string, payload any) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, body, asynq.Queue(QueueDefault)), nil
}
