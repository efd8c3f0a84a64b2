// Package jobs holds the asynq task definitions and the background worker
// runtime: the periodic balance integrity scan, report cache warmup and
// idempotency-key retention sweep.
package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBalanceIntegrity recomputes every party balance from the ledger
	// and corrects drift.
	TaskBalanceIntegrity = "balance:integrity"
	// TaskReportsWarmup pre-builds the dashboard summary so the first
	// request after a cache bump stays fast.
	TaskReportsWarmup = "reports:warmup"
	// TaskIdempotencySweep drops idempotency keys past retention.
	TaskIdempotencySweep = "idempotency:sweep"
)

// NewBalanceIntegrityTask constructs the integrity scan task. The scan takes
// no parameters; it always covers every vendor and customer.
func NewBalanceIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskBalanceIntegrity, nil)
}

// NewReportsWarmupTask constructs the warmup task.
func NewReportsWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskReportsWarmup, nil)
}

// NewIdempotencySweepTask constructs the key retention sweep task.
func NewIdempotencySweepTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencySweep, nil)
}
