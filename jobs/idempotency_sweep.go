package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/textileflow/textileflow/internal/jobs"
)

// KeySweeper removes idempotency keys older than a retention window.
type KeySweeper interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencySweep drops expired idempotency keys so the table stays small.
// A key past the retention window no longer guards an in-flight retry.
type IdempotencySweep struct {
	store     KeySweeper
	retention time.Duration
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
}

// NewIdempotencySweep wires the sweep job.
func NewIdempotencySweep(store KeySweeper, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencySweep {
	return &IdempotencySweep{store: store, retention: retention, logger: logger, metrics: metrics}
}

// Handle processes TaskIdempotencySweep tasks.
func (j *IdempotencySweep) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track("idempotency_sweep")
	return tracker.End(j.run(ctx))
}

func (j *IdempotencySweep) run(ctx context.Context) error {
	if err := j.store.Cleanup(ctx, j.retention); err != nil {
		return err
	}
	j.logger.Info("idempotency keys swept", slog.Duration("retention", j.retention))
	return nil
}
