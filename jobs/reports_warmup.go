package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/textileflow/textileflow/internal/jobs"
	"github.com/textileflow/textileflow/internal/reports"
)

// ReportsWarmup pre-builds the dashboard summary for the default window.
type ReportsWarmup struct {
	service *reports.Service
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewReportsWarmup wires the warmup job.
func NewReportsWarmup(service *reports.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmup {
	return &ReportsWarmup{service: service, logger: logger, metrics: metrics}
}

// Handle processes TaskReportsWarmup tasks.
func (j *ReportsWarmup) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track("reports_warmup")
	return tracker.End(j.run(ctx))
}

func (j *ReportsWarmup) run(ctx context.Context) error {
	now := time.Now().UTC()
	from := now.AddDate(0, -12, 0)
	if _, err := j.service.BuildSummary(ctx, from, now); err != nil {
		return err
	}
	j.logger.Info("report cache warmed", slog.String("from", from.Format("2006-01-02")))
	return nil
}
