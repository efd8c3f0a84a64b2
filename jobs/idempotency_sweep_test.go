package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	jobmetrics "github.com/textileflow/textileflow/internal/jobs"
)

type fakeSweeper struct {
	calls     int
	olderThan time.Duration
	err       error
}

func (f *fakeSweeper) Cleanup(_ context.Context, olderThan time.Duration) error {
	f.calls++
	f.olderThan = olderThan
	return f.err
}

func TestIdempotencySweepUsesRetention(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := &fakeSweeper{}
	job := NewIdempotencySweep(sweeper, 72*time.Hour, logger, jobmetrics.NewMetrics(nil))

	require.NoError(t, job.Handle(context.Background(), NewIdempotencySweepTask()))
	require.Equal(t, 1, sweeper.calls)
	require.Equal(t, 72*time.Hour, sweeper.olderThan)
}

func TestIdempotencySweepPropagatesError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := &fakeSweeper{err: errors.New("connection reset")}
	job := NewIdempotencySweep(sweeper, time.Hour, logger, jobmetrics.NewMetrics(nil))

	require.ErrorContains(t, job.Handle(context.Background(), NewIdempotencySweepTask()), "connection reset")
}
