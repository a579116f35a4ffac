package worker_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breezyweather/breezyd/internal/worker"
)

type countingJob struct {
	runs     atomic.Int32
	deadline atomic.Bool
}

func (j *countingJob) Run(ctx context.Context) (*worker.RefreshResult, error) {
	_, ok := ctx.Deadline()
	j.deadline.Store(ok)
	j.runs.Add(1)
	return &worker.RefreshResult{TotalLocations: 1, Successful: 1}, nil
}

func TestPoller_RunsImmediately(t *testing.T) {
	job := &countingJob{}
	p := worker.NewPoller(worker.PollerConfig{Interval: time.Hour, Timeout: time.Minute}, job, zerolog.Nop())

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, job.deadline.Load(), "runs are bounded by the poll timeout")

	require.Eventually(t, func() bool {
		result, err := p.LastRun()
		return err == nil && result != nil && result.Successful == 1
	}, time.Second, 10*time.Millisecond)
}

func TestPoller_WaitForFirstInterval(t *testing.T) {
	job := &countingJob{}
	p := worker.NewPoller(worker.PollerConfig{Interval: time.Hour, WaitForFirstInterval: true}, job, zerolog.Nop())

	require.NoError(t, p.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	assert.Equal(t, int32(0), job.runs.Load())
	result, err := p.LastRun()
	assert.Nil(t, result)
	assert.NoError(t, err)
}

func TestDefaultPollerConfig(t *testing.T) {
	cfg := worker.DefaultPollerConfig()
	assert.Equal(t, time.Hour, cfg.Interval)
	assert.Equal(t, 10*time.Minute, cfg.Timeout)
}
