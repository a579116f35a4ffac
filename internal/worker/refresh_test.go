package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breezyweather/breezyd/internal/aggregator"
	"github.com/breezyweather/breezyd/internal/location"
	"github.com/breezyweather/breezyd/internal/weather"
	"github.com/breezyweather/breezyd/internal/worker"
)

var errUpstream = errors.New("upstream down")

// fakeRefresher serves scripted outcomes per location ID.
type fakeRefresher struct {
	mu       sync.Mutex
	calls    []string
	opts     []aggregator.Options
	failures map[string]error
	partial  map[string]bool
	delay    time.Duration
}

func (f *fakeRefresher) RefreshByID(ctx context.Context, id string, opts aggregator.Options) (*weather.Weather, *aggregator.Report, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.opts = append(f.opts, opts)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	if err := f.failures[id]; err != nil {
		return nil, nil, err
	}

	report := &aggregator.Report{LocationID: id, Features: map[weather.Feature]*aggregator.FeatureReport{
		weather.FeatureForecast: {Source: "openmeteo"},
	}}
	if f.partial[id] {
		report.Features[weather.FeatureAirQuality] = &aggregator.FeatureReport{Error: "no source"}
	}
	return &weather.Weather{}, report, nil
}

func (f *fakeRefresher) Refresh(ctx context.Context, loc *weather.Location, opts aggregator.Options) (*weather.Weather, *aggregator.Report, error) {
	return f.RefreshByID(ctx, "probe", opts)
}

func (f *fakeRefresher) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func seedLocations(t *testing.T, n int) *location.InMemoryRepository {
	t.Helper()
	repo := location.NewInMemoryRepository()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		require.NoError(t, repo.Create(context.Background(), &weather.Location{
			ID:        fmt.Sprintf("loc_%02d", i),
			Lat:       52,
			Lon:       5,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	return repo
}

func newJob(repo worker.LocationLister, refresher worker.Refresher, cfg worker.RefreshConfig) *worker.RefreshJob {
	return worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:    cfg,
		Locations: repo,
		Refresher: refresher,
		Logger:    zerolog.Nop(),
	})
}

func TestDefaultRefreshConfig(t *testing.T) {
	cfg := worker.DefaultRefreshConfig()

	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Empty(t, cfg.Features)
}

func TestRefreshJob_Run_PagesThroughLocations(t *testing.T) {
	repo := seedLocations(t, 7)
	refresher := &fakeRefresher{
		failures: map[string]error{"loc_03": errUpstream},
		partial:  map[string]bool{"loc_05": true},
	}
	job := newJob(repo, refresher, worker.RefreshConfig{PageSize: 2, Concurrency: 2, SkipReverseGeocoding: true})

	result, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, result.TotalLocations)
	assert.Equal(t, 5, result.Successful)
	assert.Equal(t, 1, result.Partial)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "loc_03", result.Errors[0].LocationID)
	assert.Contains(t, result.Errors[0].Error, "upstream down")
	assert.False(t, result.EndTime.Before(result.StartTime))

	assert.Len(t, refresher.called(), 7)
	for _, opts := range refresher.opts {
		assert.True(t, opts.SkipReverseGeocoding)
	}
}

func TestRefreshJob_Run_NoLocations(t *testing.T) {
	job := newJob(location.NewInMemoryRepository(), &fakeRefresher{}, worker.RefreshConfig{})

	result, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalLocations)
	assert.Empty(t, result.Errors)
}

type failingLister struct{}

func (failingLister) List(context.Context, location.ListOptions) (*location.ListResult, error) {
	return nil, errUpstream
}

func TestRefreshJob_Run_ListFailure(t *testing.T) {
	job := newJob(failingLister{}, &fakeRefresher{}, worker.RefreshConfig{})

	_, err := job.Run(context.Background())
	assert.ErrorIs(t, err, errUpstream)
}

func TestRefreshJob_Run_PerLocationTimeout(t *testing.T) {
	repo := seedLocations(t, 2)
	refresher := &fakeRefresher{delay: time.Second}
	job := newJob(repo, refresher, worker.RefreshConfig{Timeout: 10 * time.Millisecond})

	result, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed)
	assert.Contains(t, result.Errors[0].Error, context.DeadlineExceeded.Error())
}

func TestRefreshJob_Run_CancelledContext(t *testing.T) {
	repo := seedLocations(t, 3)
	refresher := &fakeRefresher{}
	job := newJob(repo, refresher, worker.RefreshConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := job.Run(ctx)
	require.NoError(t, err, "in-memory listing ignores cancellation")
	assert.Empty(t, refresher.called())
}

func TestRefreshJob_Metrics(t *testing.T) {
	repo := seedLocations(t, 2)
	refresher := &fakeRefresher{partial: map[string]bool{"loc_01": true}}
	job := newJob(repo, refresher, worker.RefreshConfig{})

	_, err := job.Run(context.Background())
	require.NoError(t, err)
	_, err = job.Run(context.Background())
	require.NoError(t, err)

	m := job.GetMetrics()
	assert.Equal(t, int64(2), m.TotalRuns)
	assert.Equal(t, int64(2), m.SuccessfulRefreshes)
	assert.Equal(t, int64(2), m.PartialRefreshes)
	assert.Equal(t, int64(0), m.FailedRefreshes)
	assert.False(t, m.LastRunAt.IsZero())

	snapshot := job.MetricsSnapshot()
	assert.Equal(t, int64(2), snapshot["total_runs"])
	assert.Contains(t, snapshot, "last_run_duration")
}

func TestRefreshJob_RefreshLocation(t *testing.T) {
	refresher := &fakeRefresher{partial: map[string]bool{"loc_x": true}}
	job := newJob(location.NewInMemoryRepository(), refresher, worker.RefreshConfig{
		Features: []weather.Feature{weather.FeatureAirQuality},
	})

	report, err := job.RefreshLocation(context.Background(), "loc_x")
	require.NoError(t, err)
	assert.Equal(t, []weather.Feature{weather.FeatureAirQuality}, report.Missing())
	assert.Equal(t, []weather.Feature{weather.FeatureAirQuality}, refresher.opts[0].Features)
}

func message(t *testing.T, msg worker.RefreshMessage) []byte {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return data
}

func TestProcessor_Process(t *testing.T) {
	repo := seedLocations(t, 2)

	tests := []struct {
		name      string
		data      []byte
		refresher *fakeRefresher
		want      worker.Outcome
		wantErr   bool
	}{
		{
			name:      "refresh all",
			data:      message(t, worker.RefreshMessage{JobType: worker.JobRefreshAll}),
			refresher: &fakeRefresher{},
			want:      worker.Ack,
		},
		{
			name:      "refresh all mostly failing",
			data:      message(t, worker.RefreshMessage{JobType: worker.JobRefreshAll}),
			refresher: &fakeRefresher{failures: map[string]error{"loc_00": errUpstream, "loc_01": errUpstream}},
			want:      worker.Nack,
			wantErr:   true,
		},
		{
			name:      "refresh location",
			data:      message(t, worker.RefreshMessage{JobType: worker.JobRefreshLocation, LocationID: "loc_01"}),
			refresher: &fakeRefresher{},
			want:      worker.Ack,
		},
		{
			name:      "refresh unknown location is dropped",
			data:      message(t, worker.RefreshMessage{JobType: worker.JobRefreshLocation, LocationID: "loc_gone"}),
			refresher: &fakeRefresher{failures: map[string]error{"loc_gone": location.ErrLocationNotFound}},
			want:      worker.Ack,
			wantErr:   true,
		},
		{
			name:      "refresh location without id is dropped",
			data:      message(t, worker.RefreshMessage{JobType: worker.JobRefreshLocation}),
			refresher: &fakeRefresher{},
			want:      worker.Ack,
			wantErr:   true,
		},
		{
			name:      "refresh location upstream failure is retried",
			data:      message(t, worker.RefreshMessage{JobType: worker.JobRefreshLocation, LocationID: "loc_00"}),
			refresher: &fakeRefresher{failures: map[string]error{"loc_00": errUpstream}},
			want:      worker.Nack,
			wantErr:   true,
		},
		{
			name:      "health check",
			data:      message(t, worker.RefreshMessage{JobType: worker.JobHealthCheck}),
			refresher: &fakeRefresher{},
			want:      worker.Ack,
		},
		{
			name:      "health check failing",
			data:      message(t, worker.RefreshMessage{JobType: worker.JobHealthCheck}),
			refresher: &fakeRefresher{failures: map[string]error{"probe": errUpstream}},
			want:      worker.Nack,
			wantErr:   true,
		},
		{
			name:      "unknown job",
			data:      message(t, worker.RefreshMessage{JobType: "provider_refresh"}),
			refresher: &fakeRefresher{},
			want:      worker.Ack,
			wantErr:   true,
		},
		{
			name:      "malformed",
			data:      []byte("{"),
			refresher: &fakeRefresher{},
			want:      worker.Ack,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := newJob(repo, tt.refresher, worker.RefreshConfig{})
			probe := worker.NewProbeHealth(tt.refresher, worker.DefaultProbePoint)
			p := worker.NewProcessor(job, probe, zerolog.Nop())

			got, err := p.Process(context.Background(), tt.data)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
