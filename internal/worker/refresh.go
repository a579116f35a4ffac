package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/breezyweather/breezyd/internal/aggregator"
	"github.com/breezyweather/breezyd/internal/location"
	"github.com/breezyweather/breezyd/internal/weather"
)

const meterName = "github.com/breezyweather/breezyd/internal/worker"

// ErrTooManyFailures is returned by handlers when most refreshes failed.
var ErrTooManyFailures = errors.New("too many refresh failures")

// LocationLister pages through saved locations.
type LocationLister interface {
	List(ctx context.Context, opts location.ListOptions) (*location.ListResult, error)
}

// Refresher refreshes one saved location.
type Refresher interface {
	RefreshByID(ctx context.Context, locationID string, opts aggregator.Options) (*weather.Weather, *aggregator.Report, error)
}

// RefreshJob refreshes the weather of every saved location.
type RefreshJob struct {
	config    RefreshConfig
	locations LocationLister
	refresher Refresher
	logger    zerolog.Logger

	metrics     *RefreshMetrics
	instruments *instruments
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns           int64
	SuccessfulRefreshes int64
	PartialRefreshes    int64
	FailedRefreshes     int64
	StaleFeatures       int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config    RefreshConfig
	Locations LocationLister
	Refresher Refresher
	Logger    zerolog.Logger
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	return &RefreshJob{
		config:      cfg.Config.withDefaults(),
		locations:   cfg.Locations,
		refresher:   cfg.Refresher,
		logger:      cfg.Logger,
		metrics:     &RefreshMetrics{},
		instruments: newInstruments(),
	}
}

// RefreshResult contains the result of a run.
type RefreshResult struct {
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	TotalLocations int

	// Successful counts locations with every requested feature fresh.
	Successful int

	// Partial counts locations refreshed with missing or stale features.
	Partial int

	Failed int
	Errors []RefreshError
}

// RefreshError describes a failed location refresh.
type RefreshError struct {
	LocationID string
	Error      string
}

type locationResult struct {
	locationID string
	report     *aggregator.Report
	err        error
}

// Run refreshes every saved location. The error is only set when the
// locations could not be listed.
func (j *RefreshJob) Run(ctx context.Context) (*RefreshResult, error) {
	startTime := time.Now()
	result := &RefreshResult{StartTime: startTime}

	ids, err := j.locationIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	result.TotalLocations = len(ids)

	j.logger.Info().
		Int("total_locations", result.TotalLocations).
		Int("concurrency", j.config.Concurrency).
		Msg("starting location refresh job")

	idsChan := make(chan string, len(ids))
	resultsChan := make(chan locationResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, idsChan, resultsChan)
		}()
	}

	for _, id := range ids {
		idsChan <- id
	}
	close(idsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	stale := 0
	for lr := range resultsChan {
		switch {
		case lr.err != nil:
			result.Failed++
			result.Errors = append(result.Errors, RefreshError{LocationID: lr.locationID, Error: lr.err.Error()})
		case len(lr.report.Missing()) > 0 || len(lr.report.StaleFeatures()) > 0:
			result.Partial++
			stale += len(lr.report.StaleFeatures())
		default:
			result.Successful++
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result, stale)
	j.instruments.record(ctx, result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("partial", result.Partial).
		Int("failed", result.Failed).
		Msg("location refresh job completed")

	return result, nil
}

// RefreshLocation refreshes a single location.
func (j *RefreshJob) RefreshLocation(ctx context.Context, locationID string) (*aggregator.Report, error) {
	lr := j.refreshOne(ctx, locationID)
	return lr.report, lr.err
}

func (j *RefreshJob) locationIDs(ctx context.Context) ([]string, error) {
	var ids []string
	cursor := ""
	for {
		page, err := j.locations.List(ctx, location.ListOptions{Limit: j.config.PageSize, Cursor: cursor})
		if err != nil {
			return nil, err
		}
		for _, loc := range page.Items {
			ids = append(ids, loc.ID)
		}
		if page.NextCursor == "" {
			return ids, nil
		}
		cursor = page.NextCursor
	}
}

func (j *RefreshJob) refreshWorker(ctx context.Context, ids <-chan string, results chan<- locationResult) {
	for id := range ids {
		if ctx.Err() != nil {
			results <- locationResult{locationID: id, err: ctx.Err()}
			continue
		}
		results <- j.refreshOne(ctx, id)
	}
}

func (j *RefreshJob) refreshOne(ctx context.Context, locationID string) locationResult {
	locCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	_, report, err := j.refresher.RefreshByID(locCtx, locationID, aggregator.Options{
		Features:             j.config.Features,
		SkipReverseGeocoding: j.config.SkipReverseGeocoding,
	})
	if err != nil {
		j.logger.Warn().Err(err).Str("location_id", locationID).Msg("location refresh failed")
	}
	return locationResult{locationID: locationID, report: report, err: err}
}

func (j *RefreshJob) updateMetrics(result *RefreshResult, stale int) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulRefreshes += int64(result.Successful)
	j.metrics.PartialRefreshes += int64(result.Partial)
	j.metrics.FailedRefreshes += int64(result.Failed)
	j.metrics.StaleFeatures += int64(stale)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:           j.metrics.TotalRuns,
		SuccessfulRefreshes: j.metrics.SuccessfulRefreshes,
		PartialRefreshes:    j.metrics.PartialRefreshes,
		FailedRefreshes:     j.metrics.FailedRefreshes,
		StaleFeatures:       j.metrics.StaleFeatures,
		LastRunAt:           j.metrics.LastRunAt,
		LastRunDuration:     j.metrics.LastRunDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":           m.TotalRuns,
		"successful_refreshes": m.SuccessfulRefreshes,
		"partial_refreshes":    m.PartialRefreshes,
		"failed_refreshes":     m.FailedRefreshes,
		"stale_features":       m.StaleFeatures,
		"last_run_at":          m.LastRunAt,
		"last_run_duration":    m.LastRunDuration.String(),
		"total_duration":       m.TotalDuration.String(),
	}
}

// instruments exports run outcomes through OpenTelemetry.
type instruments struct {
	runDuration metric.Float64Histogram
	locations   metric.Int64Counter
}

func newInstruments() *instruments {
	meter := otel.Meter(meterName)
	runDuration, _ := meter.Float64Histogram("breezyd.worker.run.duration", //nolint:errcheck // noop fallback
		metric.WithDescription("Duration of a location refresh run"),
		metric.WithUnit("s"),
	)
	locations, _ := meter.Int64Counter("breezyd.worker.locations", //nolint:errcheck // noop fallback
		metric.WithDescription("Locations refreshed by outcome"),
		metric.WithUnit("{location}"),
	)
	return &instruments{runDuration: runDuration, locations: locations}
}

func (in *instruments) record(ctx context.Context, result *RefreshResult) {
	in.runDuration.Record(ctx, result.Duration.Seconds())
	for outcome, n := range map[string]int{
		"success": result.Successful,
		"partial": result.Partial,
		"failure": result.Failed,
	} {
		if n > 0 {
			in.locations.Add(ctx, int64(n), metric.WithAttributes(attribute.String("outcome", outcome)))
		}
	}
}
