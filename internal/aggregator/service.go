// Package aggregator selects sources per location and feature, fetches
// them concurrently with fallback, and combines the partial results into
// one Weather.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/breezyweather/breezyd/internal/provider/resilience"
	"github.com/breezyweather/breezyd/internal/source"
	"github.com/breezyweather/breezyd/internal/weather"
	"github.com/breezyweather/breezyd/internal/weatherstore"
)

// Aggregation errors.
var (
	// ErrForecastUnavailable is returned when no source delivered a
	// forecast and no recent stored forecast exists.
	ErrForecastUnavailable = errors.New("forecast unavailable")
)

// Flags are the runtime switches the aggregator honours.
type Flags interface {
	AlertsDisabled(ctx context.Context) bool
	CachedOnlyWeather(ctx context.Context) bool
	ReverseGeocodingDisabled(ctx context.Context) bool
}

// Locations loads and updates saved locations.
type Locations interface {
	Get(ctx context.Context, id string) (*weather.Location, error)
	Update(ctx context.Context, loc *weather.Location) error
}

// ServiceConfig holds configuration for the aggregation service.
type ServiceConfig struct {
	Sources   *source.Manager
	Store     weatherstore.Repository
	Locations Locations

	// Flags is optional; nil behaves as all flags off.
	Flags Flags

	// Registry receives the outcome of every source request (optional).
	Registry *resilience.Registry

	Logger zerolog.Logger

	// MaxConcurrentSources bounds concurrent source requests (default: 4).
	MaxConcurrentSources int

	// SourceTimeout bounds a single source request (default: 20 seconds).
	SourceTimeout time.Duration

	// MaxFallbackRounds is the number of rounds after the first in which
	// failed features move to their next candidate (default: 2).
	MaxFallbackRounds int

	// StaleIfErrorTTL is how old stored feature data may be to replace a
	// failed fetch (default: 6 hours).
	StaleIfErrorTTL time.Duration

	// PointCacheTTL is how long ad-hoc point weather is reused
	// (default: 10 minutes).
	PointCacheTTL time.Duration

	// PointGridSize is the cache grid cell size in degrees (default: 0.1).
	PointGridSize float64

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Service aggregates weather from the registered sources.
type Service struct {
	sources   *source.Manager
	store     weatherstore.Repository
	locations Locations
	flags     Flags
	registry  *resilience.Registry
	logger    zerolog.Logger
	metrics   *metrics

	maxConcurrent  int
	sourceTimeout  time.Duration
	fallbackRounds int
	staleTTL       time.Duration

	points *pointCache
	now    func() time.Time
}

// Options tune a single refresh.
type Options struct {
	// Features limits the refresh. FORECAST is always included. Empty
	// means every weather feature.
	Features []weather.Feature

	// SkipReverseGeocoding keeps the location names as they are.
	SkipReverseGeocoding bool
}

// NewService creates a new aggregation service.
func NewService(cfg ServiceConfig) *Service {
	maxConcurrent := cfg.MaxConcurrentSources
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	sourceTimeout := cfg.SourceTimeout
	if sourceTimeout == 0 {
		sourceTimeout = 20 * time.Second
	}

	fallbackRounds := cfg.MaxFallbackRounds
	if fallbackRounds < 0 {
		fallbackRounds = 0
	} else if fallbackRounds == 0 {
		fallbackRounds = 2
	}

	staleTTL := cfg.StaleIfErrorTTL
	if staleTTL == 0 {
		staleTTL = 6 * time.Hour
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Service{
		sources:        cfg.Sources,
		store:          cfg.Store,
		locations:      cfg.Locations,
		flags:          cfg.Flags,
		registry:       cfg.Registry,
		logger:         cfg.Logger,
		metrics:        newMetrics(),
		maxConcurrent:  maxConcurrent,
		sourceTimeout:  sourceTimeout,
		fallbackRounds: fallbackRounds,
		staleTTL:       staleTTL,
		points:         newPointCache(cfg.PointCacheTTL, cfg.PointGridSize, staleTTL),
		now:            clock,
	}
}

// Get returns the stored weather of a saved location.
func (s *Service) Get(ctx context.Context, locationID string) (*weather.Weather, error) {
	return s.store.Get(ctx, locationID)
}

// RefreshByID refreshes a saved location.
func (s *Service) RefreshByID(ctx context.Context, locationID string, opts Options) (*weather.Weather, *Report, error) {
	loc, err := s.locations.Get(ctx, locationID)
	if err != nil {
		return nil, nil, err
	}
	return s.Refresh(ctx, loc, opts)
}

// Refresh fetches every requested feature for loc from its best source,
// falling back to the next candidates on failure. Locations with an ID
// are persisted together with their weather.
func (s *Service) Refresh(ctx context.Context, loc *weather.Location, opts Options) (*weather.Weather, *Report, error) {
	if err := loc.Validate(); err != nil {
		return nil, nil, err
	}

	var previous *weather.Weather
	if loc.ID != "" {
		previous = s.stored(ctx, loc.ID)
	}
	return s.refresh(ctx, loc, opts, previous)
}

// RefreshPoint aggregates weather for ad-hoc coordinates. Results are not
// persisted but cached per grid cell.
func (s *Service) RefreshPoint(ctx context.Context, lat, lon float64, opts Options) (*weather.Weather, *Report, error) {
	if err := weather.ValidateCoordinates(lat, lon); err != nil {
		return nil, nil, err
	}

	features := s.features(ctx, opts)
	key := s.points.key(lat, lon, features)
	if w, ok := s.points.fresh(key, s.now()); ok {
		report := newReport("")
		report.CachedOnly = true
		for _, f := range features {
			if w.HasFeature(f) {
				report.feature(f).Source = w.Sources[f]
			}
		}
		return w, report, nil
	}

	loc := &weather.Location{Lat: lat, Lon: lon}
	w, report, err := s.refresh(ctx, loc, opts, s.points.previous(key))
	if err != nil {
		return nil, report, err
	}
	s.points.put(key, w, s.now())
	return w, report, nil
}

func (s *Service) refresh(ctx context.Context, in *weather.Location, opts Options, previous *weather.Weather) (*weather.Weather, *Report, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "aggregator.Refresh")
	defer span.End()

	start := s.now()
	loc := *in
	report := newReport(loc.ID)
	span.SetAttributes(
		attribute.String("location.id", loc.ID),
		attribute.Float64("location.lat", loc.Lat),
		attribute.Float64("location.lon", loc.Lon),
	)

	if previous != nil && s.flags != nil && s.flags.CachedOnlyWeather(ctx) {
		report.CachedOnly = true
		for f, id := range previous.Sources {
			report.feature(f).Source = id
		}
		report.finish(start)
		return previous, report, nil
	}

	renamed := false
	if loc.IsCurrentPosition && !opts.SkipReverseGeocoding && !s.reverseGeocodingDisabled(ctx) {
		renamed = s.reverseGeocode(ctx, &loc, report)
	}
	zoneBefore := loc.TimeZone

	features := s.features(ctx, opts)
	agg := weather.New(loc)
	missing := s.fetchAll(ctx, &loc, features, agg, report)

	now := s.now()
	for f, err := range missing {
		fr := report.feature(f)
		fr.Error = err.Error()
		if previous == nil || !previous.HasFeature(f) {
			continue
		}
		if now.Sub(previous.FeatureUpdatedAt[f]) > s.staleTTL {
			continue
		}
		if agg.CopyFeature(f, previous) {
			fr.Source = previous.Sources[f]
			fr.Stale = true
			s.metrics.recordStale(ctx, f)
		}
	}

	if !agg.Provides(weather.FeatureForecast) {
		err := fmt.Errorf("%w for %.4f,%.4f", ErrForecastUnavailable, loc.Lat, loc.Lon)
		if cause, ok := missing[weather.FeatureForecast]; ok {
			err = fmt.Errorf("%w: %w", err, cause)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "forecast unavailable")
		report.finish(start)
		return nil, report, err
	}

	agg.Location = loc
	agg.Complete(now)
	agg.RefreshedAt = now
	report.markDerived(agg, features)

	if loc.ID != "" {
		s.persist(ctx, &loc, agg, renamed || loc.TimeZone != zoneBefore)
	}

	report.finish(start)
	s.logger.Info().
		Str("location_id", loc.ID).
		Int("rounds", report.Rounds).
		Interface("missing", report.Missing()).
		Interface("stale", report.StaleFeatures()).
		Int64("duration_ms", report.DurationMs).
		Msg("weather refreshed")

	return agg, report, nil
}

// features returns the requested weather features, FORECAST first.
func (s *Service) features(ctx context.Context, opts Options) []weather.Feature {
	requested := opts.Features
	if len(requested) == 0 {
		requested = weather.AllWeatherFeatures()
	}

	alertsOff := s.flags != nil && s.flags.AlertsDisabled(ctx)
	out := []weather.Feature{weather.FeatureForecast}
	for _, f := range requested {
		if f == weather.FeatureForecast || !f.IsWeatherFeature() || slices.Contains(out, f) {
			continue
		}
		if f == weather.FeatureAlert && alertsOff {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (s *Service) reverseGeocodingDisabled(ctx context.Context) bool {
	return s.flags != nil && s.flags.ReverseGeocodingDisabled(ctx)
}

// reverseGeocode resolves the names of loc. Failures are reported but never
// fail the refresh. Returns whether loc changed.
func (s *Service) reverseGeocode(ctx context.Context, loc *weather.Location, report *Report) bool {
	gr := &GeocodingReport{}
	report.ReverseGeocoding = gr

	resolved, id, err := s.resolve(ctx, loc, gr)
	if err != nil {
		gr.Error = err.Error()
		s.logger.Warn().Err(err).Str("location_id", loc.ID).Msg("reverse geocoding failed")
		return false
	}
	gr.Source = id

	changed := resolved.Name != loc.Name || resolved.CountryCode != loc.CountryCode ||
		resolved.Province != loc.Province || resolved.District != loc.District
	loc.Name = resolved.Name
	loc.District = resolved.District
	loc.Province = resolved.Province
	loc.Country = resolved.Country
	loc.CountryCode = resolved.CountryCode
	if resolved.TimeZone != "" {
		loc.TimeZone = resolved.TimeZone
	}
	return changed
}

// ReverseGeocode resolves place names for ad-hoc coordinates.
func (s *Service) ReverseGeocode(ctx context.Context, lat, lon float64) (*weather.Location, *GeocodingReport, error) {
	if err := weather.ValidateCoordinates(lat, lon); err != nil {
		return nil, nil, err
	}
	gr := &GeocodingReport{}
	resolved, id, err := s.resolve(ctx, &weather.Location{Lat: lat, Lon: lon}, gr)
	if err != nil {
		gr.Error = err.Error()
		return nil, gr, err
	}
	gr.Source = id
	return resolved, gr, nil
}

func (s *Service) resolve(ctx context.Context, loc *weather.Location, gr *GeocodingReport) (*weather.Location, string, error) {
	candidates := s.sources.ReverseGeocodingCandidates(ctx, loc)
	if len(candidates) == 0 {
		return nil, "", fmt.Errorf("%w: %s", source.ErrNoSourceForFeature, weather.FeatureReverseGeocoding)
	}

	var errs []error
	for _, src := range candidates {
		gr.Attempts = append(gr.Attempts, src.ID())

		sctx, cancel := context.WithTimeout(ctx, s.sourceTimeout)
		started := s.now()
		resolved, err := src.ReverseGeocode(sctx, loc)
		cancel()

		s.metrics.recordRequest(ctx, src.ID(), s.now().Sub(started), err)
		s.record(src.ID(), err)
		if err == nil {
			return resolved, src.ID(), nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", src.ID(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, "", errors.Join(errs...)
}

func (s *Service) stored(ctx context.Context, locationID string) *weather.Weather {
	if s.store == nil {
		return nil
	}
	w, err := s.store.Get(ctx, locationID)
	if err != nil {
		if !errors.Is(err, weatherstore.ErrNotFound) {
			s.logger.Warn().Err(err).Str("location_id", locationID).Msg("failed to load stored weather")
		}
		return nil
	}
	return w
}

func (s *Service) persist(ctx context.Context, loc *weather.Location, w *weather.Weather, locationChanged bool) {
	if s.store != nil {
		if err := s.store.Save(ctx, loc.ID, w); err != nil {
			s.logger.Error().Err(err).Str("location_id", loc.ID).Msg("failed to store weather")
		}
	}
	if locationChanged && s.locations != nil {
		loc.UpdatedAt = s.now().UTC()
		if err := s.locations.Update(ctx, loc); err != nil {
			s.logger.Error().Err(err).Str("location_id", loc.ID).Msg("failed to update location")
		}
	}
}

func (s *Service) record(sourceID string, err error) {
	if s.registry != nil {
		s.registry.Record(sourceID, err)
	}
}
