package airquality

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Provider fetches station snapshots from an upstream network.
type Provider interface {
	FetchSnapshot(ctx context.Context) (*Snapshot, error)
}

// ServiceConfig holds configuration for the air quality service.
type ServiceConfig struct {
	Provider  Provider
	Estimator EstimatorConfig
	Logger    zerolog.Logger

	// CacheTTL is how long a snapshot is served before refetching
	// (default: 15 minutes).
	CacheTTL time.Duration

	// StaleIfErrorTTL is how old a snapshot may be to stand in for a
	// failed fetch (default: 2 hours).
	StaleIfErrorTTL time.Duration

	// Clock replaces time.Now.
	Clock func() time.Time
}

// Service caches the station snapshot of one network and estimates it at
// arbitrary points. Concurrent refreshes share a single fetch.
type Service struct {
	provider  Provider
	estimator *Estimator
	logger    zerolog.Logger
	cacheTTL  time.Duration
	staleTTL  time.Duration
	now       func() time.Time

	fetches singleflight.Group

	mu       sync.RWMutex
	snapshot *Snapshot
	expires  time.Time
}

// NewService creates a new air quality service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		provider:  cfg.Provider,
		estimator: NewEstimator(cfg.Estimator),
		logger:    cfg.Logger,
		cacheTTL:  cfg.CacheTTL,
		staleTTL:  cfg.StaleIfErrorTTL,
		now:       cfg.Clock,
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = 15 * time.Minute
	}
	if s.staleTTL <= 0 {
		s.staleTTL = 2 * time.Hour
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// GetSnapshot returns the cached snapshot, refetching it once expired.
func (s *Service) GetSnapshot(ctx context.Context) (*Snapshot, error) {
	if snapshot := s.fresh(); snapshot != nil {
		return snapshot, nil
	}
	v, err, _ := s.fetches.Do("snapshot", func() (any, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// AtPoint estimates the current snapshot at lat/lon and returns the time of
// the newest measurement it is based on.
func (s *Service) AtPoint(ctx context.Context, lat, lon float64) (*PointEstimate, time.Time, error) {
	snapshot, err := s.GetSnapshot(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}

	est, err := s.estimator.Estimate(lat, lon, snapshot)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("estimating at %.4f,%.4f: %w", lat, lon, err)
	}

	measuredAt := snapshot.LatestMeasurement()
	if measuredAt.IsZero() {
		measuredAt = snapshot.FetchedAt
	}
	return est, measuredAt, nil
}

// RefreshSnapshot fetches a new snapshot regardless of the cache.
func (s *Service) RefreshSnapshot(ctx context.Context) error {
	s.InvalidateCache()
	_, err := s.GetSnapshot(ctx)
	return err
}

// InvalidateCache expires the cached snapshot. It still stands in for a
// failed fetch within the stale TTL.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	s.expires = time.Time{}
	s.mu.Unlock()
}

// CacheStatus describes the cached snapshot.
type CacheStatus struct {
	HasData      bool
	FetchedAt    time.Time
	ExpiresAt    time.Time
	IsExpired    bool
	IsStale      bool
	StationCount int
	Provider     string
}

// CacheStatus returns the state of the cached snapshot.
func (s *Service) CacheStatus() CacheStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return CacheStatus{}
	}
	now := s.now()
	return CacheStatus{
		HasData:      true,
		FetchedAt:    s.snapshot.FetchedAt,
		ExpiresAt:    s.expires,
		IsExpired:    !now.Before(s.expires),
		IsStale:      now.After(s.snapshot.FetchedAt.Add(s.staleTTL)),
		StationCount: len(s.snapshot.Stations),
		Provider:     s.snapshot.Provider,
	}
}

func (s *Service) fresh() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot != nil && s.now().Before(s.expires) {
		return s.snapshot
	}
	return nil
}

func (s *Service) fetch(ctx context.Context) (*Snapshot, error) {
	if snapshot := s.fresh(); snapshot != nil {
		return snapshot, nil
	}

	snapshot, err := s.provider.FetchSnapshot(ctx)
	if err != nil {
		s.mu.RLock()
		previous := s.snapshot
		s.mu.RUnlock()

		if previous != nil && s.now().Before(previous.FetchedAt.Add(s.staleTTL)) {
			s.logger.Warn().
				Err(err).
				Time("fetched_at", previous.FetchedAt).
				Msg("serving stale air quality snapshot")
			return previous, nil
		}
		s.logger.Error().Err(err).Msg("failed to fetch air quality snapshot")
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	s.mu.Lock()
	s.snapshot = snapshot
	s.expires = s.now().Add(s.cacheTTL)
	s.mu.Unlock()

	s.logger.Info().
		Str("provider", snapshot.Provider).
		Int("stations", len(snapshot.Stations)).
		Int("measurements", snapshot.MeasurementCount()).
		Msg("air quality snapshot refreshed")
	return snapshot, nil
}
