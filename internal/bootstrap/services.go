package bootstrap

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/breezyweather/breezyd/internal/aggregator"
	"github.com/breezyweather/breezyd/internal/config"
	"github.com/breezyweather/breezyd/internal/featureflags"
	"github.com/breezyweather/breezyd/internal/location"
)

// Services are the domain services shared by the API, the worker and the CLI.
type Services struct {
	Storage      *Storage
	Sources      *Sources
	FeatureFlags *featureflags.Service
	Aggregator   *aggregator.Service
	Locations    *location.Service
}

// NewServices opens storage, registers the sources and builds the services
// on top of them.
func NewServices(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Services, error) {
	storage, err := NewStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: storage.FeatureFlags,
		Logger:     logger.With().Str("component", "featureflags").Logger(),
		CacheTTL:   cfg.FeatureFlagCacheTTL,
	})

	sources, err := NewSources(cfg, flags, logger)
	if err != nil {
		storage.Close()
		return nil, err
	}

	agg := aggregator.NewService(aggregator.ServiceConfig{
		Sources:              sources.Manager,
		Store:                storage.Weather,
		Locations:            storage.Locations,
		Flags:                flags,
		Registry:             sources.Registry,
		Logger:               logger.With().Str("component", "aggregator").Logger(),
		MaxConcurrentSources: cfg.Aggregator.MaxConcurrentSources,
		SourceTimeout:        cfg.Aggregator.SourceTimeout,
		MaxFallbackRounds:    cfg.Aggregator.MaxFallbackRounds,
		StaleIfErrorTTL:      cfg.Aggregator.StaleIfErrorTTL,
		PointCacheTTL:        cfg.Aggregator.PointCacheTTL,
	})

	locations := location.NewService(location.ServiceConfig{
		Repository: storage.Locations,
		Weather:    storage.Weather,
		Sources:    sources.Manager,
		Logger:     logger.With().Str("component", "locations").Logger(),
	})

	return &Services{
		Storage:      storage,
		Sources:      sources,
		FeatureFlags: flags,
		Aggregator:   agg,
		Locations:    locations,
	}, nil
}

// Close releases storage.
func (s *Services) Close() {
	s.Storage.Close()
}
