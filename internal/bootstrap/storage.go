package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/breezyweather/breezyd/internal/config"
	"github.com/breezyweather/breezyd/internal/database"
	"github.com/breezyweather/breezyd/internal/featureflags"
	"github.com/breezyweather/breezyd/internal/location"
	"github.com/breezyweather/breezyd/internal/weatherstore"
)

// Storage is the set of repositories backing the services.
type Storage struct {
	// Pool is nil for memory storage.
	Pool *pgxpool.Pool

	Locations    location.Repository
	Weather      weatherstore.Repository
	FeatureFlags featureflags.Repository
}

// NewStorage opens the repositories selected by cfg.Storage. With postgres
// the schema is migrated before the repositories are returned.
func NewStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Storage, error) {
	if cfg.Storage == "memory" {
		logger.Warn().Msg("using in-memory storage, saved locations are lost on restart")
		return &Storage{
			Locations:    location.NewInMemoryRepository(),
			Weather:      weatherstore.NewInMemoryRepository(),
			FeatureFlags: featureflags.NewInMemoryRepository(),
		}, nil
	}

	pool, err := database.Connect(logger.WithContext(ctx), cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	logger.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Database).
		Msg("database connected")

	return &Storage{
		Pool:         pool,
		Locations:    location.NewPostgresRepository(pool),
		Weather:      weatherstore.NewPostgresRepository(pool),
		FeatureFlags: featureflags.NewPostgresRepository(pool),
	}, nil
}

// Close releases the database pool, if any.
func (s *Storage) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}
