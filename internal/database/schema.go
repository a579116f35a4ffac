package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS locations (
		id                  TEXT PRIMARY KEY,
		name                TEXT NOT NULL DEFAULT '',
		district            TEXT NOT NULL DEFAULT '',
		province            TEXT NOT NULL DEFAULT '',
		country             TEXT NOT NULL DEFAULT '',
		country_code        TEXT NOT NULL DEFAULT '',
		lat                 DOUBLE PRECISION NOT NULL,
		lon                 DOUBLE PRECISION NOT NULL,
		time_zone           TEXT NOT NULL DEFAULT '',
		is_current_position BOOLEAN NOT NULL DEFAULT FALSE,
		forecast_source     TEXT NOT NULL DEFAULT '',
		feature_sources     JSONB,
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS locations_created_at_id_idx ON locations (created_at, id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS locations_current_position_idx
		ON locations (is_current_position) WHERE is_current_position`,
	`CREATE TABLE IF NOT EXISTS location_weather (
		location_id  TEXT PRIMARY KEY REFERENCES locations (id) ON DELETE CASCADE,
		data         JSONB NOT NULL,
		refreshed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS feature_flags (
		key        TEXT PRIMARY KEY,
		value      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the tables used by the repositories. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
