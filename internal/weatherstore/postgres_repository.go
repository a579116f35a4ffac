package weatherstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/breezyweather/breezyd/internal/weather"
)

// PostgresRepository is a PostgreSQL implementation of Repository. The
// weather is stored as JSONB next to its refresh time.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL weather repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save replaces the stored weather of a location.
func (r *PostgresRepository) Save(ctx context.Context, locationID string, w *weather.Weather) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encoding weather: %w", err)
	}

	query := `
		INSERT INTO location_weather (location_id, data, refreshed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (location_id) DO UPDATE SET
			data = EXCLUDED.data,
			refreshed_at = EXCLUDED.refreshed_at
	`
	_, err = r.pool.Exec(ctx, query, locationID, data, w.RefreshedAt)
	return err
}

// Get returns the stored weather of a location.
func (r *PostgresRepository) Get(ctx context.Context, locationID string) (*weather.Weather, error) {
	query := `SELECT data FROM location_weather WHERE location_id = $1`

	var data []byte
	if err := r.pool.QueryRow(ctx, query, locationID).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var w weather.Weather
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decoding weather: %w", err)
	}
	return &w, nil
}

// Delete removes the stored weather of a location.
func (r *PostgresRepository) Delete(ctx context.Context, locationID string) error {
	query := `DELETE FROM location_weather WHERE location_id = $1`
	_, err := r.pool.Exec(ctx, query, locationID)
	return err
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
