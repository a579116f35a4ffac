package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/breezyweather/breezyd/internal/weather"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL location repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectColumns = `
	id, name, district, province, country, country_code,
	lat, lon, time_zone, is_current_position,
	forecast_source, feature_sources,
	created_at, updated_at
`

// Get retrieves a location by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*weather.Location, error) {
	query := `SELECT ` + selectColumns + ` FROM locations WHERE id = $1`
	return scanLocation(r.pool.QueryRow(ctx, query, id))
}

// GetCurrentPosition returns the current position location.
func (r *PostgresRepository) GetCurrentPosition(ctx context.Context) (*weather.Location, error) {
	query := `SELECT ` + selectColumns + ` FROM locations WHERE is_current_position LIMIT 1`
	return scanLocation(r.pool.QueryRow(ctx, query))
}

// scanLocation scans a location from a row.
func scanLocation(row pgx.Row) (*weather.Location, error) {
	var (
		l       weather.Location
		sources []byte
	)
	err := row.Scan(
		&l.ID,
		&l.Name,
		&l.District,
		&l.Province,
		&l.Country,
		&l.CountryCode,
		&l.Lat,
		&l.Lon,
		&l.TimeZone,
		&l.IsCurrentPosition,
		&l.ForecastSource,
		&sources,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, err
	}

	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &l.FeatureSources); err != nil {
			return nil, fmt.Errorf("decoding feature sources of %s: %w", l.ID, err)
		}
	}
	return &l, nil
}

// List retrieves locations ordered by creation time with pagination.
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	// Fetch one extra to determine if there are more results
	fetchLimit := limit + 1

	query := `
		SELECT ` + selectColumns + `
		FROM locations
		WHERE $1 = '' OR (created_at, id) > (
			SELECT created_at, id FROM locations WHERE id = $1
		)
		ORDER BY created_at, id
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, opts.Cursor, fetchLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []*weather.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &ListResult{
		Items: locations,
	}

	// If we got more results than the limit, there are more pages
	if len(locations) > limit {
		result.Items = locations[:limit]
		result.NextCursor = locations[limit-1].ID
	}

	return result, nil
}

// Create creates a new location.
func (r *PostgresRepository) Create(ctx context.Context, l *weather.Location) error {
	sources, err := encodeSources(l)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO locations (
			id, name, district, province, country, country_code,
			lat, lon, time_zone, is_current_position,
			forecast_source, feature_sources,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.pool.Exec(ctx, query,
		l.ID,
		l.Name,
		l.District,
		l.Province,
		l.Country,
		l.CountryCode,
		l.Lat,
		l.Lon,
		l.TimeZone,
		l.IsCurrentPosition,
		l.ForecastSource,
		sources,
		l.CreatedAt,
		l.UpdatedAt,
	)
	return err
}

// Update updates an existing location.
func (r *PostgresRepository) Update(ctx context.Context, l *weather.Location) error {
	sources, err := encodeSources(l)
	if err != nil {
		return err
	}

	query := `
		UPDATE locations SET
			name = $2,
			district = $3,
			province = $4,
			country = $5,
			country_code = $6,
			lat = $7,
			lon = $8,
			time_zone = $9,
			is_current_position = $10,
			forecast_source = $11,
			feature_sources = $12,
			updated_at = $13
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		l.ID,
		l.Name,
		l.District,
		l.Province,
		l.Country,
		l.CountryCode,
		l.Lat,
		l.Lon,
		l.TimeZone,
		l.IsCurrentPosition,
		l.ForecastSource,
		sources,
		l.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrLocationNotFound
	}

	return nil
}

// Delete deletes a location by ID.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM locations WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func encodeSources(l *weather.Location) ([]byte, error) {
	if l.FeatureSources == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(l.FeatureSources)
	if err != nil {
		return nil, fmt.Errorf("encoding feature sources: %w", err)
	}
	return data, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
