package featureflags

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores overrides in the feature_flags table, values as
// JSONB.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) List(ctx context.Context) ([]*Flag, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value, updated_at FROM feature_flags ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list feature flags: %w", err)
	}
	flags, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Flag, error) {
		var (
			f   Flag
			raw []byte
		)
		if err := row.Scan(&f.Key, &raw, &f.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &f.Value); err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.Key, err)
		}
		return &f, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list feature flags: %w", err)
	}
	return flags, nil
}

func (r *PostgresRepository) Save(ctx context.Context, flags ...*Flag) error {
	batch := &pgx.Batch{}
	for _, f := range flags {
		raw, err := json.Marshal(f.Value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", f.Key, err)
		}
		batch.Queue(`
			INSERT INTO feature_flags (key, value, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
			f.Key, raw, f.UpdatedAt)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("save feature flags: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) Delete(ctx context.Context, key string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM feature_flags WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete feature flag %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFlagNotFound
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
