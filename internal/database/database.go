// Package database opens the PostgreSQL pool and owns the schema.
package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Config describes the PostgreSQL connection. URL, when set, takes
// precedence over the individual fields.
type Config struct {
	URL      string
	Host     string
	Port     int `validate:"gte=0,lte=65535"`
	User     string
	Password string
	Database string
	SSLMode  string `validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`

	MaxConns        int32 `validate:"gte=0"`
	MinConns        int32 `validate:"gte=0,ltefield=MaxConns"`
	ConnMaxLifetime time.Duration

	// ConnectTimeout bounds the retries of the initial ping. Zero pings
	// once.
	ConnectTimeout time.Duration
}

// DSN returns the connection URL with credentials escaped.
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// Connect opens a pool and waits until the server answers a ping, retrying
// with exponential backoff for up to cfg.ConnectTimeout.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	if cfg.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxElapsedTime = cfg.ConnectTimeout
	var policy backoff.BackOff = b
	if cfg.ConnectTimeout <= 0 {
		policy = &backoff.StopBackOff{}
	}
	log := zerolog.Ctx(ctx)
	err = backoff.RetryNotify(func() error {
		return pool.Ping(ctx)
	}, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("retry_in", wait).Str("host", pc.ConnConfig.Host).Msg("database not reachable")
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
