package database_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breezyweather/breezyd/internal/database"
)

func TestConfig_DSN(t *testing.T) {
	cfg := database.Config{
		Host:     "db.internal",
		Port:     6432,
		User:     "breezyd",
		Password: "p@ss:w/rd",
		Database: "weather",
		SSLMode:  "require",
	}

	u, err := url.Parse(cfg.DSN())
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.internal:6432", u.Host)
	assert.Equal(t, "/weather", u.Path)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss:w/rd", pw)
}

func TestConfig_DSNPrefersURL(t *testing.T) {
	cfg := database.Config{URL: "postgres://u:p@elsewhere/db", Host: "ignored"}
	assert.Equal(t, "postgres://u:p@elsewhere/db", cfg.DSN())
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := database.Connect(context.Background(), database.Config{URL: "postgres://%zz"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse database config")
}

func TestConnect_GivesUpWhenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Port 1 on loopback refuses connections.
	_, err := database.Connect(ctx, database.Config{
		Host: "127.0.0.1", Port: 1, User: "u", Database: "d", SSLMode: "disable",
		ConnectTimeout: 300 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping database")
}
