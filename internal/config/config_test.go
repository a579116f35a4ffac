package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breezyweather/breezyd/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "APP_PORT", "LOG_LEVEL", "STORAGE_BACKEND", "ADMIN_JWT_SECRET", "SOURCES_FILE", "REQUIRE_TLS",
		"RATE_LIMIT_STANDARD", "RATE_LIMIT_EXPENSIVE", "RATE_LIMIT_ADMIN",
		"POLL_INTERVAL", "POLL_TIMEOUT", "AGGREGATOR_MAX_FALLBACK_ROUNDS",
		"OPENWEATHERMAP_API_KEY", "AMBEE_API_KEY", "NWS_USER_AGENT", "NOMINATIM_USER_AGENT",
		"OTEL_ENABLED", "OTEL_SAMPLE_RATIO", "PUBSUB_PROJECT_ID", "PUBSUB_SUBSCRIPTION", "PUBSUB_TOPIC", "PUBSUB_MAX_OUTSTANDING",
		"DATABASE_URL", "DB_PORT", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_SSL_MODE",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "postgres", cfg.Storage)
	assert.False(t, cfg.RequireTLS)
	assert.Equal(t, config.RateLimitConfig{Standard: 100, Expensive: 30, Admin: 10}, cfg.RateLimits)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 30*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, 4, cfg.Aggregator.MaxConcurrentSources)
	assert.Equal(t, 2, cfg.Aggregator.MaxFallbackRounds)
	assert.Equal(t, 6*time.Hour, cfg.Aggregator.StaleIfErrorTTL)
	assert.Equal(t, time.Hour, cfg.Poll.Interval)
	assert.Equal(t, 10*time.Minute, cfg.Poll.Timeout)
	assert.True(t, cfg.Source(config.SourceOpenMeteo).IsEnabled())
	assert.Empty(t, cfg.Source(config.SourceAmbee).APIKey)
}

func TestLoad_SourcesFileWithEnvSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOURCES_FILE", writeFile(t, `
sources:
  nws:
    enabled: false
  openweathermap:
    api_key: from-file
    timeout: 5s
  nominatim:
    base_url: https://nominatim.example.org
`))
	t.Setenv("OPENWEATHERMAP_API_KEY", "from-env")
	t.Setenv("AMBEE_API_KEY", "ambee-key")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.False(t, cfg.Source(config.SourceNWS).IsEnabled())
	owm := cfg.Source(config.SourceOpenWeatherMap)
	assert.Equal(t, "from-env", owm.APIKey)
	assert.Equal(t, 5*time.Second, owm.Timeout)
	assert.Equal(t, "ambee-key", cfg.Source(config.SourceAmbee).APIKey)
	assert.Equal(t, "https://nominatim.example.org", cfg.Source(config.SourceNominatim).BaseURL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
		want string
	}{
		{
			name: "bad duration",
			env:  map[string]string{"POLL_INTERVAL": "soon"},
			want: "invalid POLL_INTERVAL",
		},
		{
			name: "poll interval too short",
			env:  map[string]string{"POLL_INTERVAL": "10s"},
			want: "Config.Poll.Interval",
		},
		{
			name: "too many fallback rounds",
			env:  map[string]string{"AGGREGATOR_MAX_FALLBACK_ROUNDS": "9"},
			want: "MaxFallbackRounds",
		},
		{
			name: "unknown source",
			file: "sources:\n  darksky:\n    api_key: x\n",
			want: "Sources",
		},
		{
			name: "malformed file",
			file: "sources: [",
			want: "parse sources file",
		},
		{
			name: "production without admin secret",
			env:  map[string]string{"APP_ENV": "production"},
			want: "ADMIN_JWT_SECRET",
		},
		{
			name: "unknown storage backend",
			env:  map[string]string{"STORAGE_BACKEND": "sqlite"},
			want: "Config.Storage",
		},
		{
			name: "malformed database port",
			env:  map[string]string{"DB_PORT": "fivefour"},
			want: "DB_PORT",
		},
		{
			name: "min connections above max",
			env:  map[string]string{"DB_MAX_CONNS": "2", "DB_MIN_CONNS": "4"},
			want: "MinConns",
		},
		{
			name: "unknown ssl mode",
			env:  map[string]string{"DB_SSL_MODE": "sometimes"},
			want: "SSLMode",
		},
		{
			name: "zero rate limit",
			env:  map[string]string{"RATE_LIMIT_EXPENSIVE": "0"},
			want: "RateLimits.Expensive",
		},
		{
			name: "subscription missing",
			env:  map[string]string{"PUBSUB_PROJECT_ID": "breezy"},
			want: "Subscription",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if tt.file != "" {
				t.Setenv("SOURCES_FILE", writeFile(t, tt.file))
			}

			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadSourcesFile_Missing(t *testing.T) {
	_, err := config.LoadSourcesFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
