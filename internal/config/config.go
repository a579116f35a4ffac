// Package config loads the runtime configuration of the breezyd binaries
// from the environment, an optional .env file and an optional YAML file
// describing the weather sources.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/breezyweather/breezyd/internal/database"
)

// Known source IDs.
const (
	SourceOpenMeteo      = "openmeteo"
	SourceOpenWeatherMap = "openweathermap"
	SourceNWS            = "nws"
	SourceAmbee          = "ambee"
	SourceLuchtmeetnet   = "luchtmeetnet"
	SourceNominatim      = "nominatim"
)

// Config is the configuration shared by the API, the worker and the CLI.
type Config struct {
	Env      string `validate:"oneof=development test staging production"`
	Port     string `validate:"required,numeric"`
	LogLevel string `validate:"oneof=trace debug info warn error"`

	// Storage selects the repositories: postgres, or memory for local runs
	// and tests. Memory storage is lost on restart.
	Storage string `validate:"oneof=postgres memory"`

	// AdminJWTSecret signs admin tokens (HS256).
	AdminJWTSecret string

	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool

	RateLimits RateLimitConfig

	Telemetry  TelemetryConfig
	Database   database.Config
	Aggregator AggregatorConfig
	Poll       PollConfig
	PubSub     PubSubConfig

	// FeatureFlagCacheTTL is how long flag values are cached.
	FeatureFlagCacheTTL time.Duration `validate:"gte=0"`

	// Sources configures each weather source by ID.
	Sources map[string]SourceConfig `validate:"dive,keys,oneof=openmeteo openweathermap nws ambee luchtmeetnet nominatim,endkeys"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string  `validate:"required_if=Enabled true"`
	Insecure    bool
	SampleRatio float64 `validate:"gte=0,lte=1"`
}

// RateLimitConfig holds per-minute request budgets for the API.
type RateLimitConfig struct {
	Standard  int `validate:"gte=1"`
	Expensive int `validate:"gte=1"`
	Admin     int `validate:"gte=1"`
}

// AggregatorConfig tunes source fan-out and fallback.
type AggregatorConfig struct {
	MaxConcurrentSources int           `validate:"gte=1,lte=32"`
	SourceTimeout        time.Duration `validate:"gt=0"`
	MaxFallbackRounds    int           `validate:"gte=0,lte=5"`
	StaleIfErrorTTL      time.Duration `validate:"gte=0"`
	PointCacheTTL        time.Duration `validate:"gte=0"`
}

// PollConfig configures the background refresh of saved locations.
type PollConfig struct {
	Enabled         bool
	Interval        time.Duration `validate:"min=1m"`
	Timeout         time.Duration `validate:"gt=0"`
	Concurrency     int           `validate:"gte=1,lte=64"`
	LocationTimeout time.Duration `validate:"gt=0"`
}

// PubSubConfig configures the refresh job subscription of the worker.
type PubSubConfig struct {
	ProjectID    string
	Subscription string `validate:"required_with=ProjectID"`
	// Topic is where breezyctl enqueues jobs.
	Topic          string
	MaxOutstanding int `validate:"gte=1,lte=1000"`
}

// SourceConfig configures one weather source.
type SourceConfig struct {
	// Enabled defaults to true when unset.
	Enabled   *bool         `yaml:"enabled"`
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url" validate:"omitempty,url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout" validate:"gte=0"`
}

// IsEnabled reports whether the source should be registered.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Source returns the configuration of source id, zero when absent.
func (c *Config) Source(id string) SourceConfig {
	return c.Sources[id]
}

type sourcesFile struct {
	Sources map[string]SourceConfig `yaml:"sources"`
}

// Load reads the configuration. A .env file in the working directory is
// loaded first when present; variables already set take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Env:            getEnv("APP_ENV", "development"),
		Port:           getEnv("APP_PORT", "8080"),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Storage:        strings.ToLower(getEnv("STORAGE_BACKEND", "postgres")),
		AdminJWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
		Sources:        make(map[string]SourceConfig),
	}

	var errs []error
	cfg.RequireTLS = getBool("REQUIRE_TLS", false, &errs)
	cfg.RateLimits = RateLimitConfig{
		Standard:  getInt("RATE_LIMIT_STANDARD", 100, &errs),
		Expensive: getInt("RATE_LIMIT_EXPENSIVE", 30, &errs),
		Admin:     getInt("RATE_LIMIT_ADMIN", 10, &errs),
	}
	cfg.Telemetry = TelemetryConfig{
		Enabled:     getBool("OTEL_ENABLED", false, &errs),
		Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		Insecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true, &errs),
		SampleRatio: getFloat("OTEL_SAMPLE_RATIO", 1, &errs),
	}
	cfg.Database = database.Config{
		URL:             os.Getenv("DATABASE_URL"),
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getInt("DB_PORT", 5432, &errs),
		User:            getEnv("DB_USER", "breezyd"),
		Password:        getEnv("DB_PASSWORD", "localdev"),
		Database:        getEnv("DB_NAME", "breezyd"),
		SSLMode:         getEnv("DB_SSL_MODE", "disable"),
		MaxConns:        int32(getInt("DB_MAX_CONNS", 10, &errs)), //nolint:gosec // bounded by validation
		MinConns:        int32(getInt("DB_MIN_CONNS", 2, &errs)),  //nolint:gosec // bounded by validation
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute, &errs),
		ConnectTimeout:  getDuration("DB_CONNECT_TIMEOUT", 30*time.Second, &errs),
	}
	cfg.Aggregator = AggregatorConfig{
		MaxConcurrentSources: getInt("AGGREGATOR_MAX_CONCURRENT_SOURCES", 4, &errs),
		SourceTimeout:        getDuration("AGGREGATOR_SOURCE_TIMEOUT", 20*time.Second, &errs),
		MaxFallbackRounds:    getInt("AGGREGATOR_MAX_FALLBACK_ROUNDS", 2, &errs),
		StaleIfErrorTTL:      getDuration("AGGREGATOR_STALE_IF_ERROR_TTL", 6*time.Hour, &errs),
		PointCacheTTL:        getDuration("AGGREGATOR_POINT_CACHE_TTL", 10*time.Minute, &errs),
	}
	cfg.Poll = PollConfig{
		Enabled:         getBool("POLL_ENABLED", true, &errs),
		Interval:        getDuration("POLL_INTERVAL", time.Hour, &errs),
		Timeout:         getDuration("POLL_TIMEOUT", 10*time.Minute, &errs),
		Concurrency:     getInt("POLL_CONCURRENCY", 3, &errs),
		LocationTimeout: getDuration("POLL_LOCATION_TIMEOUT", 45*time.Second, &errs),
	}
	cfg.PubSub = PubSubConfig{
		ProjectID:      os.Getenv("PUBSUB_PROJECT_ID"),
		Subscription:   os.Getenv("PUBSUB_SUBSCRIPTION"),
		Topic:          getEnv("PUBSUB_TOPIC", "breezyd-jobs"),
		MaxOutstanding: getInt("PUBSUB_MAX_OUTSTANDING", 10, &errs),
	}
	cfg.FeatureFlagCacheTTL = getDuration("FEATURE_FLAG_CACHE_TTL", time.Minute, &errs)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if path := os.Getenv("SOURCES_FILE"); path != "" {
		sources, err := LoadSourcesFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Sources = sources
	}
	applySourceEnv(cfg.Sources)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSourcesFile reads the per-source configuration from a YAML file of
// the form:
//
//	sources:
//	  openweathermap:
//	    api_key: "..."
//	  nws:
//	    enabled: false
func LoadSourcesFile(path string) (map[string]SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}
	if file.Sources == nil {
		file.Sources = make(map[string]SourceConfig)
	}
	return file.Sources, nil
}

// applySourceEnv lets secrets come from the environment instead of the file.
func applySourceEnv(sources map[string]SourceConfig) {
	overrides := []struct {
		id, env string
		set     func(*SourceConfig, string)
	}{
		{SourceOpenWeatherMap, "OPENWEATHERMAP_API_KEY", func(s *SourceConfig, v string) { s.APIKey = v }},
		{SourceAmbee, "AMBEE_API_KEY", func(s *SourceConfig, v string) { s.APIKey = v }},
		{SourceNWS, "NWS_USER_AGENT", func(s *SourceConfig, v string) { s.UserAgent = v }},
		{SourceNominatim, "NOMINATIM_USER_AGENT", func(s *SourceConfig, v string) { s.UserAgent = v }},
	}
	for _, o := range overrides {
		v := os.Getenv(o.env)
		if v == "" {
			continue
		}
		sc := sources[o.id]
		o.set(&sc, v)
		sources[o.id] = sc
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}
	if c.Env == "production" && c.AdminJWTSecret == "" {
		return errors.New("invalid configuration: ADMIN_JWT_SECRET is required in production")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func getFloat(key string, def float64, errs *[]error) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return f
}

func getBool(key string, def bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return b
}

func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return d
}
