// Package ambee implements the Ambee pollen source.
package ambee

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/breezyweather/breezyd/internal/provider/resilience"
	"github.com/breezyweather/breezyd/internal/source"
	"github.com/breezyweather/breezyd/internal/weather"
)

const (
	// SourceID identifies this source.
	SourceID = "ambee"

	// DefaultBaseURL is the Ambee API base URL.
	DefaultBaseURL = "https://api.ambeedata.com"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("ambee: api key not configured")

// ClientConfig holds configuration for the Ambee client.
type ClientConfig struct {
	// APIKey is the Ambee API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to Ambee API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an Ambee API client for pollen data.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Ambee client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(SourceID))
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// ID returns the source ID.
func (c *Client) ID() string { return SourceID }

// Name returns the display name.
func (c *Client) Name() string { return "Ambee" }

// IsConfigured reports whether an API key is set.
func (c *Client) IsConfigured() bool { return c.apiKey != "" }

// SupportedFeatures lists the features Ambee serves.
func (c *Client) SupportedFeatures() []weather.Feature {
	return []weather.Feature{weather.FeaturePollen}
}

// IsFeatureSupportedForLocation reports whether f is supported. Ambee
// covers the whole world.
func (c *Client) IsFeatureSupportedForLocation(_ *weather.Location, f weather.Feature) bool {
	return f == weather.FeaturePollen
}

// FeaturePriorityForLocation ranks Ambee for pollen.
func (c *Client) FeaturePriorityForLocation(loc *weather.Location, f weather.Feature) int {
	if !c.IsFeatureSupportedForLocation(loc, f) {
		return source.PriorityNone
	}
	return source.PriorityMedium
}

// RequestWeather fetches the latest readings and the daily forecast. The
// latest readings replace the forecast for their day.
func (c *Client) RequestWeather(ctx context.Context, loc *weather.Location, features []weather.Feature) (*source.Result, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	result := source.NewResult(loc)
	for _, f := range features {
		if f != weather.FeaturePollen {
			result.Fail(f, source.ErrFeatureNotSupported)
		}
	}
	if !slices.Contains(features, weather.FeaturePollen) {
		return result, result.Err(features)
	}

	var latest, forecast []pollenData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		latest, err = c.get(gctx, "/latest/pollen/by-lat-lng", loc)
		return err
	})
	g.Go(func() error {
		var err error
		forecast, err = c.get(gctx, "/forecast/pollen/by-lat-lng", loc)
		if err != nil {
			c.logger.Warn().Err(err).Msg("ambee forecast unavailable, using latest readings only")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		result.Fail(weather.FeaturePollen, err)
		return result, result.Err(features)
	}

	days := toDays(latest, forecast, time.Now())
	if len(days) == 0 {
		result.Fail(weather.FeaturePollen, weather.ErrNoDataForLocation)
		return result, result.Err(features)
	}

	partial := weather.New(*loc)
	partial.Pollen = &weather.PollenData{Daily: days}
	result.Weather.Merge(weather.FeaturePollen, partial, SourceID, time.Now())
	return result, nil
}

func (c *Client) get(ctx context.Context, path string, loc *weather.Location) ([]pollenData, error) {
	url := fmt.Sprintf("%s%s?lat=%.6f&lng=%.6f", c.baseURL, path, loc.Lat, loc.Lon)
	header := map[string][]string{"X-Api-Key": {c.apiKey}}

	var resp pollenResponse
	if err := c.httpClient.GetJSON(ctx, url, header, &resp); err != nil {
		return nil, fmt.Errorf("ambee %s: %w", path, err)
	}
	return resp.Data, nil
}
