// Package nws implements the US National Weather Service source
// (api.weather.gov). It only covers the United States.
package nws

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/breezyweather/breezyd/internal/provider/resilience"
	"github.com/breezyweather/breezyd/internal/source"
	"github.com/breezyweather/breezyd/internal/weather"
)

const (
	// SourceID identifies this source.
	SourceID = "nws"

	// DefaultBaseURL is the api.weather.gov base URL.
	DefaultBaseURL = "https://api.weather.gov"

	// DefaultUserAgent is sent when none is configured. The API rejects
	// requests without one.
	DefaultUserAgent = "breezyd (https://github.com/breezyweather/breezyd)"

	// pointTTL is how long a resolved grid point is reused.
	pointTTL = 24 * time.Hour
)

// ClientConfig holds configuration for the NWS client.
type ClientConfig struct {
	BaseURL string

	// UserAgent identifies the application to the NWS.
	UserAgent string

	// HTTPClient is the HTTP client to use. If nil, a resilient client
	// with UserAgent is created.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client is the NWS source.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger

	mu     sync.Mutex
	points map[string]cachedPoint
}

type cachedPoint struct {
	point   *point
	expires time.Time
}

// NewClient creates a new NWS client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		hc := resilience.DefaultClientConfig(SourceID)
		hc.UserAgent = cfg.UserAgent
		if hc.UserAgent == "" {
			hc.UserAgent = DefaultUserAgent
		}
		hc.Logger = cfg.Logger
		httpClient = resilience.NewClient(hc)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
		points:     make(map[string]cachedPoint),
	}
}

// ID returns the source ID.
func (c *Client) ID() string { return SourceID }

// Name returns the display name.
func (c *Client) Name() string { return "National Weather Service" }

// SupportedFeatures lists the features NWS serves.
func (c *Client) SupportedFeatures() []weather.Feature {
	return []weather.Feature{weather.FeatureForecast, weather.FeatureCurrent, weather.FeatureAlert}
}

// IsFeatureSupportedForLocation reports whether f is available at loc. All
// features are limited to the United States.
func (c *Client) IsFeatureSupportedForLocation(loc *weather.Location, f weather.Feature) bool {
	return slices.Contains(c.SupportedFeatures(), f) && source.InUnitedStates(loc)
}

// FeaturePriorityForLocation ranks NWS first wherever it is available.
func (c *Client) FeaturePriorityForLocation(loc *weather.Location, f weather.Feature) int {
	if !c.IsFeatureSupportedForLocation(loc, f) {
		return source.PriorityNone
	}
	return source.PriorityHighest
}

// RequestWeather fetches the requested features.
func (c *Client) RequestWeather(ctx context.Context, loc *weather.Location, features []weather.Feature) (*source.Result, error) {
	result := source.NewResult(loc)

	var wanted []weather.Feature
	for _, f := range features {
		if !c.IsFeatureSupportedForLocation(loc, f) {
			result.Fail(f, source.ErrFeatureNotSupported)
			continue
		}
		wanted = append(wanted, f)
	}

	var (
		mu      sync.Mutex
		g       errgroup.Group
		partial = weather.New(*loc)
	)
	record := func(f weather.Feature, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			result.Fail(f, err)
			return
		}
		result.Weather.Merge(f, partial, SourceID, time.Now())
	}

	needsPoint := slices.Contains(wanted, weather.FeatureForecast) || slices.Contains(wanted, weather.FeatureCurrent)
	var p *point
	if needsPoint {
		var err error
		p, err = c.resolvePoint(ctx, loc)
		if err != nil {
			for _, f := range wanted {
				if f != weather.FeatureAlert {
					result.Fail(f, err)
				}
			}
		} else {
			result.Weather.Location.TimeZone = p.TimeZone
			partial.Location.TimeZone = p.TimeZone
		}
	}

	for _, f := range wanted {
		switch {
		case f == weather.FeatureForecast && p != nil:
			g.Go(func() error {
				hourly, daily, err := c.fetchForecast(ctx, p)
				mu.Lock()
				partial.Hourly, partial.Daily = hourly, daily
				mu.Unlock()
				record(f, err)
				return nil
			})
		case f == weather.FeatureCurrent && p != nil:
			g.Go(func() error {
				current, err := c.fetchCurrent(ctx, p)
				mu.Lock()
				partial.Current = current
				mu.Unlock()
				record(f, err)
				return nil
			})
		case f == weather.FeatureAlert:
			g.Go(func() error {
				alerts, err := c.fetchAlerts(ctx, loc)
				mu.Lock()
				partial.Alerts = alerts
				mu.Unlock()
				record(f, err)
				return nil
			})
		}
	}
	_ = g.Wait()

	return result, result.Err(features)
}

// geoJSON is the Accept header the API expects.
var geoJSON = http.Header{"Accept": []string{"application/geo+json"}}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	if err := c.httpClient.GetJSON(ctx, url, geoJSON, out); err != nil {
		return fmt.Errorf("nws: %w", err)
	}
	return nil
}
