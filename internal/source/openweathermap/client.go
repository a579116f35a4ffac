// Package openweathermap implements the OpenWeatherMap weather source.
package openweathermap

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
	SourceID = "openweathermap"

	// DefaultBaseURL is the OpenWeatherMap API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

	// DefaultOneCallURL is the OpenWeatherMap OneCall API 3.0 base URL.
	DefaultOneCallURL = "https://api.openweathermap.org/data/3.0/onecall"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("openweathermap: api key not configured")

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to OpenWeatherMap API).
	BaseURL string

	// OneCallURL is the OneCall API URL (optional, defaults to OneCall 3.0).
	OneCallURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenWeatherMap API client.
type Client struct {
	apiKey     string
	baseURL    string
	oneCallURL string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	oneCallURL := cfg.OneCallURL
	if oneCallURL == "" {
		oneCallURL = DefaultOneCallURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(SourceID))
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		oneCallURL: strings.TrimSuffix(oneCallURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// ID returns the source ID.
func (c *Client) ID() string { return SourceID }

// Name returns the display name.
func (c *Client) Name() string { return "OpenWeatherMap" }

// IsConfigured reports whether an API key is set.
func (c *Client) IsConfigured() bool { return c.apiKey != "" }

// SupportedFeatures lists the features OpenWeatherMap serves worldwide.
func (c *Client) SupportedFeatures() []weather.Feature {
	return []weather.Feature{
		weather.FeatureForecast,
		weather.FeatureCurrent,
		weather.FeatureMinutely,
		weather.FeatureAlert,
		weather.FeatureAirQuality,
	}
}

// IsFeatureSupportedForLocation reports whether f is supported. Coverage
// is global.
func (c *Client) IsFeatureSupportedForLocation(_ *weather.Location, f weather.Feature) bool {
	return slices.Contains(c.SupportedFeatures(), f)
}

// FeaturePriorityForLocation ranks OpenWeatherMap. Alerts are preferred,
// everything else is a middle of the road choice.
func (c *Client) FeaturePriorityForLocation(loc *weather.Location, f weather.Feature) int {
	switch {
	case !c.IsFeatureSupportedForLocation(loc, f):
		return source.PriorityNone
	case f == weather.FeatureAlert:
		return source.PriorityHigh
	default:
		return source.PriorityMedium
	}
}

// RequestWeather fetches the requested features. OneCall serves every
// feature except air quality, which has its own endpoint.
func (c *Client) RequestWeather(ctx context.Context, loc *weather.Location, features []weather.Feature) (*source.Result, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	result := source.NewResult(loc)

	var oneCallFeatures []weather.Feature
	wantAQ := false
	for _, f := range features {
		switch {
		case !c.IsFeatureSupportedForLocation(loc, f):
			result.Fail(f, source.ErrFeatureNotSupported)
		case f == weather.FeatureAirQuality:
			wantAQ = true
		default:
			oneCallFeatures = append(oneCallFeatures, f)
		}
	}

	var (
		g          errgroup.Group
		oneCall    *oneCallResponse
		oneCallErr error
		pollution  *weather.AirQualityData
		aqErr      error
	)
	if len(oneCallFeatures) > 0 {
		g.Go(func() error {
			oneCall, oneCallErr = c.fetchOneCall(ctx, loc, oneCallFeatures)
			return nil
		})
	}
	if wantAQ {
		g.Go(func() error {
			pollution, aqErr = c.fetchAirPollution(ctx, loc)
			return nil
		})
	}
	_ = g.Wait()

	now := time.Now()
	if len(oneCallFeatures) > 0 {
		if oneCallErr != nil {
			for _, f := range oneCallFeatures {
				result.Fail(f, oneCallErr)
			}
		} else {
			partial := oneCall.toWeather(loc)
			for _, f := range oneCallFeatures {
				result.Weather.Merge(f, partial, SourceID, now)
			}
			result.Weather.Location.TimeZone = partial.Location.TimeZone
		}
	}
	if wantAQ {
		switch {
		case aqErr != nil:
			result.Fail(weather.FeatureAirQuality, aqErr)
		case pollution == nil:
			result.Fail(weather.FeatureAirQuality, weather.ErrNoDataForLocation)
		default:
			partial := weather.New(*loc)
			partial.AirQuality = pollution
			result.Weather.Merge(weather.FeatureAirQuality, partial, SourceID, now)
		}
	}

	return result, result.Err(features)
}

func (c *Client) url(base, path string, loc *weather.Location, extra string) string {
	u := fmt.Sprintf("%s%s?lat=%.6f&lon=%.6f&appid=%s&units=metric", base, path, loc.Lat, loc.Lon, c.apiKey)
	if extra != "" {
		u += "&" + extra
	}
	return u
}
