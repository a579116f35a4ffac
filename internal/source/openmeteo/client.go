// Package openmeteo implements the Open-Meteo weather source: forecasts,
// current conditions, nowcast, air quality, pollen, climate normals and
// location search.
package openmeteo

import (
	"context"
	"fmt"
	"strconv"
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
	SourceID = "openmeteo"

	// DefaultBaseURL is the forecast API.
	DefaultBaseURL = "https://api.open-meteo.com/v1"

	// DefaultAirQualityURL is the air quality and pollen API.
	DefaultAirQualityURL = "https://air-quality-api.open-meteo.com/v1"

	// DefaultClimateURL is the climate API used for normals.
	DefaultClimateURL = "https://climate-api.open-meteo.com/v1"

	// DefaultGeocodingURL is the location search API.
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1"
)

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	BaseURL       string
	AirQualityURL string
	ClimateURL    string
	GeocodingURL  string

	// ForecastDays is the number of forecast days (default: 7).
	ForecastDays int

	// HTTPClient is the HTTP client to use. If nil, a resilient client
	// with defaults is created.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client is the Open-Meteo source.
type Client struct {
	baseURL       string
	airQualityURL string
	climateURL    string
	geocodingURL  string
	forecastDays  int
	httpClient    *resilience.Client
	logger        zerolog.Logger
}

// NewClient creates a new Open-Meteo client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(SourceID))
	}

	forecastDays := cfg.ForecastDays
	if forecastDays <= 0 {
		forecastDays = 7
	}

	return &Client{
		baseURL:       orDefault(cfg.BaseURL, DefaultBaseURL),
		airQualityURL: orDefault(cfg.AirQualityURL, DefaultAirQualityURL),
		climateURL:    orDefault(cfg.ClimateURL, DefaultClimateURL),
		geocodingURL:  orDefault(cfg.GeocodingURL, DefaultGeocodingURL),
		forecastDays:  forecastDays,
		httpClient:    httpClient,
		logger:        cfg.Logger,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return strings.TrimSuffix(v, "/")
}

// ID returns the source ID.
func (c *Client) ID() string { return SourceID }

// Name returns the display name.
func (c *Client) Name() string { return "Open-Meteo" }

// SupportedFeatures lists every feature Open-Meteo can serve somewhere.
func (c *Client) SupportedFeatures() []weather.Feature {
	return []weather.Feature{
		weather.FeatureForecast,
		weather.FeatureCurrent,
		weather.FeatureMinutely,
		weather.FeatureAirQuality,
		weather.FeaturePollen,
		weather.FeatureNormals,
	}
}

// IsFeatureSupportedForLocation reports whether f is available at loc.
// Pollen is only modelled for Europe.
func (c *Client) IsFeatureSupportedForLocation(loc *weather.Location, f weather.Feature) bool {
	switch f {
	case weather.FeaturePollen:
		return source.InEurope(loc)
	case weather.FeatureForecast, weather.FeatureCurrent, weather.FeatureMinutely,
		weather.FeatureAirQuality, weather.FeatureNormals:
		return true
	default:
		return false
	}
}

// FeaturePriorityForLocation returns how strongly Open-Meteo should be
// preferred for f at loc.
func (c *Client) FeaturePriorityForLocation(loc *weather.Location, f weather.Feature) int {
	if !c.IsFeatureSupportedForLocation(loc, f) {
		return source.PriorityNone
	}
	switch f {
	case weather.FeatureForecast, weather.FeatureCurrent, weather.FeaturePollen, weather.FeatureNormals:
		return source.PriorityHigh
	default:
		return source.PriorityMedium
	}
}

// SearchPriority ranks Open-Meteo among location search sources.
func (c *Client) SearchPriority() int { return source.PriorityMedium }

// RequestWeather fetches the requested features. The forecast, air quality
// and climate APIs are called concurrently; a failing API only fails the
// features it serves.
func (c *Client) RequestWeather(ctx context.Context, loc *weather.Location, features []weather.Feature) (*source.Result, error) {
	result := source.NewResult(loc)

	var forecastFeatures, aqFeatures, climateFeatures []weather.Feature
	for _, f := range features {
		switch {
		case !c.IsFeatureSupportedForLocation(loc, f):
			result.Fail(f, source.ErrFeatureNotSupported)
		case f == weather.FeatureAirQuality || f == weather.FeaturePollen:
			aqFeatures = append(aqFeatures, f)
		case f == weather.FeatureNormals:
			climateFeatures = append(climateFeatures, f)
		default:
			forecastFeatures = append(forecastFeatures, f)
		}
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	run := func(group []weather.Feature, fetch func(context.Context, *weather.Location, []weather.Feature, *weather.Weather) error) {
		if len(group) == 0 {
			return
		}
		g.Go(func() error {
			partial := weather.New(*loc)
			err := fetch(ctx, loc, group, partial)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.Debug().Err(err).Strs("features", featureNames(group)).Msg("open-meteo request failed")
				for _, f := range group {
					result.Fail(f, err)
				}
				return nil
			}
			for _, f := range group {
				result.Weather.Merge(f, partial, SourceID, time.Now())
			}
			if partial.Location.TimeZone != "" {
				result.Weather.Location.TimeZone = partial.Location.TimeZone
			}
			return nil
		})
	}

	run(forecastFeatures, c.fetchForecast)
	run(aqFeatures, c.fetchAirQuality)
	run(climateFeatures, c.fetchNormals)
	_ = g.Wait()

	return result, result.Err(features)
}

func featureNames(features []weather.Feature) []string {
	out := make([]string, len(features))
	for i, f := range features {
		out[i] = string(f)
	}
	return out
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func wrap(api string, err error) error {
	return fmt.Errorf("open-meteo %s: %w", api, err)
}
