// Package luchtmeetnet exposes the Dutch national air quality network as a
// weather source. Station measurements are interpolated at the location.
package luchtmeetnet

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/breezyweather/breezyd/internal/airquality"
	"github.com/breezyweather/breezyd/internal/source"
	"github.com/breezyweather/breezyd/internal/weather"
)

// SourceID identifies this source.
const SourceID = "luchtmeetnet"

// PointService interpolates the station snapshot at a point.
type PointService interface {
	AtPoint(ctx context.Context, lat, lon float64) (*airquality.PointEstimate, time.Time, error)
}

// Config holds configuration for the source.
type Config struct {
	Service PointService
	Logger  zerolog.Logger
}

// Source serves AIR_QUALITY for locations in the Netherlands.
type Source struct {
	service PointService
	logger  zerolog.Logger
}

// New creates the source.
func New(cfg Config) *Source {
	return &Source{service: cfg.Service, logger: cfg.Logger}
}

// ID returns the source ID.
func (s *Source) ID() string { return SourceID }

// Name returns the display name.
func (s *Source) Name() string { return "Luchtmeetnet" }

// SupportedFeatures lists the features of the source.
func (s *Source) SupportedFeatures() []weather.Feature {
	return []weather.Feature{weather.FeatureAirQuality}
}

// IsFeatureSupportedForLocation reports whether f is served at loc.
func (s *Source) IsFeatureSupportedForLocation(loc *weather.Location, f weather.Feature) bool {
	return f == weather.FeatureAirQuality && source.InNetherlands(loc)
}

// FeaturePriorityForLocation ranks the national network above global models.
func (s *Source) FeaturePriorityForLocation(loc *weather.Location, f weather.Feature) int {
	if !s.IsFeatureSupportedForLocation(loc, f) {
		return source.PriorityNone
	}
	return source.PriorityHighest
}

// RequestWeather interpolates the current station measurements at loc.
func (s *Source) RequestWeather(ctx context.Context, loc *weather.Location, features []weather.Feature) (*source.Result, error) {
	result := source.NewResult(loc)
	for _, f := range features {
		if !s.IsFeatureSupportedForLocation(loc, f) {
			result.Fail(f, source.ErrFeatureNotSupported)
		}
	}
	if !slices.Contains(features, weather.FeatureAirQuality) || !result.Succeeded(weather.FeatureAirQuality) {
		return result, result.Err(features)
	}

	point, measuredAt, err := s.service.AtPoint(ctx, loc.Lat, loc.Lon)
	if err != nil {
		if errors.Is(err, airquality.ErrNoStationsInRange) || errors.Is(err, airquality.ErrInsufficientData) {
			err = fmt.Errorf("%w: %w", weather.ErrNoDataForLocation, err)
		}
		result.Fail(weather.FeatureAirQuality, err)
		return result, result.Err(features)
	}

	s.logger.Debug().
		Float64("lat", loc.Lat).
		Float64("lon", loc.Lon).
		Str("confidence", string(point.Confidence())).
		Int("pollutants", len(point.Pollutants)).
		Msg("estimated air quality from stations")

	aq := toAirQuality(point, measuredAt)
	partial := weather.New(*loc)
	partial.AirQuality = &weather.AirQualityData{Current: aq}
	result.Weather.Merge(weather.FeatureAirQuality, partial, SourceID, time.Now())
	return result, nil
}

func toAirQuality(point *airquality.PointEstimate, measuredAt time.Time) *weather.AirQuality {
	aq := &weather.AirQuality{Time: measuredAt.UTC()}
	for p, v := range point.Concentrations() {
		value := weather.Ptr(v)
		switch p {
		case airquality.PollutantPM25:
			aq.PM25 = value
		case airquality.PollutantPM10:
			aq.PM10 = value
		case airquality.PollutantSO2:
			aq.SO2 = value
		case airquality.PollutantNO2:
			aq.NO2 = value
		case airquality.PollutantO3:
			aq.O3 = value
		case airquality.PollutantCO:
			aq.CO = value
		}
	}
	source.SetAirQualityIndex(aq)
	return aq
}
