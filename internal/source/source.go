// Package source defines what a weather source can do and keeps the registry
// used to pick sources per location and feature.
package source

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/breezyweather/breezyd/internal/weather"
)

// Feature priorities. A higher value wins when several sources support the
// same feature for a location.
const (
	PriorityHighest = 100
	PriorityHigh    = 75
	PriorityMedium  = 50
	PriorityLow     = 25

	// PriorityNone marks a feature that is supported but never preferred.
	// Such a source is only used as a fallback or when explicitly configured.
	PriorityNone = 0
)

// Source is anything the registry knows about.
type Source interface {
	ID() string
	Name() string
}

// FeatureSource advertises features and how well it serves them per location.
type FeatureSource interface {
	Source
	SupportedFeatures() []weather.Feature
	IsFeatureSupportedForLocation(loc *weather.Location, f weather.Feature) bool
	FeaturePriorityForLocation(loc *weather.Location, f weather.Feature) int
}

// WeatherSource fetches weather features for a location.
type WeatherSource interface {
	FeatureSource

	// RequestWeather fetches the given features. Features that could not be
	// fetched while others succeeded are listed in Result.FailedFeatures;
	// an error means nothing usable was fetched.
	RequestWeather(ctx context.Context, loc *weather.Location, features []weather.Feature) (*Result, error)
}

// ReverseGeocodingSource resolves coordinates to place names.
type ReverseGeocodingSource interface {
	FeatureSource
	ReverseGeocode(ctx context.Context, loc *weather.Location) (*weather.Location, error)
}

// LocationSearchSource finds locations by name.
type LocationSearchSource interface {
	Source
	SearchLocations(ctx context.Context, query, lang string) ([]weather.Location, error)
	SearchPriority() int
}

// ConfigurableSource is implemented by sources that need credentials.
// Unconfigured sources are skipped.
type ConfigurableSource interface {
	IsConfigured() bool
}

// Result is the partial weather a source returned.
type Result struct {
	Weather        *weather.Weather
	FailedFeatures map[weather.Feature]error
}

// NewResult returns an empty result for loc.
func NewResult(loc *weather.Location) *Result {
	return &Result{
		Weather:        weather.New(*loc),
		FailedFeatures: make(map[weather.Feature]error),
	}
}

// Fail records err for f.
func (r *Result) Fail(f weather.Feature, err error) {
	if r.FailedFeatures == nil {
		r.FailedFeatures = make(map[weather.Feature]error)
	}
	r.FailedFeatures[f] = err
}

// Succeeded reports whether f was requested and did not fail.
func (r *Result) Succeeded(f weather.Feature) bool {
	_, failed := r.FailedFeatures[f]
	return !failed
}

// Supports reports whether src lists f among its features.
func Supports(src FeatureSource, f weather.Feature) bool {
	return slices.Contains(src.SupportedFeatures(), f)
}

// Err returns an error when every feature in features failed, nil otherwise.
func (r *Result) Err(features []weather.Feature) error {
	errs := make([]error, 0, len(features))
	for _, f := range features {
		err, failed := r.FailedFeatures[f]
		if !failed {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", f, err))
	}
	return errors.Join(errs...)
}
