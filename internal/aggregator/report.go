package aggregator

import (
	"sort"
	"time"

	"github.com/breezyweather/breezyd/internal/weather"
)

// Report describes how a refresh was served.
type Report struct {
	LocationID string `json:"locationId,omitempty"`

	// Features holds the outcome per requested feature.
	Features map[weather.Feature]*FeatureReport `json:"features"`

	// ReverseGeocoding is set when a name lookup was attempted.
	ReverseGeocoding *GeocodingReport `json:"reverseGeocoding,omitempty"`

	// CachedOnly is set when stored weather was returned without
	// contacting any source.
	CachedOnly bool `json:"cachedOnly"`

	Rounds     int   `json:"rounds"`
	DurationMs int64 `json:"durationMs"`
}

// FeatureReport is the outcome of one feature.
type FeatureReport struct {
	// Source supplied the data, empty when the feature is missing.
	Source string `json:"source,omitempty"`

	// Stale marks data carried over from the previous refresh.
	Stale bool `json:"stale"`

	// Derived marks data computed from another feature, such as current
	// conditions taken from the hourly forecast.
	Derived bool `json:"derived,omitempty"`

	// Attempts lists the sources tried, in order.
	Attempts []string `json:"attempts,omitempty"`

	// Error is the last error when the feature is missing or stale.
	Error string `json:"error,omitempty"`
}

// GeocodingReport is the outcome of reverse geocoding.
type GeocodingReport struct {
	Source   string   `json:"source,omitempty"`
	Attempts []string `json:"attempts,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func newReport(locationID string) *Report {
	return &Report{
		LocationID: locationID,
		Features:   make(map[weather.Feature]*FeatureReport),
	}
}

func (r *Report) feature(f weather.Feature) *FeatureReport {
	fr, ok := r.Features[f]
	if !ok {
		fr = &FeatureReport{}
		r.Features[f] = fr
	}
	return fr
}

// Missing lists the requested features that could not be served, sorted.
func (r *Report) Missing() []weather.Feature {
	var out []weather.Feature
	for f, fr := range r.Features {
		if fr.Source == "" {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// StaleFeatures lists the features served from previous data, sorted.
func (r *Report) StaleFeatures() []weather.Feature {
	var out []weather.Feature
	for f, fr := range r.Features {
		if fr.Stale {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// markDerived reports the requested features that w filled in from other
// data after every source was tried.
func (r *Report) markDerived(w *weather.Weather, features []weather.Feature) {
	for _, f := range features {
		fr, ok := r.Features[f]
		if !ok || fr.Source != "" || !w.HasFeature(f) {
			continue
		}
		fr.Source = w.Sources[f]
		fr.Derived = true
	}
}

func (r *Report) finish(start time.Time) {
	r.DurationMs = time.Since(start).Milliseconds()
}
