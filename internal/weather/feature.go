package weather

import "fmt"

// Feature is a kind of data a source can provide for a location.
type Feature string

const (
	FeatureForecast         Feature = "FORECAST"
	FeatureCurrent          Feature = "CURRENT"
	FeatureAirQuality       Feature = "AIR_QUALITY"
	FeaturePollen           Feature = "POLLEN"
	FeatureMinutely         Feature = "MINUTELY"
	FeatureAlert            Feature = "ALERT"
	FeatureNormals          Feature = "NORMALS"
	FeatureReverseGeocoding Feature = "REVERSE_GEOCODING"
)

// AllWeatherFeatures returns the features that make up a Weather, FORECAST first.
func AllWeatherFeatures() []Feature {
	return []Feature{
		FeatureForecast,
		FeatureCurrent,
		FeatureAirQuality,
		FeaturePollen,
		FeatureMinutely,
		FeatureAlert,
		FeatureNormals,
	}
}

// IsWeatherFeature reports whether f is part of a Weather.
func (f Feature) IsWeatherFeature() bool {
	for _, wf := range AllWeatherFeatures() {
		if wf == f {
			return true
		}
	}
	return false
}

// ParseFeature parses a feature name.
func ParseFeature(s string) (Feature, error) {
	f := Feature(s)
	if f.IsWeatherFeature() || f == FeatureReverseGeocoding {
		return f, nil
	}
	return "", fmt.Errorf("unknown feature %q", s)
}
