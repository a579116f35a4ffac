package models

import (
	"github.com/breezyweather/breezyd/internal/aggregator"
	"github.com/breezyweather/breezyd/internal/weather"
)

// WeatherResponse is aggregated weather together with how it was served.
type WeatherResponse struct {
	Weather *weather.Weather   `json:"weather"`
	Report  *aggregator.Report `json:"report,omitempty"`
}

// RefreshRequest tunes a manual refresh. An empty body refreshes every
// feature.
type RefreshRequest struct {
	Features             []string `json:"features,omitempty" validate:"omitempty,dive,required"`
	SkipReverseGeocoding bool     `json:"skipReverseGeocoding"`
}

// LocationSearchResults are the matches of a name search.
type LocationSearchResults struct {
	Source string             `json:"source"`
	Items  []weather.Location `json:"items"`
}

// ReverseGeocodingResponse is the place resolved for a point.
type ReverseGeocodingResponse struct {
	Location *weather.Location           `json:"location"`
	Report   *aggregator.GeocodingReport `json:"report,omitempty"`
}
