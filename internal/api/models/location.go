package models

import "github.com/breezyweather/breezyd/internal/weather"

// LocationCreateRequest is the request body for saving a location.
type LocationCreateRequest struct {
	Name              string            `json:"name" validate:"max=120"`
	District          string            `json:"district,omitempty" validate:"max=120"`
	Province          string            `json:"province,omitempty" validate:"max=120"`
	Country           string            `json:"country,omitempty" validate:"max=120"`
	CountryCode       string            `json:"countryCode,omitempty" validate:"omitempty,len=2,alpha"`
	Lat               *float64          `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon               *float64          `json:"lon" validate:"required,gte=-180,lte=180"`
	TimeZone          string            `json:"timeZone,omitempty" validate:"omitempty,timezone"`
	IsCurrentPosition bool              `json:"isCurrentPosition"`
	ForecastSource    string            `json:"forecastSource,omitempty"`
	FeatureSources    map[string]string `json:"featureSources,omitempty" validate:"omitempty,dive,keys,required,endkeys,required,max=64"`
}

// LocationUpdateRequest is the request body for updating a location.
// Absent fields are left unchanged. An empty source ID clears the override.
type LocationUpdateRequest struct {
	Name           *string           `json:"name,omitempty" validate:"omitempty,max=120"`
	District       *string           `json:"district,omitempty" validate:"omitempty,max=120"`
	Province       *string           `json:"province,omitempty" validate:"omitempty,max=120"`
	Country        *string           `json:"country,omitempty" validate:"omitempty,max=120"`
	CountryCode    *string           `json:"countryCode,omitempty" validate:"omitempty,len=2,alpha"`
	Lat            *float64          `json:"lat,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Lon            *float64          `json:"lon,omitempty" validate:"omitempty,gte=-180,lte=180"`
	TimeZone       *string           `json:"timeZone,omitempty" validate:"omitempty,timezone"`
	ForecastSource *string           `json:"forecastSource,omitempty"`
	FeatureSources map[string]string `json:"featureSources,omitempty" validate:"omitempty,dive,keys,required,endkeys,max=64"`
}

// CurrentPositionRequest moves the current position location.
type CurrentPositionRequest struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
}

// PagedLocations represents a paginated list of locations.
type PagedLocations struct {
	Items []*weather.Location `json:"items"`
	Meta  PagedResponseMeta   `json:"meta"`
}
