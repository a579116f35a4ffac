package models

import (
	"github.com/breezyweather/breezyd/internal/airquality"
	"github.com/breezyweather/breezyd/internal/weather"
)

// Station represents an air quality monitoring station.
type Station struct {
	StationID  string                 `json:"stationId"`
	Name       string                 `json:"name"`
	Lat        float64                `json:"lat"`
	Lon        float64                `json:"lon"`
	Pollutants []airquality.Pollutant `json:"pollutants,omitempty"`
	UpdatedAt  Timestamp              `json:"updatedAt"`
}

// PagedStations represents a paginated list of stations.
type PagedStations struct {
	Items []Station         `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}

// Enums represents the enum values used by the API.
type Enums struct {
	Features         []weather.Feature      `json:"features"`
	Conditions       []weather.Condition    `json:"conditions"`
	AlertSeverities  []weather.Severity     `json:"alertSeverities"`
	PollenTypes      []weather.PollenType   `json:"pollenTypes"`
	PollenRiskLevels []weather.RiskLevel    `json:"pollenRiskLevels"`
	Pollutants       []airquality.Pollutant `json:"pollutants"`
	AirQualityBands  []airquality.Category  `json:"airQualityBands"`
	SourcePriorities map[string]int         `json:"sourcePriorities"`
}
