package weather

import "time"

// AirQuality holds pollutant concentrations at a point in time.
// Concentrations are µg/m³ except CO which is mg/m³.
type AirQuality struct {
	Time  time.Time `json:"time"`
	PM25  *float64  `json:"pm25,omitempty"`
	PM10  *float64  `json:"pm10,omitempty"`
	SO2   *float64  `json:"so2,omitempty"`
	NO2   *float64  `json:"no2,omitempty"`
	O3    *float64  `json:"o3,omitempty"`
	CO    *float64  `json:"co,omitempty"`
	Index *float64  `json:"index,omitempty"`
}

// IsEmpty reports whether no pollutant is set.
func (a *AirQuality) IsEmpty() bool {
	return a.PM25 == nil && a.PM10 == nil && a.SO2 == nil &&
		a.NO2 == nil && a.O3 == nil && a.CO == nil
}

// AirQualityData is the air quality feature of a Weather.
type AirQualityData struct {
	Current *AirQuality  `json:"current,omitempty"`
	Hourly  []AirQuality `json:"hourly,omitempty"`
}
