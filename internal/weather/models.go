// Package weather holds the normalized weather model every source converts into.
package weather

import (
	"errors"
	"strings"
	"time"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrNoDataForLocation   = errors.New("no weather data for location")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
)

// Location is a place weather is requested for, together with the sources the
// user picked for it.
type Location struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	District    string `json:"district,omitempty"`
	Province    string `json:"province,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`

	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	TimeZone string  `json:"timeZone,omitempty"`

	// IsCurrentPosition marks a location that follows the device position.
	// Its names are refreshed through reverse geocoding.
	IsCurrentPosition bool `json:"isCurrentPosition"`

	// ForecastSource is the source ID used for the FORECAST feature.
	// Empty means the highest priority source is used.
	ForecastSource string `json:"forecastSource,omitempty"`

	// FeatureSources overrides the source used for secondary features.
	FeatureSources map[Feature]string `json:"featureSources,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Validate checks the coordinates of the location.
func (l *Location) Validate() error {
	return ValidateCoordinates(l.Lat, l.Lon)
}

// InCountry reports whether the location's country code is one of codes.
func (l *Location) InCountry(codes ...string) bool {
	for _, c := range codes {
		if strings.EqualFold(l.CountryCode, c) {
			return true
		}
	}
	return false
}

// ConfiguredSource returns the source ID chosen for a feature, if any.
func (l *Location) ConfiguredSource(f Feature) string {
	if f == FeatureForecast {
		return l.ForecastSource
	}
	if l.FeatureSources == nil {
		return ""
	}
	return l.FeatureSources[f]
}

// DisplayName returns the most specific non-empty place name.
func (l *Location) DisplayName() string {
	for _, n := range []string{l.Name, l.District, l.Province, l.Country} {
		if n != "" {
			return n
		}
	}
	return ""
}

// ValidateCoordinates checks if coordinates are valid.
func ValidateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// BoundingBox represents a geographic bounding box.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Contains checks if a point is within the bounding box.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat &&
		lon >= b.MinLon && lon <= b.MaxLon
}

// Center returns the center point of the bounding box.
func (b BoundingBox) Center() (lat, lon float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}

// Condition represents the general weather condition.
type Condition string

const (
	ConditionClear        Condition = "CLEAR"
	ConditionPartlyCloudy Condition = "PARTLY_CLOUDY"
	ConditionCloudy       Condition = "CLOUDY"
	ConditionRain         Condition = "RAIN"
	ConditionSnow         Condition = "SNOW"
	ConditionSleet        Condition = "SLEET"
	ConditionHail         Condition = "HAIL"
	ConditionThunder      Condition = "THUNDER"
	ConditionThunderstorm Condition = "THUNDERSTORM"
	ConditionFog          Condition = "FOG"
	ConditionHaze         Condition = "HAZE"
	ConditionWind         Condition = "WIND"
	ConditionUnknown      Condition = "UNKNOWN"
)

// Current represents the current conditions at a location.
type Current struct {
	Temperature   *float64  `json:"temperature,omitempty"` // Celsius
	FeelsLike     *float64  `json:"feelsLike,omitempty"`
	Humidity      *float64  `json:"humidity,omitempty"` // 0-100
	DewPoint      *float64  `json:"dewPoint,omitempty"`
	Pressure      *float64  `json:"pressure,omitempty"`  // hPa
	WindSpeed     *float64  `json:"windSpeed,omitempty"` // m/s
	WindDirection *float64  `json:"windDirection,omitempty"`
	WindGust      *float64  `json:"windGust,omitempty"`
	UVIndex       *float64  `json:"uvIndex,omitempty"`
	Visibility    *float64  `json:"visibility,omitempty"` // meters
	CloudCover    *float64  `json:"cloudCover,omitempty"` // 0-100
	Condition     Condition `json:"condition"`
	Description   string    `json:"description,omitempty"`
	ObservedAt    time.Time `json:"observedAt"`

	// Derived marks conditions taken from the hourly forecast rather than
	// an observation.
	Derived bool `json:"derived,omitempty"`
}

// HourlyForecast represents weather for a specific hour.
type HourlyForecast struct {
	Time          time.Time `json:"time"`
	Temperature   *float64  `json:"temperature,omitempty"`
	FeelsLike     *float64  `json:"feelsLike,omitempty"`
	Humidity      *float64  `json:"humidity,omitempty"`
	DewPoint      *float64  `json:"dewPoint,omitempty"`
	Pressure      *float64  `json:"pressure,omitempty"`
	WindSpeed     *float64  `json:"windSpeed,omitempty"`
	WindDirection *float64  `json:"windDirection,omitempty"`
	WindGust      *float64  `json:"windGust,omitempty"`
	UVIndex       *float64  `json:"uvIndex,omitempty"`
	Visibility    *float64  `json:"visibility,omitempty"`
	CloudCover    *float64  `json:"cloudCover,omitempty"`
	Precipitation *float64  `json:"precipitation,omitempty"`     // mm
	PrecipProb    *float64  `json:"precipProbability,omitempty"` // 0-100
	Condition     Condition `json:"condition"`
	Description   string    `json:"description,omitempty"`
	IsDaylight    bool      `json:"isDaylight"`
}

// DailyForecast represents weather for one calendar day in the location's zone.
type DailyForecast struct {
	Date           time.Time  `json:"date"`
	TempMax        *float64   `json:"tempMax,omitempty"`
	TempMin        *float64   `json:"tempMin,omitempty"`
	Precipitation  *float64   `json:"precipitation,omitempty"`
	PrecipProb     *float64   `json:"precipProbability,omitempty"`
	WindSpeed      *float64   `json:"windSpeed,omitempty"`
	UVIndex        *float64   `json:"uvIndex,omitempty"`
	Sunrise        *time.Time `json:"sunrise,omitempty"`
	Sunset         *time.Time `json:"sunset,omitempty"`
	DayCondition   Condition  `json:"dayCondition"`
	NightCondition Condition  `json:"nightCondition"`
	Summary        string     `json:"summary,omitempty"`
}

// Minutely is one interval of the short term precipitation nowcast.
type Minutely struct {
	Time          time.Time     `json:"time"`
	Interval      time.Duration `json:"interval"`
	Precipitation *float64      `json:"precipitation,omitempty"` // mm/h
}

// Normals are the climate normals for the month of the forecast.
type Normals struct {
	Month        time.Month `json:"month"`
	DaytimeMax   float64    `json:"daytimeMax"`
	NighttimeMin float64    `json:"nighttimeMin"`
}

// Ptr returns a pointer to v. Converters use it for optional fields.
func Ptr[T any](v T) *T {
	return &v
}
