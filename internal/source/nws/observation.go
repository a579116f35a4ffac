package nws

import (
	"context"
	"fmt"
	"time"

	"github.com/breezyweather/breezyd/internal/weather"
)

type stationsResponse struct {
	Features []struct {
		Properties struct {
			StationIdentifier string `json:"stationIdentifier"`
		} `json:"properties"`
	} `json:"features"`
}

type observationResponse struct {
	Properties struct {
		Timestamp          time.Time `json:"timestamp"`
		TextDescription    string    `json:"textDescription"`
		Temperature        quantity  `json:"temperature"`
		Dewpoint           quantity  `json:"dewpoint"`
		WindDirection      quantity  `json:"windDirection"`
		WindSpeed          quantity  `json:"windSpeed"` // km/h
		WindGust           quantity  `json:"windGust"`  // km/h
		BarometricPressure quantity  `json:"barometricPressure"`
		Visibility         quantity  `json:"visibility"`
		RelativeHumidity   quantity  `json:"relativeHumidity"`
		HeatIndex          quantity  `json:"heatIndex"`
		WindChill          quantity  `json:"windChill"`
	} `json:"properties"`
}

// fetchCurrent reads the latest observation of the nearest station.
func (c *Client) fetchCurrent(ctx context.Context, p *point) (*weather.Current, error) {
	if p.ObservationStations == "" {
		return nil, fmt.Errorf("fetching observation: %w", weather.ErrNoDataForLocation)
	}

	var stations stationsResponse
	if err := c.getJSON(ctx, p.ObservationStations, &stations); err != nil {
		return nil, fmt.Errorf("fetching stations: %w", err)
	}
	if len(stations.Features) == 0 {
		return nil, fmt.Errorf("fetching stations: %w", weather.ErrNoDataForLocation)
	}
	id := stations.Features[0].Properties.StationIdentifier

	var obs observationResponse
	if err := c.getJSON(ctx, c.baseURL+"/stations/"+id+"/observations/latest", &obs); err != nil {
		return nil, fmt.Errorf("fetching observation of %s: %w", id, err)
	}

	props := obs.Properties
	if props.Temperature.Value == nil {
		return nil, fmt.Errorf("observation of %s has no temperature: %w", id, weather.ErrNoDataForLocation)
	}

	feelsLike := props.HeatIndex.Value
	if feelsLike == nil {
		feelsLike = props.WindChill.Value
	}

	return &weather.Current{
		Temperature:   props.Temperature.Value,
		FeelsLike:     feelsLike,
		Humidity:      props.RelativeHumidity.Value,
		DewPoint:      props.Dewpoint.Value,
		Pressure:      scale(props.BarometricPressure.Value, 0.01), // Pa to hPa
		WindSpeed:     scale(props.WindSpeed.Value, 1/3.6),
		WindDirection: props.WindDirection.Value,
		WindGust:      scale(props.WindGust.Value, 1/3.6),
		Visibility:    props.Visibility.Value,
		Condition:     conditionFromText(props.TextDescription),
		Description:   props.TextDescription,
		ObservedAt:    props.Timestamp.UTC(),
	}, nil
}

func scale(v *float64, factor float64) *float64 {
	if v == nil {
		return nil
	}
	return weather.Ptr(*v * factor)
}
