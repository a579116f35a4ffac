package nws

import (
	"context"
	"fmt"
	"time"

	"github.com/breezyweather/breezyd/internal/weather"
)

// point is the forecast office grid cell covering a coordinate.
type point struct {
	Forecast            string
	ForecastHourly      string
	ObservationStations string
	TimeZone            string
}

type pointResponse struct {
	Properties struct {
		Forecast            string `json:"forecast"`
		ForecastHourly      string `json:"forecastHourly"`
		ObservationStations string `json:"observationStations"`
		TimeZone            string `json:"timeZone"`
	} `json:"properties"`
}

// resolvePoint looks up the grid point of loc, reusing earlier lookups.
func (c *Client) resolvePoint(ctx context.Context, loc *weather.Location) (*point, error) {
	key := fmt.Sprintf("%.4f,%.4f", loc.Lat, loc.Lon)

	c.mu.Lock()
	cached, ok := c.points[key]
	c.mu.Unlock()
	if ok && time.Now().Before(cached.expires) {
		return cached.point, nil
	}

	var resp pointResponse
	if err := c.getJSON(ctx, c.baseURL+"/points/"+key, &resp); err != nil {
		return nil, fmt.Errorf("resolving point: %w", err)
	}
	if resp.Properties.Forecast == "" || resp.Properties.ForecastHourly == "" {
		return nil, fmt.Errorf("resolving point %s: %w", key, weather.ErrNoDataForLocation)
	}

	p := &point{
		Forecast:            resp.Properties.Forecast,
		ForecastHourly:      resp.Properties.ForecastHourly,
		ObservationStations: resp.Properties.ObservationStations,
		TimeZone:            resp.Properties.TimeZone,
	}

	c.mu.Lock()
	c.points[key] = cachedPoint{point: p, expires: time.Now().Add(pointTTL)}
	c.mu.Unlock()

	return p, nil
}
