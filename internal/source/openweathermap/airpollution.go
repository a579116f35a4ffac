package openweathermap

import (
	"context"
	"fmt"

	"github.com/breezyweather/breezyd/internal/source"
	"github.com/breezyweather/breezyd/internal/weather"
)

type airPollutionResponse struct {
	List []struct {
		Dt         int64 `json:"dt"`
		Components struct {
			CO   float64 `json:"co"`
			NO2  float64 `json:"no2"`
			O3   float64 `json:"o3"`
			SO2  float64 `json:"so2"`
			PM25 float64 `json:"pm2_5"`
			PM10 float64 `json:"pm10"`
		} `json:"components"`
	} `json:"list"`
}

// fetchAirPollution returns the hourly air pollution forecast. Returns nil
// data when the list is empty.
func (c *Client) fetchAirPollution(ctx context.Context, loc *weather.Location) (*weather.AirQualityData, error) {
	var resp airPollutionResponse
	if err := c.httpClient.GetJSON(ctx, c.url(c.baseURL, "/air_pollution/forecast", loc, ""), nil, &resp); err != nil {
		return nil, fmt.Errorf("openweathermap air pollution: %w", err)
	}
	if len(resp.List) == 0 {
		return nil, nil
	}

	data := &weather.AirQualityData{Hourly: make([]weather.AirQuality, 0, len(resp.List))}
	for _, item := range resp.List {
		comp := item.Components
		aq := weather.AirQuality{
			Time: unix(item.Dt),
			PM25: weather.Ptr(comp.PM25),
			PM10: weather.Ptr(comp.PM10),
			SO2:  weather.Ptr(comp.SO2),
			NO2:  weather.Ptr(comp.NO2),
			O3:   weather.Ptr(comp.O3),
			CO:   weather.Ptr(comp.CO / 1000),
		}
		source.SetAirQualityIndex(&aq)
		data.Hourly = append(data.Hourly, aq)
	}
	return data, nil
}
