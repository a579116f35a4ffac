package openmeteo

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/breezyweather/breezyd/internal/weather"
)

const (
	normalsStart = "1991-01-01"
	normalsEnd   = "2020-12-31"
	normalsModel = "EC_Earth3P_HR"
)

var errNoNormals = errors.New("no climate data for month")

type climateResponse struct {
	Daily struct {
		Time    []string   `json:"time"`
		TempMax []*float64 `json:"temperature_2m_max"`
		TempMin []*float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

// fetchNormals averages the 1991-2020 daily extremes of the current month.
func (c *Client) fetchNormals(ctx context.Context, loc *weather.Location, _ []weather.Feature, out *weather.Weather) error {
	q := url.Values{}
	q.Set("latitude", coord(loc.Lat))
	q.Set("longitude", coord(loc.Lon))
	q.Set("start_date", normalsStart)
	q.Set("end_date", normalsEnd)
	q.Set("models", normalsModel)
	q.Set("daily", "temperature_2m_max,temperature_2m_min")

	var resp climateResponse
	if err := c.httpClient.GetJSON(ctx, c.climateURL+"/climate?"+q.Encode(), nil, &resp); err != nil {
		return wrap("climate", err)
	}

	normals, err := monthNormals(&resp, time.Now().In(zoneOf(loc.TimeZone)).Month())
	if err != nil {
		return wrap("climate", err)
	}
	out.Normals = normals
	return nil
}

func monthNormals(resp *climateResponse, month time.Month) (*weather.Normals, error) {
	var sumMax, sumMin float64
	var nMax, nMin int

	for i, day := range resp.Daily.Time {
		d, err := time.Parse(time.DateOnly, day)
		if err != nil || d.Month() != month {
			continue
		}
		if v := at(resp.Daily.TempMax, i); v != nil {
			sumMax += *v
			nMax++
		}
		if v := at(resp.Daily.TempMin, i); v != nil {
			sumMin += *v
			nMin++
		}
	}

	if nMax == 0 || nMin == 0 {
		return nil, errNoNormals
	}
	return &weather.Normals{
		Month:        month,
		DaytimeMax:   sumMax / float64(nMax),
		NighttimeMin: sumMin / float64(nMin),
	}, nil
}
