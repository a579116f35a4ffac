package openmeteo

import (
	"context"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/breezyweather/breezyd/internal/source"
	"github.com/breezyweather/breezyd/internal/weather"
)

const (
	pollutantVars = "pm10,pm2_5,carbon_monoxide,nitrogen_dioxide,sulphur_dioxide,ozone"
	pollenVars    = "alder_pollen,birch_pollen,grass_pollen,mugwort_pollen,olive_pollen,ragweed_pollen"

	airQualityDays = 4
)

type airQualityResponse struct {
	Timezone string `json:"timezone"`
	Hourly   struct {
		Time    []int64    `json:"time"`
		PM10    []*float64 `json:"pm10"`
		PM25    []*float64 `json:"pm2_5"`
		CO      []*float64 `json:"carbon_monoxide"`
		NO2     []*float64 `json:"nitrogen_dioxide"`
		SO2     []*float64 `json:"sulphur_dioxide"`
		O3      []*float64 `json:"ozone"`
		Alder   []*float64 `json:"alder_pollen"`
		Birch   []*float64 `json:"birch_pollen"`
		Grass   []*float64 `json:"grass_pollen"`
		Mugwort []*float64 `json:"mugwort_pollen"`
		Olive   []*float64 `json:"olive_pollen"`
		Ragweed []*float64 `json:"ragweed_pollen"`
	} `json:"hourly"`
}

// pollenThresholds are the grains/m³ at which the low, moderate, high and
// very high levels start.
var pollenThresholds = map[weather.PollenType][4]float64{
	weather.PollenAlder:   {1, 15, 90, 1500},
	weather.PollenBirch:   {1, 15, 90, 1500},
	weather.PollenOlive:   {1, 15, 90, 1500},
	weather.PollenGrass:   {1, 5, 20, 200},
	weather.PollenMugwort: {1, 10, 50, 500},
	weather.PollenRagweed: {1, 10, 50, 500},
}

func (c *Client) fetchAirQuality(ctx context.Context, loc *weather.Location, features []weather.Feature, out *weather.Weather) error {
	wantAQ := slices.Contains(features, weather.FeatureAirQuality)
	wantPollen := slices.Contains(features, weather.FeaturePollen)

	var vars []string
	if wantAQ {
		vars = append(vars, pollutantVars)
	}
	if wantPollen {
		vars = append(vars, pollenVars)
	}

	q := url.Values{}
	q.Set("latitude", coord(loc.Lat))
	q.Set("longitude", coord(loc.Lon))
	q.Set("timezone", "auto")
	q.Set("timeformat", "unixtime")
	q.Set("forecast_days", strconv.Itoa(airQualityDays))
	q.Set("hourly", strings.Join(vars, ","))

	var resp airQualityResponse
	if err := c.httpClient.GetJSON(ctx, c.airQualityURL+"/air-quality?"+q.Encode(), nil, &resp); err != nil {
		return wrap("air quality", err)
	}

	out.Location.TimeZone = resp.Timezone
	if wantAQ {
		out.AirQuality = toAirQuality(&resp)
	}
	if wantPollen {
		out.Pollen = toPollen(&resp, zoneOf(resp.Timezone))
	}
	return nil
}

func toAirQuality(resp *airQualityResponse) *weather.AirQualityData {
	h := &resp.Hourly
	data := &weather.AirQualityData{Hourly: make([]weather.AirQuality, 0, len(h.Time))}
	for i, ts := range h.Time {
		aq := weather.AirQuality{
			Time: time.Unix(ts, 0).UTC(),
			PM10: at(h.PM10, i),
			PM25: at(h.PM25, i),
			NO2:  at(h.NO2, i),
			SO2:  at(h.SO2, i),
			O3:   at(h.O3, i),
		}
		if co := at(h.CO, i); co != nil {
			aq.CO = weather.Ptr(*co / 1000)
		}
		if aq.IsEmpty() {
			continue
		}
		source.SetAirQualityIndex(&aq)
		data.Hourly = append(data.Hourly, aq)
	}
	if len(data.Hourly) == 0 {
		return nil
	}
	return data
}

// toPollen reduces the hourly concentrations to the daily maximum per type.
func toPollen(resp *airQualityResponse, tz *time.Location) *weather.PollenData {
	h := &resp.Hourly
	series := map[weather.PollenType][]*float64{
		weather.PollenAlder:   h.Alder,
		weather.PollenBirch:   h.Birch,
		weather.PollenGrass:   h.Grass,
		weather.PollenMugwort: h.Mugwort,
		weather.PollenOlive:   h.Olive,
		weather.PollenRagweed: h.Ragweed,
	}

	var days []weather.PollenDay
	index := make(map[time.Time]int)

	for i, ts := range h.Time {
		t := time.Unix(ts, 0).In(tz)
		date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, tz).UTC()

		for pollenType, values := range series {
			v := at(values, i)
			if v == nil {
				continue
			}
			pos, ok := index[date]
			if !ok {
				pos = len(days)
				index[date] = pos
				days = append(days, weather.PollenDay{Date: date, Readings: make(map[weather.PollenType]weather.PollenReading)})
			}
			prev, seen := days[pos].Readings[pollenType]
			if seen && prev.Concentration != nil && *prev.Concentration >= *v {
				continue
			}
			idx := pollenIndex(pollenType, *v)
			days[pos].Readings[pollenType] = weather.PollenReading{
				Concentration: weather.Ptr(*v),
				Index:         idx,
				Risk:          weather.RiskLevelFromIndex(idx),
			}
		}
	}

	if len(days) == 0 {
		return nil
	}
	for i := range days {
		days[i].UpdateOverallRisk()
	}
	return &weather.PollenData{Daily: days}
}

func pollenIndex(t weather.PollenType, concentration float64) float64 {
	levels, ok := pollenThresholds[t]
	if !ok {
		return 0
	}
	idx := 0
	for _, l := range levels {
		if concentration >= l {
			idx++
		}
	}
	return float64(idx)
}

func zoneOf(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	tz, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return tz
}
