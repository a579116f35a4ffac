package openmeteo

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/breezyweather/breezyd/internal/weather"
)

const (
	currentVars = "temperature_2m,apparent_temperature,relative_humidity_2m,dew_point_2m,pressure_msl," +
		"wind_speed_10m,wind_direction_10m,wind_gusts_10m,uv_index,visibility,cloud_cover,weather_code"
	hourlyVars = currentVars + ",precipitation,precipitation_probability,is_day"
	dailyVars  = "weather_code,temperature_2m_max,temperature_2m_min,precipitation_sum," +
		"precipitation_probability_max,wind_speed_10m_max,uv_index_max,sunrise,sunset"

	// minutelySteps covers the next two hours.
	minutelySteps = 8
)

type forecastResponse struct {
	Timezone string `json:"timezone"`

	Current *struct {
		Time int64 `json:"time"`
		instant
	} `json:"current"`

	Hourly struct {
		Time                []int64    `json:"time"`
		Temperature         []*float64 `json:"temperature_2m"`
		ApparentTemperature []*float64 `json:"apparent_temperature"`
		RelativeHumidity    []*float64 `json:"relative_humidity_2m"`
		DewPoint            []*float64 `json:"dew_point_2m"`
		Pressure            []*float64 `json:"pressure_msl"`
		WindSpeed           []*float64 `json:"wind_speed_10m"`
		WindDirection       []*float64 `json:"wind_direction_10m"`
		WindGusts           []*float64 `json:"wind_gusts_10m"`
		UVIndex             []*float64 `json:"uv_index"`
		Visibility          []*float64 `json:"visibility"`
		CloudCover          []*float64 `json:"cloud_cover"`
		WeatherCode         []*int     `json:"weather_code"`
		Precipitation       []*float64 `json:"precipitation"`
		PrecipProbability   []*float64 `json:"precipitation_probability"`
		IsDay               []*int     `json:"is_day"`
	} `json:"hourly"`

	Daily struct {
		Time              []int64    `json:"time"`
		WeatherCode       []*int     `json:"weather_code"`
		TempMax           []*float64 `json:"temperature_2m_max"`
		TempMin           []*float64 `json:"temperature_2m_min"`
		PrecipitationSum  []*float64 `json:"precipitation_sum"`
		PrecipProbability []*float64 `json:"precipitation_probability_max"`
		WindSpeedMax      []*float64 `json:"wind_speed_10m_max"`
		UVIndexMax        []*float64 `json:"uv_index_max"`
		Sunrise           []int64    `json:"sunrise"`
		Sunset            []int64    `json:"sunset"`
	} `json:"daily"`

	Minutely15 struct {
		Time          []int64    `json:"time"`
		Precipitation []*float64 `json:"precipitation"`
	} `json:"minutely_15"`
}

type instant struct {
	Temperature         *float64 `json:"temperature_2m"`
	ApparentTemperature *float64 `json:"apparent_temperature"`
	RelativeHumidity    *float64 `json:"relative_humidity_2m"`
	DewPoint            *float64 `json:"dew_point_2m"`
	Pressure            *float64 `json:"pressure_msl"`
	WindSpeed           *float64 `json:"wind_speed_10m"`
	WindDirection       *float64 `json:"wind_direction_10m"`
	WindGusts           *float64 `json:"wind_gusts_10m"`
	UVIndex             *float64 `json:"uv_index"`
	Visibility          *float64 `json:"visibility"`
	CloudCover          *float64 `json:"cloud_cover"`
	WeatherCode         *int     `json:"weather_code"`
}

func (c *Client) fetchForecast(ctx context.Context, loc *weather.Location, features []weather.Feature, out *weather.Weather) error {
	q := url.Values{}
	q.Set("latitude", coord(loc.Lat))
	q.Set("longitude", coord(loc.Lon))
	q.Set("timezone", "auto")
	q.Set("timeformat", "unixtime")
	q.Set("wind_speed_unit", "ms")

	for _, f := range features {
		switch f {
		case weather.FeatureCurrent:
			q.Set("current", currentVars)
		case weather.FeatureForecast:
			q.Set("hourly", hourlyVars)
			q.Set("daily", dailyVars)
			q.Set("forecast_days", strconv.Itoa(c.forecastDays))
		case weather.FeatureMinutely:
			q.Set("minutely_15", "precipitation")
			q.Set("forecast_minutely_15", strconv.Itoa(minutelySteps))
		}
	}

	var resp forecastResponse
	if err := c.httpClient.GetJSON(ctx, c.baseURL+"/forecast?"+q.Encode(), nil, &resp); err != nil {
		return wrap("forecast", err)
	}

	out.Location.TimeZone = resp.Timezone
	out.Current = toCurrent(&resp)
	out.Hourly = toHourly(&resp)
	out.Daily = toDaily(&resp)
	out.Minutely = toMinutely(&resp)
	return nil
}

func toCurrent(resp *forecastResponse) *weather.Current {
	if resp.Current == nil {
		return nil
	}
	cur := resp.Current
	condition, description := conditionPtr(cur.WeatherCode)
	return &weather.Current{
		Temperature:   cur.Temperature,
		FeelsLike:     cur.ApparentTemperature,
		Humidity:      cur.RelativeHumidity,
		DewPoint:      cur.DewPoint,
		Pressure:      cur.Pressure,
		WindSpeed:     cur.WindSpeed,
		WindDirection: cur.WindDirection,
		WindGust:      cur.WindGusts,
		UVIndex:       cur.UVIndex,
		Visibility:    cur.Visibility,
		CloudCover:    cur.CloudCover,
		Condition:     condition,
		Description:   description,
		ObservedAt:    time.Unix(cur.Time, 0).UTC(),
	}
}

func toHourly(resp *forecastResponse) []weather.HourlyForecast {
	h := &resp.Hourly
	if len(h.Time) == 0 {
		return nil
	}
	out := make([]weather.HourlyForecast, 0, len(h.Time))
	for i, ts := range h.Time {
		condition, description := conditionPtr(at(h.WeatherCode, i))
		isDay := at(h.IsDay, i)
		out = append(out, weather.HourlyForecast{
			Time:          time.Unix(ts, 0).UTC(),
			Temperature:   at(h.Temperature, i),
			FeelsLike:     at(h.ApparentTemperature, i),
			Humidity:      at(h.RelativeHumidity, i),
			DewPoint:      at(h.DewPoint, i),
			Pressure:      at(h.Pressure, i),
			WindSpeed:     at(h.WindSpeed, i),
			WindDirection: at(h.WindDirection, i),
			WindGust:      at(h.WindGusts, i),
			UVIndex:       at(h.UVIndex, i),
			Visibility:    at(h.Visibility, i),
			CloudCover:    at(h.CloudCover, i),
			Precipitation: at(h.Precipitation, i),
			PrecipProb:    at(h.PrecipProbability, i),
			Condition:     condition,
			Description:   description,
			IsDaylight:    isDay != nil && *isDay == 1,
		})
	}
	return out
}

func toDaily(resp *forecastResponse) []weather.DailyForecast {
	d := &resp.Daily
	if len(d.Time) == 0 {
		return nil
	}
	out := make([]weather.DailyForecast, 0, len(d.Time))
	for i, ts := range d.Time {
		condition, description := conditionPtr(at(d.WeatherCode, i))
		day := weather.DailyForecast{
			Date:           time.Unix(ts, 0).UTC(),
			TempMax:        at(d.TempMax, i),
			TempMin:        at(d.TempMin, i),
			Precipitation:  at(d.PrecipitationSum, i),
			PrecipProb:     at(d.PrecipProbability, i),
			WindSpeed:      at(d.WindSpeedMax, i),
			UVIndex:        at(d.UVIndexMax, i),
			DayCondition:   condition,
			NightCondition: condition,
			Summary:        description,
		}
		if ts := at(d.Sunrise, i); ts != 0 {
			day.Sunrise = weather.Ptr(time.Unix(ts, 0).UTC())
		}
		if ts := at(d.Sunset, i); ts != 0 {
			day.Sunset = weather.Ptr(time.Unix(ts, 0).UTC())
		}
		out = append(out, day)
	}
	return out
}

func toMinutely(resp *forecastResponse) []weather.Minutely {
	m := &resp.Minutely15
	if len(m.Time) == 0 {
		return nil
	}
	out := make([]weather.Minutely, 0, len(m.Time))
	for i, ts := range m.Time {
		entry := weather.Minutely{
			Time:     time.Unix(ts, 0).UTC(),
			Interval: 15 * time.Minute,
		}
		// mm per 15 minutes to mm/h.
		if p := at(m.Precipitation, i); p != nil {
			entry.Precipitation = weather.Ptr(*p * 4)
		}
		out = append(out, entry)
	}
	return out
}

// at returns s[i] or the zero value when s is too short.
func at[T any](s []T, i int) T {
	var zero T
	if i < 0 || i >= len(s) {
		return zero
	}
	return s[i]
}
