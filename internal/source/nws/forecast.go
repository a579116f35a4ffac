package nws

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/breezyweather/breezyd/internal/weather"
)

type quantity struct {
	Value *float64 `json:"value"`
}

type period struct {
	StartTime                  time.Time `json:"startTime"`
	EndTime                    time.Time `json:"endTime"`
	IsDaytime                  bool      `json:"isDaytime"`
	Temperature                *float64  `json:"temperature"`
	ProbabilityOfPrecipitation quantity  `json:"probabilityOfPrecipitation"`
	Dewpoint                   quantity  `json:"dewpoint"`
	RelativeHumidity           quantity  `json:"relativeHumidity"`
	WindSpeed                  string    `json:"windSpeed"`
	WindDirection              string    `json:"windDirection"`
	ShortForecast              string    `json:"shortForecast"`
	DetailedForecast           string    `json:"detailedForecast"`
}

type forecastResponse struct {
	Properties struct {
		Periods []period `json:"periods"`
	} `json:"properties"`
}

// fetchForecast loads the hourly and the twelve hour forecasts.
func (c *Client) fetchForecast(ctx context.Context, p *point) ([]weather.HourlyForecast, []weather.DailyForecast, error) {
	var hourlyResp, dailyResp forecastResponse

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.getJSON(gctx, withSI(p.ForecastHourly), &hourlyResp)
	})
	g.Go(func() error {
		return c.getJSON(gctx, withSI(p.Forecast), &dailyResp)
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("fetching forecast: %w", err)
	}

	hourly := toHourly(hourlyResp.Properties.Periods)
	daily := toDaily(dailyResp.Properties.Periods, zoneOf(p.TimeZone))
	if len(hourly) == 0 && len(daily) == 0 {
		return nil, nil, fmt.Errorf("fetching forecast: %w", weather.ErrNoDataForLocation)
	}
	return hourly, daily, nil
}

func withSI(u string) string {
	if strings.Contains(u, "?") {
		return u + "&units=si"
	}
	return u + "?units=si"
}

func toHourly(periods []period) []weather.HourlyForecast {
	out := make([]weather.HourlyForecast, 0, len(periods))
	for _, p := range periods {
		cond := conditionFromText(p.ShortForecast)
		out = append(out, weather.HourlyForecast{
			Time:          p.StartTime.UTC(),
			Temperature:   p.Temperature,
			Humidity:      p.RelativeHumidity.Value,
			DewPoint:      p.Dewpoint.Value,
			WindSpeed:     parseWindSpeed(p.WindSpeed),
			WindDirection: compassDegrees(p.WindDirection),
			PrecipProb:    p.ProbabilityOfPrecipitation.Value,
			Condition:     cond,
			Description:   p.ShortForecast,
			IsDaylight:    p.IsDaytime,
		})
	}
	return out
}

// toDaily folds day and night periods into calendar days of tz.
func toDaily(periods []period, tz *time.Location) []weather.DailyForecast {
	var out []weather.DailyForecast
	index := make(map[time.Time]int)

	for _, p := range periods {
		start := p.StartTime.In(tz)
		if !p.IsDaytime && start.Hour() < 6 {
			// "Overnight" periods belong to the previous evening.
			start = start.AddDate(0, 0, -1)
		}
		date := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, tz).UTC()

		i, ok := index[date]
		if !ok {
			i = len(out)
			index[date] = i
			out = append(out, weather.DailyForecast{
				Date:           date,
				DayCondition:   weather.ConditionUnknown,
				NightCondition: weather.ConditionUnknown,
			})
		}
		day := &out[i]

		cond := conditionFromText(p.ShortForecast)
		if p.IsDaytime {
			day.TempMax = p.Temperature
			day.DayCondition = cond
			day.Summary = p.DetailedForecast
			day.WindSpeed = parseWindSpeed(p.WindSpeed)
		} else {
			day.TempMin = p.Temperature
			day.NightCondition = cond
			if day.Summary == "" {
				day.Summary = p.DetailedForecast
			}
		}
		if v := p.ProbabilityOfPrecipitation.Value; v != nil && (day.PrecipProb == nil || *v > *day.PrecipProb) {
			day.PrecipProb = v
		}
	}
	return out
}

// parseWindSpeed reads "10 km/h" or "5 to 10 km/h" and returns the upper
// value in m/s.
func parseWindSpeed(s string) *float64 {
	fields := strings.Fields(s)
	var speed *float64
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			continue
		}
		speed = &v
	}
	if speed == nil {
		return nil
	}
	if strings.Contains(s, "mph") {
		return weather.Ptr(*speed * 0.44704)
	}
	return weather.Ptr(*speed / 3.6)
}

var compass = []string{"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE", "S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW"}

func compassDegrees(dir string) *float64 {
	for i, c := range compass {
		if c == dir {
			return weather.Ptr(float64(i) * 22.5)
		}
	}
	return nil
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
