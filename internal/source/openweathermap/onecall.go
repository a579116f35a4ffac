package openweathermap

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/breezyweather/breezyd/internal/weather"
)

// exclusions maps OneCall blocks to the feature that needs them.
var exclusions = []struct {
	block   string
	feature weather.Feature
}{
	{"current", weather.FeatureCurrent},
	{"minutely", weather.FeatureMinutely},
	{"hourly", weather.FeatureForecast},
	{"daily", weather.FeatureForecast},
	{"alerts", weather.FeatureAlert},
}

func (c *Client) fetchOneCall(ctx context.Context, loc *weather.Location, features []weather.Feature) (*oneCallResponse, error) {
	var exclude []string
	for _, e := range exclusions {
		if !slices.Contains(features, e.feature) {
			exclude = append(exclude, e.block)
		}
	}

	extra := ""
	if len(exclude) > 0 {
		extra = "exclude=" + strings.Join(exclude, ",")
	}

	var resp oneCallResponse
	if err := c.httpClient.GetJSON(ctx, c.url(c.oneCallURL, "", loc, extra), nil, &resp); err != nil {
		return nil, fmt.Errorf("openweathermap onecall: %w", err)
	}
	return &resp, nil
}

type condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type precipitation struct {
	OneHour float64 `json:"1h"`
}

type oneCallResponse struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Timezone string  `json:"timezone"`

	Current *struct {
		Dt         int64       `json:"dt"`
		Temp       float64     `json:"temp"`
		FeelsLike  float64     `json:"feels_like"`
		Pressure   float64     `json:"pressure"`
		Humidity   float64     `json:"humidity"`
		DewPoint   float64     `json:"dew_point"`
		UVI        float64     `json:"uvi"`
		Clouds     float64     `json:"clouds"`
		Visibility *float64    `json:"visibility"`
		WindSpeed  float64     `json:"wind_speed"`
		WindDeg    float64     `json:"wind_deg"`
		WindGust   *float64    `json:"wind_gust"`
		Weather    []condition `json:"weather"`
	} `json:"current"`

	Minutely []struct {
		Dt            int64   `json:"dt"`
		Precipitation float64 `json:"precipitation"`
	} `json:"minutely"`

	Hourly []struct {
		Dt         int64          `json:"dt"`
		Temp       float64        `json:"temp"`
		FeelsLike  float64        `json:"feels_like"`
		Pressure   float64        `json:"pressure"`
		Humidity   float64        `json:"humidity"`
		DewPoint   float64        `json:"dew_point"`
		UVI        float64        `json:"uvi"`
		Clouds     float64        `json:"clouds"`
		Visibility *float64       `json:"visibility"`
		WindSpeed  float64        `json:"wind_speed"`
		WindDeg    float64        `json:"wind_deg"`
		WindGust   *float64       `json:"wind_gust"`
		Pop        float64        `json:"pop"` // Probability of precipitation, 0-1
		Rain       *precipitation `json:"rain"`
		Snow       *precipitation `json:"snow"`
		Weather    []condition    `json:"weather"`
	} `json:"hourly"`

	Daily []struct {
		Dt      int64  `json:"dt"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
		Summary string `json:"summary"`
		Temp    struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"temp"`
		Pop       float64     `json:"pop"`
		Rain      *float64    `json:"rain"`
		Snow      *float64    `json:"snow"`
		UVI       float64     `json:"uvi"`
		WindSpeed float64     `json:"wind_speed"`
		Weather   []condition `json:"weather"`
	} `json:"daily"`

	Alerts []struct {
		SenderName  string   `json:"sender_name"`
		Event       string   `json:"event"`
		Start       int64    `json:"start"`
		End         int64    `json:"end"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	} `json:"alerts"`
}

// toWeather converts a OneCall response to a partial Weather.
func (r *oneCallResponse) toWeather(loc *weather.Location) *weather.Weather {
	w := weather.New(*loc)
	w.Location.TimeZone = r.Timezone

	if cur := r.Current; cur != nil {
		cond, desc := describe(cur.Weather)
		w.Current = &weather.Current{
			Temperature:   weather.Ptr(cur.Temp),
			FeelsLike:     weather.Ptr(cur.FeelsLike),
			Humidity:      weather.Ptr(cur.Humidity),
			DewPoint:      weather.Ptr(cur.DewPoint),
			Pressure:      weather.Ptr(cur.Pressure),
			WindSpeed:     weather.Ptr(cur.WindSpeed),
			WindDirection: weather.Ptr(cur.WindDeg),
			WindGust:      cur.WindGust,
			UVIndex:       weather.Ptr(cur.UVI),
			Visibility:    cur.Visibility,
			CloudCover:    weather.Ptr(cur.Clouds),
			Condition:     cond,
			Description:   desc,
			ObservedAt:    unix(cur.Dt),
		}
	}

	for _, m := range r.Minutely {
		w.Minutely = append(w.Minutely, weather.Minutely{
			Time:          unix(m.Dt),
			Interval:      time.Minute,
			Precipitation: weather.Ptr(m.Precipitation),
		})
	}

	for _, h := range r.Hourly {
		cond, desc := describe(h.Weather)
		hourly := weather.HourlyForecast{
			Time:          unix(h.Dt),
			Temperature:   weather.Ptr(h.Temp),
			FeelsLike:     weather.Ptr(h.FeelsLike),
			Humidity:      weather.Ptr(h.Humidity),
			DewPoint:      weather.Ptr(h.DewPoint),
			Pressure:      weather.Ptr(h.Pressure),
			WindSpeed:     weather.Ptr(h.WindSpeed),
			WindDirection: weather.Ptr(h.WindDeg),
			WindGust:      h.WindGust,
			UVIndex:       weather.Ptr(h.UVI),
			Visibility:    h.Visibility,
			CloudCover:    weather.Ptr(h.Clouds),
			PrecipProb:    weather.Ptr(h.Pop * 100),
			Condition:     cond,
			Description:   desc,
			IsDaylight:    len(h.Weather) > 0 && strings.HasSuffix(iconOf(h.Weather), "d"),
		}
		if h.Rain != nil || h.Snow != nil {
			var total float64
			if h.Rain != nil {
				total += h.Rain.OneHour
			}
			if h.Snow != nil {
				total += h.Snow.OneHour
			}
			hourly.Precipitation = weather.Ptr(total)
		}
		w.Hourly = append(w.Hourly, hourly)
	}

	for _, d := range r.Daily {
		cond, _ := describe(d.Weather)
		day := weather.DailyForecast{
			Date:           unix(d.Dt),
			TempMax:        weather.Ptr(d.Temp.Max),
			TempMin:        weather.Ptr(d.Temp.Min),
			PrecipProb:     weather.Ptr(d.Pop * 100),
			UVIndex:        weather.Ptr(d.UVI),
			WindSpeed:      weather.Ptr(d.WindSpeed),
			DayCondition:   cond,
			NightCondition: cond,
			Summary:        d.Summary,
		}
		if d.Sunrise != 0 {
			day.Sunrise = weather.Ptr(unix(d.Sunrise))
		}
		if d.Sunset != 0 {
			day.Sunset = weather.Ptr(unix(d.Sunset))
		}
		if d.Rain != nil || d.Snow != nil {
			var total float64
			if d.Rain != nil {
				total += *d.Rain
			}
			if d.Snow != nil {
				total += *d.Snow
			}
			day.Precipitation = weather.Ptr(total)
		}
		w.Daily = append(w.Daily, day)
	}

	w.Alerts = make([]weather.Alert, 0, len(r.Alerts))
	for _, a := range r.Alerts {
		w.Alerts = append(w.Alerts, weather.Alert{
			ID:          alertID(a.SenderName, a.Event, a.Start),
			StartsAt:    weather.Ptr(unix(a.Start)),
			EndsAt:      weather.Ptr(unix(a.End)),
			Headline:    a.Event,
			Description: a.Description,
			Severity:    severityOf(a.Event),
			Source:      a.SenderName,
		})
	}

	return w
}

// alertID derives a stable ID; OneCall alerts carry none.
func alertID(sender, event string, start int64) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "%s|%s|%d", sender, event, start)).String()
}

func severityOf(event string) weather.Severity {
	words := strings.FieldsFunc(strings.ToLower(event), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	has := func(candidates ...string) bool {
		return slices.ContainsFunc(words, func(w string) bool { return slices.Contains(candidates, w) })
	}
	switch {
	case has("extreme", "red"):
		return weather.SeverityExtreme
	case has("warning", "orange"):
		return weather.SeveritySevere
	case has("watch", "yellow"):
		return weather.SeverityModerate
	case has("advisory", "statement"):
		return weather.SeverityMinor
	default:
		return weather.SeverityUnknown
	}
}

func unix(ts int64) time.Time {
	return time.Unix(ts, 0).UTC()
}
