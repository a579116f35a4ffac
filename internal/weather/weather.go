package weather

import (
	"slices"
	"sort"
	"time"
)

// Weather is the aggregated weather of a location. Every feature may come
// from a different source; Sources records which one supplied it.
type Weather struct {
	Location Location `json:"location"`

	Current    *Current         `json:"current,omitempty"`
	Hourly     []HourlyForecast `json:"hourly,omitempty"`
	Daily      []DailyForecast  `json:"daily,omitempty"`
	Minutely   []Minutely       `json:"minutely,omitempty"`
	Alerts     []Alert          `json:"alerts"`
	AirQuality *AirQualityData  `json:"airQuality,omitempty"`
	Pollen     *PollenData      `json:"pollen,omitempty"`
	Normals    *Normals         `json:"normals,omitempty"`

	Sources          map[Feature]string    `json:"sources"`
	FeatureUpdatedAt map[Feature]time.Time `json:"featureUpdatedAt"`
	RefreshedAt      time.Time             `json:"refreshedAt"`
}

// New returns an empty Weather for loc.
func New(loc Location) *Weather {
	return &Weather{
		Location:         loc,
		Sources:          make(map[Feature]string),
		FeatureUpdatedAt: make(map[Feature]time.Time),
	}
}

// HasFeature reports whether data for f is present.
func (w *Weather) HasFeature(f Feature) bool {
	if w == nil {
		return false
	}
	_, ok := w.Sources[f]
	return ok
}

// HasForecast reports whether any daily or hourly forecast is present.
func (w *Weather) HasForecast() bool {
	return w != nil && (len(w.Daily) > 0 || len(w.Hourly) > 0)
}

// Provides reports whether w carries usable data for f. An empty alert list
// is valid data.
func (w *Weather) Provides(f Feature) bool {
	if w == nil {
		return false
	}
	switch f {
	case FeatureForecast:
		return w.HasForecast()
	case FeatureCurrent:
		return w.Current != nil
	case FeatureAirQuality:
		return w.AirQuality != nil && (w.AirQuality.Current != nil || len(w.AirQuality.Hourly) > 0)
	case FeaturePollen:
		return w.Pollen != nil && len(w.Pollen.Daily) > 0
	case FeatureMinutely:
		return len(w.Minutely) > 0
	case FeatureAlert:
		return true
	case FeatureNormals:
		return w.Normals != nil
	default:
		return false
	}
}

// Merge copies the data of feature f from a partial source result into w
// and records sourceID as its origin.
func (w *Weather) Merge(f Feature, partial *Weather, sourceID string, at time.Time) {
	if partial == nil || !w.copyData(f, partial) {
		return
	}
	w.record(f, sourceID, at)
}

// CopyFeature carries feature f over from a previously stored Weather,
// keeping the source and fetch time it had there.
func (w *Weather) CopyFeature(f Feature, previous *Weather) bool {
	if !previous.HasFeature(f) || !w.copyData(f, previous) {
		return false
	}
	w.record(f, previous.Sources[f], previous.FeatureUpdatedAt[f])
	return true
}

// copyData copies the data of f from src. Nothing is shared with src, so
// Complete may reorder and trim the copy.
func (w *Weather) copyData(f Feature, src *Weather) bool {
	switch f {
	case FeatureForecast:
		w.Hourly = slices.Clone(src.Hourly)
		w.Daily = slices.Clone(src.Daily)
	case FeatureCurrent:
		if src.Current == nil || src.Current.Derived {
			return false
		}
		w.Current = clonePtr(src.Current)
	case FeatureAirQuality:
		aq := clonePtr(src.AirQuality)
		if aq != nil {
			aq.Hourly = slices.Clone(aq.Hourly)
		}
		w.AirQuality = aq
	case FeaturePollen:
		p := clonePtr(src.Pollen)
		if p != nil {
			p.Daily = slices.Clone(p.Daily)
		}
		w.Pollen = p
	case FeatureMinutely:
		w.Minutely = slices.Clone(src.Minutely)
	case FeatureAlert:
		w.Alerts = slices.Clone(src.Alerts)
		if w.Alerts == nil {
			w.Alerts = []Alert{}
		}
	case FeatureNormals:
		w.Normals = clonePtr(src.Normals)
	default:
		return false
	}
	return true
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func (w *Weather) record(f Feature, sourceID string, at time.Time) {
	if w.Sources == nil {
		w.Sources = make(map[Feature]string)
	}
	if w.FeatureUpdatedAt == nil {
		w.FeatureUpdatedAt = make(map[Feature]time.Time)
	}
	w.Sources[f] = sourceID
	w.FeatureUpdatedAt[f] = at
}

// Complete normalizes the aggregate: it orders series, fills gaps that can
// be derived from other data and drops stale entries. Current conditions
// derived from the hourly forecast are attributed to the forecast's source.
func (w *Weather) Complete(now time.Time) {
	tz := w.timeZone()

	sort.Slice(w.Hourly, func(i, j int) bool { return w.Hourly[i].Time.Before(w.Hourly[j].Time) })
	sort.Slice(w.Daily, func(i, j int) bool { return w.Daily[i].Date.Before(w.Daily[j].Date) })
	sort.Slice(w.Minutely, func(i, j int) bool { return w.Minutely[i].Time.Before(w.Minutely[j].Time) })

	w.fillDailyFromHourly(tz)

	if forecastSource, ok := w.Sources[FeatureForecast]; ok && w.Current == nil && len(w.Hourly) > 0 {
		w.Current = currentFromHourly(nearestHourly(w.Hourly, now))
		w.record(FeatureCurrent, forecastSource, w.FeatureUpdatedAt[FeatureForecast])
	}

	if w.AirQuality != nil && w.AirQuality.Current == nil && len(w.AirQuality.Hourly) > 0 {
		aq := nearestAirQuality(w.AirQuality.Hourly, now)
		w.AirQuality.Current = &aq
	}

	w.Hourly = pruneHourly(w.Hourly, now.Add(-time.Hour))
	w.Minutely = pruneMinutely(w.Minutely, now)
	w.Alerts = normalizeAlerts(w.Alerts, now)
}

func (w *Weather) timeZone() *time.Location {
	if w.Location.TimeZone == "" {
		return time.UTC
	}
	tz, err := time.LoadLocation(w.Location.TimeZone)
	if err != nil {
		return time.UTC
	}
	return tz
}

func (w *Weather) fillDailyFromHourly(tz *time.Location) {
	for i := range w.Daily {
		d := &w.Daily[i]
		if d.TempMax != nil && d.TempMin != nil {
			continue
		}
		y, m, day := d.Date.In(tz).Date()
		var hi, lo *float64
		for _, h := range w.Hourly {
			hy, hm, hd := h.Time.In(tz).Date()
			if hy != y || hm != m || hd != day || h.Temperature == nil {
				continue
			}
			t := *h.Temperature
			if hi == nil || t > *hi {
				hi = Ptr(t)
			}
			if lo == nil || t < *lo {
				lo = Ptr(t)
			}
		}
		if d.TempMax == nil {
			d.TempMax = hi
		}
		if d.TempMin == nil {
			d.TempMin = lo
		}
	}
}

func nearestHourly(hourly []HourlyForecast, now time.Time) HourlyForecast {
	best := hourly[0]
	for _, h := range hourly[1:] {
		if absDuration(h.Time.Sub(now)) < absDuration(best.Time.Sub(now)) {
			best = h
		}
	}
	return best
}

func nearestAirQuality(series []AirQuality, now time.Time) AirQuality {
	best := series[0]
	for _, a := range series[1:] {
		if absDuration(a.Time.Sub(now)) < absDuration(best.Time.Sub(now)) {
			best = a
		}
	}
	return best
}

func currentFromHourly(h HourlyForecast) *Current {
	return &Current{
		Temperature:   h.Temperature,
		FeelsLike:     h.FeelsLike,
		Humidity:      h.Humidity,
		DewPoint:      h.DewPoint,
		Pressure:      h.Pressure,
		WindSpeed:     h.WindSpeed,
		WindDirection: h.WindDirection,
		WindGust:      h.WindGust,
		UVIndex:       h.UVIndex,
		Visibility:    h.Visibility,
		CloudCover:    h.CloudCover,
		Condition:     h.Condition,
		Description:   h.Description,
		ObservedAt:    h.Time,
		Derived:       true,
	}
}

func pruneHourly(hourly []HourlyForecast, cutoff time.Time) []HourlyForecast {
	i := sort.Search(len(hourly), func(i int) bool { return !hourly[i].Time.Before(cutoff) })
	return hourly[i:]
}

func pruneMinutely(minutely []Minutely, now time.Time) []Minutely {
	var kept []Minutely
	for _, m := range minutely {
		if m.Time.Add(m.Interval).After(now) {
			kept = append(kept, m)
		}
	}
	return kept
}

func normalizeAlerts(alerts []Alert, now time.Time) []Alert {
	if alerts == nil {
		return nil
	}
	seen := make(map[string]bool, len(alerts))
	out := make([]Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.ExpiredAt(now) || (a.ID != "" && seen[a.ID]) {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return startOf(out[i]).Before(startOf(out[j]))
	})
	return out
}

func startOf(a Alert) time.Time {
	if a.StartsAt == nil {
		return time.Time{}
	}
	return *a.StartsAt
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
