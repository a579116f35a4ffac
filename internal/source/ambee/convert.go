package ambee

import (
	"sort"
	"time"

	"github.com/breezyweather/breezyd/internal/weather"
)

// Ambee API response structures.

type pollenResponse struct {
	Message string       `json:"message"`
	Data    []pollenData `json:"data"`
}

type pollenData struct {
	Count struct {
		GrassPollen float64 `json:"grass_pollen"`
		TreePollen  float64 `json:"tree_pollen"`
		WeedPollen  float64 `json:"weed_pollen"`
	} `json:"Count"`
	Risk struct {
		GrassPollen string `json:"grass_pollen"`
		TreePollen  string `json:"tree_pollen"`
		WeedPollen  string `json:"weed_pollen"`
	} `json:"Risk"`
	Species struct {
		Grass map[string]float64 `json:"Grass"`
		Tree  map[string]float64 `json:"Tree"`
		Weed  map[string]float64 `json:"Weed"`
	} `json:"Species"`
	UpdatedAt string `json:"updatedAt"`
	Time      int64  `json:"time"` // Used in forecast responses
}

// toDays builds one PollenDay per UTC date. Forecast entries are hourly;
// the highest reading per type wins. Latest readings replace their day.
func toDays(latest, forecast []pollenData, now time.Time) []weather.PollenDay {
	byDate := make(map[time.Time]*weather.PollenDay)

	for i := range forecast {
		d := &forecast[i]
		if d.Time == 0 {
			continue
		}
		mergeDay(byDate, truncateDay(time.Unix(d.Time, 0)), d, false)
	}

	for i := range latest {
		d := &latest[i]
		at := now
		if parsed, err := time.Parse(time.RFC3339, d.UpdatedAt); err == nil {
			at = parsed
		}
		mergeDay(byDate, truncateDay(at), d, true)
	}

	days := make([]weather.PollenDay, 0, len(byDate))
	for _, day := range byDate {
		day.UpdateOverallRisk()
		days = append(days, *day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days
}

func mergeDay(byDate map[time.Time]*weather.PollenDay, date time.Time, d *pollenData, replace bool) {
	day, ok := byDate[date]
	if !ok || replace {
		day = &weather.PollenDay{Date: date, Readings: make(map[weather.PollenType]weather.PollenReading)}
		byDate[date] = day
	}

	for _, r := range []struct {
		kind    weather.PollenType
		count   float64
		risk    string
		species map[string]float64
	}{
		{weather.PollenGrass, d.Count.GrassPollen, d.Risk.GrassPollen, d.Species.Grass},
		{weather.PollenTree, d.Count.TreePollen, d.Risk.TreePollen, d.Species.Tree},
		{weather.PollenWeed, d.Count.WeedPollen, d.Risk.WeedPollen, d.Species.Weed},
	} {
		if r.count <= 0 && r.risk == "" {
			continue
		}
		if prev, seen := day.Readings[r.kind]; seen && prev.Concentration != nil && *prev.Concentration >= r.count {
			continue
		}
		risk := mapRiskLevel(r.risk)
		day.Readings[r.kind] = weather.PollenReading{
			Concentration: weather.Ptr(r.count),
			Index:         risk.Index(),
			Risk:          risk,
			Species:       dominantSpecies(r.species),
		}
	}
}

// dominantSpecies returns species with a non-zero count, highest first.
func dominantSpecies(species map[string]float64) []string {
	var out []string
	for name, count := range species {
		if count > 0 {
			out = append(out, name)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if species[out[i]] != species[out[j]] {
			return species[out[i]] > species[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// mapRiskLevel maps Ambee risk string to domain risk level.
func mapRiskLevel(risk string) weather.RiskLevel {
	switch risk {
	case "Low":
		return weather.RiskLow
	case "Moderate":
		return weather.RiskModerate
	case "High":
		return weather.RiskHigh
	case "Very High":
		return weather.RiskVeryHigh
	default:
		return weather.RiskNone
	}
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
