// Package airquality holds station snapshots, spatial interpolation and the
// pollutant index used to express concentrations on a common scale.
package airquality

import (
	"errors"
	"slices"
	"strings"
	"time"
)

var (
	ErrStationNotFound     = errors.New("station not found")
	ErrNoMeasurements      = errors.New("no measurements available")
	ErrProviderUnavailable = errors.New("air quality provider unavailable")
)

// Pollutant names a measured species.
type Pollutant string

const (
	PollutantNO2  Pollutant = "NO2"
	PollutantPM25 Pollutant = "PM25"
	PollutantPM10 Pollutant = "PM10"
	PollutantO3   Pollutant = "O3"
	PollutantSO2  Pollutant = "SO2"
	PollutantCO   Pollutant = "CO"
)

// AllPollutants lists the pollutants in index order.
func AllPollutants() []Pollutant {
	return []Pollutant{PollutantPM25, PollutantPM10, PollutantNO2, PollutantO3, PollutantSO2, PollutantCO}
}

type Station struct {
	ID         string
	Name       string
	Lat        float64
	Lon        float64
	Pollutants []Pollutant
	UpdatedAt  time.Time
}

func (s *Station) Measures(p Pollutant) bool {
	return slices.Contains(s.Pollutants, p)
}

// Measurement is one reading. Values are µg/m³, except CO in mg/m³.
type Measurement struct {
	StationID  string
	Pollutant  Pollutant
	Value      float64
	MeasuredAt time.Time
}

type readingKey struct {
	station   string
	pollutant Pollutant
}

// Snapshot is the station network of one provider together with the latest
// reading per station and pollutant.
type Snapshot struct {
	Stations  map[string]*Station
	FetchedAt time.Time
	Provider  string

	readings map[readingKey]*Measurement
	latest   time.Time
}

func NewSnapshot(provider string) *Snapshot {
	return &Snapshot{
		Stations:  make(map[string]*Station),
		FetchedAt: time.Now(),
		Provider:  provider,
		readings:  make(map[readingKey]*Measurement),
	}
}

// GetMeasurement returns the reading of pollutant at stationID, or nil.
func (s *Snapshot) GetMeasurement(stationID string, pollutant Pollutant) *Measurement {
	return s.readings[readingKey{stationID, pollutant}]
}

// SetMeasurement keeps m unless an equally new or newer reading is held for
// the same station and pollutant.
func (s *Snapshot) SetMeasurement(m *Measurement) {
	k := readingKey{m.StationID, m.Pollutant}
	if held, ok := s.readings[k]; ok && !m.MeasuredAt.After(held.MeasuredAt) {
		return
	}
	s.readings[k] = m
	if m.MeasuredAt.After(s.latest) {
		s.latest = m.MeasuredAt
	}
}

// MeasurementCount is the number of station/pollutant readings held.
func (s *Snapshot) MeasurementCount() int { return len(s.readings) }

// LatestMeasurement is the time of the newest reading, zero when empty.
func (s *Snapshot) LatestMeasurement() time.Time { return s.latest }

// StationList returns the stations ordered by ID.
func (s *Snapshot) StationList() []*Station {
	out := make([]*Station, 0, len(s.Stations))
	for _, st := range s.Stations {
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b *Station) int { return strings.Compare(a.ID, b.ID) })
	return out
}
