package airquality_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breezyweather/breezyd/internal/airquality"
)

const pointLat, pointLon = 52.0, 5.0

type reading struct {
	id       string
	lat, lon float64
	values   map[airquality.Pollutant]float64

	// silent pollutants are measured by the station but have no value.
	silent []airquality.Pollutant
}

func snapshotOf(readings ...reading) *airquality.Snapshot {
	snapshot := airquality.NewSnapshot("test")
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, r := range readings {
		st := &airquality.Station{ID: r.id, Lat: r.lat, Lon: r.lon, Pollutants: r.silent}
		for p, v := range r.values {
			st.Pollutants = append(st.Pollutants, p)
			snapshot.SetMeasurement(&airquality.Measurement{StationID: r.id, Pollutant: p, Value: v, MeasuredAt: at})
		}
		snapshot.Stations[r.id] = st
	}
	return snapshot
}

func no2(v float64) map[airquality.Pollutant]float64 {
	return map[airquality.Pollutant]float64{airquality.PollutantNO2: v}
}

func TestEstimate_CollocatedStation(t *testing.T) {
	est := airquality.NewEstimator(airquality.EstimatorConfig{})
	snapshot := snapshotOf(
		reading{id: "here", lat: pointLat, lon: pointLon, values: no2(21)},
		reading{id: "near", lat: pointLat + 0.01, lon: pointLon, values: no2(90)},
	)

	got, err := est.Estimate(pointLat, pointLon, snapshot)
	require.NoError(t, err)

	e := got.Pollutants[airquality.PollutantNO2]
	assert.Equal(t, 21.0, e.Value)
	assert.Equal(t, []string{"here"}, e.Stations)
	assert.Equal(t, airquality.ConfidenceHigh, e.Confidence)
}

func TestEstimate_InverseDistanceSquared(t *testing.T) {
	est := airquality.NewEstimator(airquality.EstimatorConfig{})
	// Along a meridian the second station is exactly twice as far, so it
	// weighs a quarter of the first.
	snapshot := snapshotOf(
		reading{id: "north", lat: pointLat + 0.01, lon: pointLon, values: no2(10)},
		reading{id: "south", lat: pointLat - 0.02, lon: pointLon, values: no2(40)},
	)

	got, err := est.Estimate(pointLat, pointLon, snapshot)
	require.NoError(t, err)

	e := got.Pollutants[airquality.PollutantNO2]
	assert.InDelta(t, 16.0, e.Value, 1e-6)
	assert.Equal(t, []string{"north", "south"}, e.Stations)
	assert.InDelta(t, 1112, e.NearestDistance, 2)
	assert.Equal(t, airquality.ConfidenceHigh, e.Confidence)
}

func TestEstimate_PerPollutantNeighbours(t *testing.T) {
	est := airquality.NewEstimator(airquality.EstimatorConfig{})
	snapshot := snapshotOf(
		reading{id: "no2-only", lat: pointLat + 0.01, lon: pointLon, values: no2(30)},
		reading{
			id: "pm-site", lat: pointLat + 0.1, lon: pointLon,
			values: map[airquality.Pollutant]float64{airquality.PollutantPM10: 18},
		},
		reading{
			id: "o3-site", lat: pointLat + 0.2, lon: pointLon,
			values: map[airquality.Pollutant]float64{airquality.PollutantO3: 60},
		},
	)

	got, err := est.Estimate(pointLat, pointLon, snapshot)
	require.NoError(t, err)

	pm10 := got.Pollutants[airquality.PollutantPM10]
	assert.Equal(t, 18.0, pm10.Value)
	assert.Equal(t, []string{"pm-site"}, pm10.Stations)
	assert.Equal(t, airquality.ConfidenceMedium, pm10.Confidence)

	assert.Equal(t, airquality.ConfidenceLow, got.Pollutants[airquality.PollutantO3].Confidence)
	assert.Equal(t, airquality.ConfidenceMedium, got.Pollutants[airquality.PollutantNO2].Confidence, "single station")
	assert.Equal(t, airquality.ConfidenceLow, got.Confidence())

	assert.Equal(t, map[airquality.Pollutant]float64{
		airquality.PollutantNO2:  30,
		airquality.PollutantPM10: 18,
		airquality.PollutantO3:   60,
	}, got.Concentrations())
}

func TestEstimate_NeighbourLimit(t *testing.T) {
	est := airquality.NewEstimator(airquality.EstimatorConfig{Neighbours: 2})
	snapshot := snapshotOf(
		reading{id: "c", lat: pointLat + 0.03, lon: pointLon, values: no2(1)},
		reading{id: "a", lat: pointLat + 0.01, lon: pointLon, values: no2(1)},
		reading{id: "b", lat: pointLat - 0.02, lon: pointLon, values: no2(1)},
	)

	got, err := est.Estimate(pointLat, pointLon, snapshot)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Pollutants[airquality.PollutantNO2].Stations)
}

func TestEstimate_Errors(t *testing.T) {
	est := airquality.NewEstimator(airquality.EstimatorConfig{Radius: 20_000})

	tests := []struct {
		name     string
		snapshot *airquality.Snapshot
		want     error
	}{
		{"nil snapshot", nil, airquality.ErrNoStationsInRange},
		{"empty snapshot", snapshotOf(), airquality.ErrNoStationsInRange},
		{
			"outside radius",
			snapshotOf(reading{id: "far", lat: pointLat + 0.5, lon: pointLon, values: no2(5)}),
			airquality.ErrNoStationsInRange,
		},
		{
			"no values",
			snapshotOf(reading{id: "quiet", lat: pointLat, lon: pointLon + 0.01, silent: []airquality.Pollutant{airquality.PollutantNO2}}),
			airquality.ErrInsufficientData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := est.Estimate(pointLat, pointLon, tt.snapshot)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDistance(t *testing.T) {
	amsterdam := [2]float64{52.3676, 4.9041}
	rotterdam := [2]float64{51.9244, 4.4777}

	d := airquality.Distance(amsterdam[0], amsterdam[1], rotterdam[0], rotterdam[1])
	assert.InDelta(t, 57_000, d, 1_500)
	assert.InDelta(t, d, airquality.Distance(rotterdam[0], rotterdam[1], amsterdam[0], amsterdam[1]), 1e-6)
	assert.Zero(t, airquality.Distance(amsterdam[0], amsterdam[1], amsterdam[0], amsterdam[1]))
}
