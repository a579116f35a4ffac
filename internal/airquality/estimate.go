package airquality

import (
	"errors"
	"math"
	"sort"
)

// Estimation errors.
var (
	ErrNoStationsInRange = errors.New("no stations within range")
	ErrInsufficientData  = errors.New("insufficient data for interpolation")
)

// Confidence grades an estimate by how close its stations are.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// EstimatorConfig tunes inverse distance weighting. Distances are meters.
type EstimatorConfig struct {
	// Radius is the search radius around the point (default: 50 km).
	Radius float64

	// Neighbours is how many measuring stations are weighted per
	// pollutant, nearest first (default: 5).
	Neighbours int

	// Power is the distance exponent (default: 2).
	Power float64

	// HighConfidenceRadius and MediumConfidenceRadius bound the distance
	// of the nearest station for each grade (defaults: 5 km and 15 km).
	// HIGH also needs two stations.
	HighConfidenceRadius   float64
	MediumConfidenceRadius float64
}

func (c EstimatorConfig) withDefaults() EstimatorConfig {
	if c.Radius <= 0 {
		c.Radius = 50_000
	}
	if c.Neighbours <= 0 {
		c.Neighbours = 5
	}
	if c.Power <= 0 {
		c.Power = 2
	}
	if c.HighConfidenceRadius <= 0 {
		c.HighConfidenceRadius = 5_000
	}
	if c.MediumConfidenceRadius <= 0 {
		c.MediumConfidenceRadius = 15_000
	}
	return c
}

// PollutantEstimate is the estimated concentration of one pollutant.
type PollutantEstimate struct {
	Value      float64
	Confidence Confidence

	// Stations are the contributing station IDs, nearest first.
	Stations []string

	// NearestDistance is the distance to the first station in meters.
	NearestDistance float64
}

// PointEstimate holds the estimates at a point for every pollutant that
// could be estimated.
type PointEstimate struct {
	Lat        float64
	Lon        float64
	Pollutants map[Pollutant]PollutantEstimate
}

// Concentrations returns the estimated value per pollutant.
func (p *PointEstimate) Concentrations() map[Pollutant]float64 {
	out := make(map[Pollutant]float64, len(p.Pollutants))
	for pollutant, e := range p.Pollutants {
		out[pollutant] = e.Value
	}
	return out
}

// Confidence is the lowest grade across pollutants.
func (p *PointEstimate) Confidence() Confidence {
	lowest := ConfidenceHigh
	for _, e := range p.Pollutants {
		if e.Confidence.rank() < lowest.rank() {
			lowest = e.Confidence
		}
	}
	return lowest
}

// Estimator estimates concentrations between stations.
type Estimator struct {
	cfg EstimatorConfig
}

// NewEstimator creates an estimator; zero config fields use defaults.
func NewEstimator(cfg EstimatorConfig) *Estimator {
	return &Estimator{cfg: cfg.withDefaults()}
}

type neighbour struct {
	station  *Station
	distance float64
}

// Estimate weights the measurements of the stations around lat/lon.
func (e *Estimator) Estimate(lat, lon float64, snapshot *Snapshot) (*PointEstimate, error) {
	if snapshot == nil {
		return nil, ErrNoStationsInRange
	}
	near := e.neighbours(lat, lon, snapshot)
	if len(near) == 0 {
		return nil, ErrNoStationsInRange
	}

	out := &PointEstimate{Lat: lat, Lon: lon, Pollutants: make(map[Pollutant]PollutantEstimate)}
	for _, p := range AllPollutants() {
		if est, ok := e.estimate(p, near, snapshot); ok {
			out.Pollutants[p] = est
		}
	}
	if len(out.Pollutants) == 0 {
		return nil, ErrInsufficientData
	}
	return out, nil
}

// neighbours returns the stations within the radius, nearest first.
func (e *Estimator) neighbours(lat, lon float64, snapshot *Snapshot) []neighbour {
	var near []neighbour
	for _, st := range snapshot.Stations {
		if d := Distance(lat, lon, st.Lat, st.Lon); d <= e.cfg.Radius {
			near = append(near, neighbour{station: st, distance: d})
		}
	}
	sort.Slice(near, func(i, j int) bool {
		if near[i].distance != near[j].distance {
			return near[i].distance < near[j].distance
		}
		return near[i].station.ID < near[j].station.ID
	})
	return near
}

func (e *Estimator) estimate(p Pollutant, near []neighbour, snapshot *Snapshot) (PollutantEstimate, bool) {
	var (
		est         PollutantEstimate
		sum, weight float64
	)
	for _, n := range near {
		if len(est.Stations) == e.cfg.Neighbours {
			break
		}
		if !n.station.Measures(p) {
			continue
		}
		m := snapshot.GetMeasurement(n.station.ID, p)
		if m == nil {
			continue
		}
		if len(est.Stations) == 0 {
			est.NearestDistance = n.distance
		}
		est.Stations = append(est.Stations, n.station.ID)

		// A collocated station is taken as is.
		if n.distance < 1 {
			est.Value = m.Value
			est.Stations = est.Stations[:1]
			est.Confidence = ConfidenceHigh
			return est, true
		}
		w := 1 / math.Pow(n.distance, e.cfg.Power)
		sum += w * m.Value
		weight += w
	}
	if len(est.Stations) == 0 {
		return est, false
	}

	est.Value = sum / weight
	est.Confidence = e.grade(est.NearestDistance, len(est.Stations))
	return est, true
}

func (e *Estimator) grade(nearest float64, stations int) Confidence {
	switch {
	case nearest <= e.cfg.HighConfidenceRadius && stations >= 2:
		return ConfidenceHigh
	case nearest <= e.cfg.MediumConfidenceRadius:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Distance returns the great-circle distance between two points in meters.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6_371_000.0
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}
