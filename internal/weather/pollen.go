package weather

import "time"

// PollenType represents a category or species of pollen.
type PollenType string

const (
	PollenAlder   PollenType = "ALDER"
	PollenBirch   PollenType = "BIRCH"
	PollenGrass   PollenType = "GRASS"
	PollenMugwort PollenType = "MUGWORT"
	PollenOlive   PollenType = "OLIVE"
	PollenRagweed PollenType = "RAGWEED"
	PollenTree    PollenType = "TREE"
	PollenWeed    PollenType = "WEED"
	PollenMold    PollenType = "MOLD"
)

// RiskLevel represents the pollen risk level.
type RiskLevel string

const (
	RiskNone     RiskLevel = "NONE"
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskVeryHigh RiskLevel = "VERY_HIGH"
)

var riskOrder = map[RiskLevel]int{
	RiskNone:     0,
	RiskLow:      1,
	RiskModerate: 2,
	RiskHigh:     3,
	RiskVeryHigh: 4,
}

// RiskLevelFromIndex converts a numeric index (0-5 scale) to RiskLevel.
func RiskLevelFromIndex(index float64) RiskLevel {
	switch {
	case index <= 0:
		return RiskNone
	case index <= 1:
		return RiskLow
	case index <= 2:
		return RiskModerate
	case index <= 3:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}

// Index returns the 0-4 index of the risk level.
func (r RiskLevel) Index() float64 {
	return float64(riskOrder[r])
}

// Higher reports whether r is a higher risk than other.
func (r RiskLevel) Higher(other RiskLevel) bool {
	return riskOrder[r] > riskOrder[other]
}

// PollenReading is a measurement or prediction for one pollen type.
type PollenReading struct {
	// Concentration in grains/m³ when the source publishes it.
	Concentration *float64 `json:"concentration,omitempty"`

	// Index is the 0-5 pollen index.
	Index float64 `json:"index"`

	Risk RiskLevel `json:"risk"`

	// Species lists the dominant species for category readings.
	Species []string `json:"species,omitempty"`
}

// PollenDay holds the pollen readings for one day.
type PollenDay struct {
	Date        time.Time                    `json:"date"`
	Readings    map[PollenType]PollenReading `json:"readings"`
	OverallRisk RiskLevel                    `json:"overallRisk"`
}

// UpdateOverallRisk sets OverallRisk to the highest risk across readings.
func (d *PollenDay) UpdateOverallRisk() {
	d.OverallRisk = RiskNone
	for _, r := range d.Readings {
		if r.Risk.Higher(d.OverallRisk) {
			d.OverallRisk = r.Risk
		}
	}
}

// PollenData is the pollen feature of a Weather.
type PollenData struct {
	Daily []PollenDay `json:"daily"`
}
