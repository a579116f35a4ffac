package airquality

import "math"

// Index breakpoints shared by every pollutant. A concentration equal to the
// n-th pollutant threshold maps to indexBreakpoints[n+1].
var indexBreakpoints = [...]float64{0, 20, 50, 100, 150, 250}

// Pollutant thresholds, µg/m³ (CO in mg/m³).
var thresholds = map[Pollutant][5]float64{
	PollutantO3:   {50, 100, 160, 240, 480},
	PollutantNO2:  {10, 25, 200, 400, 1000},
	PollutantPM10: {15, 45, 80, 160, 400},
	PollutantPM25: {5, 15, 30, 60, 150},
	PollutantSO2:  {20, 40, 270, 500, 960},
	PollutantCO:   {2, 4, 35, 100, 230},
}

// Category is a band of the air quality index.
type Category string

const (
	CategoryGood          Category = "GOOD"
	CategoryFair          Category = "FAIR"
	CategoryModerate      Category = "MODERATE"
	CategoryPoor          Category = "POOR"
	CategoryVeryPoor      Category = "VERY_POOR"
	CategoryExtremelyPoor Category = "EXTREMELY_POOR"
)

// Index converts a concentration to the index scale by linear interpolation
// between thresholds. Above the last threshold the last slope is extended.
// Returns false for unknown pollutants or negative concentrations.
func Index(p Pollutant, concentration float64) (float64, bool) {
	levels, ok := thresholds[p]
	if !ok || concentration < 0 || math.IsNaN(concentration) {
		return 0, false
	}

	lowC, lowI := 0.0, indexBreakpoints[0]
	for i, highC := range levels {
		highI := indexBreakpoints[i+1]
		if concentration <= highC {
			return lowI + (concentration-lowC)*(highI-lowI)/(highC-lowC), true
		}
		lowC, lowI = highC, highI
	}

	n := len(levels)
	slope := (indexBreakpoints[n] - indexBreakpoints[n-1]) / (levels[n-1] - levels[n-2])
	return indexBreakpoints[n] + (concentration-levels[n-1])*slope, true
}

// OverallIndex returns the highest index across the given concentrations.
// Returns false when none could be indexed.
func OverallIndex(concentrations map[Pollutant]float64) (float64, bool) {
	var (
		highest float64
		found   bool
	)
	for p, c := range concentrations {
		idx, ok := Index(p, c)
		if !ok {
			continue
		}
		if !found || idx > highest {
			highest = idx
			found = true
		}
	}
	return highest, found
}

// CategoryFor maps an index value to its category.
func CategoryFor(index float64) Category {
	switch {
	case index <= indexBreakpoints[1]:
		return CategoryGood
	case index <= indexBreakpoints[2]:
		return CategoryFair
	case index <= indexBreakpoints[3]:
		return CategoryModerate
	case index <= indexBreakpoints[4]:
		return CategoryPoor
	case index <= indexBreakpoints[5]:
		return CategoryVeryPoor
	default:
		return CategoryExtremelyPoor
	}
}
