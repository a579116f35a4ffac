package source

import (
	"github.com/breezyweather/breezyd/internal/airquality"
	"github.com/breezyweather/breezyd/internal/weather"
)

// SetAirQualityIndex computes aq.Index from its concentrations when the
// source did not supply one.
func SetAirQualityIndex(aq *weather.AirQuality) {
	if aq == nil || aq.Index != nil {
		return
	}
	concentrations := make(map[airquality.Pollutant]float64, 6)
	for p, v := range map[airquality.Pollutant]*float64{
		airquality.PollutantPM25: aq.PM25,
		airquality.PollutantPM10: aq.PM10,
		airquality.PollutantSO2:  aq.SO2,
		airquality.PollutantNO2:  aq.NO2,
		airquality.PollutantO3:   aq.O3,
		airquality.PollutantCO:   aq.CO,
	} {
		if v != nil {
			concentrations[p] = *v
		}
	}
	if idx, ok := airquality.OverallIndex(concentrations); ok {
		aq.Index = weather.Ptr(idx)
	}
}
