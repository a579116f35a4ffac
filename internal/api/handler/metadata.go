package handler

import (
	"net/http"
	"sort"

	"github.com/breezyweather/breezyd/internal/airquality"
	"github.com/breezyweather/breezyd/internal/api/models"
	"github.com/breezyweather/breezyd/internal/api/response"
	"github.com/breezyweather/breezyd/internal/source"
	"github.com/breezyweather/breezyd/internal/weather"
)

// MetadataHandler handles metadata endpoints.
type MetadataHandler struct {
	airQuality *airquality.Service
}

// NewMetadataHandler creates a new MetadataHandler. airQuality may be nil
// when no station network is configured.
func NewMetadataHandler(airQuality *airquality.Service) *MetadataHandler {
	return &MetadataHandler{airQuality: airQuality}
}

// ListAirQualityStations handles GET /v1/metadata/air-quality/stations.
func (h *MetadataHandler) ListAirQualityStations(w http.ResponseWriter, r *http.Request) {
	if h.airQuality == nil {
		response.ServiceUnavailable(w, r, "no air quality station network configured")
		return
	}
	limit, fe := pageSize(r)
	if fe != nil {
		response.BadRequest(w, r, "invalid query parameters", []models.FieldError{*fe})
		return
	}

	snapshot, err := h.airQuality.GetSnapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	stations := snapshot.StationList()
	sort.Slice(stations, func(i, j int) bool { return stations[i].ID < stations[j].ID })

	// Cursor is the last station ID of the previous page.
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		i := sort.Search(len(stations), func(i int) bool { return stations[i].ID > cursor })
		stations = stations[i:]
	}

	page := models.PagedStations{
		Items: make([]models.Station, 0, min(limit, len(stations))),
		Meta:  models.PagedResponseMeta{Limit: limit},
	}
	for _, st := range stations {
		if len(page.Items) == limit {
			next := page.Items[len(page.Items)-1].StationID
			page.Meta.NextCursor = &next
			break
		}
		page.Items = append(page.Items, models.Station{
			StationID:  st.ID,
			Name:       st.Name,
			Lat:        st.Lat,
			Lon:        st.Lon,
			Pollutants: st.Pollutants,
			UpdatedAt:  models.Timestamp(st.UpdatedAt),
		})
	}
	response.JSON(w, r, http.StatusOK, page)
}

// GetEnums handles GET /v1/metadata/enums - get enum values used by the API.
func (h *MetadataHandler) GetEnums(w http.ResponseWriter, r *http.Request) {
	enums := models.Enums{
		Features: append(weather.AllWeatherFeatures(), weather.FeatureReverseGeocoding),
		Conditions: []weather.Condition{
			weather.ConditionClear,
			weather.ConditionPartlyCloudy,
			weather.ConditionCloudy,
			weather.ConditionRain,
			weather.ConditionSnow,
			weather.ConditionSleet,
			weather.ConditionHail,
			weather.ConditionThunder,
			weather.ConditionThunderstorm,
			weather.ConditionFog,
			weather.ConditionHaze,
			weather.ConditionWind,
			weather.ConditionUnknown,
		},
		AlertSeverities: []weather.Severity{
			weather.SeverityExtreme,
			weather.SeveritySevere,
			weather.SeverityModerate,
			weather.SeverityMinor,
			weather.SeverityUnknown,
		},
		PollenTypes: []weather.PollenType{
			weather.PollenAlder,
			weather.PollenBirch,
			weather.PollenGrass,
			weather.PollenMugwort,
			weather.PollenOlive,
			weather.PollenRagweed,
			weather.PollenTree,
			weather.PollenWeed,
			weather.PollenMold,
		},
		PollenRiskLevels: []weather.RiskLevel{
			weather.RiskNone,
			weather.RiskLow,
			weather.RiskModerate,
			weather.RiskHigh,
			weather.RiskVeryHigh,
		},
		Pollutants: airquality.AllPollutants(),
		AirQualityBands: []airquality.Category{
			airquality.CategoryGood,
			airquality.CategoryFair,
			airquality.CategoryModerate,
			airquality.CategoryPoor,
			airquality.CategoryVeryPoor,
			airquality.CategoryExtremelyPoor,
		},
		SourcePriorities: map[string]int{
			"highest": source.PriorityHighest,
			"high":    source.PriorityHigh,
			"medium":  source.PriorityMedium,
			"low":     source.PriorityLow,
			"none":    source.PriorityNone,
		},
	}
	response.JSON(w, r, http.StatusOK, enums)
}
