package handler

import (
	"net/http"
	"strings"

	"github.com/breezyweather/breezyd/internal/api/models"
	"github.com/breezyweather/breezyd/internal/api/response"
	"github.com/breezyweather/breezyd/internal/source"
	"github.com/breezyweather/breezyd/internal/weather"
)

// SourcesHandler describes the registered weather sources.
type SourcesHandler struct {
	manager *source.Manager
}

// NewSourcesHandler creates a new SourcesHandler.
func NewSourcesHandler(manager *source.Manager) *SourcesHandler {
	return &SourcesHandler{manager: manager}
}

// ListSources handles GET /v1/sources.
func (h *SourcesHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	items := h.manager.Describe(r.Context())
	if items == nil {
		items = []source.Info{}
	}
	response.JSON(w, r, http.StatusOK, models.SourceList{Items: items})
}

// FeaturePriorities handles GET /v1/sources/priorities?lat&lon&country.
// It lists, per feature, the sources that would be tried for the point.
func (h *SourcesHandler) FeaturePriorities(w http.ResponseWriter, r *http.Request) {
	lat, lon, errs := coordinates(r)
	country := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("country")))
	if country != "" && len(country) != 2 {
		errs = append(errs, models.FieldError{Field: "country", Message: "must be exactly 2 characters", Code: "len"})
	}
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid query parameters", errs)
		return
	}

	ctx := r.Context()
	loc := &weather.Location{Lat: lat, Lon: lon, CountryCode: country}
	out := models.FeaturePriorities{
		Lat:         lat,
		Lon:         lon,
		CountryCode: country,
		Features:    make(map[weather.Feature][]models.PriorityCandidate),
	}

	for _, f := range weather.AllWeatherFeatures() {
		list := []models.PriorityCandidate{}
		for _, c := range h.manager.Candidates(ctx, loc, f) {
			list = append(list, models.PriorityCandidate{
				Source:     c.Source.ID(),
				Priority:   c.Priority,
				Configured: c.Configured,
			})
		}
		out.Features[f] = list
	}

	geocoders := []models.PriorityCandidate{}
	for _, src := range h.manager.ReverseGeocodingCandidates(ctx, loc) {
		geocoders = append(geocoders, models.PriorityCandidate{
			Source:   src.ID(),
			Priority: src.FeaturePriorityForLocation(loc, weather.FeatureReverseGeocoding),
		})
	}
	out.Features[weather.FeatureReverseGeocoding] = geocoders

	response.JSON(w, r, http.StatusOK, out)
}
