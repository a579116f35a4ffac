package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/breezyweather/breezyd/internal/aggregator"
	"github.com/breezyweather/breezyd/internal/api/models"
	"github.com/breezyweather/breezyd/internal/api/response"
	"github.com/breezyweather/breezyd/internal/source"
	"github.com/breezyweather/breezyd/internal/weather"
)

// ReverseGeocoder resolves place names for coordinates.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (*weather.Location, *aggregator.GeocodingReport, error)
}

// GeocodingHandler handles location search and reverse geocoding.
type GeocodingHandler struct {
	manager  *source.Manager
	reverser ReverseGeocoder
}

// NewGeocodingHandler creates a new GeocodingHandler.
func NewGeocodingHandler(manager *source.Manager, reverser ReverseGeocoder) *GeocodingHandler {
	return &GeocodingHandler{manager: manager, reverser: reverser}
}

// Search handles GET /v1/geocoding/search?q&source&lang.
func (h *GeocodingHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if utf8.RuneCountInString(q) < 2 {
		response.BadRequest(w, r, "invalid query parameters", []models.FieldError{
			{Field: "q", Message: "must be at least 2 characters", Code: "min"},
		})
		return
	}
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = "en"
	}

	ctx := r.Context()
	src, err := h.manager.LocationSearchSource(ctx, r.URL.Query().Get("source"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := src.SearchLocations(ctx, q, lang)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("source", src.ID()).Msg("location search failed")
		response.UpstreamUnavailable(w, r, "location search failed at "+src.ID(), upstreamRetryAfter)
		return
	}
	if items == nil {
		items = []weather.Location{}
	}
	response.JSON(w, r, http.StatusOK, models.LocationSearchResults{Source: src.ID(), Items: items})
}

// Reverse handles GET /v1/geocoding/reverse?lat&lon.
func (h *GeocodingHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	lat, lon, errs := coordinates(r)
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid query parameters", errs)
		return
	}

	loc, report, err := h.reverser.ReverseGeocode(r.Context(), lat, lon)
	switch {
	case errors.Is(err, weather.ErrInvalidCoordinates), errors.Is(err, source.ErrNoSourceForFeature):
		writeError(w, r, err)
		return
	case err != nil:
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("reverse geocoding failed")
		response.UpstreamUnavailable(w, r, "no reverse geocoding source could resolve the point", upstreamRetryAfter)
		return
	}
	response.JSON(w, r, http.StatusOK, models.ReverseGeocodingResponse{Location: loc, Report: report})
}
