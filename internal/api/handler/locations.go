package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/breezyweather/breezyd/internal/aggregator"
	"github.com/breezyweather/breezyd/internal/api/models"
	"github.com/breezyweather/breezyd/internal/api/response"
	"github.com/breezyweather/breezyd/internal/weather"
)

// LocationService manages saved locations.
type LocationService interface {
	List(ctx context.Context, limit int, cursor string) (*models.PagedLocations, error)
	Get(ctx context.Context, id string) (*weather.Location, error)
	Create(ctx context.Context, input *models.LocationCreateRequest) (*weather.Location, error)
	Update(ctx context.Context, id string, input *models.LocationUpdateRequest) (*weather.Location, error)
	Delete(ctx context.Context, id string) error
	SetCurrentPosition(ctx context.Context, lat, lon float64) (*weather.Location, error)
}

// LocationWeather reads and refreshes the weather of saved locations.
type LocationWeather interface {
	Get(ctx context.Context, locationID string) (*weather.Weather, error)
	RefreshByID(ctx context.Context, locationID string, opts aggregator.Options) (*weather.Weather, *aggregator.Report, error)
}

// LocationsHandler handles saved location endpoints.
type LocationsHandler struct {
	locations LocationService
	weather   LocationWeather
}

// NewLocationsHandler creates a new LocationsHandler.
func NewLocationsHandler(locations LocationService, lw LocationWeather) *LocationsHandler {
	return &LocationsHandler{locations: locations, weather: lw}
}

// ListLocations handles GET /v1/locations.
func (h *LocationsHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	limit, fe := pageSize(r)
	if fe != nil {
		response.BadRequest(w, r, "invalid query parameters", []models.FieldError{*fe})
		return
	}

	page, err := h.locations.List(r.Context(), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, page)
}

// CreateLocation handles POST /v1/locations.
func (h *LocationsHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var input models.LocationCreateRequest
	if err := decodeJSON(r, &input, false); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	loc, err := h.locations.Create(r.Context(), &input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Created(w, r, fmt.Sprintf("/v1/locations/%s", loc.ID), loc)
}

// GetLocation handles GET /v1/locations/{locationId}.
func (h *LocationsHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.locations.Get(r.Context(), chi.URLParam(r, "locationId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, loc)
}

// UpdateLocation handles PUT /v1/locations/{locationId}.
func (h *LocationsHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var input models.LocationUpdateRequest
	if err := decodeJSON(r, &input, false); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	loc, err := h.locations.Update(r.Context(), chi.URLParam(r, "locationId"), &input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, loc)
}

// DeleteLocation handles DELETE /v1/locations/{locationId}.
func (h *LocationsHandler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	if err := h.locations.Delete(r.Context(), chi.URLParam(r, "locationId")); err != nil {
		writeError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

// SetCurrentPosition handles PUT /v1/locations/current-position.
func (h *LocationsHandler) SetCurrentPosition(w http.ResponseWriter, r *http.Request) {
	var input models.CurrentPositionRequest
	if err := decodeJSON(r, &input, false); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if errs := models.Validate(&input); len(errs) > 0 {
		response.BadRequest(w, r, "request validation failed", errs)
		return
	}

	loc, err := h.locations.SetCurrentPosition(r.Context(), *input.Lat, *input.Lon)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, loc)
}

// GetWeather handles GET /v1/locations/{locationId}/weather. It returns the
// stored weather without contacting any source.
func (h *LocationsHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "locationId")
	if _, err := h.locations.Get(ctx, id); err != nil {
		writeError(w, r, err)
		return
	}

	wx, err := h.weather.Get(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.WeatherResponse{Weather: wx})
}

// RefreshWeather handles POST /v1/locations/{locationId}/refresh.
func (h *LocationsHandler) RefreshWeather(w http.ResponseWriter, r *http.Request) {
	var input models.RefreshRequest
	if err := decodeJSON(r, &input, true); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if errs := models.Validate(&input); len(errs) > 0 {
		response.BadRequest(w, r, "request validation failed", errs)
		return
	}
	fs, errs := features(input.Features)
	if len(errs) > 0 {
		response.BadRequest(w, r, "request validation failed", errs)
		return
	}

	wx, report, err := h.weather.RefreshByID(r.Context(), chi.URLParam(r, "locationId"), aggregator.Options{
		Features:             fs,
		SkipReverseGeocoding: input.SkipReverseGeocoding,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.WeatherResponse{Weather: wx, Report: report})
}
