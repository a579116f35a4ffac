package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/breezyweather/breezyd/internal/api/middleware"
	"github.com/breezyweather/breezyd/internal/api/models"
	"github.com/breezyweather/breezyd/internal/api/response"
	"github.com/breezyweather/breezyd/internal/featureflags"
)

// FeatureFlagsHandler handles feature flag endpoints.
type FeatureFlagsHandler struct {
	service *featureflags.Service
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service *featureflags.Service) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service}
}

// ListFeatureFlags handles GET /v1/admin/feature-flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.FeatureFlags{Flags: h.service.GetAllFlags(r.Context())})
}

// UpsertFeatureFlags handles PUT /v1/admin/feature-flags.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var input models.FeatureFlagsUpdateRequest
	if err := decodeJSON(r, &input, false); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	errs := models.Validate(&input)
	for i, f := range input.Flags {
		if f.Value == nil {
			errs = append(errs, models.FieldError{
				Field:   "flags[" + strconv.Itoa(i) + "].value",
				Message: "is required",
				Code:    "required",
			})
		}
	}
	if len(errs) > 0 {
		response.BadRequest(w, r, "request validation failed", errs)
		return
	}

	flags := make([]*featureflags.Flag, 0, len(input.Flags))
	for _, f := range input.Flags {
		flags = append(flags, &featureflags.Flag{Key: f.Key, Value: f.Value})
	}
	if err := h.service.SetFlags(r.Context(), flags); err != nil {
		writeError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().
		Str("admin", middleware.GetSubject(r.Context())).
		Int("count", len(flags)).
		Msg("feature flags changed")
	response.NoContent(w, r)
}

// ResetFeatureFlag handles DELETE /v1/admin/feature-flags/{key}. The flag
// falls back to its default.
func (h *FeatureFlagsHandler) ResetFeatureFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.service.ResetFlag(r.Context(), key); err != nil {
		if errors.Is(err, featureflags.ErrFlagNotFound) {
			response.NotFound(w, r, "no stored value for flag "+key)
			return
		}
		writeError(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().
		Str("admin", middleware.GetSubject(r.Context())).
		Str("flag", key).
		Msg("feature flag reset")
	response.NoContent(w, r)
}

// InvalidateCache handles POST /v1/admin/feature-flags/invalidate.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	response.NoContent(w, r)
}
