package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/breezyweather/breezyd/internal/aggregator"
	"github.com/breezyweather/breezyd/internal/airquality"
	"github.com/breezyweather/breezyd/internal/api/response"
	"github.com/breezyweather/breezyd/internal/featureflags"
	"github.com/breezyweather/breezyd/internal/location"
	"github.com/breezyweather/breezyd/internal/source"
	"github.com/breezyweather/breezyd/internal/weather"
	"github.com/breezyweather/breezyd/internal/weatherstore"
)

// upstreamRetryAfter is the Retry-After, in seconds, sent when sources
// failed transiently.
const upstreamRetryAfter = 60

// writeError maps service errors to problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *location.ValidationError
	switch {
	case errors.As(err, &verr):
		response.BadRequest(w, r, "request validation failed", verr.Errors)
	case errors.Is(err, weather.ErrInvalidCoordinates),
		errors.Is(err, location.ErrInvalidSource),
		errors.Is(err, source.ErrUnknownSource),
		errors.Is(err, featureflags.ErrInvalidFlagValue):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, location.ErrLocationNotFound):
		response.NotFound(w, r, "location not found")
	case errors.Is(err, weatherstore.ErrNotFound):
		response.NotFound(w, r, "no weather stored for location")
	case errors.Is(err, location.ErrConflict):
		response.Conflict(w, r, err.Error())
	case errors.Is(err, source.ErrNoSourceForFeature),
		errors.Is(err, source.ErrSourceDisabled):
		response.UpstreamUnavailable(w, r, err.Error(), 0)
	case errors.Is(err, aggregator.ErrForecastUnavailable),
		errors.Is(err, airquality.ErrProviderUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("upstream unavailable")
		response.UpstreamUnavailable(w, r, err.Error(), upstreamRetryAfter)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
