// Package response writes JSON and problem+json HTTP responses.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/breezyweather/breezyd/internal/api/middleware"
	"github.com/breezyweather/breezyd/internal/api/models"
)

// JSON writes data as a JSON body with status.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, r, status, "", data)
}

// Created writes a 201 with a Location header.
func Created(w http.ResponseWriter, r *http.Request, location string, data any) {
	write(w, r, http.StatusCreated, location, data)
}

// NoContent writes a 204.
func NoContent(w http.ResponseWriter, r *http.Request) {
	write(w, r, http.StatusNoContent, "", nil)
}

func write(w http.ResponseWriter, r *http.Request, status int, location string, data any) {
	h := w.Header()
	if id := middleware.GetRequestID(r.Context()); id != "" {
		h.Set("X-Request-Id", id)
	}
	if location != "" {
		h.Set("Location", location)
	}
	if data == nil {
		w.WriteHeader(status)
		return
	}
	h.Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("encode response")
	}
}

// Error writes p, pointing its instance at the request path.
func Error(w http.ResponseWriter, r *http.Request, p *models.Problem) {
	p.Instance = r.URL.Path
	p.Write(w)
}

// Problem writes the catalogued problem for status.
func Problem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	Error(w, r, models.NewStatusProblem(status, middleware.GetRequestID(r.Context()), detail))
}

// BadRequest writes a 400 with optional per-field errors.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errs []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errs))
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusNotFound, detail)
}

// Conflict writes a 409.
func Conflict(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusConflict, detail)
}

// InternalError writes a 500.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusInternalServerError, detail)
}

// ServiceUnavailable writes a 503 for the service's own dependencies.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusServiceUnavailable, detail)
}

// UpstreamUnavailable writes a 503 for requests no weather source could
// serve. retryAfter is in seconds; zero omits the header.
func UpstreamUnavailable(w http.ResponseWriter, r *http.Request, detail string, retryAfter int) {
	Error(w, r, models.NewUpstreamUnavailable(middleware.GetRequestID(r.Context()), detail, retryAfter))
}
