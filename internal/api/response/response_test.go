package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breezyweather/breezyd/internal/api/middleware"
	"github.com/breezyweather/breezyd/internal/api/models"
	"github.com/breezyweather/breezyd/internal/api/response"
)

const requestID = "req_response_test"

func newRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, http.NoBody)
	return req.WithContext(middleware.WithRequestID(req.Context(), requestID))
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p models.Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	return p
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	response.JSON(rec, newRequest(http.MethodGet, "/v1/sources"), http.StatusOK, map[string]int{"count": 3})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, requestID, rec.Header().Get("X-Request-Id"))
	assert.JSONEq(t, `{"count":3}`, rec.Body.String())
}

func TestJSON_NoRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	response.JSON(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody), http.StatusOK, []string{})

	assert.Empty(t, rec.Header().Get("X-Request-Id"))
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCreated(t *testing.T) {
	rec := httptest.NewRecorder()
	response.Created(rec, newRequest(http.MethodPost, "/v1/locations"), "/v1/locations/loc_1", map[string]string{"id": "loc_1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/v1/locations/loc_1", rec.Header().Get("Location"))
	assert.JSONEq(t, `{"id":"loc_1"}`, rec.Body.String())
}

func TestNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	response.NoContent(rec, newRequest(http.MethodDelete, "/v1/locations/loc_1"))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, requestID, rec.Header().Get("X-Request-Id"))
	assert.Zero(t, rec.Body.Len())
}

func TestProblemWriters(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter, r *http.Request)
		status int
		typ    string
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) { response.NotFound(w, r, "gone") },
			http.StatusNotFound, models.ProblemTypeNotFound},
		{"conflict", func(w http.ResponseWriter, r *http.Request) { response.Conflict(w, r, "gone") },
			http.StatusConflict, models.ProblemTypeConflict},
		{"internal", func(w http.ResponseWriter, r *http.Request) { response.InternalError(w, r, "gone") },
			http.StatusInternalServerError, models.ProblemTypeInternal},
		{"unavailable", func(w http.ResponseWriter, r *http.Request) { response.ServiceUnavailable(w, r, "gone") },
			http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
		{"uncatalogued status", func(w http.ResponseWriter, r *http.Request) { response.Problem(w, r, http.StatusTeapot, "gone") },
			http.StatusTeapot, "about:blank"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec, newRequest(http.MethodGet, "/v1/locations/loc_1"))

			assert.Equal(t, tt.status, rec.Code)
			p := decodeProblem(t, rec)
			assert.Equal(t, tt.typ, p.Type)
			assert.Equal(t, tt.status, p.Status)
			assert.Equal(t, "gone", p.Detail)
			assert.Equal(t, "/v1/locations/loc_1", p.Instance)
			assert.Equal(t, requestID, p.TraceID)
		})
	}
}

func TestBadRequest(t *testing.T) {
	rec := httptest.NewRecorder()
	response.BadRequest(rec, newRequest(http.MethodPost, "/v1/locations"), "request validation failed", []models.FieldError{
		{Field: "latitude", Message: "must be between -90 and 90", Code: "range"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	p := decodeProblem(t, rec)
	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "latitude", p.Errors[0].Field)
}

func TestUpstreamUnavailable(t *testing.T) {
	rec := httptest.NewRecorder()
	response.UpstreamUnavailable(rec, newRequest(http.MethodGet, "/v1/weather"), "forecast unavailable", 60)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	p := decodeProblem(t, rec)
	assert.Equal(t, models.ProblemTypeUpstream, p.Type)
	assert.Equal(t, "Upstream unavailable", p.Title)

	rec = httptest.NewRecorder()
	response.UpstreamUnavailable(rec, newRequest(http.MethodGet, "/v1/weather"), "no source", 0)
	assert.Empty(t, rec.Header().Get("Retry-After"))
}
