package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/breezyweather/breezyd/internal/api/middleware"
)

func newMetricsRouter(t *testing.T) (*chi.Mux, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	m, err := middleware.NewMetricsWithProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(m.Middleware())
	r.Get("/v1/locations/{id}/weather", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Post("/v1/locations", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	return r, reader
}

// requestCounts returns the request counter keyed by route and status.
func requestCounts(t *testing.T, reader *sdkmetric.ManualReader) map[[2]string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := make(map[[2]string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "http.server.request.total" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				route, _ := dp.Attributes.Value(attribute.Key("http.route"))
				status, _ := dp.Attributes.Value(attribute.Key("http.status_code"))
				counts[[2]string{route.AsString(), status.AsString()}] += dp.Value
			}
		}
	}
	return counts
}

func TestNewMetrics_GlobalProvider(t *testing.T) {
	m, err := middleware.NewMetrics()
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestMetrics_CountsByRouteAndStatus(t *testing.T) {
	r, reader := newMetricsRouter(t)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/v1/locations/loc_1/weather", http.NoBody),
		httptest.NewRequest(http.MethodGet, "/v1/locations/loc_2/weather", http.NoBody),
		httptest.NewRequest(http.MethodPost, "/v1/locations", http.NoBody),
		httptest.NewRequest(http.MethodGet, "/nowhere", http.NoBody),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	counts := requestCounts(t, reader)
	assert.Equal(t, int64(2), counts[[2]string{"/v1/locations/{id}/weather", "200"}])
	assert.Equal(t, int64(1), counts[[2]string{"/v1/locations", "400"}])
	assert.Equal(t, int64(1), counts[[2]string{"unmatched", "404"}])
}

func TestMetrics_PassesResponseThrough(t *testing.T) {
	r, _ := newMetricsRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/locations/loc_1/weather", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}
