package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/breezyweather/breezyd/internal/api/middleware"
)

// useTestTracer installs a recording tracer provider for the test.
func useTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return sr
}

func attrValue(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_ServerSpan(t *testing.T) {
	sr := useTestTracer(t)

	h := middleware.Tracing("breezyd-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, trace.SpanFromContext(r.Context()).SpanContext().IsValid())
		w.WriteHeader(http.StatusOK)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/sources", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /v1/sources", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
}

func TestTracing_ContinuesPropagatedTrace(t *testing.T) {
	sr := useTestTracer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/weather", http.NoBody)
	req.Header.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
	middleware.Tracing("breezyd-test")(okHandler()).ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", spans[0].SpanContext().TraceID().String())
	assert.Equal(t, "b7ad6b7169203331", spans[0].Parent().SpanID().String())
}

func TestTracing_NamesSpanAfterRoute(t *testing.T) {
	sr := useTestTracer(t)

	r := chi.NewRouter()
	r.Use(middleware.Tracing("breezyd-test"))
	r.Get("/v1/locations/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/locations/loc_42", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /v1/locations/{id}", spans[0].Name())
	route, ok := attrValue(spans[0], "http.route")
	require.True(t, ok)
	assert.Equal(t, "/v1/locations/{id}", route.AsString())
}

func TestTracing_ServerErrorStatus(t *testing.T) {
	sr := useTestTracer(t)

	h := middleware.Tracing("breezyd-test")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/weather", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestTracing_RequestIDAttribute(t *testing.T) {
	sr := useTestTracer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/weather", http.NoBody)
	req.Header.Set("X-Request-Id", "req_trace_me")
	middleware.RequestID(middleware.Tracing("breezyd-test")(okHandler())).ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	id, ok := attrValue(spans[0], "request.id")
	require.True(t, ok)
	assert.Equal(t, "req_trace_me", id.AsString())
}
