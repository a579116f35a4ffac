package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/breezyweather/breezyd/internal/api/middleware"

// Metrics records OpenTelemetry HTTP server instruments.
type Metrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
	inFlight metric.Int64UpDownCounter
	size     metric.Int64Histogram
}

// NewMetrics registers the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithProvider(otel.GetMeterProvider())
}

// NewMetricsWithProvider registers the instruments on mp.
func NewMetricsWithProvider(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	var m Metrics
	var err, e error
	m.duration, e = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests"), metric.WithUnit("s"))
	err = errors.Join(err, e)
	m.requests, e = meter.Int64Counter("http.server.request.total",
		metric.WithDescription("HTTP server requests"), metric.WithUnit("{request}"))
	err = errors.Join(err, e)
	m.inFlight, e = meter.Int64UpDownCounter("http.server.requests_in_flight",
		metric.WithDescription("HTTP requests being served"), metric.WithUnit("{request}"))
	err = errors.Join(err, e)
	m.size, e = meter.Int64Histogram("http.server.response.size",
		metric.WithDescription("HTTP response body size"), metric.WithUnit("By"))
	err = errors.Join(err, e)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Middleware records duration, count and size per method, route and status.
// Unrouted requests share the route value "unmatched" to bound cardinality.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()

			method := metric.WithAttributes(attribute.String("http.method", r.Method))
			m.inFlight.Add(ctx, 1, method)
			defer m.inFlight.Add(ctx, -1, method)

			ww := wrapWriter(w, r)
			next.ServeHTTP(ww, r)
			status := statusOf(ww)

			route := routePattern(r)
			if route == "" {
				route = "unmatched"
			}
			attrs := metric.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.status_code", strconv.Itoa(status)),
				attribute.Bool("error", status >= 400),
			)

			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			m.requests.Add(ctx, 1, attrs)
			m.size.Record(ctx, int64(ww.BytesWritten()), attrs)
		})
	}
}
