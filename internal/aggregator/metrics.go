package aggregator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/breezyweather/breezyd/internal/weather"
)

const instrumentationName = "github.com/breezyweather/breezyd/internal/aggregator"

// metrics holds the aggregation instruments. Instruments that fail to
// initialise stay nil and are skipped.
type metrics struct {
	sourceDuration metric.Float64Histogram
	sourceRequests metric.Int64Counter
	fallbacks      metric.Int64Counter
	staleFeatures  metric.Int64Counter
}

func newMetrics() *metrics {
	meter := otel.Meter(instrumentationName)
	m := &metrics{}

	m.sourceDuration, _ = meter.Float64Histogram(
		"breezyd.source.request.duration",
		metric.WithDescription("Duration of weather source requests in seconds"),
		metric.WithUnit("s"),
	)
	m.sourceRequests, _ = meter.Int64Counter(
		"breezyd.source.request.total",
		metric.WithDescription("Weather source requests by outcome"),
		metric.WithUnit("{request}"),
	)
	m.fallbacks, _ = meter.Int64Counter(
		"breezyd.feature.fallback.total",
		metric.WithDescription("Features moved to their next candidate source"),
		metric.WithUnit("{feature}"),
	)
	m.staleFeatures, _ = meter.Int64Counter(
		"breezyd.feature.stale.total",
		metric.WithDescription("Features served from previously stored weather"),
		metric.WithUnit("{feature}"),
	)
	return m
}

func (m *metrics) recordRequest(ctx context.Context, sourceID string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("source", sourceID),
		attribute.String("outcome", outcome),
	)
	if m.sourceDuration != nil {
		m.sourceDuration.Record(ctx, d.Seconds(), attrs)
	}
	if m.sourceRequests != nil {
		m.sourceRequests.Add(ctx, 1, attrs)
	}
}

func (m *metrics) recordFallback(ctx context.Context, f weather.Feature) {
	if m.fallbacks != nil {
		m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("feature", string(f))))
	}
}

func (m *metrics) recordStale(ctx context.Context, f weather.Feature) {
	if m.staleFeatures != nil {
		m.staleFeatures.Add(ctx, 1, metric.WithAttributes(attribute.String("feature", string(f))))
	}
}
