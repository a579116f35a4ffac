package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request, continuing any trace context
// propagated by the caller. Spans are renamed to the chi route pattern once
// the request has been routed. HTTP metrics are recorded by Metrics, so the
// instrumentation's own meters are disabled.
func Tracing(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		annotate := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			span := trace.SpanFromContext(r.Context())
			if id := GetRequestID(r.Context()); id != "" {
				span.SetAttributes(attribute.String("request.id", id))
			}

			next.ServeHTTP(w, r)

			if route := routePattern(r); route != "" {
				span.SetName(r.Method + " " + route)
				span.SetAttributes(attribute.String("http.route", route))
			}
		})

		return otelhttp.NewHandler(annotate, serviceName,
			otelhttp.WithMeterProvider(noop.NewMeterProvider()),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
}
