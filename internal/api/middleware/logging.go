package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger logs one line per request and puts a request-scoped logger in the
// context for handlers to pick up with zerolog.Ctx. The line's level follows
// the status class.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := wrapWriter(w, r)

			lc := log.With().Str("request_id", GetRequestID(r.Context()))
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				lc = lc.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
			}
			reqLog := lc.Logger()
			r = r.WithContext(reqLog.WithContext(r.Context()))

			next.ServeHTTP(ww, r)

			status := statusOf(ww)
			reqLog.WithLevel(levelFor(status)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", routePattern(r)).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("request completed")
		})
	}
}

func levelFor(status int) zerolog.Level {
	switch {
	case status >= 500:
		return zerolog.ErrorLevel
	case status >= 400:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// wrapWriter reuses a writer already wrapped further up the chain so the
// status and byte counts are shared.
func wrapWriter(w http.ResponseWriter, r *http.Request) chimiddleware.WrapResponseWriter {
	if ww, ok := w.(chimiddleware.WrapResponseWriter); ok {
		return ww
	}
	return chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
}

// statusOf reports 200 for handlers that wrote a body without a header,
// or nothing at all.
func statusOf(ww chimiddleware.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}

// routePattern returns the matched chi route pattern, if any. It is only
// complete after the request was routed.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}
