package middleware

import (
	"net/http"

	"github.com/breezyweather/breezyd/internal/api/models"
)

// securityHeaders are set on every response. The API serves JSON only, so
// the policy forbids all embedding and active content.
var securityHeaders = [...][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "geolocation=(), camera=(), microphone=()"},
}

// SecurityHeaders adds the standard hardening headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range securityHeaders {
			h.Set(kv[0], kv[1])
		}
		next.ServeHTTP(w, r)
	})
}

// RequireTLS rejects requests whose X-Forwarded-Proto names a scheme other
// than https. Requests without the header reach the server directly and are
// let through. It is a no-op when enabled is false.
func RequireTLS(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" && proto != "https" {
				p := models.NewStatusProblem(http.StatusForbidden, GetRequestID(r.Context()), "This endpoint requires HTTPS")
				p.Type = models.ProblemBaseURL + "tls-required"
				p.Title = "TLS required"
				writeProblem(w, r, p)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
