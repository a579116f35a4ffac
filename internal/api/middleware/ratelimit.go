package middleware

import (
	"math"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/breezyweather/breezyd/internal/api/models"
)

// RateLimit allows Requests per Window for one key.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// PerMinute is a RateLimit of n requests per minute.
func PerMinute(n int) RateLimit {
	return RateLimit{Requests: n, Window: time.Minute}
}

// RateLimits groups the limits applied by the router.
type RateLimits struct {
	// Standard covers reads and location management.
	Standard RateLimit
	// Expensive covers requests that fan out to weather sources.
	Expensive RateLimit
	// Admin is counted per token subject.
	Admin RateLimit
}

// DefaultRateLimits returns 100, 30 and 10 requests per minute.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Standard:  PerMinute(100),
		Expensive: PerMinute(30),
		Admin:     PerMinute(10),
	}
}

// WithDefaults fills unset limits from DefaultRateLimits.
func (l RateLimits) WithDefaults() RateLimits {
	d := DefaultRateLimits()
	if l.Standard.Requests <= 0 {
		l.Standard = d.Standard
	}
	if l.Expensive.Requests <= 0 {
		l.Expensive = d.Expensive
	}
	if l.Admin.Requests <= 0 {
		l.Admin = d.Admin
	}
	return l
}

// ByIP limits per client address as resolved by chi's RealIP.
func (l RateLimit) ByIP() func(http.Handler) http.Handler {
	return l.limiter(httprate.KeyByRealIP)
}

// BySubject limits per admin token subject, falling back to the client
// address for requests without one.
func (l RateLimit) BySubject() func(http.Handler) http.Handler {
	return l.limiter(func(r *http.Request) (string, error) {
		if sub := GetSubject(r.Context()); sub != "" {
			return "sub:" + sub, nil
		}
		return httprate.KeyByRealIP(r)
	})
}

func (l RateLimit) limiter(key httprate.KeyFunc) func(http.Handler) http.Handler {
	window := l.Window
	if window <= 0 {
		window = time.Minute
	}
	retryAfter := int(math.Ceil(window.Seconds()))

	return httprate.Limit(l.Requests, window,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			p := models.NewStatusProblem(http.StatusTooManyRequests, GetRequestID(r.Context()),
				"rate limit exceeded, retry later")
			p.RetryAfter = retryAfter
			writeProblem(w, r, p)
		}),
	)
}
