// Package middleware provides HTTP middleware for the breezyd API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const maxRequestIDLen = 128

type requestIDKey struct{}

// RequestID puts a request ID in the context and echoes it in the
// X-Request-Id response header. A well-formed ID sent by the client is kept
// so callers can correlate their own logs; anything else is replaced.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if !validRequestID(id) {
			id = NewRequestID()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

// NewRequestID returns a fresh "req_" prefixed ID.
func NewRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// WithRequestID returns a copy of ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// GetRequestID returns the request ID in ctx, or an empty string.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// validRequestID accepts short IDs of visible ASCII so that client values
// cannot inject into headers or log lines.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}
