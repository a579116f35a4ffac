// Package resilience wraps calls to upstream weather sources with circuit
// breakers, timeouts and retries, and tracks per-source health.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker in front of one source.
type BreakerConfig struct {
	// HalfOpenRequests may probe the source while half-open.
	HalfOpenRequests uint32
	// CountWindow clears the counts periodically while closed. Zero keeps
	// them until the next state change.
	CountWindow time.Duration
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// The breaker opens once MinRequests were counted and at least
	// FailureRatio of them failed.
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerConfig opens after 5 requests with half of them failing and
// probes again after a minute.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		HalfOpenRequests: 1,
		OpenTimeout:      time.Minute,
		MinRequests:      5,
		FailureRatio:     0.5,
	}
}

// ShouldTrip reports whether counts warrant opening the breaker.
func (c BreakerConfig) ShouldTrip(counts gobreaker.Counts) bool {
	if counts.Requests == 0 || counts.Requests < c.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

func newBreaker[T any](name string, cfg BreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.CountWindow,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: cfg.ShouldTrip,
		// A caller giving up says nothing about the source.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			level := zerolog.InfoLevel
			if to == gobreaker.StateOpen {
				level = zerolog.WarnLevel
			}
			logger.WithLevel(level).
				Str("source", name).
				Stringer("from", from).
				Stringer("to", to).
				Msg("circuit breaker state changed")
		},
	})
}
