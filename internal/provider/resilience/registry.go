package resilience

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Health status values reported for a source.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Breaker exposes the state of a source's circuit breaker.
type Breaker interface {
	State() gobreaker.State
	Counts() gobreaker.Counts
}

// SourceHealth is what the registry knows about one source.
type SourceHealth struct {
	Source        string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
	// Failures counts every failure since registration.
	Failures uint64
}

// Status maps the breaker state: closed is healthy, half-open degraded and
// open unhealthy.
func (h *SourceHealth) Status() string {
	switch h.CircuitState {
	case gobreaker.StateOpen:
		return StatusUnhealthy
	case gobreaker.StateHalfOpen:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

type entry struct {
	breaker     Breaker
	lastSuccess time.Time
	lastFailure time.Time
	lastError   string
	failures    uint64
}

// Registry records the outcome of source requests next to their breakers.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry), now: time.Now}
}

// Register tracks source, replacing earlier history. b may be nil for
// sources without a breaker.
func (r *Registry) Register(source string, b Breaker) {
	r.mu.Lock()
	r.entries[source] = &entry{breaker: b}
	r.mu.Unlock()
}

func (r *Registry) Unregister(source string) {
	r.mu.Lock()
	delete(r.entries, source)
	r.mu.Unlock()
}

// Record notes a request outcome for source: success when err is nil.
// Cancellations are ignored and unknown sources are skipped.
func (r *Registry) Record(source string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[source]
	if !ok {
		return
	}
	if err == nil {
		e.lastSuccess = r.now()
		return
	}
	e.lastFailure = r.now()
	e.lastError = err.Error()
	e.failures++
}

// Health returns the health of source, or nil when it is not registered.
func (r *Registry) Health(source string) *SourceHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[source]; ok {
		return e.health(source)
	}
	return nil
}

// All returns the health of every source ordered by ID.
func (r *Registry) All() []*SourceHealth {
	r.mu.RLock()
	out := make([]*SourceHealth, 0, len(r.entries))
	for id, e := range r.entries {
		out = append(out, e.health(id))
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *SourceHealth) int { return strings.Compare(a.Source, b.Source) })
	return out
}

// Len is the number of registered sources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (e *entry) health(source string) *SourceHealth {
	h := &SourceHealth{
		Source:        source,
		LastSuccessAt: optionalTime(e.lastSuccess),
		LastFailureAt: optionalTime(e.lastFailure),
		LastError:     e.lastError,
		Failures:      e.failures,
	}
	if e.breaker != nil {
		h.CircuitState = e.breaker.State()
		h.Counts = e.breaker.Counts()
	}
	return h
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
