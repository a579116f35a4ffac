package source

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/breezyweather/breezyd/internal/weather"
)

// Manager errors.
var (
	ErrDuplicateSource     = errors.New("source already registered")
	ErrUnknownSource       = errors.New("unknown source")
	ErrSourceDisabled      = errors.New("source disabled")
	ErrNoSourceForFeature  = errors.New("no source available for feature")
	ErrFeatureNotSupported = errors.New("source does not support feature for location")
)

// Toggles reports sources switched off at runtime.
type Toggles interface {
	DisabledSources(ctx context.Context) map[string]bool
}

// ManagerConfig holds configuration for the Manager.
type ManagerConfig struct {
	Toggles Toggles
	Logger  zerolog.Logger
}

// Manager is the registry of sources, filtered by capability.
type Manager struct {
	toggles Toggles
	logger  zerolog.Logger

	mu      sync.RWMutex
	sources map[string]Source
	order   []string
}

// Candidate is a weather source eligible for a feature at a location.
type Candidate struct {
	Source     WeatherSource
	Priority   int
	Configured bool
}

// Info describes a registered source.
type Info struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Features         []weather.Feature `json:"features"`
	LocationSearch   bool              `json:"locationSearch"`
	ReverseGeocoding bool              `json:"reverseGeocoding"`
	Configured       bool              `json:"configured"`
	Enabled          bool              `json:"enabled"`
}

// NewManager creates an empty Manager.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		toggles: cfg.Toggles,
		logger:  cfg.Logger,
		sources: make(map[string]Source),
	}
}

// Register adds a source. IDs must be unique.
func (m *Manager) Register(src Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sources[src.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, src.ID())
	}
	m.sources[src.ID()] = src
	m.order = append(m.order, src.ID())

	m.logger.Debug().Str("source", src.ID()).Bool("configured", isConfigured(src)).Msg("source registered")
	return nil
}

// Get returns the source registered under id, enabled or not.
func (m *Manager) Get(id string) (Source, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.sources[id]
	return src, ok
}

// Enabled reports whether src is configured and not disabled by flags.
func (m *Manager) Enabled(ctx context.Context, src Source) bool {
	return isConfigured(src) && !m.disabled(ctx)[src.ID()]
}

// WeatherSources lists the enabled weather sources in registration order.
func (m *Manager) WeatherSources(ctx context.Context) []WeatherSource {
	return enabledOf[WeatherSource](ctx, m)
}

// LocationSearchSources lists the enabled location search sources.
func (m *Manager) LocationSearchSources(ctx context.Context) []LocationSearchSource {
	return enabledOf[LocationSearchSource](ctx, m)
}

// ReverseGeocodingSources lists the enabled reverse geocoding sources.
func (m *Manager) ReverseGeocodingSources(ctx context.Context) []ReverseGeocodingSource {
	return enabledOf[ReverseGeocodingSource](ctx, m)
}

// Describe lists every registered source with its capabilities.
func (m *Manager) Describe(ctx context.Context) []Info {
	disabled := m.disabled(ctx)

	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]Info, 0, len(m.order))
	for _, id := range m.order {
		src := m.sources[id]
		info := Info{
			ID:         id,
			Name:       src.Name(),
			Configured: isConfigured(src),
		}
		info.Enabled = info.Configured && !disabled[id]
		if fs, ok := src.(FeatureSource); ok {
			info.Features = fs.SupportedFeatures()
		}
		_, info.LocationSearch = src.(LocationSearchSource)
		_, info.ReverseGeocoding = src.(ReverseGeocodingSource)
		infos = append(infos, info)
	}
	return infos
}

// Candidates returns the enabled weather sources supporting f for loc,
// best first. The source configured on the location for f comes first,
// then higher priority. Ties prefer the location's forecast source and
// then the lower ID.
func (m *Manager) Candidates(ctx context.Context, loc *weather.Location, f weather.Feature) []Candidate {
	configured := loc.ConfiguredSource(f)

	var candidates []Candidate
	for _, src := range m.WeatherSources(ctx) {
		if !Supports(src, f) || !src.IsFeatureSupportedForLocation(loc, f) {
			continue
		}
		candidates = append(candidates, Candidate{
			Source:     src,
			Priority:   src.FeaturePriorityForLocation(loc, f),
			Configured: configured != "" && src.ID() == configured,
		})
	}

	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		if a.Configured != b.Configured {
			return boolFirst(a.Configured)
		}
		if a.Priority != b.Priority {
			return cmp.Compare(b.Priority, a.Priority)
		}
		aMain := loc.ForecastSource != "" && a.Source.ID() == loc.ForecastSource
		bMain := loc.ForecastSource != "" && b.Source.ID() == loc.ForecastSource
		if aMain != bMain {
			return boolFirst(aMain)
		}
		return cmp.Compare(a.Source.ID(), b.Source.ID())
	})
	return candidates
}

// DefaultSource returns the best candidate for f at loc.
func (m *Manager) DefaultSource(ctx context.Context, loc *weather.Location, f weather.Feature) (WeatherSource, error) {
	candidates := m.Candidates(ctx, loc, f)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSourceForFeature, f)
	}
	return candidates[0].Source, nil
}

// ReverseGeocodingCandidates returns the enabled reverse geocoding sources
// usable for loc, best first.
func (m *Manager) ReverseGeocodingCandidates(ctx context.Context, loc *weather.Location) []ReverseGeocodingSource {
	configured := loc.ConfiguredSource(weather.FeatureReverseGeocoding)
	f := weather.FeatureReverseGeocoding

	var out []ReverseGeocodingSource
	for _, src := range m.ReverseGeocodingSources(ctx) {
		if src.IsFeatureSupportedForLocation(loc, f) {
			out = append(out, src)
		}
	}
	slices.SortStableFunc(out, func(a, b ReverseGeocodingSource) int {
		if ac, bc := a.ID() == configured, b.ID() == configured; ac != bc {
			return boolFirst(ac)
		}
		if pa, pb := a.FeaturePriorityForLocation(loc, f), b.FeaturePriorityForLocation(loc, f); pa != pb {
			return cmp.Compare(pb, pa)
		}
		return cmp.Compare(a.ID(), b.ID())
	})
	return out
}

// LocationSearchSource returns the search source with the given id, or the
// highest priority one when id is empty.
func (m *Manager) LocationSearchSource(ctx context.Context, id string) (LocationSearchSource, error) {
	if id == "" {
		sources := m.LocationSearchSources(ctx)
		if len(sources) == 0 {
			return nil, ErrNoSourceForFeature
		}
		return slices.MaxFunc(sources, func(a, b LocationSearchSource) int {
			if a.SearchPriority() != b.SearchPriority() {
				return cmp.Compare(a.SearchPriority(), b.SearchPriority())
			}
			return cmp.Compare(b.ID(), a.ID())
		}), nil
	}

	src, ok := m.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	search, ok := src.(LocationSearchSource)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot search locations", ErrNoSourceForFeature, id)
	}
	if !m.Enabled(ctx, src) {
		return nil, fmt.Errorf("%w: %s", ErrSourceDisabled, id)
	}
	return search, nil
}

// CheckSource verifies that source id can serve f for loc.
func (m *Manager) CheckSource(ctx context.Context, loc *weather.Location, f weather.Feature, id string) error {
	src, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	if !m.Enabled(ctx, src) {
		return fmt.Errorf("%w: %s", ErrSourceDisabled, id)
	}
	fs, ok := src.(FeatureSource)
	if !ok || !Supports(fs, f) || !fs.IsFeatureSupportedForLocation(loc, f) {
		return fmt.Errorf("%w: %s/%s", ErrFeatureNotSupported, id, f)
	}
	return nil
}

func (m *Manager) disabled(ctx context.Context) map[string]bool {
	if m.toggles == nil {
		return nil
	}
	return m.toggles.DisabledSources(ctx)
}

func enabledOf[T Source](ctx context.Context, m *Manager) []T {
	disabled := m.disabled(ctx)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []T
	for _, id := range m.order {
		src, ok := m.sources[id].(T)
		if !ok || disabled[id] || !isConfigured(src) {
			continue
		}
		out = append(out, src)
	}
	return out
}

func isConfigured(src Source) bool {
	if c, ok := src.(ConfigurableSource); ok {
		return c.IsConfigured()
	}
	return true
}

func boolFirst(b bool) int {
	if b {
		return -1
	}
	return 1
}
