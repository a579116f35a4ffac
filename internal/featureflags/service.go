package featureflags

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Repository   Repository
	Logger       zerolog.Logger
	CacheTTL     time.Duration    // default 1m
	DefaultFlags map[string]*Flag // default DefaultFlags()
	Clock        func() time.Time
}

// Service resolves flags from a cached snapshot of the repository laid over
// the defaults. When the repository fails the last snapshot keeps being
// served, or the defaults if none was ever loaded.
type Service struct {
	repo     Repository
	logger   zerolog.Logger
	ttl      time.Duration
	defaults map[string]*Flag
	now      func() time.Time

	loads singleflight.Group

	mu       sync.RWMutex
	snapshot map[string]*Flag
	loadedAt time.Time
}

func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:     cfg.Repository,
		logger:   cfg.Logger,
		ttl:      cfg.CacheTTL,
		defaults: cfg.DefaultFlags,
		now:      cfg.Clock,
	}
	if s.ttl <= 0 {
		s.ttl = time.Minute
	}
	if s.defaults == nil {
		s.defaults = DefaultFlags()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// GetFlag returns the effective flag for key, or nil for keys that are
// neither stored nor defaulted.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if s == nil {
		return nil
	}
	return s.current(ctx)[key]
}

// GetAllFlags returns every effective flag ordered by key.
func (s *Service) GetAllFlags(ctx context.Context) []*Flag {
	snap := s.current(ctx)
	out := make([]*Flag, 0, len(snap))
	for _, f := range snap {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// SetFlag validates and stores one flag.
func (s *Service) SetFlag(ctx context.Context, flag *Flag) error {
	return s.SetFlags(ctx, []*Flag{flag})
}

// SetFlags validates every flag, then stores them together. Nothing is
// stored if any flag is invalid.
func (s *Service) SetFlags(ctx context.Context, flags []*Flag) error {
	for _, f := range flags {
		if err := ValidateFlag(f); err != nil {
			return err
		}
	}
	now := s.now()
	for _, f := range flags {
		f.UpdatedAt = now
	}
	if err := s.repo.Save(ctx, flags...); err != nil {
		return fmt.Errorf("save feature flags: %w", err)
	}

	s.mu.Lock()
	if s.snapshot != nil {
		next := make(map[string]*Flag, len(s.snapshot)+len(flags))
		for k, v := range s.snapshot {
			next[k] = v
		}
		for _, f := range flags {
			next[f.Key] = f
		}
		s.snapshot = next
	}
	s.mu.Unlock()

	s.logger.Info().Int("count", len(flags)).Msg("feature flags updated")
	return nil
}

// ResetFlag drops the stored override of key so that its default applies
// again.
func (s *Service) ResetFlag(ctx context.Context, key string) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		return err
	}
	s.InvalidateCache()
	s.logger.Info().Str("flag", key).Msg("feature flag reset")
	return nil
}

// InvalidateCache forces the next lookup to reload from the repository.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	s.loadedAt = time.Time{}
	s.mu.Unlock()
}

// IsEnabled reports whether the boolean flag key is set.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	return s.GetFlag(ctx, key).BoolValue(false)
}

// DisabledSources returns the source IDs switched off at runtime.
func (s *Service) DisabledSources(ctx context.Context) map[string]bool {
	ids := s.GetFlag(ctx, FlagDisabledSources).StringsValue()
	disabled := make(map[string]bool, len(ids))
	for _, id := range ids {
		disabled[id] = true
	}
	return disabled
}

func (s *Service) AlertsDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisableAlerts)
}

func (s *Service) CachedOnlyWeather(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagCachedOnlyWeather)
}

func (s *Service) ReverseGeocodingDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisableReverseGeocoding)
}

// current returns the snapshot, reloading it once the TTL has passed.
// Concurrent callers share a single reload.
func (s *Service) current(ctx context.Context) map[string]*Flag {
	s.mu.RLock()
	snap, fresh := s.snapshot, s.snapshot != nil && s.now().Sub(s.loadedAt) < s.ttl
	s.mu.RUnlock()
	if fresh {
		return snap
	}

	v, _, _ := s.loads.Do("flags", func() (any, error) {
		return s.reload(ctx), nil
	})
	return v.(map[string]*Flag)
}

func (s *Service) reload(ctx context.Context) map[string]*Flag {
	stored, err := s.repo.List(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn().Err(err).Msg("feature flags unavailable, serving last known values")
		}
		if s.snapshot != nil {
			return s.snapshot
		}
		return s.defaults
	}

	snap := make(map[string]*Flag, len(s.defaults)+len(stored))
	for k, v := range s.defaults {
		snap[k] = v
	}
	for _, f := range stored {
		snap[f.Key] = f
	}
	s.snapshot = snap
	s.loadedAt = s.now()
	return snap
}
