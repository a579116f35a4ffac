package aggregator

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/breezyweather/breezyd/internal/source"
	"github.com/breezyweather/breezyd/internal/weather"
)

// group is one source request covering several features.
type group struct {
	src      source.WeatherSource
	features []weather.Feature

	result *source.Result
	err    error
}

// fetchAll runs the fetch rounds and merges successful features into agg.
// It returns the features that could not be fetched with their last error.
func (s *Service) fetchAll(ctx context.Context, loc *weather.Location, features []weather.Feature, agg *weather.Weather, report *Report) map[weather.Feature]error {
	candidates := make(map[weather.Feature][]source.Candidate, len(features))
	next := make(map[weather.Feature]int, len(features))
	missing := make(map[weather.Feature]error)

	pending := make([]weather.Feature, 0, len(features))
	for _, f := range features {
		report.feature(f)
		candidates[f] = s.sources.Candidates(ctx, loc, f)
		if len(candidates[f]) == 0 {
			missing[f] = fmt.Errorf("%w: %s", source.ErrNoSourceForFeature, f)
			continue
		}
		pending = append(pending, f)
	}

	for round := 0; round <= s.fallbackRounds && len(pending) > 0; round++ {
		groups := s.plan(pending, candidates, next)
		if len(groups) == 0 {
			break
		}
		report.Rounds++
		s.fetchRound(ctx, loc, groups)

		var failed []weather.Feature
		for _, g := range groups {
			for _, f := range g.features {
				next[f]++
				fr := report.feature(f)
				fr.Attempts = append(fr.Attempts, g.src.ID())

				if err := featureError(g, f); err != nil {
					missing[f] = fmt.Errorf("%s: %w", g.src.ID(), err)
					if next[f] < len(candidates[f]) {
						failed = append(failed, f)
						s.metrics.recordFallback(ctx, f)
					}
					continue
				}

				delete(missing, f)
				at := g.result.Weather.FeatureUpdatedAt[f]
				if at.IsZero() {
					at = s.now()
				}
				agg.Merge(f, g.result.Weather, g.src.ID(), at)
				fr.Source = g.src.ID()
				fr.Error = ""

				if loc.TimeZone == "" && g.result.Weather.Location.TimeZone != "" {
					loc.TimeZone = g.result.Weather.Location.TimeZone
				}
			}
		}
		pending = failed
		if ctx.Err() != nil {
			break
		}
	}

	return missing
}

// plan assigns each pending feature to its next candidate and groups the
// features by source so every source is called once per round.
func (s *Service) plan(pending []weather.Feature, candidates map[weather.Feature][]source.Candidate, next map[weather.Feature]int) []*group {
	var groups []*group
	byID := make(map[string]*group)
	for _, f := range pending {
		idx := next[f]
		if idx >= len(candidates[f]) {
			continue
		}
		src := candidates[f][idx].Source
		g, ok := byID[src.ID()]
		if !ok {
			g = &group{src: src}
			byID[src.ID()] = g
			groups = append(groups, g)
		}
		g.features = append(g.features, f)
	}
	return groups
}

// fetchRound calls every group concurrently. A failing source never
// cancels the others.
func (s *Service) fetchRound(ctx context.Context, loc *weather.Location, groups []*group) {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(s.maxConcurrent)

	for _, grp := range groups {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, s.sourceTimeout)
			defer cancel()

			l := *loc
			started := s.now()
			result, err := grp.src.RequestWeather(sctx, &l, grp.features)
			elapsed := s.now().Sub(started)

			if err == nil && result == nil {
				err = weather.ErrNoDataForLocation
			}
			s.metrics.recordRequest(ctx, grp.src.ID(), elapsed, err)
			s.record(grp.src.ID(), err)

			mu.Lock()
			grp.result, grp.err = result, err
			mu.Unlock()

			if err != nil {
				s.logger.Warn().
					Err(err).
					Str("source", grp.src.ID()).
					Interface("features", grp.features).
					Dur("elapsed", elapsed).
					Msg("source request failed")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// featureError returns why f is unusable in the group's result.
func featureError(g *group, f weather.Feature) error {
	if g.result != nil {
		if err, failed := g.result.FailedFeatures[f]; failed {
			return err
		}
	}
	if g.err != nil {
		return g.err
	}
	if g.result == nil || g.result.Weather == nil || !g.result.Weather.Provides(f) {
		return weather.ErrNoDataForLocation
	}
	return nil
}
