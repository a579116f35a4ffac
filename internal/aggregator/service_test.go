package aggregator_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breezyweather/breezyd/internal/aggregator"
	"github.com/breezyweather/breezyd/internal/location"
	"github.com/breezyweather/breezyd/internal/provider/resilience"
	"github.com/breezyweather/breezyd/internal/source"
	"github.com/breezyweather/breezyd/internal/weather"
	"github.com/breezyweather/breezyd/internal/weatherstore"
)

var errUpstream = errors.New("upstream down")

// scriptedSource serves every supported feature unless told to fail it.
type scriptedSource struct {
	id         string
	priorities map[weather.Feature]int
	fail       map[weather.Feature]error
	err        error
	timeZone   string

	mu    sync.Mutex
	calls [][]weather.Feature
}

func (s *scriptedSource) ID() string   { return s.id }
func (s *scriptedSource) Name() string { return s.id }

func (s *scriptedSource) SupportedFeatures() []weather.Feature {
	out := make([]weather.Feature, 0, len(s.priorities))
	for f := range s.priorities {
		out = append(out, f)
	}
	return out
}

func (s *scriptedSource) IsFeatureSupportedForLocation(_ *weather.Location, f weather.Feature) bool {
	_, ok := s.priorities[f]
	return ok
}

func (s *scriptedSource) FeaturePriorityForLocation(_ *weather.Location, f weather.Feature) int {
	return s.priorities[f]
}

func (s *scriptedSource) RequestWeather(_ context.Context, loc *weather.Location, features []weather.Feature) (*source.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, slices.Clone(features))
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	result := source.NewResult(loc)
	partial := weather.New(*loc)
	partial.Location.TimeZone = s.timeZone
	result.Weather.Location.TimeZone = s.timeZone
	for _, f := range features {
		if err, ok := s.fail[f]; ok {
			result.Fail(f, err)
			continue
		}
		fill(partial, f)
		result.Weather.Merge(f, partial, s.id, time.Now())
	}
	return result, result.Err(features)
}

func (s *scriptedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func fill(w *weather.Weather, f weather.Feature) {
	now := time.Now().UTC()
	switch f {
	case weather.FeatureForecast:
		w.Hourly = []weather.HourlyForecast{{Time: now.Truncate(time.Hour), Temperature: weather.Ptr(14.0)}}
		w.Daily = []weather.DailyForecast{{Date: now.Truncate(24 * time.Hour), TempMax: weather.Ptr(18.0), TempMin: weather.Ptr(9.0)}}
	case weather.FeatureCurrent:
		w.Current = &weather.Current{Temperature: weather.Ptr(15.0), ObservedAt: now}
	case weather.FeatureAirQuality:
		w.AirQuality = &weather.AirQualityData{Current: &weather.AirQuality{Time: now, PM25: weather.Ptr(7.0)}}
	case weather.FeaturePollen:
		w.Pollen = &weather.PollenData{Daily: []weather.PollenDay{{Date: now.Truncate(24 * time.Hour)}}}
	case weather.FeatureMinutely:
		start := now.Truncate(15 * time.Minute)
		w.Minutely = nil
		for i := range 4 {
			w.Minutely = append(w.Minutely, weather.Minutely{
				Time:          start.Add(time.Duration(i) * 15 * time.Minute),
				Interval:      15 * time.Minute,
				Precipitation: weather.Ptr(float64(i)),
			})
		}
	case weather.FeatureAlert:
		w.Alerts = []weather.Alert{}
	case weather.FeatureNormals:
		w.Normals = &weather.Normals{Month: now.Month(), DaytimeMax: 17, NighttimeMin: 8}
	}
}

type geocoder struct {
	id   string
	name string
	err  error
}

func (g *geocoder) ID() string   { return g.id }
func (g *geocoder) Name() string { return g.id }
func (g *geocoder) SupportedFeatures() []weather.Feature {
	return []weather.Feature{weather.FeatureReverseGeocoding}
}
func (g *geocoder) IsFeatureSupportedForLocation(*weather.Location, weather.Feature) bool { return true }
func (g *geocoder) FeaturePriorityForLocation(*weather.Location, weather.Feature) int {
	return source.PriorityMedium
}

func (g *geocoder) ReverseGeocode(_ context.Context, loc *weather.Location) (*weather.Location, error) {
	if g.err != nil {
		return nil, g.err
	}
	out := *loc
	out.Name = g.name
	out.CountryCode = "NL"
	return &out, nil
}

type flags struct {
	alertsOff, cachedOnly, geocodingOff bool
}

func (f flags) AlertsDisabled(context.Context) bool           { return f.alertsOff }
func (f flags) CachedOnlyWeather(context.Context) bool        { return f.cachedOnly }
func (f flags) ReverseGeocodingDisabled(context.Context) bool { return f.geocodingOff }

type fixture struct {
	svc       *aggregator.Service
	store     *weatherstore.InMemoryRepository
	locations *location.InMemoryRepository
	registry  *resilience.Registry
}

func newFixture(t *testing.T, cfg aggregator.ServiceConfig, sources ...source.Source) *fixture {
	t.Helper()

	manager := source.NewManager(source.ManagerConfig{Logger: zerolog.Nop()})
	registry := resilience.NewRegistry()
	for _, src := range sources {
		require.NoError(t, manager.Register(src))
		registry.Register(src.ID(), nil)
	}

	f := &fixture{
		store:     weatherstore.NewInMemoryRepository(),
		locations: location.NewInMemoryRepository(),
		registry:  registry,
	}
	cfg.Sources = manager
	cfg.Store = f.store
	cfg.Locations = f.locations
	cfg.Registry = registry
	cfg.Logger = zerolog.Nop()
	f.svc = aggregator.NewService(cfg)
	return f
}

func saved(t *testing.T, f *fixture, loc *weather.Location) *weather.Location {
	t.Helper()
	require.NoError(t, f.locations.Create(context.Background(), loc))
	return loc
}

var features = []weather.Feature{weather.FeatureForecast, weather.FeatureCurrent, weather.FeatureAirQuality}

func TestRefresh_GroupsFeaturesBySource(t *testing.T) {
	general := &scriptedSource{id: "main", timeZone: "Europe/Amsterdam", priorities: map[weather.Feature]int{
		weather.FeatureForecast:   source.PriorityHigh,
		weather.FeatureCurrent:    source.PriorityHigh,
		weather.FeatureAirQuality: source.PriorityLow,
	}}
	aq := &scriptedSource{id: "aq", priorities: map[weather.Feature]int{
		weather.FeatureAirQuality: source.PriorityHighest,
	}}
	f := newFixture(t, aggregator.ServiceConfig{}, general, aq)
	loc := saved(t, f, &weather.Location{ID: "loc_1", Lat: 52.09, Lon: 5.12})

	w, report, err := f.svc.Refresh(context.Background(), loc, aggregator.Options{Features: features})
	require.NoError(t, err)

	require.Equal(t, 1, general.callCount())
	assert.ElementsMatch(t, []weather.Feature{weather.FeatureForecast, weather.FeatureCurrent}, general.calls[0])
	require.Equal(t, 1, aq.callCount())
	assert.Equal(t, []weather.Feature{weather.FeatureAirQuality}, aq.calls[0])

	assert.Equal(t, "main", w.Sources[weather.FeatureForecast])
	assert.Equal(t, "main", w.Sources[weather.FeatureCurrent])
	assert.Equal(t, "aq", w.Sources[weather.FeatureAirQuality])
	assert.Equal(t, "Europe/Amsterdam", w.Location.TimeZone)
	assert.Equal(t, 1, report.Rounds)
	assert.Empty(t, report.Missing())
	assert.False(t, w.RefreshedAt.IsZero())

	stored, err := f.store.Get(context.Background(), "loc_1")
	require.NoError(t, err)
	assert.Equal(t, "aq", stored.Sources[weather.FeatureAirQuality])

	updated, err := f.locations.Get(context.Background(), "loc_1")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Amsterdam", updated.TimeZone)

	health := f.registry.Health("main")
	require.NotNil(t, health)
	assert.NotNil(t, health.LastSuccessAt)
}

func TestRefresh_FallsBackToNextCandidate(t *testing.T) {
	primary := &scriptedSource{id: "primary",
		priorities: map[weather.Feature]int{weather.FeatureForecast: source.PriorityHighest, weather.FeatureCurrent: source.PriorityHighest},
		fail:       map[weather.Feature]error{weather.FeatureCurrent: errUpstream},
	}
	secondary := &scriptedSource{id: "secondary",
		priorities: map[weather.Feature]int{weather.FeatureForecast: source.PriorityMedium, weather.FeatureCurrent: source.PriorityMedium},
	}
	f := newFixture(t, aggregator.ServiceConfig{}, primary, secondary)

	w, report, err := f.svc.Refresh(context.Background(), &weather.Location{Lat: 40, Lon: -75},
		aggregator.Options{Features: []weather.Feature{weather.FeatureCurrent}})
	require.NoError(t, err)

	assert.Equal(t, "primary", w.Sources[weather.FeatureForecast])
	assert.Equal(t, "secondary", w.Sources[weather.FeatureCurrent])
	assert.Equal(t, 2, report.Rounds)
	assert.Equal(t, []string{"primary", "secondary"}, report.Features[weather.FeatureCurrent].Attempts)
	assert.Empty(t, report.Features[weather.FeatureCurrent].Error)
	require.Len(t, secondary.calls, 1)
	assert.Equal(t, []weather.Feature{weather.FeatureCurrent}, secondary.calls[0])
}

func TestRefresh_WholeSourceFailureFallsBack(t *testing.T) {
	broken := &scriptedSource{id: "broken", err: errUpstream,
		priorities: map[weather.Feature]int{weather.FeatureForecast: source.PriorityHighest},
	}
	backup := &scriptedSource{id: "backup",
		priorities: map[weather.Feature]int{weather.FeatureForecast: source.PriorityNone},
	}
	f := newFixture(t, aggregator.ServiceConfig{}, broken, backup)

	w, _, err := f.svc.Refresh(context.Background(), &weather.Location{Lat: 1, Lon: 1}, aggregator.Options{Features: []weather.Feature{weather.FeatureForecast}})
	require.NoError(t, err)
	assert.Equal(t, "backup", w.Sources[weather.FeatureForecast])

	health := f.registry.Health("broken")
	require.NotNil(t, health)
	assert.NotNil(t, health.LastFailureAt)
	assert.Contains(t, health.LastError, "upstream down")
}

func TestRefresh_FallbackRoundsAreBounded(t *testing.T) {
	sources := []source.Source{
		&scriptedSource{id: "a", priorities: map[weather.Feature]int{weather.FeatureForecast: 90}, fail: map[weather.Feature]error{weather.FeatureForecast: errUpstream}},
		&scriptedSource{id: "b", priorities: map[weather.Feature]int{weather.FeatureForecast: 80}, fail: map[weather.Feature]error{weather.FeatureForecast: errUpstream}},
		&scriptedSource{id: "c", priorities: map[weather.Feature]int{weather.FeatureForecast: 70}},
	}
	f := newFixture(t, aggregator.ServiceConfig{MaxFallbackRounds: 1}, sources...)

	_, report, err := f.svc.Refresh(context.Background(), &weather.Location{Lat: 1, Lon: 1}, aggregator.Options{Features: []weather.Feature{weather.FeatureForecast}})
	require.ErrorIs(t, err, aggregator.ErrForecastUnavailable)
	assert.ErrorIs(t, err, errUpstream)
	assert.Equal(t, 2, report.Rounds)
	assert.Equal(t, []string{"a", "b"}, report.Features[weather.FeatureForecast].Attempts)
	assert.Equal(t, 0, sources[2].(*scriptedSource).callCount())
}

func TestRefresh_StaleRetention(t *testing.T) {
	src := &scriptedSource{id: "src",
		priorities: map[weather.Feature]int{weather.FeatureForecast: 50, weather.FeatureAirQuality: 50, weather.FeatureCurrent: 50},
		fail:       map[weather.Feature]error{weather.FeatureAirQuality: errUpstream, weather.FeatureCurrent: errUpstream},
	}
	f := newFixture(t, aggregator.ServiceConfig{StaleIfErrorTTL: 2 * time.Hour}, src)
	loc := saved(t, f, &weather.Location{ID: "loc_stale", Lat: 52, Lon: 5})

	previous := weather.New(*loc)
	fill(previous, weather.FeatureAirQuality)
	previous.Merge(weather.FeatureAirQuality, previous, "old-aq", time.Now().Add(-time.Hour))
	fill(previous, weather.FeatureCurrent)
	previous.Merge(weather.FeatureCurrent, previous, "old-current", time.Now().Add(-3*time.Hour))
	require.NoError(t, f.store.Save(context.Background(), loc.ID, previous))

	w, report, err := f.svc.Refresh(context.Background(), loc, aggregator.Options{Features: features})
	require.NoError(t, err)

	assert.Equal(t, "old-aq", w.Sources[weather.FeatureAirQuality])
	assert.True(t, report.Features[weather.FeatureAirQuality].Stale)
	assert.Contains(t, report.Features[weather.FeatureAirQuality].Error, "upstream down")

	// Current older than the stale TTL is dropped and derived from the
	// fresh hourly forecast instead.
	require.NotNil(t, w.Current)
	assert.True(t, w.Current.Derived)
	assert.Equal(t, "src", w.Sources[weather.FeatureCurrent])
	current := report.Features[weather.FeatureCurrent]
	assert.True(t, current.Derived)
	assert.False(t, current.Stale)
	assert.Equal(t, "src", current.Source)
	assert.Contains(t, current.Error, "upstream down")
	assert.Empty(t, report.Missing())
	assert.Equal(t, []weather.Feature{weather.FeatureAirQuality}, report.StaleFeatures())
}

func TestRefresh_DerivedCurrentIsAttributed(t *testing.T) {
	src := &scriptedSource{id: "src",
		priorities: map[weather.Feature]int{weather.FeatureForecast: 50, weather.FeatureCurrent: 50},
		fail:       map[weather.Feature]error{weather.FeatureCurrent: errUpstream},
	}
	f := newFixture(t, aggregator.ServiceConfig{}, src)
	opts := aggregator.Options{Features: []weather.Feature{weather.FeatureCurrent}}

	w, report, err := f.svc.RefreshPoint(context.Background(), 52.09, 5.12, opts)
	require.NoError(t, err)

	require.NotNil(t, w.Current)
	assert.True(t, w.HasFeature(weather.FeatureCurrent))
	assert.Equal(t, w.Sources[weather.FeatureForecast], w.Sources[weather.FeatureCurrent])
	assert.Equal(t, w.FeatureUpdatedAt[weather.FeatureForecast], w.FeatureUpdatedAt[weather.FeatureCurrent])
	assert.True(t, report.Features[weather.FeatureCurrent].Derived)
	assert.False(t, report.Features[weather.FeatureForecast].Derived)
	assert.Empty(t, report.Missing())
}

func TestRefresh_DerivedCurrentIsNotKeptAsStale(t *testing.T) {
	src := &scriptedSource{id: "src",
		priorities: map[weather.Feature]int{weather.FeatureForecast: 50, weather.FeatureCurrent: 50},
		fail:       map[weather.Feature]error{weather.FeatureCurrent: errUpstream},
	}
	f := newFixture(t, aggregator.ServiceConfig{}, src)
	loc := saved(t, f, &weather.Location{ID: "loc_derived", Lat: 52, Lon: 5})
	opts := aggregator.Options{Features: []weather.Feature{weather.FeatureCurrent}}

	_, _, err := f.svc.Refresh(context.Background(), loc, opts)
	require.NoError(t, err)
	_, report, err := f.svc.Refresh(context.Background(), loc, opts)
	require.NoError(t, err)

	assert.Empty(t, report.StaleFeatures(), "derived conditions are recomputed from the new forecast")
	assert.True(t, report.Features[weather.FeatureCurrent].Derived)
}

func TestRefresh_ForecastUnavailable(t *testing.T) {
	src := &scriptedSource{id: "src", err: errUpstream,
		priorities: map[weather.Feature]int{weather.FeatureForecast: 50},
	}
	f := newFixture(t, aggregator.ServiceConfig{}, src)
	loc := saved(t, f, &weather.Location{ID: "loc_none", Lat: 52, Lon: 5})

	w, report, err := f.svc.Refresh(context.Background(), loc, aggregator.Options{})
	require.ErrorIs(t, err, aggregator.ErrForecastUnavailable)
	assert.Nil(t, w)
	require.NotNil(t, report)
	assert.Contains(t, report.Missing(), weather.FeatureForecast)

	_, err = f.store.Get(context.Background(), loc.ID)
	assert.ErrorIs(t, err, weatherstore.ErrNotFound)
}

func TestRefresh_NoSourceForForecast(t *testing.T) {
	f := newFixture(t, aggregator.ServiceConfig{})

	_, _, err := f.svc.Refresh(context.Background(), &weather.Location{Lat: 1, Lon: 1}, aggregator.Options{})
	assert.ErrorIs(t, err, aggregator.ErrForecastUnavailable)
	assert.ErrorIs(t, err, source.ErrNoSourceForFeature)
}

func TestRefresh_InvalidCoordinates(t *testing.T) {
	f := newFixture(t, aggregator.ServiceConfig{})

	_, _, err := f.svc.Refresh(context.Background(), &weather.Location{Lat: 100, Lon: 1}, aggregator.Options{})
	assert.ErrorIs(t, err, weather.ErrInvalidCoordinates)
}

func TestRefresh_Flags(t *testing.T) {
	all := map[weather.Feature]int{}
	for _, feat := range weather.AllWeatherFeatures() {
		all[feat] = source.PriorityMedium
	}

	t.Run("alerts disabled", func(t *testing.T) {
		src := &scriptedSource{id: "src", priorities: all}
		f := newFixture(t, aggregator.ServiceConfig{Flags: flags{alertsOff: true}}, src)

		w, report, err := f.svc.Refresh(context.Background(), &weather.Location{Lat: 1, Lon: 1}, aggregator.Options{})
		require.NoError(t, err)
		require.Equal(t, 1, src.callCount())
		assert.NotContains(t, src.calls[0], weather.FeatureAlert)
		assert.Len(t, src.calls[0], len(weather.AllWeatherFeatures())-1)
		assert.False(t, w.HasFeature(weather.FeatureAlert))
		assert.NotContains(t, report.Features, weather.FeatureAlert)
	})

	t.Run("cached only", func(t *testing.T) {
		src := &scriptedSource{id: "src", priorities: all}
		f := newFixture(t, aggregator.ServiceConfig{Flags: flags{cachedOnly: true}}, src)
		loc := saved(t, f, &weather.Location{ID: "loc_cached", Lat: 1, Lon: 1})

		stored := weather.New(*loc)
		fill(stored, weather.FeatureForecast)
		stored.Merge(weather.FeatureForecast, stored, "earlier", time.Now().Add(-48*time.Hour))
		require.NoError(t, f.store.Save(context.Background(), loc.ID, stored))

		w, report, err := f.svc.Refresh(context.Background(), loc, aggregator.Options{})
		require.NoError(t, err)
		assert.True(t, report.CachedOnly)
		assert.Equal(t, "earlier", w.Sources[weather.FeatureForecast])
		assert.Equal(t, 0, src.callCount())
	})

	t.Run("cached only without stored weather fetches", func(t *testing.T) {
		src := &scriptedSource{id: "src", priorities: all}
		f := newFixture(t, aggregator.ServiceConfig{Flags: flags{cachedOnly: true}}, src)

		_, report, err := f.svc.Refresh(context.Background(), &weather.Location{ID: "loc_new", Lat: 1, Lon: 1}, aggregator.Options{})
		require.NoError(t, err)
		assert.False(t, report.CachedOnly)
		assert.Equal(t, 1, src.callCount())
	})
}

func TestRefresh_ReverseGeocoding(t *testing.T) {
	forecast := map[weather.Feature]int{weather.FeatureForecast: source.PriorityMedium}

	t.Run("first working geocoder names the location", func(t *testing.T) {
		f := newFixture(t, aggregator.ServiceConfig{},
			&scriptedSource{id: "src", priorities: forecast},
			&geocoder{id: "a-broken", err: errUpstream},
			&geocoder{id: "b-works", name: "Utrecht"},
		)
		loc := saved(t, f, &weather.Location{ID: "loc_here", Lat: 52.09, Lon: 5.12, IsCurrentPosition: true})

		w, report, err := f.svc.Refresh(context.Background(), loc, aggregator.Options{})
		require.NoError(t, err)

		require.NotNil(t, report.ReverseGeocoding)
		assert.Equal(t, "b-works", report.ReverseGeocoding.Source)
		assert.Equal(t, []string{"a-broken", "b-works"}, report.ReverseGeocoding.Attempts)
		assert.Equal(t, "Utrecht", w.Location.Name)

		updated, err := f.locations.Get(context.Background(), loc.ID)
		require.NoError(t, err)
		assert.Equal(t, "Utrecht", updated.Name)
		assert.Equal(t, "NL", updated.CountryCode)
	})

	t.Run("failures do not fail the refresh", func(t *testing.T) {
		f := newFixture(t, aggregator.ServiceConfig{},
			&scriptedSource{id: "src", priorities: forecast},
			&geocoder{id: "broken", err: errUpstream},
		)
		loc := &weather.Location{Lat: 52.09, Lon: 5.12, IsCurrentPosition: true, Name: "Somewhere"}

		w, report, err := f.svc.Refresh(context.Background(), loc, aggregator.Options{})
		require.NoError(t, err)
		assert.Contains(t, report.ReverseGeocoding.Error, "upstream down")
		assert.Equal(t, "Somewhere", w.Location.Name)
	})

	t.Run("disabled by flag", func(t *testing.T) {
		f := newFixture(t, aggregator.ServiceConfig{Flags: flags{geocodingOff: true}},
			&scriptedSource{id: "src", priorities: forecast},
			&geocoder{id: "geo", name: "Utrecht"},
		)

		_, report, err := f.svc.Refresh(context.Background(), &weather.Location{Lat: 1, Lon: 1, IsCurrentPosition: true}, aggregator.Options{})
		require.NoError(t, err)
		assert.Nil(t, report.ReverseGeocoding)
	})
}

func TestRefreshByID(t *testing.T) {
	src := &scriptedSource{id: "src", priorities: map[weather.Feature]int{weather.FeatureForecast: 50}}
	f := newFixture(t, aggregator.ServiceConfig{}, src)
	saved(t, f, &weather.Location{ID: "loc_by_id", Lat: 10, Lon: 10})

	_, _, err := f.svc.RefreshByID(context.Background(), "loc_by_id", aggregator.Options{})
	require.NoError(t, err)

	stored, err := f.svc.Get(context.Background(), "loc_by_id")
	require.NoError(t, err)
	assert.True(t, stored.HasForecast())

	_, _, err = f.svc.RefreshByID(context.Background(), "loc_missing", aggregator.Options{})
	assert.ErrorIs(t, err, location.ErrLocationNotFound)
}

func TestRefreshPoint_CachesByGridCell(t *testing.T) {
	src := &scriptedSource{id: "src", priorities: map[weather.Feature]int{weather.FeatureForecast: 50}}
	f := newFixture(t, aggregator.ServiceConfig{PointGridSize: 0.1}, src)
	ctx := context.Background()

	_, report, err := f.svc.RefreshPoint(ctx, 52.091, 5.121, aggregator.Options{})
	require.NoError(t, err)
	assert.False(t, report.CachedOnly)

	w, report, err := f.svc.RefreshPoint(ctx, 52.099, 5.129, aggregator.Options{})
	require.NoError(t, err)
	assert.True(t, report.CachedOnly)
	assert.True(t, w.HasForecast())
	assert.Equal(t, 1, src.callCount())
	assert.Equal(t, 1, f.svc.CachedPoints())

	_, _, err = f.svc.RefreshPoint(ctx, 52.25, 5.121, aggregator.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, src.callCount())

	_, _, err = f.svc.RefreshPoint(ctx, -91, 0, aggregator.Options{})
	assert.ErrorIs(t, err, weather.ErrInvalidCoordinates)
}

func TestReverseGeocode(t *testing.T) {
	f := newFixture(t, aggregator.ServiceConfig{}, &geocoder{id: "geo", name: "Utrecht"})

	loc, report, err := f.svc.ReverseGeocode(context.Background(), 52.09, 5.12)
	require.NoError(t, err)
	assert.Equal(t, "Utrecht", loc.Name)
	assert.Equal(t, "geo", report.Source)

	empty := newFixture(t, aggregator.ServiceConfig{})
	_, _, err = empty.svc.ReverseGeocode(context.Background(), 52.09, 5.12)
	assert.ErrorIs(t, err, source.ErrNoSourceForFeature)
}

func TestRefreshPoint_StaleDataLeavesEarlierResultsIntact(t *testing.T) {
	src := &scriptedSource{id: "src",
		priorities: map[weather.Feature]int{weather.FeatureForecast: 50, weather.FeatureMinutely: 50},
	}
	clock := time.Now().Truncate(15 * time.Minute)
	f := newFixture(t, aggregator.ServiceConfig{Clock: func() time.Time { return clock }}, src)
	ctx := context.Background()
	opts := aggregator.Options{Features: []weather.Feature{weather.FeatureMinutely}}

	first, _, err := f.svc.RefreshPoint(ctx, 52.09, 5.12, opts)
	require.NoError(t, err)
	require.Equal(t, []float64{0, 1, 2, 3}, precipitation(first.Minutely))

	clock = clock.Add(31 * time.Minute)
	src.fail = map[weather.Feature]error{weather.FeatureMinutely: errUpstream}

	second, report, err := f.svc.RefreshPoint(ctx, 52.09, 5.12, opts)
	require.NoError(t, err)
	assert.Equal(t, []weather.Feature{weather.FeatureMinutely}, report.StaleFeatures())
	assert.Equal(t, []float64{2, 3}, precipitation(second.Minutely))
	assert.Equal(t, []float64{0, 1, 2, 3}, precipitation(first.Minutely))
}

func precipitation(series []weather.Minutely) []float64 {
	out := make([]float64, 0, len(series))
	for _, m := range series {
		out = append(out, *m.Precipitation)
	}
	return out
}

// emptySource answers without error but with no weather at all.
type emptySource struct{ scriptedSource }

func (s *emptySource) RequestWeather(context.Context, *weather.Location, []weather.Feature) (*source.Result, error) {
	return &source.Result{}, nil
}

func TestRefresh_ResultWithoutWeatherFallsBack(t *testing.T) {
	empty := &emptySource{scriptedSource{id: "empty", priorities: map[weather.Feature]int{weather.FeatureForecast: 90}}}
	backup := &scriptedSource{id: "backup", priorities: map[weather.Feature]int{weather.FeatureForecast: 10}}
	f := newFixture(t, aggregator.ServiceConfig{}, empty, backup)

	w, report, err := f.svc.RefreshPoint(context.Background(), 52.09, 5.12, aggregator.Options{})
	require.NoError(t, err)

	assert.Equal(t, "backup", w.Sources[weather.FeatureForecast])
	assert.Equal(t, []string{"empty", "backup"}, report.Features[weather.FeatureForecast].Attempts)
}
