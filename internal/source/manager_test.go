package source_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breezyweather/breezyd/internal/source"
	"github.com/breezyweather/breezyd/internal/weather"
)

type fakeSource struct {
	id         string
	priorities map[weather.Feature]int
	countries  []string
	configured *bool
}

func (f *fakeSource) ID() string   { return f.id }
func (f *fakeSource) Name() string { return "Fake " + f.id }

func (f *fakeSource) SupportedFeatures() []weather.Feature {
	features := make([]weather.Feature, 0, len(f.priorities))
	for feat := range f.priorities {
		features = append(features, feat)
	}
	return features
}

func (f *fakeSource) IsFeatureSupportedForLocation(loc *weather.Location, _ weather.Feature) bool {
	return len(f.countries) == 0 || loc.InCountry(f.countries...)
}

func (f *fakeSource) FeaturePriorityForLocation(_ *weather.Location, feat weather.Feature) int {
	return f.priorities[feat]
}

func (f *fakeSource) RequestWeather(_ context.Context, loc *weather.Location, _ []weather.Feature) (*source.Result, error) {
	return source.NewResult(loc), nil
}

func (f *fakeSource) IsConfigured() bool {
	return f.configured == nil || *f.configured
}

type fakeGeocoder struct {
	fakeSource
	searchPriority int
}

func (f *fakeGeocoder) ReverseGeocode(_ context.Context, loc *weather.Location) (*weather.Location, error) {
	out := *loc
	out.Name = f.id
	return &out, nil
}

func (f *fakeGeocoder) SearchLocations(_ context.Context, _, _ string) ([]weather.Location, error) {
	return nil, nil
}

func (f *fakeGeocoder) SearchPriority() int { return f.searchPriority }

type staticToggles map[string]bool

func (s staticToggles) DisabledSources(context.Context) map[string]bool { return s }

func newManager(t *testing.T, toggles source.Toggles, sources ...source.Source) *source.Manager {
	t.Helper()
	m := source.NewManager(source.ManagerConfig{Toggles: toggles, Logger: zerolog.Nop()})
	for _, src := range sources {
		require.NoError(t, m.Register(src))
	}
	return m
}

func ids(candidates []source.Candidate) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Source.ID())
	}
	return out
}

func TestManager_RegisterDuplicate(t *testing.T) {
	m := newManager(t, nil, &fakeSource{id: "a"})
	err := m.Register(&fakeSource{id: "a"})
	assert.ErrorIs(t, err, source.ErrDuplicateSource)
}

func TestManager_CandidatesByPriority(t *testing.T) {
	m := newManager(t, nil,
		&fakeSource{id: "global", priorities: map[weather.Feature]int{weather.FeatureForecast: source.PriorityHigh}},
		&fakeSource{id: "usonly", countries: []string{"US"}, priorities: map[weather.Feature]int{weather.FeatureForecast: source.PriorityHighest}},
		&fakeSource{id: "fallback", priorities: map[weather.Feature]int{weather.FeatureForecast: source.PriorityNone}},
	)
	ctx := context.Background()

	us := &weather.Location{CountryCode: "US"}
	assert.Equal(t, []string{"usonly", "global", "fallback"}, ids(m.Candidates(ctx, us, weather.FeatureForecast)))

	nl := &weather.Location{CountryCode: "NL"}
	assert.Equal(t, []string{"global", "fallback"}, ids(m.Candidates(ctx, nl, weather.FeatureForecast)))

	assert.Empty(t, m.Candidates(ctx, nl, weather.FeaturePollen))
}

func TestManager_CandidatesConfiguredFirst(t *testing.T) {
	m := newManager(t, nil,
		&fakeSource{id: "best", priorities: map[weather.Feature]int{weather.FeaturePollen: source.PriorityHighest}},
		&fakeSource{id: "chosen", priorities: map[weather.Feature]int{weather.FeaturePollen: source.PriorityNone}},
	)
	loc := &weather.Location{FeatureSources: map[weather.Feature]string{weather.FeaturePollen: "chosen"}}

	candidates := m.Candidates(context.Background(), loc, weather.FeaturePollen)
	require.Len(t, candidates, 2)
	assert.Equal(t, "chosen", candidates[0].Source.ID())
	assert.True(t, candidates[0].Configured)
	assert.False(t, candidates[1].Configured)
}

func TestManager_CandidatesTieBreak(t *testing.T) {
	m := newManager(t, nil,
		&fakeSource{id: "zeta", priorities: map[weather.Feature]int{weather.FeatureAirQuality: source.PriorityMedium, weather.FeatureForecast: source.PriorityMedium}},
		&fakeSource{id: "beta", priorities: map[weather.Feature]int{weather.FeatureAirQuality: source.PriorityMedium}},
		&fakeSource{id: "alpha", priorities: map[weather.Feature]int{weather.FeatureAirQuality: source.PriorityMedium}},
	)
	ctx := context.Background()

	loc := &weather.Location{}
	assert.Equal(t, []string{"alpha", "beta", "zeta"}, ids(m.Candidates(ctx, loc, weather.FeatureAirQuality)))

	loc.ForecastSource = "zeta"
	assert.Equal(t, []string{"zeta", "alpha", "beta"}, ids(m.Candidates(ctx, loc, weather.FeatureAirQuality)))
}

func TestManager_FiltersDisabledAndUnconfigured(t *testing.T) {
	no := false
	m := newManager(t, staticToggles{"off": true},
		&fakeSource{id: "on", priorities: map[weather.Feature]int{weather.FeatureForecast: source.PriorityLow}},
		&fakeSource{id: "off", priorities: map[weather.Feature]int{weather.FeatureForecast: source.PriorityHighest}},
		&fakeSource{id: "nokey", configured: &no, priorities: map[weather.Feature]int{weather.FeatureForecast: source.PriorityHighest}},
	)
	ctx := context.Background()

	assert.Equal(t, []string{"on"}, ids(m.Candidates(ctx, &weather.Location{}, weather.FeatureForecast)))
	assert.Len(t, m.WeatherSources(ctx), 1)

	infos := m.Describe(ctx)
	require.Len(t, infos, 3)
	assert.True(t, infos[0].Enabled)
	assert.False(t, infos[1].Enabled)
	assert.True(t, infos[1].Configured)
	assert.False(t, infos[2].Configured)

	_, ok := m.Get("off")
	assert.True(t, ok, "disabled sources stay registered")
}

func TestManager_DefaultSource(t *testing.T) {
	m := newManager(t, nil,
		&fakeSource{id: "a", priorities: map[weather.Feature]int{weather.FeatureForecast: source.PriorityMedium}},
	)
	ctx := context.Background()

	src, err := m.DefaultSource(ctx, &weather.Location{}, weather.FeatureForecast)
	require.NoError(t, err)
	assert.Equal(t, "a", src.ID())

	_, err = m.DefaultSource(ctx, &weather.Location{}, weather.FeatureAlert)
	assert.ErrorIs(t, err, source.ErrNoSourceForFeature)
}

func TestManager_ReverseGeocodingCandidates(t *testing.T) {
	m := newManager(t, nil,
		&fakeGeocoder{fakeSource: fakeSource{id: "low", priorities: map[weather.Feature]int{weather.FeatureReverseGeocoding: source.PriorityLow}}},
		&fakeGeocoder{fakeSource: fakeSource{id: "high", priorities: map[weather.Feature]int{weather.FeatureReverseGeocoding: source.PriorityHigh}}},
		&fakeGeocoder{fakeSource: fakeSource{id: "de", countries: []string{"DE"}, priorities: map[weather.Feature]int{weather.FeatureReverseGeocoding: source.PriorityHighest}}},
	)
	ctx := context.Background()

	loc := &weather.Location{CountryCode: "NL"}
	got := m.ReverseGeocodingCandidates(ctx, loc)
	require.Len(t, got, 2)
	assert.Equal(t, "high", got[0].ID())
	assert.Equal(t, "low", got[1].ID())

	loc.FeatureSources = map[weather.Feature]string{weather.FeatureReverseGeocoding: "low"}
	got = m.ReverseGeocodingCandidates(ctx, loc)
	assert.Equal(t, "low", got[0].ID())
}

func TestManager_LocationSearchSource(t *testing.T) {
	m := newManager(t, staticToggles{"off": true},
		&fakeGeocoder{fakeSource: fakeSource{id: "medium"}, searchPriority: source.PriorityMedium},
		&fakeGeocoder{fakeSource: fakeSource{id: "high"}, searchPriority: source.PriorityHigh},
		&fakeGeocoder{fakeSource: fakeSource{id: "off"}, searchPriority: source.PriorityHighest},
		&fakeSource{id: "plain"},
	)
	ctx := context.Background()

	src, err := m.LocationSearchSource(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "high", src.ID())

	src, err = m.LocationSearchSource(ctx, "medium")
	require.NoError(t, err)
	assert.Equal(t, "medium", src.ID())

	_, err = m.LocationSearchSource(ctx, "missing")
	assert.ErrorIs(t, err, source.ErrUnknownSource)

	_, err = m.LocationSearchSource(ctx, "plain")
	assert.ErrorIs(t, err, source.ErrNoSourceForFeature)

	_, err = m.LocationSearchSource(ctx, "off")
	assert.ErrorIs(t, err, source.ErrSourceDisabled)
}

func TestManager_CheckSource(t *testing.T) {
	m := newManager(t, nil,
		&fakeSource{id: "us", countries: []string{"US"}, priorities: map[weather.Feature]int{weather.FeatureAlert: source.PriorityHighest}},
	)
	ctx := context.Background()

	assert.NoError(t, m.CheckSource(ctx, &weather.Location{CountryCode: "US"}, weather.FeatureAlert, "us"))
	assert.ErrorIs(t, m.CheckSource(ctx, &weather.Location{CountryCode: "FR"}, weather.FeatureAlert, "us"), source.ErrFeatureNotSupported)
	assert.ErrorIs(t, m.CheckSource(ctx, &weather.Location{CountryCode: "US"}, weather.FeaturePollen, "us"), source.ErrFeatureNotSupported)
	assert.ErrorIs(t, m.CheckSource(ctx, &weather.Location{}, weather.FeatureAlert, "nope"), source.ErrUnknownSource)
}

func TestResult(t *testing.T) {
	r := source.NewResult(&weather.Location{Name: "Utrecht"})
	assert.Equal(t, "Utrecht", r.Weather.Location.Name)
	assert.True(t, r.Succeeded(weather.FeatureForecast))

	r.Fail(weather.FeatureForecast, assert.AnError)
	assert.False(t, r.Succeeded(weather.FeatureForecast))
}
