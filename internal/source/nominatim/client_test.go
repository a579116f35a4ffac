package nominatim_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breezyweather/breezyd/internal/provider/resilience"
	"github.com/breezyweather/breezyd/internal/source"
	"github.com/breezyweather/breezyd/internal/source/nominatim"
	"github.com/breezyweather/breezyd/internal/weather"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *nominatim.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:   server.URL,
		UserAgent: "breezyd-test",
		HTTPClient: resilience.NewClient(resilience.ClientConfig{
			Name:            "nominatim-test",
			MaxRetries:      1,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
		}),
	})
}

func TestClient_Capabilities(t *testing.T) {
	c := nominatim.NewClient(nominatim.ClientConfig{})
	loc := &weather.Location{Lat: 1, Lon: 1}

	assert.Equal(t, nominatim.SourceID, c.ID())
	assert.True(t, c.IsFeatureSupportedForLocation(loc, weather.FeatureReverseGeocoding))
	assert.False(t, c.IsFeatureSupportedForLocation(loc, weather.FeatureForecast))
	assert.Equal(t, source.PriorityMedium, c.FeaturePriorityForLocation(loc, weather.FeatureReverseGeocoding))
	assert.Equal(t, source.PriorityMedium, c.SearchPriority())
}

func TestClient_ReverseGeocode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "breezyd-test", r.Header.Get("User-Agent"))
		q := r.URL.Query()
		assert.Equal(t, "jsonv2", q.Get("format"))
		assert.Equal(t, "48.856600", q.Get("lat"))
		assert.Equal(t, "2.352200", q.Get("lon"))
		_, _ = w.Write([]byte(`{
			"lat": "48.8566", "lon": "2.3522", "name": "Paris",
			"address": {"city": "Paris", "county": "Paris", "state": "Île-de-France",
				"country": "France", "country_code": "fr"}
		}`))
	})

	loc := &weather.Location{ID: "loc_1", Lat: 48.8566, Lon: 2.3522, IsCurrentPosition: true, ForecastSource: "openmeteo"}
	resolved, err := client.ReverseGeocode(context.Background(), loc)
	require.NoError(t, err)

	assert.Equal(t, "Paris", resolved.Name)
	assert.Equal(t, "Île-de-France", resolved.Province)
	assert.Equal(t, "France", resolved.Country)
	assert.Equal(t, "FR", resolved.CountryCode)
	assert.Equal(t, "loc_1", resolved.ID)
	assert.Equal(t, "openmeteo", resolved.ForecastSource)
	assert.True(t, resolved.IsCurrentPosition)
	assert.Empty(t, loc.Name, "input location must not be modified")
}

func TestClient_ReverseGeocode_VillageFallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"name": "Some Road", "address": {"village": "Giethoorn", "country_code": "nl"}}`))
	})

	resolved, err := client.ReverseGeocode(context.Background(), &weather.Location{Lat: 52.74, Lon: 6.08})
	require.NoError(t, err)
	assert.Equal(t, "Giethoorn", resolved.Name)
	assert.Equal(t, "NL", resolved.CountryCode)
}

func TestClient_ReverseGeocode_Unresolvable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error": "Unable to geocode"}`))
	})

	_, err := client.ReverseGeocode(context.Background(), &weather.Location{Lat: 0, Lon: -30})
	assert.ErrorIs(t, err, weather.ErrNoDataForLocation)
}

func TestClient_SearchLocations(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "utrecht", r.URL.Query().Get("q"))
		assert.Equal(t, "nl", r.URL.Query().Get("accept-language"))
		_, _ = w.Write([]byte(`[
			{"lat": "52.0907", "lon": "5.1214", "name": "Utrecht",
			 "address": {"city": "Utrecht", "state": "Utrecht", "country": "Nederland", "country_code": "nl"}},
			{"lat": "bogus", "lon": "5.0", "name": "Broken"}
		]`))
	})

	locs, err := client.SearchLocations(context.Background(), "utrecht", "nl")
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "Utrecht", locs[0].Name)
	assert.Equal(t, "NL", locs[0].CountryCode)
	assert.InDelta(t, 52.0907, locs[0].Lat, 0.0001)
}

func TestClient_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.SearchLocations(context.Background(), "x", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nominatim search")
}
