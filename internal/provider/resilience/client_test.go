package resilience_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breezyweather/breezyd/internal/provider/resilience"
)

// upstream serves the given statuses in order, repeating the last one.
func upstream(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := int(calls.Add(1))
		if n > len(statuses) {
			n = len(statuses)
		}
		w.WriteHeader(statuses[n-1])
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// quick retries fast and never trips within a test.
func quick(name string) resilience.ClientConfig {
	cfg := resilience.DefaultClientConfig(name)
	cfg.MaxRetries = 3
	cfg.InitialInterval = 5 * time.Millisecond
	cfg.MaxInterval = 20 * time.Millisecond
	cfg.Breaker.MinRequests = 100
	return cfg
}

func get(t *testing.T, c *resilience.Client, ctx context.Context, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	require.NoError(t, err)
	resp, err := c.Do(req)
	if resp != nil {
		t.Cleanup(func() { _ = resp.Body.Close() })
	}
	return resp, err
}

func TestClient_Retries(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCode  int
		wantCalls int32
	}{
		{"first try", []int{http.StatusOK}, http.StatusOK, 1},
		{"recovers after 5xx", []int{503, 503, 200}, http.StatusOK, 3},
		{"recovers after 429", []int{429, 200}, http.StatusOK, 2},
		{"4xx is final", []int{400, 200}, http.StatusBadRequest, 1},
		{"exhausted returns last response", []int{502}, http.StatusBadGateway, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := upstream(t, tt.statuses...)
			resp, err := get(t, resilience.NewClient(quick("retry")), context.Background(), srv.URL)

			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestClient_BreakerOpens(t *testing.T) {
	srv, calls := upstream(t, http.StatusInternalServerError)

	cfg := quick("flaky")
	cfg.MaxRetries = 1
	cfg.Breaker = resilience.BreakerConfig{HalfOpenRequests: 1, OpenTimeout: time.Minute, MinRequests: 5, FailureRatio: 0.5}
	reg := resilience.NewRegistry()
	cfg.Registry = reg
	c := resilience.NewClient(cfg)

	for i := 0; i < 3; i++ {
		_, _ = get(t, c, context.Background(), srv.URL)
	}
	require.Equal(t, gobreaker.StateOpen, c.State())
	assert.Equal(t, resilience.StatusUnhealthy, reg.Health("flaky").Status())

	before := calls.Load()
	_, err := get(t, c, context.Background(), srv.URL)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, before, calls.Load(), "open breaker must not reach the source")
}

func TestClient_CancelledCallsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	cfg := quick("slow")
	cfg.Breaker = resilience.BreakerConfig{HalfOpenRequests: 1, OpenTimeout: time.Minute, MinRequests: 1, FailureRatio: 0.1}
	c := resilience.NewClient(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()
	_, err := get(t, c, ctx, srv.URL)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, gobreaker.StateClosed, c.State())
}

func TestClient_AttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := quick("timeout")
	cfg.Timeout = 30 * time.Millisecond
	cfg.MaxRetries = 1
	_, err := get(t, resilience.NewClient(cfg), context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestClient_DefaultHeaders(t *testing.T) {
	var ua, accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua, accept = r.Header.Get("User-Agent"), r.Header.Get("Accept")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := quick("ua")
	cfg.UserAgent = "breezyd-test/1.0"

	var out map[string]any
	require.NoError(t, resilience.NewClient(cfg).GetJSON(context.Background(), srv.URL, nil, &out))
	assert.Equal(t, "breezyd-test/1.0", ua)
	assert.Equal(t, "application/json", accept)
}

func TestClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/denied":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"invalid key"}`))
		case "/garbage":
			_, _ = w.Write([]byte(`not json`))
		default:
			assert.Equal(t, "secret", r.Header.Get("x-api-key"))
			_, _ = w.Write([]byte(`{"temperature":21.5}`))
		}
	}))
	defer srv.Close()

	c := resilience.NewClient(quick("owm"))
	ctx := context.Background()

	var out struct {
		Temperature float64 `json:"temperature"`
	}
	require.NoError(t, c.GetJSON(ctx, srv.URL+"/current", http.Header{"X-Api-Key": {"secret"}}, &out))
	assert.InDelta(t, 21.5, out.Temperature, 0.001)

	err := c.GetJSON(ctx, srv.URL+"/missing", nil, &out)
	assert.ErrorIs(t, err, resilience.ErrNotFound)

	err = c.GetJSON(ctx, srv.URL+"/denied", nil, &out)
	var statusErr *resilience.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, "owm", statusErr.Source)
	assert.Contains(t, statusErr.Body, "invalid key")
	assert.NotErrorIs(t, err, resilience.ErrNotFound)

	err = c.GetJSON(ctx, srv.URL+"/garbage", nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding response")
}

func TestBreakerConfig_ShouldTrip(t *testing.T) {
	cfg := resilience.DefaultBreakerConfig()

	tests := []struct {
		name   string
		counts gobreaker.Counts
		want   bool
	}{
		{"no requests", gobreaker.Counts{}, false},
		{"below minimum", gobreaker.Counts{Requests: 4, TotalFailures: 4}, false},
		{"mostly fine", gobreaker.Counts{Requests: 10, TotalFailures: 4}, false},
		{"half failing", gobreaker.Counts{Requests: 10, TotalFailures: 5}, true},
		{"all failing at minimum", gobreaker.Counts{Requests: 5, TotalFailures: 5}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.ShouldTrip(tt.counts), tt.name)
	}
}

func TestDefaultClientConfig(t *testing.T) {
	cfg := resilience.DefaultClientConfig("nws")

	assert.Equal(t, "nws", cfg.Name)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, uint64(2), cfg.MaxRetries)
	assert.Equal(t, time.Minute, cfg.Breaker.OpenTimeout)
	assert.Equal(t, uint32(1), cfg.Breaker.HalfOpenRequests)
}
