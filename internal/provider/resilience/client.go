package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	// ErrCircuitOpen is returned without contacting the source while its
	// breaker is open or probing.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrNotFound is wrapped by StatusError for 404 responses.
	ErrNotFound = errors.New("upstream resource not found")
)

const maxErrorBody = 512

// ClientConfig configures the HTTP client of one source.
type ClientConfig struct {
	Name string

	// Timeout bounds each attempt. Default 10s.
	Timeout time.Duration

	// MaxRetries after the first attempt. Default 2.
	MaxRetries uint64

	// Backoff between attempts grows from InitialInterval (200ms) up to
	// MaxInterval (5s).
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// UserAgent is sent unless the request sets its own.
	UserAgent string

	// Breaker defaults to DefaultBreakerConfig when zero.
	Breaker BreakerConfig

	// Registry, when set, tracks the client's breaker under Name.
	Registry *Registry

	Logger zerolog.Logger

	// Transport defaults to http.DefaultTransport. It is always wrapped
	// with client spans.
	Transport http.RoundTripper
}

// DefaultClientConfig returns the defaults used for source clients.
func DefaultClientConfig(name string) ClientConfig {
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Breaker:         DefaultBreakerConfig(),
		Logger:          zerolog.Nop(),
	}
}

func (c ClientConfig) withDefaults() ClientConfig {
	d := DefaultClientConfig(c.Name)
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = d.InitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = d.MaxInterval
	}
	if c.Breaker == (BreakerConfig{}) {
		c.Breaker = d.Breaker
	}
	if c.Transport == nil {
		c.Transport = http.DefaultTransport
	}
	return c
}

// Client sends requests to one source through its circuit breaker,
// retrying network errors, 5xx and 429 with exponential backoff.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

func NewClient(cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(cfg.Transport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return cfg.Name + " " + r.Method
				}),
			),
		},
		breaker: newBreaker[*http.Response](cfg.Name, cfg.Breaker, cfg.Logger),
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

func (c *Client) Name() string { return c.cfg.Name }

// State is the current breaker state.
func (c *Client) State() gobreaker.State { return c.breaker.State() }

// Counts are the breaker counts of the current window.
func (c *Client) Counts() gobreaker.Counts { return c.breaker.Counts() }

// retryableStatus marks a response worth retrying. The response itself is
// kept so that the last one can be returned once retries run out.
type retryableStatus struct{ code int }

func (e *retryableStatus) Error() string {
	return fmt.Sprintf("retryable status %d", e.code)
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialInterval
	b.MaxInterval = c.cfg.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, c.cfg.MaxRetries), ctx)
}

// Do sends req. When retries run out on a retryable status the last
// response is returned without error; the caller closes its body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var last *http.Response

	attempt := func() error {
		if last != nil {
			_ = last.Body.Close()
			last = nil
		}
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // closed above or by the caller
			resp, err := c.http.Do(c.prepare(ctx, req))
			if err != nil {
				return nil, err
			}
			if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
				return resp, &retryableStatus{code: resp.StatusCode}
			}
			return resp, nil
		})
		last = resp
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(ErrCircuitOpen)
		case err != nil && ctx.Err() != nil:
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.cfg.Logger.Debug().Err(err).Str("source", c.cfg.Name).Dur("retry_in", wait).Msg("retrying source request")
	}

	if err := backoff.RetryNotify(attempt, c.newBackOff(ctx), notify); err != nil {
		var rs *retryableStatus
		if last != nil && errors.As(err, &rs) {
			return last, nil
		}
		if last != nil {
			_ = last.Body.Close()
		}
		return nil, err
	}
	return last, nil
}

func (c *Client) prepare(ctx context.Context, req *http.Request) *http.Request {
	r := req.Clone(ctx)
	if c.cfg.UserAgent != "" && r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if r.Header.Get("Accept") == "" {
		r.Header.Set("Accept", "application/json")
	}
	return r
}

// GetJSON fetches url and decodes a 2xx body into out. Other statuses are
// returned as *StatusError.
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Source: c.cfg.Name, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// StatusError is a non-2xx answer from a source.
type StatusError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Source, e.StatusCode)
}

// Unwrap maps 404 to ErrNotFound.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}
