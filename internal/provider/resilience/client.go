package resilience

import (
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a call.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies the upstream (e.g. "nominatim", "osrm").
	Name string

	// Timeout bounds each individual HTTP attempt. Default: 12 seconds.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Ignored when SingleAttempt is set. Default: 2.
	MaxRetries uint64

	// SingleAttempt disables retries entirely.
	SingleAttempt bool

	// InitialInterval is the first retry backoff. Default: 200ms.
	InitialInterval time.Duration

	// MaxInterval caps the retry backoff. Default: 2 seconds.
	MaxInterval time.Duration

	// CircuitBreaker overrides DefaultCircuitBreakerConfig(Name).
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, receives this client and its success/failure events.
	Registry *Registry

	// Transport overrides the underlying round tripper (tests).
	Transport http.RoundTripper

	// Logger receives breaker state transitions.
	Logger zerolog.Logger
}

// DefaultClientConfig returns defaults for an upstream named name.
func DefaultClientConfig(name string) ClientConfig {
	cb := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         12 * time.Second,
		MaxRetries:      2,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		CircuitBreaker:  &cb,
	}
}

// Client is an HTTP client with circuit breaker protection and optional retries.
type Client struct {
	name           string
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
	config         ClientConfig
	registry       *Registry
}

// NewClient creates a resilient HTTP client and registers it with cfg.Registry.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 12 * time.Second
	}
	if cfg.MaxRetries == 0 && !cfg.SingleAttempt {
		cfg.MaxRetries = 2
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 200 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}
	cbConfig.OnStateChange = observeStateChange(cfg, cbConfig.OnStateChange)

	c := &Client{
		name: cfg.Name,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		circuitBreaker: NewCircuitBreaker[*http.Response](cbConfig), //nolint:bodyclose // type param, not response
		config:         cfg,
		registry:       cfg.Registry,
	}

	if c.registry != nil {
		c.registry.add(c)
	}

	return c
}

// Name returns the upstream name this client was created for.
func (c *Client) Name() string {
	return c.name
}

// Do executes req through the circuit breaker. Network errors and 5xx
// responses count as failures and are retried unless SingleAttempt is set.
// A 5xx that exhausts retries is returned as a response, not an error, so the
// caller can map the status itself.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var policy backoff.BackOff
	if c.config.SingleAttempt {
		policy = &backoff.StopBackOff{}
	} else {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = c.config.InitialInterval
		bo.MaxInterval = c.config.MaxInterval
		bo.MaxElapsedTime = 0
		policy = backoff.WithMaxRetries(bo, c.config.MaxRetries)
	}

	var lastResp *http.Response

	operation := func() error {
		if lastResp != nil {
			// Drop the body of a previous 5xx before retrying.
			lastResp.Body.Close()
			lastResp = nil
		}

		resp, err := c.circuitBreaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if resp != nil {
				lastResp = resp
			}
			return err
		}

		lastResp = resp
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	if err != nil {
		c.recordFailure(err)
		if lastResp != nil {
			return lastResp, nil
		}
		return nil, err
	}

	c.recordSuccess()
	return lastResp, nil
}

// observeStateChange logs breaker transitions and counts trips in the
// registry before calling next.
func observeStateChange(cfg ClientConfig, next func(string, gobreaker.State, gobreaker.State)) func(string, gobreaker.State, gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		event := cfg.Logger.Info()
		if to == gobreaker.StateOpen {
			event = cfg.Logger.Warn()
		}
		event.Str("upstream", cfg.Name).
			Stringer("from", from).
			Stringer("to", to).
			Msg("circuit breaker state changed")

		if cfg.Registry != nil {
			cfg.Registry.recordStateChange(cfg.Name, to)
		}
		if next != nil {
			next(name, from, to)
		}
	}
}

func (c *Client) recordSuccess() {
	if c.registry != nil {
		c.registry.RecordSuccess(c.name)
	}
}

func (c *Client) recordFailure(err error) {
	if c.registry != nil {
		c.registry.RecordFailure(c.name, err)
	}
}

// ServerError represents an HTTP 5xx response from an upstream.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState returns the current breaker state.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current breaker counts.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.circuitBreaker.Counts()
}
