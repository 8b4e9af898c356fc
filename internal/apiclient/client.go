// Package apiclient talks to the EcoNav360 backend's /api/geocode and
// /api/route endpoints. It is the collaborator the navigator uses when it
// runs outside the server process.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/econav360/econav/internal/geo"
	"github.com/econav360/econav/internal/geocoding"
	"github.com/econav360/econav/internal/provider/resilience"
	"github.com/econav360/econav/internal/routing"
)

const (
	// ProviderName identifies the backend in logs and health output.
	ProviderName = "econav-api"

	// DefaultBaseURL is where the development server listens.
	DefaultBaseURL = "http://localhost:5174"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 12 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the backend client.
type ClientConfig struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient single-attempt client.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 12s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client implements geocoding.Provider and routing.Provider against the
// backend.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

var (
	_ geocoding.Provider = (*Client)(nil)
	_ routing.Provider   = (*Client)(nil)
)

// NewClient creates a backend client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.SingleAttempt = true
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// point is the {lat, lng} body of /api/geocode. Pointers distinguish a
// missing field from zero; non-numeric values fail to decode.
type point struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// Geocode resolves query through the backend.
func (c *Client) Geocode(ctx context.Context, query string) (geo.Coordinate, error) {
	params := url.Values{}
	params.Set("q", query)

	body, status, err := c.get(ctx, "/api/geocode?"+params.Encode())
	if err != nil {
		return geo.Coordinate{}, &geocoding.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  err.Error(),
			Err:      geocoding.ErrProviderUnavailable,
		}
	}

	switch {
	case status == http.StatusNotFound:
		return geo.Coordinate{}, &geocoding.Error{
			Provider: ProviderName,
			Code:     "NO_RESULTS",
			Message:  "no match for query",
			Err:      geocoding.ErrNoResults,
		}
	case status < 200 || status > 299:
		return geo.Coordinate{}, &geocoding.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", status),
			Message:  fmt.Sprintf("backend returned status %d", status),
			Err:      geocoding.ErrProviderUnavailable,
		}
	}

	var p point
	if err := json.Unmarshal(body, &p); err != nil || p.Lat == nil || p.Lng == nil {
		return geo.Coordinate{}, &geocoding.Error{
			Provider: ProviderName,
			Code:     "BAD_RESULT",
			Message:  "lat and lng must be numbers",
			Err:      geocoding.ErrNoResults,
		}
	}

	coord := geo.Coordinate{Lat: *p.Lat, Lng: *p.Lng}
	if err := geo.Validate(coord); err != nil {
		return geo.Coordinate{}, &geocoding.Error{
			Provider: ProviderName,
			Code:     "BAD_RESULT",
			Message:  err.Error(),
			Err:      geocoding.ErrNoResults,
		}
	}
	return coord, nil
}

// routeResponse is the body of /api/route. Coordinates are already in
// [lat, lng] order.
type routeResponse struct {
	Routes []struct {
		Coords   [][]float64 `json:"coords"`
		Distance *float64    `json:"distance"`
		Duration *float64    `json:"duration"`
	} `json:"routes"`
}

// GetDirections fetches routes from the backend.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	if err := routing.ValidateRequest(req, ProviderName); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("from", req.Origin.String())
	params.Set("to", req.Destination.String())

	body, status, err := c.get(ctx, "/api/route?"+params.Encode())
	if err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  err.Error(),
			Err:      routing.ErrProviderUnavailable,
		}
	}

	switch {
	case status == http.StatusNotFound:
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  "backend found no route",
			Err:      routing.ErrNoRouteFound,
		}
	case status == http.StatusTooManyRequests:
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMITED",
			Message:  "backend rate limit exceeded",
			Err:      routing.ErrRateLimitExceeded,
		}
	case status < 200 || status > 299:
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", status),
			Message:  fmt.Sprintf("backend returned status %d", status),
			Err:      routing.ErrProviderUnavailable,
		}
	}

	var rr routeResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "PARSE_ERROR",
			Message:  "failed to parse route response",
			Err:      routing.ErrMalformedResponse,
		}
	}

	resp := &routing.DirectionsResponse{
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}
	for _, r := range rr.Routes {
		coords, err := toCoords(r.Coords)
		if err != nil {
			c.logger.Warn().Err(err).Msg("skipping route with bad coordinates")
			continue
		}
		resp.Routes = append(resp.Routes, routing.Route{
			Coords:          coords,
			DistanceMeters:  r.Distance,
			DurationSeconds: r.Duration,
		})
	}

	if len(resp.Routes) == 0 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  "response contained no usable routes",
			Err:      routing.ErrNoRouteFound,
		}
	}
	return resp, nil
}

// get performs a GET and returns the body of a JSON response. A response
// that is not JSON is an error regardless of status.
func (c *Client) get(ctx context.Context, path string) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("path", path).Msg("calling backend")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response body: %w", err)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return nil, resp.StatusCode, fmt.Errorf("unexpected content type %q (status %d)", resp.Header.Get("Content-Type"), resp.StatusCode)
	}

	return body, resp.StatusCode, nil
}

func toCoords(pairs [][]float64) ([]geo.Coordinate, error) {
	coords := make([]geo.Coordinate, 0, len(pairs))
	for i, p := range pairs {
		if len(p) < 2 {
			return nil, fmt.Errorf("point %d: expected [lat, lng], got %d values", i, len(p))
		}
		c := geo.Coordinate{Lat: p[0], Lng: p[1]}
		if err := geo.Validate(c); err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		coords = append(coords, c)
	}
	return coords, nil
}
