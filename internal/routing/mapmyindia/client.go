// Package mapmyindia provides a client for the MapmyIndia (Mappls) route API.
package mapmyindia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/econav360/econav/internal/geo"
	"github.com/econav360/econav/internal/geo/polyline"
	"github.com/econav360/econav/internal/provider/resilience"
	"github.com/econav360/econav/internal/routing"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "mapmyindia-route"

	// DefaultBaseURL is the MapmyIndia advanced maps API base URL.
	DefaultBaseURL = "https://apis.mapmyindia.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 12 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the MapmyIndia route client.
type ClientConfig struct {
	// APIKey is embedded in the request path (required).
	APIKey string

	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 12s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client is a MapmyIndia route client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new MapmyIndia route client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
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
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetDirections retrieves routes between two points, alternatives included.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	if err := routing.ValidateRequest(req, ProviderName); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("start", req.Origin.String())
	params.Set("dest", req.Destination.String())
	params.Set("alternatives", "true")
	params.Set("rtype", "0")

	endpoint := fmt.Sprintf("%s/advancedmaps/v1/%s/route?%s", c.baseURL, url.PathEscape(c.apiKey), params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("origin", req.Origin.String()).
		Str("destination", req.Destination.String()).
		Msg("requesting route from mapmyindia")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing provider",
			Err:      routing.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "API rate limit exceeded, please try again later",
			Err:      routing.ErrRateLimitExceeded,
		}
	case resp.StatusCode != http.StatusOK:
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:  fmt.Sprintf("routing provider returned status %d", resp.StatusCode),
			Err:      routing.ErrProviderUnavailable,
		}
	}

	var rr routeResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "BAD_RESPONSE",
			Message:  "could not decode routing response",
			Err:      routing.ErrMalformedResponse,
		}
	}

	routes := make([]routing.Route, 0, len(rr.Routes))
	for i := range rr.Routes {
		coords, err := decodeGeometry(rr.Routes[i].Geometry)
		if err != nil {
			c.logger.Warn().Err(err).Int("route_index", i).Msg("skipping route with undecodable geometry")
			continue
		}
		if len(coords) == 0 {
			continue
		}
		routes = append(routes, routing.Route{
			Coords:          coords,
			DistanceMeters:  rr.Routes[i].Summary.Distance,
			DurationSeconds: rr.Routes[i].Summary.Duration,
		})
	}

	if len(routes) == 0 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  "no route found between the given points",
			Err:      routing.ErrNoRouteFound,
		}
	}

	c.logger.Debug().Int("route_count", len(routes)).Msg("received routes from mapmyindia")

	return &routing.DirectionsResponse{
		Routes:    routes,
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}, nil
}

// decodeGeometry accepts either a GeoJSON LineString ([lng, lat] positions)
// or a precision-5 encoded polyline string.
func decodeGeometry(raw json.RawMessage) ([]geo.Coordinate, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, err
		}
		return polyline.Decode(encoded, polyline.Precision5)
	}

	var g geometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	coords := make([]geo.Coordinate, 0, len(g.Coordinates))
	for _, pair := range g.Coordinates {
		c, err := geo.FromLngLat(pair)
		if err != nil {
			return nil, err
		}
		coords = append(coords, c)
	}
	return coords, nil
}

type routeResponse struct {
	Routes []route `json:"routes"`
}

type route struct {
	Geometry json.RawMessage `json:"geometry"`
	Summary  summary         `json:"summary"`
}

type summary struct {
	Distance *float64 `json:"distance"`
	Duration *float64 `json:"duration"`
}

type geometry struct {
	Coordinates [][]float64 `json:"coordinates"`
}
