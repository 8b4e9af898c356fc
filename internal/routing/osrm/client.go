// Package osrm provides a client for the OSRM route service.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/econav360/econav/internal/geo"
	"github.com/econav360/econav/internal/provider/resilience"
	"github.com/econav360/econav/internal/routing"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "osrm"

	// DefaultBaseURL is the public OSRM demo server.
	DefaultBaseURL = "https://router.project-osrm.org"

	// DefaultUserAgent is sent on every request.
	DefaultUserAgent = "EcoNav360/1.0"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 12 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OSRM client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to the public server).
	BaseURL string

	// UserAgent defaults to DefaultUserAgent.
	UserAgent string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 12s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OSRM route service client.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new OSRM client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
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
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetDirections retrieves the route between two points.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	if err := routing.ValidateRequest(req, ProviderName); err != nil {
		return nil, err
	}

	profile := req.Profile
	if profile == "" {
		profile = routing.ProfileDriving
	}

	// OSRM takes {lng},{lat} pairs in the path.
	url := fmt.Sprintf("%s/route/v1/%s/%s;%s?overview=full&geometries=geojson",
		c.baseURL, profile, lngLat(req.Origin), lngLat(req.Destination))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("profile", string(profile)).
		Str("origin", req.Origin.String()).
		Str("destination", req.Destination.String()).
		Msg("requesting route from OSRM")

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

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	var osrmResp routeResponse
	if err := json.Unmarshal(body, &osrmResp); err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "BAD_RESPONSE",
			Message:  "could not decode routing response",
			Err:      routing.ErrMalformedResponse,
		}
	}

	result, err := toDirectionsResponse(&osrmResp)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int("route_count", len(result.Routes)).
		Int("points", len(result.Routes[0].Coords)).
		Msg("received route from OSRM")

	return result, nil
}

func lngLat(c geo.Coordinate) string {
	return strconv.FormatFloat(c.Lng, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lat, 'f', -1, 64)
}

// handleErrorResponse maps OSRM error responses to domain errors.
func handleErrorResponse(statusCode int, body []byte) error {
	var errResp routeResponse
	_ = json.Unmarshal(body, &errResp)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "API rate limit exceeded, please try again later",
			Err:      routing.ErrRateLimitExceeded,
		}
	case errResp.Code == codeNoRoute || errResp.Code == codeNoSegment:
		return &routing.Error{
			Provider: ProviderName,
			Code:     errResp.Code,
			Message:  "no route found between the given points",
			Err:      routing.ErrNoRouteFound,
		}
	case statusCode == http.StatusBadRequest:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "BAD_REQUEST",
			Message:  errResp.Message,
			Err:      routing.ErrInvalidCoordinates,
		}
	default:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("routing provider returned status %d", statusCode),
			Err:      routing.ErrProviderUnavailable,
		}
	}
}

// toDirectionsResponse converts the OSRM response to the domain model,
// swapping GeoJSON [lng, lat] pairs to (lat, lng).
func toDirectionsResponse(resp *routeResponse) (*routing.DirectionsResponse, error) {
	if resp.Code != "" && resp.Code != codeOK {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     resp.Code,
			Message:  "no route found between the given points",
			Err:      routing.ErrNoRouteFound,
		}
	}

	routes := make([]routing.Route, 0, len(resp.Routes))
	for i := range resp.Routes {
		r := &resp.Routes[i]
		if r.Geometry == nil || len(r.Geometry.Coordinates) == 0 {
			continue
		}

		coords := make([]geo.Coordinate, 0, len(r.Geometry.Coordinates))
		for _, pair := range r.Geometry.Coordinates {
			c, err := geo.FromLngLat(pair)
			if err != nil {
				return nil, &routing.Error{
					Provider: ProviderName,
					Code:     "BAD_GEOMETRY",
					Message:  "route geometry contains a malformed position",
					Err:      routing.ErrMalformedResponse,
				}
			}
			coords = append(coords, c)
		}

		routes = append(routes, routing.Route{
			Coords:          coords,
			DistanceMeters:  r.Distance,
			DurationSeconds: r.Duration,
		})
	}

	if len(routes) == 0 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  "no route geometry in response",
			Err:      routing.ErrNoRouteFound,
		}
	}

	return &routing.DirectionsResponse{
		Routes:    routes,
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}, nil
}
