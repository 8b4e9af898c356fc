// Package nominatim provides a client for the OpenStreetMap Nominatim search API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/econav360/econav/internal/geo"
	"github.com/econav360/econav/internal/geocoding"
	"github.com/econav360/econav/internal/provider/resilience"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "nominatim"

	// DefaultBaseURL is the public Nominatim instance.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultUserAgent is sent on every request; Nominatim's usage policy
	// rejects anonymous clients.
	DefaultUserAgent = "EcoNav360/1.0 (contact: dev@example.com)"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 12 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	// BaseURL defaults to DefaultBaseURL.
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

	Logger zerolog.Logger
}

// Client is a Nominatim search client.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new Nominatim client.
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

// searchResult is one element of the /search response. Nominatim encodes
// coordinates as strings.
type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the top search hit for query.
func (c *Client) Geocode(ctx context.Context, query string) (geo.Coordinate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("query", query).Msg("requesting geocode from nominatim")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return geo.Coordinate{}, &geocoding.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach geocoding provider",
			Err:      geocoding.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return geo.Coordinate{}, &geocoding.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:  fmt.Sprintf("geocoding provider returned status %d", resp.StatusCode),
			Err:      geocoding.ErrProviderUnavailable,
		}
	}

	// A body that is not a JSON array is treated as an empty result set.
	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil || len(results) == 0 {
		return geo.Coordinate{}, &geocoding.Error{
			Provider: ProviderName,
			Code:     "NO_RESULTS",
			Message:  "no match for query",
			Err:      geocoding.ErrNoResults,
		}
	}

	coord, err := parseResult(results[0])
	if err != nil {
		return geo.Coordinate{}, &geocoding.Error{
			Provider: ProviderName,
			Code:     "BAD_RESULT",
			Message:  "unusable coordinates in result",
			Err:      geocoding.ErrNoResults,
		}
	}

	c.logger.Debug().
		Str("query", query).
		Str("display_name", results[0].DisplayName).
		Msg("received geocode from nominatim")

	return coord, nil
}

func parseResult(r searchResult) (geo.Coordinate, error) {
	if r.Lat == "" || r.Lon == "" {
		return geo.Coordinate{}, geo.ErrInvalidCoordinate
	}
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return geo.Coordinate{}, err
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return geo.Coordinate{}, err
	}
	c := geo.Coordinate{Lat: lat, Lng: lng}
	return c, geo.Validate(c)
}
