// Package mapmyindia provides a client for the MapmyIndia (Mappls) geocode API.
package mapmyindia

import (
	"bytes"
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
	ProviderName = "mapmyindia-geocode"

	// DefaultBaseURL is the MapmyIndia Atlas API base URL.
	DefaultBaseURL = "https://atlas.mapmyindia.com"

	// DefaultRegion restricts lookups to India.
	DefaultRegion = "IND"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 12 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the MapmyIndia geocode client.
type ClientConfig struct {
	// APIKey is sent as the Authorization header (required).
	APIKey string

	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Region defaults to DefaultRegion.
	Region string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 12s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client is a MapmyIndia geocode client.
type Client struct {
	apiKey     string
	baseURL    string
	region     string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new MapmyIndia geocode client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	region := cfg.Region
	if region == "" {
		region = DefaultRegion
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
		region:     region,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Geocode returns the best match for query.
func (c *Client) Geocode(ctx context.Context, query string) (geo.Coordinate, error) {
	params := url.Values{}
	params.Set("address", query)
	params.Set("region", c.region)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/places/geocode?"+params.Encode(), nil)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", c.apiKey)

	c.logger.Debug().Str("query", query).Msg("requesting geocode from mapmyindia")

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

	var gr geocodeResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return geo.Coordinate{}, &geocoding.Error{
			Provider: ProviderName,
			Code:     "BAD_RESPONSE",
			Message:  "could not decode geocode response",
			Err:      geocoding.ErrNoResults,
		}
	}

	coord, ok := gr.coordinate()
	if !ok {
		return geo.Coordinate{}, &geocoding.Error{
			Provider: ProviderName,
			Code:     "NO_RESULTS",
			Message:  "no match for query",
			Err:      geocoding.ErrNoResults,
		}
	}

	return coord, nil
}

// geocodeResponse covers both shapes the API has returned: the Atlas
// copResults object and the older results array.
type geocodeResponse struct {
	CopResults copResults `json:"copResults"`
	Results    []result   `json:"results"`
}

// copResults is an object for single matches and an array for multiple.
type copResults []copResult

func (c *copResults) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '[' {
		var list []copResult
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*c = list
		return nil
	}
	var single copResult
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*c = copResults{single}
	return nil
}

type copResult struct {
	Latitude  *number `json:"latitude"`
	Longitude *number `json:"longitude"`
}

type result struct {
	Lat *number `json:"lat"`
	Lng *number `json:"lng"`
}

func (r geocodeResponse) coordinate() (geo.Coordinate, bool) {
	if len(r.CopResults) > 0 && r.CopResults[0].Latitude != nil && r.CopResults[0].Longitude != nil {
		c := geo.Coordinate{Lat: float64(*r.CopResults[0].Latitude), Lng: float64(*r.CopResults[0].Longitude)}
		if c.Valid() {
			return c, true
		}
	}
	if len(r.Results) > 0 && r.Results[0].Lat != nil && r.Results[0].Lng != nil {
		c := geo.Coordinate{Lat: float64(*r.Results[0].Lat), Lng: float64(*r.Results[0].Lng)}
		if c.Valid() {
			return c, true
		}
	}
	return geo.Coordinate{}, false
}

// number accepts a JSON number or a numeric string.
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(data), `"`))
	if s == "" || s == "null" {
		return fmt.Errorf("empty number")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = number(v)
	return nil
}
