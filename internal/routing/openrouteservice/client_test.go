package openrouteservice_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/econav360/econav/internal/geo"
	"github.com/econav360/econav/internal/routing"
	"github.com/econav360/econav/internal/routing/openrouteservice"
)

const directionsBody = `{"routes":[
	{"summary":{"distance":12345.6,"duration":2400.5},"geometry":"_p~iF~ps|U_ulLnnqC_mqNvxq` + "`" + `@"},
	{"summary":{"distance":13000,"duration":2600},"geometry":"_p~iF~ps|U_ulLnnqC"}
]}`

var request = routing.DirectionsRequest{
	Origin:      geo.Coordinate{Lat: 52.3676, Lng: 4.9041},
	Destination: geo.Coordinate{Lat: 52.0907, Lng: 5.1214},
}

func newClient(server *httptest.Server) *openrouteservice.Client {
	return openrouteservice.NewClient(openrouteservice.ClientConfig{
		APIKey:     "mock123",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Logger:     zerolog.Nop(),
	})
}

func TestGetDirections_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/directions/driving-car", r.URL.Path)
		assert.Equal(t, "mock123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body struct {
			Coordinates [][]float64 `json:"coordinates"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, [][]float64{{4.9041, 52.3676}, {5.1214, 52.0907}}, body.Coordinates)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(directionsBody))
	}))
	defer server.Close()

	resp, err := newClient(server).GetDirections(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, openrouteservice.ProviderName, resp.Provider)
	require.Len(t, resp.Routes, 2)

	primary, ok := resp.Primary()
	require.True(t, ok)
	require.Len(t, primary.Coords, 3)
	assert.InDelta(t, 38.5, primary.Coords[0].Lat, 1e-9)
	assert.InDelta(t, -120.2, primary.Coords[0].Lng, 1e-9)
	require.NotNil(t, primary.DistanceMeters)
	assert.InDelta(t, 12345.6, *primary.DistanceMeters, 1e-9)
	require.NotNil(t, primary.DurationSeconds)
	assert.InDelta(t, 2400.5, *primary.DurationSeconds, 1e-9)
}

func TestGetDirections_ProfilePath(t *testing.T) {
	tests := []struct {
		profile routing.RouteProfile
		path    string
	}{
		{profile: "", path: "/v2/directions/driving-car"},
		{profile: routing.ProfileDriving, path: "/v2/directions/driving-car"},
		{profile: routing.ProfileWalking, path: "/v2/directions/foot-walking"},
		{profile: routing.ProfileCycling, path: "/v2/directions/cycling-regular"},
	}

	for _, tt := range tests {
		t.Run(string(tt.profile), func(t *testing.T) {
			var gotPath string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				_, _ = w.Write([]byte(directionsBody))
			}))
			defer server.Close()

			req := request
			req.Profile = tt.profile
			_, err := newClient(server).GetDirections(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.path, gotPath)
		})
	}
}

func TestGetDirections_SkipsUndecodableRoutes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"routes":[
			{"summary":{"distance":1},"geometry":"_p~iF"},
			{"summary":{"distance":2},"geometry":"_p~iF~ps|U_ulLnnqC"}
		]}`))
	}))
	defer server.Close()

	resp, err := newClient(server).GetDirections(context.Background(), request)
	require.NoError(t, err)
	require.Len(t, resp.Routes, 1)
	assert.InDelta(t, 2, *resp.Routes[0].DistanceMeters, 1e-9)
}

func TestGetDirections_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "empty routes", status: http.StatusOK, body: `{"routes":[]}`, want: routing.ErrNoRouteFound},
		{name: "route not found code", status: http.StatusNotFound, body: `{"error":{"code":2009,"message":"Route could not be found"}}`, want: routing.ErrNoRouteFound},
		{name: "point not routable", status: http.StatusBadRequest, body: `{"error":{"code":2010,"message":"Could not find routable point"}}`, want: routing.ErrNoRouteFound},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"code":2003,"message":"Parameter invalid"}}`, want: routing.ErrInvalidCoordinates},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, want: routing.ErrRateLimitExceeded},
		{name: "forbidden", status: http.StatusForbidden, body: `{}`, want: routing.ErrProviderUnavailable},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, want: routing.ErrProviderUnavailable},
		{name: "not json", status: http.StatusOK, body: `<html></html>`, want: routing.ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newClient(server).GetDirections(context.Background(), request)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGetDirections_RetryableErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newClient(server).GetDirections(context.Background(), request)
	var routeErr *routing.Error
	require.ErrorAs(t, err, &routeErr)
	assert.Equal(t, openrouteservice.ProviderName, routeErr.Provider)
	assert.True(t, routeErr.IsRetryable())
}

func TestGetDirections_InvalidCoordinatesSkipUpstream(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer server.Close()

	req := request
	req.Destination = geo.Coordinate{Lat: 91, Lng: 0}
	_, err := newClient(server).GetDirections(context.Background(), req)
	assert.ErrorIs(t, err, routing.ErrInvalidCoordinates)
	assert.False(t, called)
}

func TestGetDirections_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	client := newClient(server)
	server.Close()

	_, err := client.GetDirections(context.Background(), request)
	assert.ErrorIs(t, err, routing.ErrProviderUnavailable)
}

func TestName(t *testing.T) {
	client := openrouteservice.NewClient(openrouteservice.ClientConfig{APIKey: "k"})
	assert.Equal(t, "openrouteservice", client.Name())
}
