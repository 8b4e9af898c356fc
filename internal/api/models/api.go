// Package models holds the JSON bodies of the EcoNav360 HTTP API. Field
// names match what the web client already consumes.
package models

import (
	"time"

	"github.com/econav360/econav/internal/geo"
	"github.com/econav360/econav/internal/routing"
)

// ErrorResponse is the {"error": "..."} body of a failed /api call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GeocodeResponse is the body of GET /api/geocode.
type GeocodeResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RouteResponse is the body of GET /api/route.
type RouteResponse struct {
	Routes []Route `json:"routes"`
}

// Route is one alternative. Coords are [lat, lng] pairs.
type Route struct {
	Coords   [][2]float64 `json:"coords"`
	Distance *float64     `json:"distance,omitempty"`
	Duration *float64     `json:"duration,omitempty"`
}

// NewRouteResponse converts a routing response to the wire form.
func NewRouteResponse(resp *routing.DirectionsResponse) RouteResponse {
	out := RouteResponse{Routes: make([]Route, 0, len(resp.Routes))}
	for _, r := range resp.Routes {
		out.Routes = append(out.Routes, Route{
			Coords:   pairs(r.Coords),
			Distance: r.DistanceMeters,
			Duration: r.DurationSeconds,
		})
	}
	return out
}

func pairs(path []geo.Coordinate) [][2]float64 {
	out := make([][2]float64, len(path))
	for i, c := range path {
		out[i] = c.Pair()
	}
	return out
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// HealthStatus summarises an upstream's circuit state.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// ProviderStatus represents the status of an external provider.
type ProviderStatus struct {
	Provider            string       `json:"provider"`
	Status              HealthStatus `json:"status"`
	Requests            uint32       `json:"requests"`
	ConsecutiveFailures uint32       `json:"consecutiveFailures"`
	Trips               uint32       `json:"trips"`
	LastSuccessAt       *time.Time   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time   `json:"lastFailureAt,omitempty"`
	LastError           string       `json:"lastError,omitempty"`
}

// SystemStatus is the body of GET /api/ops/providers.
type SystemStatus struct {
	Status     HealthStatus        `json:"status"`
	Time       time.Time           `json:"time"`
	Version    string              `json:"version"`
	Providers  []ProviderStatus    `json:"providers"`
	RouteCache *routing.CacheStats `json:"routeCache,omitempty"`
}
