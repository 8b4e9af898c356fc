// Package routing provides route computation between two coordinates through
// an external routing provider, with caching.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/econav360/econav/internal/geo"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the routing provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates no valid route exists between the given points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates the provided coordinates are invalid or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrMalformedResponse indicates the provider answered with a body that could not be decoded.
	ErrMalformedResponse = errors.New("malformed routing response")
)

// Provider defines the interface for routing providers.
type Provider interface {
	// GetDirections retrieves routes between two points. Routes are ordered
	// by provider preference; the first is the primary route.
	GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// RouteProfile represents a routing profile (mode of transport).
type RouteProfile string

const (
	// ProfileDriving is the default profile.
	ProfileDriving RouteProfile = "driving"
	// ProfileWalking routes for pedestrians where the provider supports it.
	ProfileWalking RouteProfile = "foot"
	// ProfileCycling routes for bicycles where the provider supports it.
	ProfileCycling RouteProfile = "bike"
)

// DirectionsRequest is the request for computing routes.
type DirectionsRequest struct {
	Origin      geo.Coordinate
	Destination geo.Coordinate
	Profile     RouteProfile // Defaults to ProfileDriving
}

// DirectionsResponse is the response containing route alternatives.
type DirectionsResponse struct {
	Routes    []Route
	Provider  string
	FetchedAt time.Time
}

// Primary returns the first route, or false when there is none.
func (r *DirectionsResponse) Primary() (Route, bool) {
	if r == nil || len(r.Routes) == 0 {
		return Route{}, false
	}
	return r.Routes[0], true
}

// Route is a single route option. Coords are always in (lat, lng) order;
// providers that speak GeoJSON swap axes before building a Route.
type Route struct {
	Coords          []geo.Coordinate
	DistanceMeters  *float64 // nil when the provider did not report it
	DurationSeconds *float64 // nil when the provider did not report it
}

// Bounds returns the bounding box of the route geometry.
func (r Route) Bounds() geo.Bounds {
	return geo.BoundsOf(r.Coords)
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}

// ValidateRequest checks both endpoints of req.
func ValidateRequest(req DirectionsRequest, provider string) error {
	if err := geo.Validate(req.Origin); err != nil {
		return &Error{
			Provider: provider,
			Code:     "INVALID_ORIGIN",
			Message:  "invalid origin coordinates",
			Err:      ErrInvalidCoordinates,
		}
	}
	if err := geo.Validate(req.Destination); err != nil {
		return &Error{
			Provider: provider,
			Code:     "INVALID_DESTINATION",
			Message:  "invalid destination coordinates",
			Err:      ErrInvalidCoordinates,
		}
	}
	return nil
}

// Float returns a pointer to v, for optional distance and duration fields.
func Float(v float64) *float64 {
	return &v
}
