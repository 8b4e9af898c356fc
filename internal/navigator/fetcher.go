package navigator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/econav360/econav/internal/geo"
	"github.com/econav360/econav/internal/routing"
)

// DefaultFetchTimeout bounds a single routing call.
const DefaultFetchTimeout = 12 * time.Second

// RouteResult is a drawable path. Distance and Duration are nil when unknown,
// which is always the case for the fallback.
type RouteResult struct {
	Coords   []geo.Coordinate
	Distance *float64 // meters
	Duration *float64 // seconds
	Fallback bool
}

// FallbackRoute is the straight line used when routing fails.
func FallbackRoute(origin, destination geo.Coordinate) RouteResult {
	return RouteResult{
		Coords:   []geo.Coordinate{origin, destination},
		Fallback: true,
	}
}

// FetcherConfig holds configuration for the Fetcher.
type FetcherConfig struct {
	// Router is the routing collaborator. Nil means every fetch falls back.
	Router routing.Provider

	// Timeout defaults to DefaultFetchTimeout.
	Timeout time.Duration

	Logger zerolog.Logger
}

// Fetcher obtains a drawable route with a single attempt, degrading to a
// straight line on any failure.
type Fetcher struct {
	router  routing.Provider
	timeout time.Duration
	logger  zerolog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultFetchTimeout
	}
	return &Fetcher{
		router:  cfg.Router,
		timeout: timeout,
		logger:  cfg.Logger,
	}
}

// FetchRoute returns the primary route between origin and destination.
// Only invalid coordinates produce an error (wrapping ErrInvalidInput);
// every routing failure yields FallbackRoute.
func (f *Fetcher) FetchRoute(ctx context.Context, origin, destination geo.Coordinate) (RouteResult, error) {
	if err := geo.Validate(origin); err != nil {
		return RouteResult{}, fmt.Errorf("%w: origin: %v", ErrInvalidInput, err)
	}
	if err := geo.Validate(destination); err != nil {
		return RouteResult{}, fmt.Errorf("%w: destination: %v", ErrInvalidInput, err)
	}

	if f.router == nil {
		return FallbackRoute(origin, destination), nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.router.GetDirections(ctx, routing.DirectionsRequest{
		Origin:      origin,
		Destination: destination,
	})
	if err != nil {
		f.logFallback(fmt.Errorf("%w: %v", ErrRoutingFailed, err), origin, destination)
		return FallbackRoute(origin, destination), nil
	}

	route, ok := resp.Primary()
	if !ok || !drawable(route.Coords) {
		f.logFallback(fmt.Errorf("%w: no drawable route in response", ErrRoutingFailed), origin, destination)
		return FallbackRoute(origin, destination), nil
	}

	return RouteResult{
		Coords:   route.Coords,
		Distance: route.DistanceMeters,
		Duration: route.DurationSeconds,
	}, nil
}

func (f *Fetcher) logFallback(err error, origin, destination geo.Coordinate) {
	f.logger.Warn().Err(err).
		Str("origin", origin.String()).
		Str("destination", destination.String()).
		Msg("routing failed, using straight-line fallback")
}

// drawable reports whether path has at least two valid points.
func drawable(path []geo.Coordinate) bool {
	if len(path) < 2 {
		return false
	}
	for _, c := range path {
		if !c.Valid() {
			return false
		}
	}
	return true
}
