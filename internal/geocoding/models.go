// Package geocoding resolves free-text place queries to coordinates: literal
// "lat,lng" input, a built-in gazetteer of campus and city names, and
// external geocoding providers.
package geocoding

import (
	"context"
	"errors"
	"fmt"

	"github.com/econav360/econav/internal/geo"
)

// Sentinel errors for geocoding operations.
var (
	// ErrInvalidQuery indicates an empty or whitespace-only query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrNotFound indicates every resolution strategy was exhausted.
	ErrNotFound = errors.New("destination not found")
	// ErrNoResults indicates a provider answered but had no match.
	ErrNoResults = errors.New("no results")
	// ErrProviderUnavailable indicates a provider could not be reached or answered with an error.
	ErrProviderUnavailable = errors.New("geocoding provider unavailable")
)

// Provider is an external geocoding service.
type Provider interface {
	// Geocode returns the best match for query. Implementations return an
	// error wrapping ErrNoResults when the upstream has no match.
	Geocode(ctx context.Context, query string) (geo.Coordinate, error)
	// Name identifies the provider in logs and health output.
	Name() string
}

// Source records which strategy produced a Resolution.
type Source string

const (
	SourceGazetteerExact   Source = "gazetteer-exact"
	SourceGazetteerPartial Source = "gazetteer-partial"
	SourceLiteral          Source = "literal-coordinate"
	SourceExternal         Source = "external-geocoder"
	SourceUnresolved       Source = "unresolved"
)

// Resolution binds a coordinate to the query text that produced it.
type Resolution struct {
	Query      string
	Coordinate geo.Coordinate
	Source     Source
	// Provider is set for external resolutions.
	Provider string
}

// NotFoundError is returned when a query cannot be resolved. Its message
// carries the query so it can be shown to the user verbatim. Err holds the
// external geocoder's failure, if one was consulted.
type NotFoundError struct {
	Query string
	Err   error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("destination not found: %q", e.Query)
}

// Unwrap makes errors.Is(err, ErrNotFound) hold, along with any check
// against the geocoder's error.
func (e *NotFoundError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNotFound}
	}
	return []error{ErrNotFound, e.Err}
}

// Error provides detailed error information from a geocoding provider.
type Error struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Provider + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Provider + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
