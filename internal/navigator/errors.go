package navigator

import (
	"errors"

	"github.com/econav360/econav/internal/geocoding"
)

// Sentinel errors for the navigator. Only ErrInvalidInput and
// ErrSurfaceUnavailable ever reach callers; the rest are absorbed at the
// component that produced them and reported through logs or callbacks.
var (
	// ErrInvalidInput indicates a non-finite or out-of-range coordinate or an empty query.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound indicates a destination query could not be resolved.
	ErrNotFound = geocoding.ErrNotFound
	// ErrRoutingFailed indicates the routing collaborator failed; always replaced by the fallback route.
	ErrRoutingFailed = errors.New("routing failed")
	// ErrLocationUnavailable indicates no position source, denied permission, or a watch timeout.
	ErrLocationUnavailable = errors.New("location unavailable")
	// ErrSurfaceUnavailable indicates the map surface could not be created.
	ErrSurfaceUnavailable = errors.New("map surface unavailable")
)

// ResolutionError carries the query that could not be resolved. Its message
// is suitable for showing to the user.
type ResolutionError = geocoding.NotFoundError
