package navigator

import (
	"context"

	"github.com/econav360/econav/internal/geo"
)

// View is a map center and zoom level.
type View struct {
	Center geo.Coordinate
	Zoom   int
}

// MarkerKind distinguishes the two markers the machine draws.
type MarkerKind int

const (
	MarkerUser MarkerKind = iota
	MarkerDestination
)

func (k MarkerKind) String() string {
	switch k {
	case MarkerUser:
		return "user"
	case MarkerDestination:
		return "destination"
	default:
		return "unknown"
	}
}

// Label is the popup text bound to a marker.
func (k MarkerKind) Label() string {
	if k == MarkerUser {
		return "You are here"
	}
	return "Destination"
}

// PolylineStyle describes how the route is stroked.
type PolylineStyle struct {
	Color   string
	Weight  int
	Opacity float64
}

// DefaultRouteStyle is the style of the active route.
var DefaultRouteStyle = PolylineStyle{Color: "#2563eb", Weight: 5, Opacity: 0.9}

// Marker is a handle to a marker on a Surface.
type Marker interface {
	MoveTo(c geo.Coordinate)
	Remove()
}

// Polyline is a handle to a line on a Surface.
type Polyline interface {
	SetCoords(coords []geo.Coordinate)
	Remove()
}

// Surface is a rendered map. All calls come from the MapMachine while it
// holds its lock, so implementations need not be safe for concurrent use
// by anyone else.
type Surface interface {
	View() View
	SetView(center geo.Coordinate, zoom int)
	PanTo(center geo.Coordinate)
	FitBounds(b geo.Bounds, padRatio float64)
	AddMarker(kind MarkerKind, at geo.Coordinate) Marker
	AddPolyline(coords []geo.Coordinate, style PolylineStyle) Polyline
	ShowNotice(at geo.Coordinate, text string)
	Remove()
}

// SurfaceFactory creates map surfaces.
type SurfaceFactory interface {
	NewSurface(ctx context.Context, initial View) (Surface, error)
}

// SurfaceFactoryFunc adapts a function to SurfaceFactory.
type SurfaceFactoryFunc func(ctx context.Context, initial View) (Surface, error)

// NewSurface calls f.
func (f SurfaceFactoryFunc) NewSurface(ctx context.Context, initial View) (Surface, error) {
	return f(ctx, initial)
}
