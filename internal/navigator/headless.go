package navigator

import (
	"context"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/econav360/econav/internal/geo"
)

const maxZoom = 19

// HeadlessSurface is a Surface with no renderer. It keeps the view and the
// overlays in memory and logs every draw operation, which makes it usable
// from the command line and in tests.
type HeadlessSurface struct {
	logger zerolog.Logger

	mu       sync.Mutex
	view     View
	markers  map[MarkerKind]*headlessMarker
	line     *headlessPolyline
	notices  []string
	removed  bool
	fits     int
	pans     int
	setViews int
}

// NewHeadlessSurface creates a HeadlessSurface showing initial.
func NewHeadlessSurface(initial View, logger zerolog.Logger) *HeadlessSurface {
	return &HeadlessSurface{
		logger:  logger,
		view:    initial,
		markers: make(map[MarkerKind]*headlessMarker),
	}
}

// HeadlessFactory returns a SurfaceFactory producing HeadlessSurfaces. Each
// created surface is passed to created, if non-nil.
func HeadlessFactory(logger zerolog.Logger, created func(*HeadlessSurface)) SurfaceFactory {
	return SurfaceFactoryFunc(func(_ context.Context, initial View) (Surface, error) {
		s := NewHeadlessSurface(initial, logger)
		if created != nil {
			created(s)
		}
		s.logger.Info().
			Str("center", initial.Center.String()).
			Int("zoom", initial.Zoom).
			Msg("map created")
		return s, nil
	})
}

// View returns the current center and zoom.
func (s *HeadlessSurface) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// SetView moves the view to center at zoom.
func (s *HeadlessSurface) SetView(center geo.Coordinate, zoom int) {
	s.mu.Lock()
	s.view = View{Center: center, Zoom: zoom}
	s.setViews++
	s.mu.Unlock()
	s.logger.Info().Str("center", center.String()).Int("zoom", zoom).Msg("set view")
}

// PanTo recenters the view without changing the zoom.
func (s *HeadlessSurface) PanTo(center geo.Coordinate) {
	s.mu.Lock()
	s.view.Center = center
	s.pans++
	s.mu.Unlock()
	s.logger.Info().Str("center", center.String()).Msg("pan")
}

// FitBounds pads b by padRatio on each side and shows the result at the
// largest zoom that contains it.
func (s *HeadlessSurface) FitBounds(b geo.Bounds, padRatio float64) {
	padded := b.Pad(padRatio)
	s.mu.Lock()
	s.view = View{Center: padded.Center(), Zoom: zoomFor(padded)}
	s.fits++
	view := s.view
	s.mu.Unlock()
	s.logger.Info().
		Float64("south", padded.South).
		Float64("west", padded.West).
		Float64("north", padded.North).
		Float64("east", padded.East).
		Int("zoom", view.Zoom).
		Msg("fit bounds")
}

// AddMarker places a marker of the given kind, replacing any earlier marker
// of that kind.
func (s *HeadlessSurface) AddMarker(kind MarkerKind, at geo.Coordinate) Marker {
	m := &headlessMarker{surface: s, kind: kind, at: at}
	s.mu.Lock()
	s.markers[kind] = m
	s.mu.Unlock()
	s.logger.Info().Stringer("marker", kind).Str("at", at.String()).Str("popup", kind.Label()).Msg("add marker")
	return m
}

// AddPolyline draws the route line. There is at most one.
func (s *HeadlessSurface) AddPolyline(coords []geo.Coordinate, style PolylineStyle) Polyline {
	p := &headlessPolyline{surface: s, coords: clonePath(coords), style: style}
	s.mu.Lock()
	s.line = p
	s.mu.Unlock()
	s.logger.Info().
		Int("points", len(coords)).
		Float64("length_m", geo.Length(coords)).
		Str("color", style.Color).
		Msg("add route")
	return p
}

// ShowNotice records text and logs it at warn level.
func (s *HeadlessSurface) ShowNotice(at geo.Coordinate, text string) {
	s.mu.Lock()
	s.notices = append(s.notices, text)
	s.mu.Unlock()
	s.logger.Warn().Str("at", at.String()).Msg(text)
}

// Remove marks the surface as removed. Overlays are kept for inspection.
func (s *HeadlessSurface) Remove() {
	s.mu.Lock()
	s.removed = true
	s.mu.Unlock()
	s.logger.Info().Msg("map removed")
}

// HeadlessState is a copy of what a HeadlessSurface currently shows.
type HeadlessState struct {
	View        View
	User        *geo.Coordinate
	Destination *geo.Coordinate
	Route       []geo.Coordinate
	Notices     []string
	Removed     bool
	Fits        int
	Pans        int
	SetViews    int
}

// State returns a copy of the surface contents.
func (s *HeadlessSurface) State() HeadlessState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := HeadlessState{
		View:     s.view,
		Notices:  append([]string(nil), s.notices...),
		Removed:  s.removed,
		Fits:     s.fits,
		Pans:     s.pans,
		SetViews: s.setViews,
	}
	if m, ok := s.markers[MarkerUser]; ok {
		c := m.at
		st.User = &c
	}
	if m, ok := s.markers[MarkerDestination]; ok {
		c := m.at
		st.Destination = &c
	}
	if s.line != nil {
		st.Route = clonePath(s.line.coords)
	}
	return st
}

type headlessMarker struct {
	surface *HeadlessSurface
	kind    MarkerKind
	at      geo.Coordinate
}

func (m *headlessMarker) MoveTo(c geo.Coordinate) {
	m.surface.mu.Lock()
	m.at = c
	m.surface.mu.Unlock()
	m.surface.logger.Debug().Stringer("marker", m.kind).Str("at", c.String()).Msg("move marker")
}

func (m *headlessMarker) Remove() {
	m.surface.mu.Lock()
	if m.surface.markers[m.kind] == m {
		delete(m.surface.markers, m.kind)
	}
	m.surface.mu.Unlock()
}

type headlessPolyline struct {
	surface *HeadlessSurface
	coords  []geo.Coordinate
	style   PolylineStyle
}

func (p *headlessPolyline) SetCoords(coords []geo.Coordinate) {
	p.surface.mu.Lock()
	p.coords = clonePath(coords)
	p.surface.mu.Unlock()
	p.surface.logger.Info().
		Int("points", len(coords)).
		Float64("length_m", geo.Length(coords)).
		Msg("update route")
}

func (p *headlessPolyline) Remove() {
	p.surface.mu.Lock()
	if p.surface.line == p {
		p.surface.line = nil
	}
	p.surface.mu.Unlock()
}

func clonePath(path []geo.Coordinate) []geo.Coordinate {
	return append([]geo.Coordinate(nil), path...)
}

// zoomFor picks the largest web-mercator zoom at which b spans at most one
// 256px tile, clamped to [1, maxZoom].
func zoomFor(b geo.Bounds) int {
	span := math.Max(b.North-b.South, b.East-b.West)
	if span <= 0 {
		return maxZoom
	}
	z := int(math.Floor(math.Log2(360 / span)))
	return min(max(z, 1), maxZoom)
}
