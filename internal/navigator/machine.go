package navigator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/econav360/econav/internal/geo"
	"github.com/econav360/econav/internal/geocoding"
)

const (
	// DefaultFirstFixZoom is the zoom the view jumps to on the first position.
	DefaultFirstFixZoom = 15

	// DefaultRecenterMeters is how far the user may drift from the view
	// center before the view follows.
	DefaultRecenterMeters = 30.0

	// DefaultFitPadding pads fitted route bounds on each side.
	DefaultFitPadding = 0.15
)

// DefaultInitialView is shown until the first position arrives.
var DefaultInitialView = View{Center: geo.Coordinate{Lat: 28.6139, Lng: 77.2090}, Zoom: 13}

// State is the lifecycle state of a MapMachine.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateTracking
	StateRouted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateTracking:
		return "tracking"
	case StateRouted:
		return "routed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Resolver resolves destination text. *geocoding.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, query string) (geocoding.Resolution, error)
}

// RouteFetcher produces drawable routes. *Fetcher implements it.
type RouteFetcher interface {
	FetchRoute(ctx context.Context, origin, destination geo.Coordinate) (RouteResult, error)
}

// MachineConfig holds configuration for the MapMachine.
type MachineConfig struct {
	Surfaces SurfaceFactory
	Tracker  *Tracker
	Resolver Resolver
	Fetcher  RouteFetcher

	// InitialView defaults to DefaultInitialView.
	InitialView *View

	// FirstFixZoom defaults to DefaultFirstFixZoom.
	FirstFixZoom int

	// RecenterMeters defaults to DefaultRecenterMeters.
	RecenterMeters float64

	// DebounceDelay defaults to DefaultDebounceDelay.
	DebounceDelay time.Duration

	// FitPadding defaults to DefaultFitPadding.
	FitPadding float64

	Logger zerolog.Logger
}

// MapMachine owns the map surface and every overlay on it. It consumes
// positions from the Tracker, resolves destination text, and keeps a single
// active route drawn between the two.
//
// All state is guarded by mu. Resolution and routing run on their own
// goroutines; their results are applied only if they still match the
// current session, query text and route generation.
type MapMachine struct {
	surfaces       SurfaceFactory
	tracker        *Tracker
	resolver       Resolver
	fetcher        RouteFetcher
	initialView    View
	firstFixZoom   int
	recenterMeters float64
	debounceDelay  time.Duration
	fitPadding     float64
	logger         zerolog.Logger

	mu          sync.Mutex
	state       State
	session     uint64
	ctx         context.Context
	cancel      context.CancelFunc
	debouncer   *Debouncer
	surface     Surface
	userMarker  Marker
	destMarker  Marker
	routeLine   Polyline
	position    *TrackedPosition
	query       string
	destination *geocoding.Resolution
	route       *RouteResult
	routeGen    uint64
	fitted      bool
	notice      string

	inflight sync.WaitGroup
}

// NewMachine creates a MapMachine in StateUninitialized.
func NewMachine(cfg MachineConfig) *MapMachine {
	initial := DefaultInitialView
	if cfg.InitialView != nil {
		initial = *cfg.InitialView
	}

	firstFixZoom := cfg.FirstFixZoom
	if firstFixZoom == 0 {
		firstFixZoom = DefaultFirstFixZoom
	}

	recenter := cfg.RecenterMeters
	if recenter == 0 {
		recenter = DefaultRecenterMeters
	}

	delay := cfg.DebounceDelay
	if delay == 0 {
		delay = DefaultDebounceDelay
	}

	padding := cfg.FitPadding
	if padding == 0 {
		padding = DefaultFitPadding
	}

	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = NewFetcher(FetcherConfig{Logger: cfg.Logger})
	}

	m := &MapMachine{
		surfaces:       cfg.Surfaces,
		tracker:        cfg.Tracker,
		resolver:       cfg.Resolver,
		fetcher:        fetcher,
		initialView:    initial,
		firstFixZoom:   firstFixZoom,
		recenterMeters: recenter,
		debounceDelay:  delay,
		fitPadding:     padding,
		logger:         cfg.Logger,
	}

	if m.tracker != nil {
		m.tracker.OnUpdate(m.handlePosition)
	}

	return m
}

// Init creates the map surface and starts tracking. Calling Init on an
// initialized machine is a no-op. If the surface cannot be created the
// machine stays uninitialized and an error wrapping ErrSurfaceUnavailable
// is returned. A tracker failure is logged and does not fail Init.
func (m *MapMachine) Init(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateUninitialized {
		m.mu.Unlock()
		return nil
	}
	if m.surfaces == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: no surface factory", ErrSurfaceUnavailable)
	}

	surface, err := m.surfaces.NewSurface(ctx, m.initialView)
	if err == nil && surface == nil {
		err = errors.New("factory returned no surface")
	}
	if err != nil {
		m.mu.Unlock()
		m.logger.Error().Err(err).Msg("map surface creation failed")
		return fmt.Errorf("%w: %v", ErrSurfaceUnavailable, err)
	}

	m.surface = surface
	m.state = StateInitialized
	m.session++
	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	m.debouncer = NewDebouncer(m.debounceDelay)
	if strings.TrimSpace(m.query) != "" {
		m.startResolveLocked(m.query)
	}
	m.mu.Unlock()

	m.logger.Info().Msg("map initialized")

	if m.tracker != nil {
		if err := m.tracker.Start(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("continuing without position")
		}
	}
	return nil
}

// SetDestination changes the destination text. Empty text clears the
// destination. Set before Init, the text is resolved once the map exists.
func (m *MapMachine) SetDestination(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if text == m.query && m.destination != nil {
		return
	}
	m.query = text

	if strings.TrimSpace(text) == "" {
		m.dropDestinationLocked()
		return
	}
	if m.state == StateUninitialized {
		return
	}
	m.startResolveLocked(text)
}

// Teardown cancels outstanding work, stops the tracker and removes every
// overlay and the surface. It is safe in any state and may be repeated.
func (m *MapMachine) Teardown() {
	m.mu.Lock()
	cancel := m.cancel
	debouncer := m.debouncer
	wasLive := m.state != StateUninitialized

	m.session++
	m.state = StateUninitialized
	m.cancel = nil
	m.debouncer = nil

	removeHandle(m.routeLine)
	removeHandle(m.destMarker)
	removeHandle(m.userMarker)
	if m.surface != nil {
		m.surface.Remove()
	}
	m.surface = nil
	m.routeLine = nil
	m.destMarker = nil
	m.userMarker = nil

	m.position = nil
	m.query = ""
	m.destination = nil
	m.route = nil
	m.fitted = false
	m.notice = ""
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if debouncer != nil {
		debouncer.Stop()
	}
	if m.tracker != nil {
		m.tracker.Stop()
	}

	if wasLive {
		m.logger.Info().Msg("map torn down")
	}
}

// Wait blocks until destination resolutions started so far have finished.
func (m *MapMachine) Wait() {
	m.inflight.Wait()
}

// Snapshot is a copy of the machine's observable state.
type Snapshot struct {
	State       State
	View        View
	Position    *TrackedPosition
	Query       string
	Destination *geocoding.Resolution
	Route       *RouteResult
	Notice      string

	HasUserMarker        bool
	HasDestinationMarker bool
	HasRouteLine         bool
}

// Snapshot returns the current state.
func (m *MapMachine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		State:                m.state,
		Query:                m.query,
		Notice:               m.notice,
		HasUserMarker:        m.userMarker != nil,
		HasDestinationMarker: m.destMarker != nil,
		HasRouteLine:         m.routeLine != nil,
	}
	if m.surface != nil {
		s.View = m.surface.View()
	}
	if m.position != nil {
		p := *m.position
		s.Position = &p
	}
	if m.destination != nil {
		d := *m.destination
		s.Destination = &d
	}
	if m.route != nil {
		r := *m.route
		r.Coords = append([]geo.Coordinate(nil), m.route.Coords...)
		s.Route = &r
	}
	return s
}

func (m *MapMachine) handlePosition(p TrackedPosition) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateUninitialized {
		return
	}

	m.position = &p
	if m.userMarker == nil {
		m.userMarker = m.surface.AddMarker(MarkerUser, p.Coordinate)
		m.surface.SetView(p.Coordinate, m.firstFixZoom)
	} else {
		m.userMarker.MoveTo(p.Coordinate)
		if geo.Distance(m.surface.View().Center, p.Coordinate) > m.recenterMeters {
			m.surface.PanTo(p.Coordinate)
		}
	}
	if m.state == StateInitialized {
		m.state = StateTracking
	}

	m.scheduleRouteLocked()
}

func (m *MapMachine) startResolveLocked(query string) {
	if m.resolver == nil {
		m.applyResolutionLocked(query, geocoding.Resolution{Query: query}, &geocoding.NotFoundError{Query: query})
		return
	}

	session := m.session
	ctx := m.ctx
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		res, err := m.resolver.Resolve(ctx, query)

		m.mu.Lock()
		defer m.mu.Unlock()
		if session != m.session || query != m.query {
			m.logger.Debug().Str("query", query).Msg("discarding stale resolution")
			return
		}
		m.applyResolutionLocked(query, res, err)
	}()
}

func (m *MapMachine) applyResolutionLocked(query string, res geocoding.Resolution, err error) {
	if err != nil {
		m.clearDestinationLocked()
		m.notice = notFoundNotice(query)
		m.surface.ShowNotice(m.surface.View().Center, m.notice)
		m.logger.Warn().Err(err).Str("query", query).Msg("destination not resolved")
		return
	}

	m.notice = ""
	m.destination = &res
	m.fitted = false
	// The drawn route still leads to the previous destination.
	if m.state == StateRouted {
		m.state = StateTracking
	}
	if m.destMarker == nil {
		m.destMarker = m.surface.AddMarker(MarkerDestination, res.Coordinate)
	} else {
		m.destMarker.MoveTo(res.Coordinate)
	}

	m.logger.Info().
		Str("query", query).
		Str("source", string(res.Source)).
		Str("at", res.Coordinate.String()).
		Msg("destination resolved")

	m.scheduleRouteLocked()
}

// dropDestinationLocked forgets the destination and removes its marker and
// the route drawn to it.
func (m *MapMachine) dropDestinationLocked() {
	m.clearDestinationLocked()
	m.notice = ""
	removeHandle(m.routeLine)
	removeHandle(m.destMarker)
	m.routeLine = nil
	m.destMarker = nil
	m.route = nil
	m.fitted = false

	switch {
	case m.state == StateUninitialized:
	case m.position != nil:
		m.state = StateTracking
	default:
		m.state = StateInitialized
	}
}

// clearDestinationLocked forgets the destination and any pending route work.
// Overlays already drawn stay on the map.
func (m *MapMachine) clearDestinationLocked() {
	m.destination = nil
	m.routeGen++
	if m.debouncer != nil {
		m.debouncer.Cancel()
	}
}

// scheduleRouteLocked arranges a debounced fetch-and-draw for the current
// endpoints. Only the last pair scheduled within the window is fetched.
func (m *MapMachine) scheduleRouteLocked() {
	if m.position == nil || m.destination == nil || m.debouncer == nil {
		return
	}

	m.routeGen++
	gen := m.routeGen
	session := m.session
	ctx := m.ctx
	origin := m.position.Coordinate
	destination := m.destination.Coordinate

	m.debouncer.Trigger(func() {
		m.fetchAndDraw(ctx, session, gen, origin, destination)
	})
}

func (m *MapMachine) fetchAndDraw(ctx context.Context, session, gen uint64, origin, destination geo.Coordinate) {
	result, err := m.fetcher.FetchRoute(ctx, origin, destination)
	if err != nil {
		m.logger.Error().Err(err).Msg("route fetch rejected")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if session != m.session || gen != m.routeGen {
		m.logger.Debug().Msg("discarding stale route")
		return
	}

	m.route = &result
	if m.routeLine == nil {
		m.routeLine = m.surface.AddPolyline(result.Coords, DefaultRouteStyle)
	} else {
		m.routeLine.SetCoords(result.Coords)
	}
	if !m.fitted {
		m.surface.FitBounds(geo.BoundsOf(result.Coords), m.fitPadding)
		m.fitted = true
	}
	m.state = StateRouted

	evt := m.logger.Info().
		Int("points", len(result.Coords)).
		Bool("fallback", result.Fallback)
	if result.Distance != nil {
		evt = evt.Float64("distance_m", *result.Distance)
	}
	if result.Duration != nil {
		evt = evt.Float64("duration_s", *result.Duration)
	}
	evt.Msg("route drawn")
}

func notFoundNotice(query string) string {
	return fmt.Sprintf("Destination not found: %q. Check the spelling or enter coordinates as lat,lng.", query)
}

func removeHandle(h interface{ Remove() }) {
	if h != nil {
		h.Remove()
	}
}
