package navigator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/econav360/econav/internal/geo"
	"github.com/econav360/econav/internal/geocoding"
	"github.com/econav360/econav/internal/routing"
)

var (
	connaughtPlace = geo.Coordinate{Lat: 28.6139, Lng: 77.2090}
	library        = geo.Coordinate{Lat: 29.8654, Lng: 77.8958}
)

// fakeSource is a PositionSource driven by the test.
type fakeSource struct {
	mu      sync.Mutex
	onFix   func(Fix)
	onError func(error)
	opts    WatchOptions
	watches int
	stops   int
	err     error
}

func (s *fakeSource) Watch(_ context.Context, opts WatchOptions, onFix func(Fix), onError func(error)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.watches++
	s.opts = opts
	s.onFix = onFix
	s.onError = onError
	return func() {
		s.mu.Lock()
		s.stops++
		s.onFix = nil
		s.onError = nil
		s.mu.Unlock()
	}, nil
}

func (s *fakeSource) emit(c geo.Coordinate, at time.Time) {
	s.mu.Lock()
	fn := s.onFix
	s.mu.Unlock()
	if fn != nil {
		fn(Fix{Coordinate: c, Timestamp: at})
	}
}

func (s *fakeSource) fail(err error) {
	s.mu.Lock()
	fn := s.onError
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// stubRouter is a routing.Provider returning a canned answer.
type stubRouter struct {
	mu    sync.Mutex
	resp  *routing.DirectionsResponse
	err   error
	calls []routing.DirectionsRequest
}

func (r *stubRouter) Name() string { return "stub" }

func (r *stubRouter) GetDirections(_ context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, req)
	if r.err != nil {
		return nil, r.err
	}
	return r.resp, nil
}

func (r *stubRouter) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// gatedResolver blocks each query until the test releases it.
type gatedResolver struct {
	mu     sync.Mutex
	gates  map[string]chan struct{}
	places map[string]geo.Coordinate
}

func newGatedResolver(places map[string]geo.Coordinate) *gatedResolver {
	return &gatedResolver{gates: make(map[string]chan struct{}), places: places}
}

func (r *gatedResolver) gate(query string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.gates[query]
	if !ok {
		ch = make(chan struct{})
		r.gates[query] = ch
	}
	return ch
}

func (r *gatedResolver) release(query string) {
	close(r.gate(query))
}

func (r *gatedResolver) Resolve(ctx context.Context, query string) (geocoding.Resolution, error) {
	select {
	case <-r.gate(query):
	case <-ctx.Done():
		return geocoding.Resolution{}, ctx.Err()
	}
	c, ok := r.places[query]
	if !ok {
		return geocoding.Resolution{}, &geocoding.NotFoundError{Query: query}
	}
	return geocoding.Resolution{Query: query, Coordinate: c, Source: geocoding.SourceGazetteerExact}, nil
}

var errUpstream = errors.New("upstream down")
