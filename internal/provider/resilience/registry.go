package resilience

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Status buckets an upstream's breaker state for the ops endpoint.
type Status string

const (
	StatusOK       Status = "ok"       // closed
	StatusDegraded Status = "degraded" // half-open, probing
	StatusDown     Status = "down"     // open, calls rejected
)

// Health is a point-in-time view of one upstream.
type Health struct {
	Name   string
	State  gobreaker.State
	Counts gobreaker.Counts

	// Trips counts transitions into the open state since registration.
	Trips uint32

	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastTripAt    *time.Time
	LastError     string
}

// Status reports the bucket for h's breaker state.
func (h Health) Status() Status {
	switch h.State {
	case gobreaker.StateOpen:
		return StatusDown
	case gobreaker.StateHalfOpen:
		return StatusDegraded
	default:
		return StatusOK
	}
}

// Registry tracks the geocoding and routing clients of one process and
// their recent outcomes. Clients join it through ClientConfig.Registry.
type Registry struct {
	now func() time.Time

	mu        sync.RWMutex
	upstreams map[string]*upstream
}

type upstream struct {
	client *Client
	events Health // State and Counts are read from the breaker on demand
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		now:       time.Now,
		upstreams: make(map[string]*upstream),
	}
}

// add registers c under its name, replacing any earlier client of that name.
func (r *Registry) add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upstreams[c.Name()] = &upstream{client: c}
}

// Len returns the number of registered upstreams.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.upstreams)
}

// RecordSuccess stamps the last successful call for name.
func (r *Registry) RecordSuccess(name string) {
	r.update(name, func(h *Health, now time.Time) {
		h.LastSuccessAt = &now
	})
}

// RecordFailure stamps the last failed call for name.
func (r *Registry) RecordFailure(name string, err error) {
	r.update(name, func(h *Health, now time.Time) {
		h.LastFailureAt = &now
		if err != nil {
			h.LastError = err.Error()
		}
	})
}

// recordStateChange runs inside the breaker's state transition, so it must
// not call back into the breaker.
func (r *Registry) recordStateChange(name string, to gobreaker.State) {
	if to != gobreaker.StateOpen {
		return
	}
	r.update(name, func(h *Health, now time.Time) {
		h.Trips++
		h.LastTripAt = &now
	})
}

func (r *Registry) update(name string, fn func(*Health, time.Time)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.upstreams[name]; ok {
		fn(&u.events, r.now())
	}
}

// Health returns the health of name.
func (r *Registry) Health(name string) (Health, bool) {
	r.mu.RLock()
	u, ok := r.upstreams[name]
	var events Health
	if ok {
		events = u.events
	}
	r.mu.RUnlock()

	if !ok {
		return Health{}, false
	}
	return u.snapshot(name, events), true
}

// All returns the health of every registered upstream, sorted by name.
func (r *Registry) All() []Health {
	type entry struct {
		name   string
		u      *upstream
		events Health
	}

	// Breaker state is read after releasing mu; see recordStateChange.
	r.mu.RLock()
	entries := make([]entry, 0, len(r.upstreams))
	for name, u := range r.upstreams {
		entries = append(entries, entry{name: name, u: u, events: u.events})
	}
	r.mu.RUnlock()

	out := make([]Health, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.u.snapshot(e.name, e.events))
	}
	slices.SortFunc(out, func(a, b Health) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (u *upstream) snapshot(name string, events Health) Health {
	events.Name = name
	events.State = u.client.CircuitBreakerState()
	events.Counts = u.client.CircuitBreakerCounts()
	return events
}
