package routing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmcloughlin/geohash"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/econav360/econav/internal/geo"
)

// DefaultCachePrecision is the geohash length used for cache keys. Eight
// characters is a cell of roughly 38m x 19m.
const DefaultCachePrecision uint = 8

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger

	// CacheTTL is how long a route stays fresh (default: 5 minutes).
	CacheTTL time.Duration

	// CachePrecision is the geohash length of cache cells (default: 8).
	// Requests whose endpoints fall in the same cells share a cache entry.
	CachePrecision uint

	// StaleIfErrorTTL is how long after fetching a route may still be served
	// when the provider fails (default: 15 minutes).
	StaleIfErrorTTL time.Duration

	// CleanupInterval is the minimum time between sweeps of dead entries
	// (default: 5 minutes).
	CleanupInterval time.Duration
}

// Service fronts a Provider with a geohash-keyed route cache. Concurrent
// misses for the same cells share one upstream call. It implements Provider.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	cacheTTL        time.Duration
	cachePrecision  uint
	staleIfErrorTTL time.Duration
	cleanupInterval time.Duration
	now             func() time.Time

	flights singleflight.Group

	mu          sync.RWMutex
	cache       map[string]*cachedDirections
	lastCleanup time.Time

	hits        atomic.Uint64
	misses      atomic.Uint64
	staleServed atomic.Uint64
}

type cachedDirections struct {
	response  *DirectionsResponse
	fetchedAt time.Time
	expiresAt time.Time
}

// NewService creates a new routing service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		cacheTTL:        cfg.CacheTTL,
		cachePrecision:  cfg.CachePrecision,
		staleIfErrorTTL: cfg.StaleIfErrorTTL,
		cleanupInterval: cfg.CleanupInterval,
		now:             time.Now,
		cache:           make(map[string]*cachedDirections),
	}
	if s.cacheTTL == 0 {
		s.cacheTTL = 5 * time.Minute
	}
	if s.cachePrecision == 0 {
		s.cachePrecision = DefaultCachePrecision
	}
	if s.staleIfErrorTTL == 0 {
		s.staleIfErrorTTL = 15 * time.Minute
	}
	if s.cleanupInterval == 0 {
		s.cleanupInterval = 5 * time.Minute
	}
	return s
}

// Name returns the name of the underlying provider.
func (s *Service) Name() string {
	return s.provider.Name()
}

// GetDirections returns routes between two points, from cache when a fresh
// entry covers both endpoints' cells.
func (s *Service) GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error) {
	if err := ValidateRequest(req, s.provider.Name()); err != nil {
		return nil, err
	}
	if req.Profile == "" {
		req.Profile = ProfileDriving
	}

	key := s.cacheKey(req)
	if resp, ok := s.fresh(key); ok {
		s.hits.Add(1)
		s.logger.Debug().Str("cache_key", key).Msg("cache hit for directions")
		return resp, nil
	}

	v, err, shared := s.flights.Do(key, func() (any, error) {
		return s.fetch(ctx, req, key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug().Str("cache_key", key).Msg("joined in-flight directions request")
	}
	return v.(*DirectionsResponse), nil
}

func (s *Service) fetch(ctx context.Context, req DirectionsRequest, key string) (*DirectionsResponse, error) {
	// A flight for this key may have landed between the caller's lookup and now.
	if resp, ok := s.fresh(key); ok {
		s.hits.Add(1)
		return resp, nil
	}
	s.misses.Add(1)

	log := s.logger.With().
		Str("origin", req.Origin.String()).
		Str("destination", req.Destination.String()).
		Str("profile", string(req.Profile)).
		Str("provider", s.provider.Name()).
		Logger()
	log.Debug().Msg("fetching directions from provider")

	resp, err := s.provider.GetDirections(ctx, req)
	if err == nil && len(resp.Routes) == 0 {
		err = &Error{
			Provider: s.provider.Name(),
			Code:     "NO_ROUTE",
			Message:  "provider returned no routes",
			Err:      ErrNoRouteFound,
		}
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch directions")

		// A definite "no route" is an answer, not an outage.
		if !errors.Is(err, ErrNoRouteFound) {
			if stale, fetchedAt, ok := s.stale(key); ok {
				s.staleServed.Add(1)
				log.Warn().
					Time("fetched_at", fetchedAt).
					Str("cache_key", key).
					Msg("serving stale directions after provider error")
				return stale, nil
			}
		}
		return nil, err
	}

	s.store(key, resp)
	return resp, nil
}

func (s *Service) fresh(key string) (*DirectionsResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cache[key]
	if !ok || !s.now().Before(c.expiresAt) {
		return nil, false
	}
	return c.response, true
}

func (s *Service) stale(key string) (*DirectionsResponse, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cache[key]
	if !ok || !s.now().Before(c.fetchedAt.Add(s.staleIfErrorTTL)) {
		return nil, time.Time{}, false
	}
	return c.response, c.fetchedAt, true
}

func (s *Service) store(key string, resp *DirectionsResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.cache[key] = &cachedDirections{
		response:  resp,
		fetchedAt: now,
		expiresAt: now.Add(s.cacheTTL),
	}
	s.logger.Debug().
		Str("cache_key", key).
		Int("route_count", len(resp.Routes)).
		Msg("cached directions response")

	s.sweepLocked(now)
}

// cacheKey is {profile}:{originCell}:{destinationCell}.
func (s *Service) cacheKey(req DirectionsRequest) string {
	return string(req.Profile) + ":" + s.cell(req.Origin) + ":" + s.cell(req.Destination)
}

func (s *Service) cell(c geo.Coordinate) string {
	return geohash.EncodeWithPrecision(c.Lat, c.Lng, s.cachePrecision)
}

// sweepLocked drops entries past the stale window, at most once per
// cleanup interval.
func (s *Service) sweepLocked(now time.Time) {
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}
	s.lastCleanup = now

	expired := 0
	for key, c := range s.cache {
		if !now.Before(c.fetchedAt.Add(s.staleIfErrorTTL)) {
			delete(s.cache, key)
			expired++
		}
	}
	if expired > 0 {
		s.logger.Debug().Int("expired_entries", expired).Msg("swept routing cache")
	}
}

// InvalidateCache clears all cached routes. Counters are kept.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cachedDirections)
}

// CacheStats returns a snapshot of the cache.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := CacheStats{
		TotalEntries: len(s.cache),
		Hits:         s.hits.Load(),
		Misses:       s.misses.Load(),
		StaleServed:  s.staleServed.Load(),
		Provider:     s.provider.Name(),
	}
	now := s.now()
	for _, c := range s.cache {
		switch {
		case now.Before(c.expiresAt):
			stats.FreshEntries++
		case now.Before(c.fetchedAt.Add(s.staleIfErrorTTL)):
			stats.StaleEntries++
		}
	}
	return stats
}

// CacheStats describes the route cache for the ops endpoint.
type CacheStats struct {
	TotalEntries int    `json:"totalEntries"`
	FreshEntries int    `json:"freshEntries"`
	StaleEntries int    `json:"staleEntries"`
	Hits         uint64 `json:"hits"`
	Misses       uint64 `json:"misses"`
	StaleServed  uint64 `json:"staleServed"`
	Provider     string `json:"provider"`
}
