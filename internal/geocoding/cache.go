package geocoding

import (
	"context"
	"sync"
	"time"

	"github.com/econav360/econav/internal/geo"
)

// Cache stores external geocoding results keyed by normalized query.
type Cache interface {
	Get(ctx context.Context, key string) (geo.Coordinate, bool, error)
	Set(ctx context.Context, key string, coord geo.Coordinate, ttl time.Duration) error
}

// MemoryCache is an in-process Cache with per-entry expiry.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	coord     geo.Coordinate
	expiresAt time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the cached coordinate for key if present and not expired.
func (c *MemoryCache) Get(_ context.Context, key string) (geo.Coordinate, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return geo.Coordinate{}, false, nil
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return geo.Coordinate{}, false, nil
	}
	return e.coord, true, nil
}

// Set stores coord under key for ttl.
func (c *MemoryCache) Set(_ context.Context, key string, coord geo.Coordinate, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{coord: coord, expiresAt: c.now().Add(ttl)}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
