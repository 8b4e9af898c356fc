// Package cache provides shared cache backends.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/econav360/econav/internal/geo"
)

// DefaultKeyPrefix namespaces geocode entries in a shared keyspace.
const DefaultKeyPrefix = "econav:geocode:"

// Valkey is a geocoding.Cache backed by Valkey (Redis-compatible).
type Valkey struct {
	client valkey.Client
	prefix string
}

// NewValkey connects to the Valkey server at addr.
func NewValkey(addr, prefix string) (*Valkey, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return NewValkeyWithClient(client, prefix), nil
}

// NewValkeyWithClient wraps an existing client.
func NewValkeyWithClient(client valkey.Client, prefix string) *Valkey {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Valkey{client: client, prefix: prefix}
}

// Get returns the coordinate stored for key. A missing key is a miss, not an error.
func (c *Valkey) Get(ctx context.Context, key string) (geo.Coordinate, bool, error) {
	b, err := c.client.Do(ctx, c.client.B().Get().Key(c.prefix+key).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return geo.Coordinate{}, false, nil
		}
		return geo.Coordinate{}, false, err
	}

	coord, err := decodeCoordinate(b)
	if err != nil {
		return geo.Coordinate{}, false, err
	}
	return coord, true, nil
}

// Set stores coord under key with a TTL.
func (c *Valkey) Set(ctx context.Context, key string, coord geo.Coordinate, ttl time.Duration) error {
	b, err := json.Marshal(coord)
	if err != nil {
		return err
	}
	cmd := c.client.B().Set().Key(c.prefix + key).Value(string(b)).Ex(ttl).Build()
	return c.client.Do(ctx, cmd).Error()
}

// Ping checks connectivity.
func (c *Valkey) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (c *Valkey) Close() {
	c.client.Close()
}

func decodeCoordinate(b []byte) (geo.Coordinate, error) {
	var coord geo.Coordinate
	if err := json.Unmarshal(b, &coord); err != nil {
		return geo.Coordinate{}, fmt.Errorf("decoding cached coordinate: %w", err)
	}
	if err := geo.Validate(coord); err != nil {
		return geo.Coordinate{}, fmt.Errorf("cached coordinate: %w", err)
	}
	return coord, nil
}
