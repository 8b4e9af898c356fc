package geocoding

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/econav360/econav/internal/geo"
)

const (
	// DefaultTimeout bounds a single external geocoder call.
	DefaultTimeout = 12 * time.Second

	// DefaultCacheTTL is how long external results stay cached.
	DefaultCacheTTL = 24 * time.Hour
)

// ResolverConfig holds configuration for the Resolver.
type ResolverConfig struct {
	// Gazetteer is the list of known places. Nil means DefaultGazetteer().
	Gazetteer Gazetteer

	// Geocoder is the external fallback. Optional.
	Geocoder Provider

	// Cache stores external results. Optional.
	Cache Cache

	// CacheTTL defaults to DefaultCacheTTL.
	CacheTTL time.Duration

	// Timeout bounds the external geocoder call. Defaults to DefaultTimeout.
	Timeout time.Duration

	Logger zerolog.Logger
}

// Resolver turns free text into a coordinate with as few external calls as
// possible: literal coordinates, then exact and partial gazetteer matches,
// then the external geocoder.
type Resolver struct {
	gazetteer Gazetteer
	geocoder  Provider
	cache     Cache
	cacheTTL  time.Duration
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	gazetteer := cfg.Gazetteer
	if gazetteer == nil {
		gazetteer = DefaultGazetteer()
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = DefaultCacheTTL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Resolver{
		gazetteer: gazetteer,
		geocoder:  cfg.Geocoder,
		cache:     cfg.Cache,
		cacheTTL:  cacheTTL,
		timeout:   timeout,
		logger:    cfg.Logger,
	}
}

// Resolve resolves query. Empty queries fail with ErrInvalidQuery before any
// lookup; exhausted strategies fail with a *NotFoundError.
func (r *Resolver) Resolve(ctx context.Context, query string) (Resolution, error) {
	if strings.TrimSpace(query) == "" {
		return Resolution{Query: query, Source: SourceUnresolved}, ErrInvalidQuery
	}

	if c, ok := geo.ParseLatLng(query); ok {
		if err := geo.Validate(c); err != nil {
			return Resolution{Query: query, Source: SourceUnresolved}, &NotFoundError{Query: query, Err: err}
		}
		return Resolution{Query: query, Coordinate: c, Source: SourceLiteral}, nil
	}

	if p, ok := r.gazetteer.Exact(query); ok {
		return Resolution{Query: query, Coordinate: p.Coordinate, Source: SourceGazetteerExact}, nil
	}

	if p, ok := r.gazetteer.Partial(query); ok {
		r.logger.Debug().
			Str("query", query).
			Str("match", p.Name).
			Msg("gazetteer partial match")
		return Resolution{Query: query, Coordinate: p.Coordinate, Source: SourceGazetteerPartial}, nil
	}

	if r.geocoder == nil {
		return Resolution{Query: query, Source: SourceUnresolved}, &NotFoundError{Query: query}
	}

	return r.resolveExternal(ctx, query)
}

func (r *Resolver) resolveExternal(ctx context.Context, query string) (Resolution, error) {
	key := Normalize(query)

	if r.cache != nil {
		c, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.Warn().Err(err).Str("query", query).Msg("geocode cache read failed")
		} else if ok {
			return Resolution{Query: query, Coordinate: c, Source: SourceExternal, Provider: r.geocoder.Name()}, nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	c, err := r.geocoder.Geocode(callCtx, query)
	if err == nil {
		err = geo.Validate(c)
	}
	if err != nil {
		evt := r.logger.Warn()
		if errors.Is(err, ErrNoResults) {
			evt = r.logger.Debug()
		}
		evt.Err(err).
			Str("query", query).
			Str("provider", r.geocoder.Name()).
			Msg("external geocoder returned no usable result")
		return Resolution{Query: query, Source: SourceUnresolved}, &NotFoundError{Query: query, Err: err}
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, c, r.cacheTTL); err != nil {
			r.logger.Warn().Err(err).Str("query", query).Msg("geocode cache write failed")
		}
	}

	return Resolution{Query: query, Coordinate: c, Source: SourceExternal, Provider: r.geocoder.Name()}, nil
}

// Chain tries providers in order and returns the first success.
type Chain []Provider

// Name returns the names of the chained providers joined with "+".
func (c Chain) Name() string {
	names := make([]string, 0, len(c))
	for _, p := range c {
		names = append(names, p.Name())
	}
	return strings.Join(names, "+")
}

// Geocode returns the first provider result. If every provider fails the
// last error is returned; ErrNoResults is returned for an empty chain.
func (c Chain) Geocode(ctx context.Context, query string) (geo.Coordinate, error) {
	lastErr := ErrNoResults
	for _, p := range c {
		coord, err := p.Geocode(ctx, query)
		if err == nil {
			return coord, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return geo.Coordinate{}, lastErr
}
