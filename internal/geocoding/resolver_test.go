package geocoding_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/econav360/econav/internal/geo"
	"github.com/econav360/econav/internal/geocoding"
)

type stubGeocoder struct {
	coord geo.Coordinate
	err   error
	calls atomic.Int32
	delay time.Duration
}

func (s *stubGeocoder) Geocode(ctx context.Context, _ string) (geo.Coordinate, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return geo.Coordinate{}, ctx.Err()
		}
	}
	return s.coord, s.err
}

func (s *stubGeocoder) Name() string { return "stub" }

func newResolver(g geocoding.Provider) *geocoding.Resolver {
	return geocoding.NewResolver(geocoding.ResolverConfig{
		Geocoder: g,
		Logger:   zerolog.Nop(),
	})
}

func TestResolve_LiteralCoordinateSkipsLookups(t *testing.T) {
	g := &stubGeocoder{coord: geo.Coordinate{Lat: 1, Lng: 1}}
	r := newResolver(g)

	res, err := r.Resolve(context.Background(), " 29.8654 , 77.8958 ")
	require.NoError(t, err)

	assert.Equal(t, geocoding.SourceLiteral, res.Source)
	assert.Equal(t, geo.Coordinate{Lat: 29.8654, Lng: 77.8958}, res.Coordinate)
	assert.Equal(t, int32(0), g.calls.Load())
}

func TestResolve_LiteralWinsOverGazetteer(t *testing.T) {
	r := geocoding.NewResolver(geocoding.ResolverConfig{
		Gazetteer: geocoding.Gazetteer{{Name: "1,2", Coordinate: geo.Coordinate{Lat: 50, Lng: 50}}},
		Logger:    zerolog.Nop(),
	})

	res, err := r.Resolve(context.Background(), "1,2")
	require.NoError(t, err)
	assert.Equal(t, geocoding.SourceLiteral, res.Source)
	assert.Equal(t, geo.Coordinate{Lat: 1, Lng: 2}, res.Coordinate)
}

func TestResolve_OutOfRangeLiteralIsNotFound(t *testing.T) {
	g := &stubGeocoder{coord: geo.Coordinate{Lat: 1, Lng: 1}}
	r := newResolver(g)

	res, err := r.Resolve(context.Background(), "95,200")
	require.Error(t, err)

	var nf *geocoding.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "95,200", nf.Query)
	assert.ErrorIs(t, err, geocoding.ErrNotFound)
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)
	assert.Equal(t, geocoding.SourceUnresolved, res.Source)
	assert.Equal(t, int32(0), g.calls.Load())
}

func TestResolve_ExactMatchIsCaseInsensitive(t *testing.T) {
	g := &stubGeocoder{}
	r := newResolver(g)

	res, err := r.Resolve(context.Background(), "  Library ")
	require.NoError(t, err)

	assert.Equal(t, geocoding.SourceGazetteerExact, res.Source)
	assert.Equal(t, geo.Coordinate{Lat: 29.8654, Lng: 77.8958}, res.Coordinate)
	assert.Equal(t, "  Library ", res.Query)
	assert.Equal(t, int32(0), g.calls.Load())
}

func TestResolve_ExactBeatsEarlierPartial(t *testing.T) {
	gaz := geocoding.Gazetteer{
		{Name: "central library annex", Coordinate: geo.Coordinate{Lat: 10, Lng: 10}},
		{Name: "library", Coordinate: geo.Coordinate{Lat: 20, Lng: 20}},
	}
	r := geocoding.NewResolver(geocoding.ResolverConfig{Gazetteer: gaz, Logger: zerolog.Nop()})

	res, err := r.Resolve(context.Background(), "library")
	require.NoError(t, err)
	assert.Equal(t, geocoding.SourceGazetteerExact, res.Source)
	assert.Equal(t, geo.Coordinate{Lat: 20, Lng: 20}, res.Coordinate)
}

func TestResolve_PartialReturnsFirstInOrder(t *testing.T) {
	g := &stubGeocoder{}
	r := newResolver(g)

	// Both "department of civil engineering" and "civil engineering" contain
	// the query; the department entry is declared first.
	res, err := r.Resolve(context.Background(), "civil eng")
	require.NoError(t, err)

	assert.Equal(t, geocoding.SourceGazetteerPartial, res.Source)
	assert.Equal(t, geo.Coordinate{Lat: 29.8662, Lng: 77.8968}, res.Coordinate)
	assert.Equal(t, int32(0), g.calls.Load())
}

func TestResolve_PartialQueryContainsName(t *testing.T) {
	r := newResolver(nil)

	res, err := r.Resolve(context.Background(), "take me to the mumbai airport")
	require.NoError(t, err)
	assert.Equal(t, geocoding.SourceGazetteerPartial, res.Source)
	assert.Equal(t, geo.Coordinate{Lat: 19.0760, Lng: 72.8777}, res.Coordinate)
}

func TestResolve_ExternalFallback(t *testing.T) {
	g := &stubGeocoder{coord: geo.Coordinate{Lat: 29.8613, Lng: 77.8986}}
	r := newResolver(g)

	res, err := r.Resolve(context.Background(), "Roorkee Railway Station")
	require.NoError(t, err)

	assert.Equal(t, geocoding.SourceExternal, res.Source)
	assert.Equal(t, "stub", res.Provider)
	assert.Equal(t, geo.Coordinate{Lat: 29.8613, Lng: 77.8986}, res.Coordinate)
	assert.Equal(t, int32(1), g.calls.Load())
}

func TestResolve_NotFoundCarriesQuery(t *testing.T) {
	g := &stubGeocoder{err: geocoding.ErrNoResults}
	r := newResolver(g)

	_, err := r.Resolve(context.Background(), "zzqx")
	require.Error(t, err)

	assert.ErrorIs(t, err, geocoding.ErrNotFound)
	var nf *geocoding.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "zzqx", nf.Query)
	assert.Contains(t, err.Error(), "zzqx")
}

func TestResolve_ProviderErrorBecomesNotFound(t *testing.T) {
	g := &stubGeocoder{err: &geocoding.Error{Provider: "stub", Message: "down", Err: geocoding.ErrProviderUnavailable}}
	r := newResolver(g)

	_, err := r.Resolve(context.Background(), "zzqx")
	assert.ErrorIs(t, err, geocoding.ErrNotFound)
	assert.ErrorIs(t, err, geocoding.ErrProviderUnavailable)
}

func TestResolve_InvalidProviderCoordinateBecomesNotFound(t *testing.T) {
	g := &stubGeocoder{coord: geo.Coordinate{Lat: 200, Lng: 0}}
	r := newResolver(g)

	_, err := r.Resolve(context.Background(), "zzqx")
	assert.ErrorIs(t, err, geocoding.ErrNotFound)
}

func TestResolve_NoGeocoderConfigured(t *testing.T) {
	r := newResolver(nil)

	_, err := r.Resolve(context.Background(), "zzqx")
	assert.ErrorIs(t, err, geocoding.ErrNotFound)
}

func TestResolve_EmptyQuery(t *testing.T) {
	g := &stubGeocoder{}
	r := newResolver(g)

	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := r.Resolve(context.Background(), q)
		assert.ErrorIs(t, err, geocoding.ErrInvalidQuery, "query %q", q)
	}
	assert.Equal(t, int32(0), g.calls.Load())
}

func TestResolve_ExternalTimeout(t *testing.T) {
	g := &stubGeocoder{coord: geo.Coordinate{Lat: 1, Lng: 1}, delay: time.Second}
	r := geocoding.NewResolver(geocoding.ResolverConfig{
		Geocoder: g,
		Timeout:  20 * time.Millisecond,
		Logger:   zerolog.Nop(),
	})

	start := time.Now()
	_, err := r.Resolve(context.Background(), "zzqx")

	assert.ErrorIs(t, err, geocoding.ErrNotFound)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestResolve_ExternalResultsAreCached(t *testing.T) {
	g := &stubGeocoder{coord: geo.Coordinate{Lat: 29.8613, Lng: 77.8986}}
	cache := geocoding.NewMemoryCache()
	r := geocoding.NewResolver(geocoding.ResolverConfig{
		Geocoder: g,
		Cache:    cache,
		Logger:   zerolog.Nop(),
	})

	for i := 0; i < 3; i++ {
		res, err := r.Resolve(context.Background(), "Roorkee Railway Station")
		require.NoError(t, err)
		assert.Equal(t, geocoding.SourceExternal, res.Source)
	}

	assert.Equal(t, int32(1), g.calls.Load())
	assert.Equal(t, 1, cache.Len())
}

func TestResolve_FailuresAreNotCached(t *testing.T) {
	g := &stubGeocoder{err: geocoding.ErrNoResults}
	cache := geocoding.NewMemoryCache()
	r := geocoding.NewResolver(geocoding.ResolverConfig{
		Geocoder: g,
		Cache:    cache,
		Logger:   zerolog.Nop(),
	})

	_, _ = r.Resolve(context.Background(), "zzqx")
	_, _ = r.Resolve(context.Background(), "zzqx")

	assert.Equal(t, int32(2), g.calls.Load())
	assert.Equal(t, 0, cache.Len())
}

func TestChain_FirstSuccessWins(t *testing.T) {
	first := &stubGeocoder{err: geocoding.ErrNoResults}
	second := &stubGeocoder{coord: geo.Coordinate{Lat: 3, Lng: 4}}
	third := &stubGeocoder{coord: geo.Coordinate{Lat: 5, Lng: 6}}

	chain := geocoding.Chain{first, second, third}
	got, err := chain.Geocode(context.Background(), "x")

	require.NoError(t, err)
	assert.Equal(t, geo.Coordinate{Lat: 3, Lng: 4}, got)
	assert.Equal(t, int32(0), third.calls.Load())
	assert.Equal(t, "stub+stub+stub", chain.Name())
}

func TestChain_AllFail(t *testing.T) {
	boom := errors.New("boom")
	chain := geocoding.Chain{
		&stubGeocoder{err: geocoding.ErrNoResults},
		&stubGeocoder{err: boom},
	}

	_, err := chain.Geocode(context.Background(), "x")
	assert.ErrorIs(t, err, boom)

	_, err = geocoding.Chain{}.Geocode(context.Background(), "x")
	assert.ErrorIs(t, err, geocoding.ErrNoResults)
}
