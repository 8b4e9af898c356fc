package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/econav360/econav/internal/geo"
	"github.com/econav360/econav/internal/geocoding"
)

var _ geocoding.Cache = (*Valkey)(nil)

func TestDecodeCoordinate(t *testing.T) {
	got, err := decodeCoordinate([]byte(`{"lat":29.8654,"lng":77.8958}`))
	require.NoError(t, err)
	assert.Equal(t, geo.Coordinate{Lat: 29.8654, Lng: 77.8958}, got)

	_, err = decodeCoordinate([]byte(`not json`))
	assert.Error(t, err)

	_, err = decodeCoordinate([]byte(`{"lat":95,"lng":0}`))
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)
}

func TestNewValkeyWithClient_DefaultPrefix(t *testing.T) {
	c := NewValkeyWithClient(nil, "")
	assert.Equal(t, DefaultKeyPrefix, c.prefix)

	c = NewValkeyWithClient(nil, "test:")
	assert.Equal(t, "test:", c.prefix)
}
