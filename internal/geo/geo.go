// Package geo provides the coordinate type shared by the navigator core and
// the backend, plus distance and parsing helpers.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidCoordinate indicates a coordinate that is non-finite or out of range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

const earthRadiusMeters = 6371000

// Coordinate represents a geographic point in (latitude, longitude) order.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both components are finite and within range.
func (c Coordinate) Valid() bool {
	return Validate(c) == nil
}

// String formats the coordinate as "lat,lng", the form used in query strings.
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

// Pair returns the coordinate as a [lat, lng] pair.
func (c Coordinate) Pair() [2]float64 {
	return [2]float64{c.Lat, c.Lng}
}

// Validate checks that a coordinate is finite and within [-90,90] x [-180,180].
func Validate(c Coordinate) error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) {
		return fmt.Errorf("%w: non-finite component", ErrInvalidCoordinate)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range [-90, 90]", ErrInvalidCoordinate, c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("%w: longitude %f out of range [-180, 180]", ErrInvalidCoordinate, c.Lng)
	}
	return nil
}

// ParseLatLng parses a "lat,lng" string. Both parts must parse as finite
// floats; surrounding whitespace is ignored. Range is not checked here.
func ParseLatLng(s string) (Coordinate, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Coordinate{}, false
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return Coordinate{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return Coordinate{}, false
	}

	return Coordinate{Lat: lat, Lng: lng}, true
}

// FromLngLat builds a coordinate from an upstream [lng, lat] pair.
// GeoJSON style providers (OSRM, MapmyIndia) emit longitude first.
func FromLngLat(pair []float64) (Coordinate, error) {
	if len(pair) < 2 {
		return Coordinate{}, fmt.Errorf("%w: expected [lng, lat], got %d values", ErrInvalidCoordinate, len(pair))
	}
	return Coordinate{Lat: pair[1], Lng: pair[0]}, nil
}

// Distance returns the great-circle distance between two coordinates in meters
// using the haversine formula.
func Distance(a, b Coordinate) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	sinDLat := math.Sin(dLat / 2)
	sinDLng := math.Sin(dLng / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLng*sinDLng
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Length returns the total length of a path in meters.
func Length(path []Coordinate) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += Distance(path[i-1], path[i])
	}
	return total
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	South float64
	West  float64
	North float64
	East  float64
}

// BoundsOf returns the bounding box of a path. The zero Bounds is returned for
// an empty path.
func BoundsOf(path []Coordinate) Bounds {
	if len(path) == 0 {
		return Bounds{}
	}
	b := Bounds{South: path[0].Lat, North: path[0].Lat, West: path[0].Lng, East: path[0].Lng}
	for _, c := range path[1:] {
		b.South = math.Min(b.South, c.Lat)
		b.North = math.Max(b.North, c.Lat)
		b.West = math.Min(b.West, c.Lng)
		b.East = math.Max(b.East, c.Lng)
	}
	return b
}

// Pad grows the box by the given ratio of its height and width on each side.
func (b Bounds) Pad(ratio float64) Bounds {
	dLat := (b.North - b.South) * ratio
	dLng := (b.East - b.West) * ratio
	return Bounds{
		South: b.South - dLat,
		West:  b.West - dLng,
		North: b.North + dLat,
		East:  b.East + dLng,
	}
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Coordinate {
	return Coordinate{Lat: (b.South + b.North) / 2, Lng: (b.West + b.East) / 2}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
