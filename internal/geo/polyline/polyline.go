// Package polyline decodes and encodes Google's encoded polyline format, which
// MapmyIndia uses for route geometry when GeoJSON is not requested.
// Format reference: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"math"

	"github.com/econav360/econav/internal/geo"
)

// ErrTruncated is returned when the encoded string ends in the middle of a value
// or carries a latitude without its longitude.
var ErrTruncated = errors.New("polyline: truncated input")

// Precision5 is the standard precision (1e5) used by Google, OSRM and MapmyIndia.
const Precision5 = 5

// Decode decodes an encoded polyline at the given precision into (lat, lng)
// coordinates. An empty string decodes to nil.
func Decode(encoded string, precision int) ([]geo.Coordinate, error) {
	if encoded == "" {
		return nil, nil
	}

	factor := math.Pow10(precision)
	coords := make([]geo.Coordinate, 0, len(encoded)/4)
	index, lat, lng := 0, 0, 0

	for index < len(encoded) {
		dLat, next, ok := decodeValue(encoded, index)
		if !ok {
			return nil, ErrTruncated
		}
		dLng, next, ok := decodeValue(encoded, next)
		if !ok {
			return nil, ErrTruncated
		}
		index = next
		lat += dLat
		lng += dLng

		coords = append(coords, geo.Coordinate{
			Lat: float64(lat) / factor,
			Lng: float64(lng) / factor,
		})
	}

	return coords, nil
}

// decodeValue reads one zig-zag varint starting at index. ok is false when the
// input ends before the terminating chunk.
func decodeValue(encoded string, index int) (value, next int, ok bool) {
	shift, result := 0, 0

	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			if result&1 != 0 {
				return ^(result >> 1), index, true
			}
			return result >> 1, index, true
		}
	}

	return 0, index, false
}

// Encode encodes coordinates into a polyline string at the given precision.
func Encode(coords []geo.Coordinate, precision int) string {
	if len(coords) == 0 {
		return ""
	}

	factor := math.Pow10(precision)
	buf := make([]byte, 0, len(coords)*6)
	prevLat, prevLng := 0, 0

	for _, c := range coords {
		lat := int(math.Round(c.Lat * factor))
		lng := int(math.Round(c.Lng * factor))

		buf = appendValue(buf, lat-prevLat)
		buf = appendValue(buf, lng-prevLng)

		prevLat, prevLng = lat, lng
	}

	return string(buf)
}

func appendValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}
