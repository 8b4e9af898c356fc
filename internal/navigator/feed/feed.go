// Package feed provides PositionSources that stream fixes from outside the
// process: a websocket endpoint or a line-oriented reader such as stdin.
package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/econav360/econav/internal/geo"
	"github.com/econav360/econav/internal/navigator"
)

// message is one position on the wire. Timestamp is Unix milliseconds and
// optional.
type message struct {
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Accuracy  float64  `json:"accuracy,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"`
}

// decodeFix parses a JSON object or a bare "lat,lng" pair.
func decodeFix(data []byte) (navigator.Fix, error) {
	if c, ok := geo.ParseLatLng(string(data)); ok {
		return navigator.Fix{Coordinate: c}, nil
	}

	var m message
	if err := json.Unmarshal(data, &m); err != nil {
		return navigator.Fix{}, fmt.Errorf("decode position: %w", err)
	}
	if m.Lat == nil || m.Lng == nil {
		return navigator.Fix{}, fmt.Errorf("decode position: lat and lng are required")
	}

	fix := navigator.Fix{
		Coordinate:     geo.Coordinate{Lat: *m.Lat, Lng: *m.Lng},
		AccuracyMeters: m.Accuracy,
	}
	if m.Timestamp > 0 {
		fix.Timestamp = time.UnixMilli(m.Timestamp)
	}
	return fix, nil
}
