package osrm

// OSRM response codes.
const (
	codeOK        = "Ok"
	codeNoRoute   = "NoRoute"
	codeNoSegment = "NoSegment"
)

// routeResponse is the body of /route/v1. Error responses share the shape
// and carry Code and Message only.
type routeResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message,omitempty"`
	Routes  []route `json:"routes"`
}

type route struct {
	Geometry *geometry `json:"geometry"`
	Distance *float64  `json:"distance"`
	Duration *float64  `json:"duration"`
}

// geometry is a GeoJSON LineString; positions are [lng, lat].
type geometry struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}
