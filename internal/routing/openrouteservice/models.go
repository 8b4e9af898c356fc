package openrouteservice

// orsRequest is the body of a directions request.
type orsRequest struct {
	Coordinates       [][]float64        `json:"coordinates"`
	AlternativeRoutes *alternativeRoutes `json:"alternative_routes,omitempty"`
	Instructions      bool               `json:"instructions"`
	Units             string             `json:"units"`
}

// alternativeRoutes asks for up to TargetCount routes, the primary included.
type alternativeRoutes struct {
	TargetCount int `json:"target_count"`
}

// orsResponse is the JSON (not GeoJSON) directions response. Geometry is
// an encoded polyline unless the request asks otherwise.
type orsResponse struct {
	Routes []orsRoute `json:"routes"`
}

type orsRoute struct {
	Summary  routeSummary `json:"summary"`
	Geometry string       `json:"geometry"`
}

type routeSummary struct {
	Distance float64 `json:"distance"` // meters
	Duration float64 `json:"duration"` // seconds
}

type orsErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ORS routing error codes.
const (
	orsErrorCodePointNotFound = 2010
	orsErrorCodeRouteNotFound = 2009
)
