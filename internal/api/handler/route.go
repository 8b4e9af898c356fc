package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/econav360/econav/internal/api/middleware"
	"github.com/econav360/econav/internal/api/models"
	"github.com/econav360/econav/internal/api/response"
	"github.com/econav360/econav/internal/geo"
	"github.com/econav360/econav/internal/routing"
)

// RouteHandler handles route lookups.
type RouteHandler struct {
	router  routing.Provider
	metrics *middleware.LookupMetrics
	logger  zerolog.Logger
}

// NewRouteHandler creates a new RouteHandler. router is usually a
// *routing.Service wrapping the configured provider; metrics may be nil.
func NewRouteHandler(router routing.Provider, metrics *middleware.LookupMetrics, logger zerolog.Logger) *RouteHandler {
	return &RouteHandler{
		router:  router,
		metrics: metrics,
		logger:  logger,
	}
}

// Route handles GET /api/route?from=lat,lng&to=lat,lng.
func (h *RouteHandler) Route(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		response.Fail(w, r, http.StatusBadRequest, "from & to required")
		return
	}

	origin, okFrom := geo.ParseLatLng(from)
	destination, okTo := geo.ParseLatLng(to)
	if !okFrom || !okTo {
		response.Fail(w, r, http.StatusBadRequest, "invalid coords")
		return
	}

	start := time.Now()
	resp, err := h.router.GetDirections(r.Context(), routing.DirectionsRequest{
		Origin:      origin,
		Destination: destination,
	})
	if err == nil && len(resp.Routes) == 0 {
		err = routing.ErrNoRouteFound
	}

	if err != nil {
		status, message, outcome := routeFailure(err)
		h.metrics.Record(r.Context(), "route", h.router.Name(), outcome, time.Since(start))

		evt := h.logger.Warn()
		if status >= http.StatusInternalServerError {
			evt = h.logger.Error()
		}
		evt.Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("from", origin.String()).
			Str("to", destination.String()).
			Int("status", status).
			Msg("route lookup failed")

		response.Fail(w, r, status, message)
		return
	}

	h.metrics.Record(r.Context(), "route", resp.Provider, middleware.OutcomeOK, time.Since(start))
	response.JSON(w, r, http.StatusOK, models.NewRouteResponse(resp))
}

// routeFailure maps a routing error to the status and body the web client
// understands.
func routeFailure(err error) (status int, message, outcome string) {
	switch {
	case errors.Is(err, routing.ErrInvalidCoordinates):
		return http.StatusBadRequest, "invalid coords", middleware.OutcomeInvalid
	case errors.Is(err, routing.ErrNoRouteFound):
		return http.StatusNotFound, "no route", middleware.OutcomeNotFound
	case errors.Is(err, routing.ErrProviderUnavailable),
		errors.Is(err, routing.ErrRateLimitExceeded),
		errors.Is(err, routing.ErrMalformedResponse),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway, "route failed", middleware.OutcomeError
	default:
		return http.StatusInternalServerError, "server error", middleware.OutcomeError
	}
}
