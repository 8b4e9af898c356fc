// Package handler provides HTTP handlers for the EcoNav360 API.
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
	"github.com/econav360/econav/internal/geocoding"
)

// Resolver resolves free-text queries. *geocoding.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, query string) (geocoding.Resolution, error)
}

// GeocodeHandler handles place lookups.
type GeocodeHandler struct {
	resolver Resolver
	metrics  *middleware.LookupMetrics
	logger   zerolog.Logger
}

// NewGeocodeHandler creates a new GeocodeHandler. metrics may be nil.
func NewGeocodeHandler(resolver Resolver, metrics *middleware.LookupMetrics, logger zerolog.Logger) *GeocodeHandler {
	return &GeocodeHandler{
		resolver: resolver,
		metrics:  metrics,
		logger:   logger,
	}
}

// Geocode handles GET /api/geocode?q=.
func (h *GeocodeHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		response.Fail(w, r, http.StatusBadRequest, "q required")
		return
	}

	start := time.Now()
	res, err := h.resolver.Resolve(r.Context(), q)

	switch {
	case err == nil:
		h.metrics.Record(r.Context(), "geocode", string(res.Source), middleware.OutcomeOK, time.Since(start))
		response.JSON(w, r, http.StatusOK, models.GeocodeResponse{
			Lat: res.Coordinate.Lat,
			Lng: res.Coordinate.Lng,
		})

	case errors.Is(err, geocoding.ErrInvalidQuery):
		h.metrics.Record(r.Context(), "geocode", "", middleware.OutcomeInvalid, time.Since(start))
		response.Fail(w, r, http.StatusBadRequest, "q required")

	// Checked before ErrNotFound: a NotFoundError carries the geocoder's
	// failure, and an unreachable upstream is not a miss.
	case errors.Is(err, geocoding.ErrProviderUnavailable):
		h.metrics.Record(r.Context(), "geocode", "", middleware.OutcomeError, time.Since(start))
		h.logger.Error().Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("query", q).
			Msg("geocoding failed")
		response.Fail(w, r, http.StatusInternalServerError, "server error")

	case errors.Is(err, geocoding.ErrNotFound):
		h.metrics.Record(r.Context(), "geocode", "", middleware.OutcomeNotFound, time.Since(start))
		response.Fail(w, r, http.StatusNotFound, "no results")

	default:
		h.metrics.Record(r.Context(), "geocode", "", middleware.OutcomeError, time.Since(start))
		h.logger.Error().Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("query", q).
			Msg("geocoding failed")
		response.Fail(w, r, http.StatusInternalServerError, "server error")
	}
}
