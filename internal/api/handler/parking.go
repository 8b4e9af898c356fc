package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/econav360/econav/internal/api/models"
	"github.com/econav360/econav/internal/api/response"
	"github.com/econav360/econav/internal/parking"
)

// maxBodyBytes bounds parking request bodies.
const maxBodyBytes = 1 << 16

// ParkingHandler serves the parking dashboard endpoints.
type ParkingHandler struct {
	service *parking.Service
	logger  zerolog.Logger
}

// NewParkingHandler creates a new ParkingHandler.
func NewParkingHandler(service *parking.Service, logger zerolog.Logger) *ParkingHandler {
	return &ParkingHandler{
		service: service,
		logger:  logger,
	}
}

// Stats handles GET /api/parking/stats.
func (h *ParkingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.service.Stats())
}

// Lots handles GET /api/parking/lots.
func (h *ParkingHandler) Lots(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.service.Lots())
}

// Export handles GET /api/parking/export.
func (h *ParkingHandler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Disposition", `attachment; filename="parking-report.json"`)
	response.JSON(w, r, http.StatusOK, h.service.Export())
}

// Reserve handles POST /api/parking/reserve.
func (h *ParkingHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req parking.ReserveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.Reserve(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, res)
}

// Simulate handles POST /api/parking/simulate.
func (h *ParkingHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req parking.SimulateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.Simulate(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, res)
}

func (h *ParkingHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *parking.ValidationError
	if errors.As(err, &verr) {
		fields := make([]models.FieldError, len(verr.Fields))
		for i, f := range verr.Fields {
			fields[i] = models.FieldError{Field: f.Field, Message: f.Message, Code: f.Tag}
		}
		response.BadRequest(w, r, "request body is invalid", fields)
		return
	}

	h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("parking request failed")
	response.InternalError(w, r, "an unexpected error occurred")
}

// decodeBody decodes a JSON body into v, writing a 400 problem on failure.
// An empty body decodes as {} so that validation reports the missing fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	response.BadRequest(w, r, "invalid JSON body", nil)
	return false
}
