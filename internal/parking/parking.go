// Package parking serves the campus parking dashboard. The figures are a
// fixed demo dataset; there is no sensor ingestion behind them.
package parking

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrValidation indicates a request body failed validation.
var ErrValidation = errors.New("validation failed")

// Stats summarises the campus as a whole.
type Stats struct {
	TotalSpots    int       `json:"totalSpots"`
	AvailableNow  int       `json:"availableNow"`
	OccupancyRate int       `json:"occupancyRate"`
	ActiveCameras int       `json:"activeCameras"`
	LastUpdate    time.Time `json:"lastUpdate"`
}

// Lot is a single parking area.
type Lot struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Total      int    `json:"total"`
	Occupied   int    `json:"occupied"`
	Cameras    int    `json:"cameras"`
	LastUpdate string `json:"lastUpdate"`
}

// LotOccupancy is a lot's share of occupied spots, in percent.
type LotOccupancy struct {
	ID        string `json:"id"`
	Occupancy int    `json:"occupancy"`
}

// Report is the export snapshot.
type Report struct {
	Timestamp     time.Time      `json:"timestamp"`
	TotalSpots    int            `json:"totalSpots"`
	OccupancyRate int            `json:"occupancyRate"`
	Lots          []LotOccupancy `json:"lots"`
}

// ReserveRequest asks for a spot in a lot.
type ReserveRequest struct {
	LotID  string `json:"lotId" validate:"required,lot"`
	SpotID string `json:"spotId" validate:"required,max=32"`
}

// Reservation confirms a ReserveRequest.
type Reservation struct {
	Success       bool   `json:"success"`
	ReservationID string `json:"reservationId"`
	LotID         string `json:"lotId"`
	SpotID        string `json:"spotId"`
}

// SimulateRequest names a demo scenario such as "trafficJam" or "concert".
type SimulateRequest struct {
	Scenario string `json:"scenario" validate:"required,max=64"`
}

// Simulation acknowledges a SimulateRequest.
type Simulation struct {
	Success  bool   `json:"success"`
	Scenario string `json:"scenario"`
	Message  string `json:"message"`
}

// FieldError describes one invalid field of a request body.
type FieldError struct {
	Field   string
	Tag     string
	Message string
}

// ValidationError lists every invalid field. It wraps ErrValidation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

var demoLots = []Lot{
	{ID: "A", Name: "Main Gate Parking", Total: 50, Occupied: 38, Cameras: 4, LastUpdate: "2 min ago"},
	{ID: "B", Name: "Library Parking", Total: 80, Occupied: 56, Cameras: 6, LastUpdate: "1 min ago"},
	{ID: "C", Name: "Sports Complex", Total: 40, Occupied: 12, Cameras: 3, LastUpdate: "just now"},
	{ID: "D", Name: "Academic Block", Total: 60, Occupied: 54, Cameras: 5, LastUpdate: "3 min ago"},
}

// demoExport is reported as-is. The dashboard's figures do not derive from
// demoLots, and clients compare against these exact values.
var demoExport = []LotOccupancy{
	{ID: "A", Occupancy: 76},
	{ID: "B", Occupancy: 70},
	{ID: "C", Occupancy: 30},
	{ID: "D", Occupancy: 90},
}

// Service answers parking queries.
type Service struct {
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
	logger   zerolog.Logger
}

// NewService creates a Service.
func NewService(logger zerolog.Logger) *Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	_ = v.RegisterValidation("lot", func(fl validator.FieldLevel) bool {
		_, ok := findLot(fl.Field().String())
		return ok
	})

	return &Service{
		validate: v,
		now:      time.Now,
		newID:    func() string { return "RES-" + uuid.NewString() },
		logger:   logger,
	}
}

// Stats returns the campus summary.
func (s *Service) Stats() Stats {
	return Stats{
		TotalSpots:    230,
		AvailableNow:  70,
		OccupancyRate: 70,
		ActiveCameras: 18,
		LastUpdate:    s.now().UTC(),
	}
}

// Lots returns every lot in display order.
func (s *Service) Lots() []Lot {
	return append([]Lot(nil), demoLots...)
}

// Export returns the occupancy report.
func (s *Service) Export() Report {
	return Report{
		Timestamp:     s.now().UTC(),
		TotalSpots:    230,
		OccupancyRate: 70,
		Lots:          append([]LotOccupancy(nil), demoExport...),
	}
}

// Reserve validates req and issues a reservation id.
func (s *Service) Reserve(req ReserveRequest) (Reservation, error) {
	if err := s.check(req); err != nil {
		return Reservation{}, err
	}

	res := Reservation{
		Success:       true,
		ReservationID: s.newID(),
		LotID:         req.LotID,
		SpotID:        req.SpotID,
	}
	s.logger.Info().
		Str("reservation_id", res.ReservationID).
		Str("lot_id", res.LotID).
		Str("spot_id", res.SpotID).
		Msg("parking spot reserved")
	return res, nil
}

// Simulate acknowledges a demo scenario.
func (s *Service) Simulate(req SimulateRequest) (Simulation, error) {
	if err := s.check(req); err != nil {
		return Simulation{}, err
	}

	s.logger.Info().Str("scenario", req.Scenario).Msg("simulation requested")
	return Simulation{
		Success:  true,
		Scenario: req.Scenario,
		Message:  "Simulating " + req.Scenario,
	}, nil
}

func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	out := &ValidationError{Fields: make([]FieldError, len(verrs))}
	for i, fe := range verrs {
		out.Fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: formatFieldError(fe),
		}
	}
	return out
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters long"
	case "lot":
		return fe.Field() + " must name a known lot"
	default:
		return fe.Field() + " failed " + fe.Tag() + " validation"
	}
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func findLot(id string) (Lot, bool) {
	for _, l := range demoLots {
		if l.ID == id {
			return l, true
		}
	}
	return Lot{}, false
}
