package handler

import (
	"net/http"
	"time"

	"github.com/econav360/econav/internal/api/models"
	"github.com/econav360/econav/internal/api/response"
	"github.com/econav360/econav/internal/provider/resilience"
	"github.com/econav360/econav/internal/routing"
)

// RouteCache reports routing cache statistics. *routing.Service implements it.
type RouteCache interface {
	CacheStats() routing.CacheStats
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version    string
	registry   *resilience.Registry
	routeCache RouteCache
	now        func() time.Time
}

// NewOpsHandler creates a new OpsHandler. registry and routeCache may be nil.
func NewOpsHandler(version string, registry *resilience.Registry, routeCache RouteCache) *OpsHandler {
	return &OpsHandler{
		version:    version,
		registry:   registry,
		routeCache: routeCache,
		now:        time.Now,
	}
}

// Health handles GET /api/health - liveness check.
func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.HealthResponse{OK: true})
}

// Providers handles GET /api/ops/providers - upstream circuit state and
// routing cache statistics.
func (h *OpsHandler) Providers(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:    models.HealthStatusOK,
		Time:      h.now().UTC(),
		Version:   h.version,
		Providers: []models.ProviderStatus{},
	}

	if h.registry != nil {
		failing := 0
		for _, ph := range h.registry.All() {
			ps := models.ProviderStatus{
				Provider:            ph.Name,
				Status:              providerStatus(ph),
				Requests:            ph.Counts.Requests,
				ConsecutiveFailures: ph.Counts.ConsecutiveFailures,
				LastSuccessAt:       ph.LastSuccessAt,
				LastFailureAt:       ph.LastFailureAt,
				Trips:               ph.Trips,
				LastError:           ph.LastError,
			}
			if ps.Status != models.HealthStatusOK {
				failing++
			}
			status.Providers = append(status.Providers, ps)
		}

		switch {
		case failing == 0:
		case failing == len(status.Providers):
			status.Status = models.HealthStatusFail
		default:
			status.Status = models.HealthStatusDegraded
		}
	}

	if h.routeCache != nil {
		stats := h.routeCache.CacheStats()
		status.RouteCache = &stats
	}

	response.JSON(w, r, http.StatusOK, status)
}

func providerStatus(ph resilience.Health) models.HealthStatus {
	switch ph.Status() {
	case resilience.StatusDown:
		return models.HealthStatusFail
	case resilience.StatusDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}
