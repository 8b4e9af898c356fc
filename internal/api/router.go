// Package api provides the HTTP API the EcoNav360 web client and navigator
// talk to.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/econav360/econav/internal/api/handler"
	"github.com/econav360/econav/internal/api/middleware"
	"github.com/econav360/econav/internal/api/response"
	"github.com/econav360/econav/internal/parking"
	"github.com/econav360/econav/internal/provider/resilience"
	"github.com/econav360/econav/internal/routing"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version string
	Logger  zerolog.Logger

	// Metrics and LookupMetrics are optional.
	Metrics       *middleware.Metrics
	LookupMetrics *middleware.LookupMetrics

	// Resolver answers /api/geocode. Required.
	Resolver handler.Resolver
	// Router answers /api/route. Required.
	Router routing.Provider
	// RouteCache is reported by /api/ops/providers when set.
	RouteCache handler.RouteCache
	// Registry is reported by /api/ops/providers when set.
	Registry *resilience.Registry
	// Parking defaults to a fresh demo service.
	Parking *parking.Service

	// AllowedOrigins defaults to any origin.
	AllowedOrigins []string
	RequireTLS     bool

	// Per-IP requests per minute. Zero selects the default, negative
	// disables limiting.
	RateLimit       int
	LookupRateLimit int
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID) // Generate/propagate request ID first
	r.Use(middleware.Tracing()) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no such endpoint")
	})

	parkingService := cfg.Parking
	if parkingService == nil {
		parkingService = parking.NewService(cfg.Logger)
	}

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.Registry, cfg.RouteCache)
	geocodeHandler := handler.NewGeocodeHandler(cfg.Resolver, cfg.LookupMetrics, cfg.Logger)
	routeHandler := handler.NewRouteHandler(cfg.Router, cfg.LookupMetrics, cfg.Logger)
	parkingHandler := handler.NewParkingHandler(parkingService, cfg.Logger)

	standardRateLimit := middleware.RateLimitByIP(limit(cfg.RateLimit, middleware.StandardRateLimit))
	lookupRateLimit := middleware.RateLimitByIP(limit(cfg.LookupRateLimit, middleware.LookupRateLimit))

	r.Route("/api", func(r chi.Router) {
		// Liveness is never rate limited.
		r.Get("/health", opsHandler.Health)

		// Geocoding and routing call third-party providers.
		r.Group(func(r chi.Router) {
			r.Use(lookupRateLimit)
			r.Get("/geocode", geocodeHandler.Geocode)
			r.Get("/route", routeHandler.Route)
		})

		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/ops/providers", opsHandler.Providers)

			r.Route("/parking", func(r chi.Router) {
				r.Get("/stats", parkingHandler.Stats)
				r.Get("/lots", parkingHandler.Lots)
				r.Get("/export", parkingHandler.Export)
				r.With(middleware.RequireJSON).Post("/reserve", parkingHandler.Reserve)
				r.With(middleware.RequireJSON).Post("/simulate", parkingHandler.Simulate)
			})
		})
	})

	return r
}

func limit(perMinute int, def middleware.RateLimitConfig) middleware.RateLimitConfig {
	if perMinute == 0 {
		return def
	}
	return middleware.PerMinute(perMinute)
}
