// Package main provides the entrypoint for the EcoNav360 API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/econav360/econav/internal/api"
	"github.com/econav360/econav/internal/api/middleware"
	"github.com/econav360/econav/internal/cache"
	"github.com/econav360/econav/internal/config"
	"github.com/econav360/econav/internal/geocoding"
	"github.com/econav360/econav/internal/geocoding/mapmyindia"
	"github.com/econav360/econav/internal/geocoding/nominatim"
	"github.com/econav360/econav/internal/provider/resilience"
	"github.com/econav360/econav/internal/routing"
	routemmi "github.com/econav360/econav/internal/routing/mapmyindia"
	"github.com/econav360/econav/internal/routing/openrouteservice"
	"github.com/econav360/econav/internal/routing/osrm"
	"github.com/econav360/econav/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "econav-api"

	cfg, err := config.Load(serviceName)
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting EcoNav360 API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}
	lookupMetrics, err := middleware.NewLookupMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize lookup metrics")
	}

	registry := resilience.NewRegistry()

	resolver, closeCache := newResolver(ctx, cfg, registry, log)
	defer closeCache()

	routeService := routing.NewService(routing.ServiceConfig{
		Provider:        newRouteProvider(cfg, registry, log),
		Logger:          log,
		CacheTTL:        cfg.Routing.CacheTTL,
		CachePrecision:  cfg.Routing.CachePrecision,
		StaleIfErrorTTL: cfg.Routing.StaleIfErrorTTL,
	})
	log.Info().Str("provider", routeService.Name()).Msg("routing service initialized")

	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		Logger:          log,
		Metrics:         metrics,
		LookupMetrics:   lookupMetrics,
		Resolver:        resolver,
		Router:          routeService,
		RouteCache:      routeService,
		Registry:        registry,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		RequireTLS:      cfg.Server.RequireTLS,
		RateLimit:       cfg.Server.RateLimit,
		LookupRateLimit: cfg.Server.LookupRateLimit,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

// newResolver builds the geocode pipeline: gazetteer, then Nominatim, then
// MapmyIndia when a key is configured. External results are cached in
// Valkey when an address is set, otherwise in process.
func newResolver(ctx context.Context, cfg *config.Config, registry *resilience.Registry, log zerolog.Logger) (*geocoding.Resolver, func()) {
	chain := geocoding.Chain{
		nominatim.NewClient(nominatim.ClientConfig{
			BaseURL:   cfg.Geocoding.NominatimURL,
			UserAgent: cfg.Geocoding.UserAgent,
			Timeout:   cfg.Geocoding.Timeout,
			Registry:  registry,
			Logger:    log,
		}),
	}
	if cfg.Geocoding.MapmyIndiaKey != "" {
		chain = append(chain, mapmyindia.NewClient(mapmyindia.ClientConfig{
			APIKey:   cfg.Geocoding.MapmyIndiaKey,
			BaseURL:  cfg.Geocoding.MapmyIndiaURL,
			Timeout:  cfg.Geocoding.Timeout,
			Registry: registry,
			Logger:   log,
		}))
	}

	var geocodeCache geocoding.Cache = geocoding.NewMemoryCache()
	closeCache := func() {}
	if cfg.Valkey.Addr != "" {
		vk, err := cache.NewValkey(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err = vk.Ping(pingCtx)
			cancel()
			if err != nil {
				vk.Close()
			}
		}
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Valkey.Addr).Msg("valkey unavailable, using in-process geocode cache")
		} else {
			geocodeCache = vk
			closeCache = vk.Close
			log.Info().Str("addr", cfg.Valkey.Addr).Msg("valkey geocode cache connected")
		}
	}

	log.Info().Str("geocoder", chain.Name()).Msg("geocoding initialized")

	return geocoding.NewResolver(geocoding.ResolverConfig{
		Geocoder: chain,
		Cache:    geocodeCache,
		CacheTTL: cfg.Geocoding.CacheTTL,
		Timeout:  cfg.Geocoding.Timeout,
		Logger:   log,
	}), closeCache
}

func newRouteProvider(cfg *config.Config, registry *resilience.Registry, log zerolog.Logger) routing.Provider {
	switch cfg.Routing.Provider {
	case config.RoutingMapmyIndia:
		return routemmi.NewClient(routemmi.ClientConfig{
			APIKey:   cfg.Routing.MapmyIndiaKey,
			BaseURL:  cfg.Routing.MapmyIndiaURL,
			Timeout:  cfg.Routing.Timeout,
			Registry: registry,
			Logger:   log,
		})
	case config.RoutingORS:
		return openrouteservice.NewClient(openrouteservice.ClientConfig{
			APIKey:   cfg.Routing.ORSKey,
			BaseURL:  cfg.Routing.ORSURL,
			Timeout:  cfg.Routing.Timeout,
			Registry: registry,
			Logger:   log,
		})
	default:
		return osrm.NewClient(osrm.ClientConfig{
			BaseURL:  cfg.Routing.OSRMURL,
			Timeout:  cfg.Routing.Timeout,
			Registry: registry,
			Logger:   log,
		})
	}
}
