// Package main provides a headless EcoNav360 navigator. It follows a stream
// of positions, resolves a destination through the API server and logs every
// map operation the browser client would draw.
//
// Usage:
//
//	navigator -to "library" < fixes.txt
//	navigator -feed ws://localhost:9000/positions -to "28.61,77.21"
//
// With a websocket feed, each line read from stdin replaces the destination.
// The navigator keeps the map open until interrupted, as a browser tab would.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/econav360/econav/internal/apiclient"
	"github.com/econav360/econav/internal/config"
	"github.com/econav360/econav/internal/geocoding"
	"github.com/econav360/econav/internal/navigator"
	"github.com/econav360/econav/internal/navigator/feed"
	"github.com/econav360/econav/internal/provider/resilience"
)

func main() {
	if err := run(os.Args[1:], os.Stdin); err != nil {
		fmt.Fprintln(os.Stderr, "navigator:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader) error {
	cfg, err := config.Load("econav-navigator")
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("navigator", flag.ContinueOnError)
	feedURL := fs.String("feed", "-", `position feed: a ws:// or wss:// URL, or "-" for "lat,lng" lines on stdin`)
	to := fs.String("to", "", "destination: a place name or lat,lng")
	apiURL := fs.String("api", cfg.Navigator.APIBaseURL, "EcoNav360 API base URL")
	logLevel := fs.String("log-level", cfg.LogLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", *logLevel, err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var source navigator.PositionSource
	fromStdin := *feedURL == "-"
	if fromStdin {
		source = feed.NewLines(stdin, log)
	} else {
		source = feed.NewWebSocket(feed.WebSocketConfig{URL: *feedURL, Logger: log})
	}

	backend := apiclient.NewClient(apiclient.ClientConfig{
		BaseURL:  *apiURL,
		Timeout:  cfg.Navigator.FetchTimeout,
		Registry: resilience.NewRegistry(),
		Logger:   log,
	})

	tracker := navigator.NewTracker(navigator.TrackerConfig{
		Source:        source,
		MinMoveMeters: cfg.Navigator.MinMoveMeters,
		MinInterval:   cfg.Navigator.MinInterval,
		OnError: func(err error) {
			log.Warn().Err(err).Msg("location unavailable")
		},
		Logger: log,
	})

	machine := navigator.NewMachine(navigator.MachineConfig{
		Surfaces: navigator.HeadlessFactory(log, nil),
		Tracker:  tracker,
		Resolver: geocoding.NewResolver(geocoding.ResolverConfig{
			Geocoder: backend,
			Timeout:  cfg.Navigator.FetchTimeout,
			Logger:   log,
		}),
		Fetcher: navigator.NewFetcher(navigator.FetcherConfig{
			Router:  backend,
			Timeout: cfg.Navigator.FetchTimeout,
			Logger:  log,
		}),
		RecenterMeters: cfg.Navigator.RecenterMeters,
		DebounceDelay:  cfg.Navigator.DebounceDelay,
		Logger:         log,
	})

	if *to != "" {
		machine.SetDestination(*to)
	}
	if err := machine.Init(ctx); err != nil {
		return err
	}
	defer machine.Teardown()

	if !fromStdin {
		go readDestinations(ctx, stdin, machine)
	}

	<-ctx.Done()

	snap := machine.Snapshot()
	evt := log.Info().
		Stringer("state", snap.State).
		Str("query", snap.Query).
		Bool("route_drawn", snap.HasRouteLine)
	if snap.Position != nil {
		evt = evt.Str("position", snap.Position.Coordinate.String())
	}
	if snap.Destination != nil {
		evt = evt.Str("destination", snap.Destination.Coordinate.String())
	}
	evt.Msg("navigator stopped")
	return nil
}

// readDestinations replaces the destination with each non-empty stdin line.
func readDestinations(ctx context.Context, r io.Reader, m *navigator.MapMachine) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			m.SetDestination(line)
		}
	}
}
