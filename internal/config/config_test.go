package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("econav-api")
	require.NoError(t, err)

	assert.Equal(t, 5174, cfg.Server.Port)
	assert.Equal(t, ":5174", cfg.Server.Addr())
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, RoutingOSRM, cfg.Routing.Provider)
	assert.Equal(t, "https://router.project-osrm.org", cfg.Routing.OSRMURL)
	assert.Equal(t, uint(8), cfg.Routing.CachePrecision)
	assert.Equal(t, 12*time.Second, cfg.Geocoding.Timeout)
	assert.Equal(t, "EcoNav360/1.0 (contact: dev@example.com)", cfg.Geocoding.UserAgent)
	assert.Empty(t, cfg.Valkey.Addr)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "econav-api", cfg.Telemetry.ServiceName)
	assert.Equal(t, 250*time.Millisecond, cfg.Navigator.DebounceDelay)
	assert.InDelta(t, 15, cfg.Navigator.MinMoveMeters, 0.001)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("ECONAV_SERVER_PORT", "9090")
	t.Setenv("ECONAV_ROUTING_PROVIDER", "mapmyindia")
	t.Setenv("ECONAV_GEOCODING_MAPMYINDIA_KEY", "secret")
	t.Setenv("ECONAV_VALKEY_ADDR", "localhost:6379")
	t.Setenv("ECONAV_NAVIGATOR_DEBOUNCE_DELAY", "400ms")

	cfg, err := Load("econav-api")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, RoutingMapmyIndia, cfg.Routing.Provider)
	assert.Equal(t, "secret", cfg.Routing.MapmyIndiaKey, "routing inherits the geocoding key")
	assert.Equal(t, "localhost:6379", cfg.Valkey.Addr)
	assert.Equal(t, 400*time.Millisecond, cfg.Navigator.DebounceDelay)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("server:\n  port: 7000\nrouting:\n  cache_ttl: 10m\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Chdir(dir)

	cfg, err := Load("econav-api")
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, 10*time.Minute, cfg.Routing.CacheTTL)
}

func TestLoad_InvalidEnvironment(t *testing.T) {
	t.Setenv("ECONAV_ROUTING_PROVIDER", "mapmyindia")

	_, err := Load("econav-api")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "routing.mapmyindia_key is required")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("econav-api")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port must be 1-65535"},
		{"provider", func(c *Config) { c.Routing.Provider = "graphhopper" }, `routing.provider must be one of "osrm", "mapmyindia" or "openrouteservice"`},
		{"ors key", func(c *Config) {
			c.Routing.Provider = RoutingORS
			c.Routing.ORSKey = ""
		}, "routing.ors_key is required"},
		{"osrm url", func(c *Config) { c.Routing.OSRMURL = "router" }, "routing.osrm_url must be an absolute URL"},
		{"precision", func(c *Config) { c.Routing.CachePrecision = 13 }, "routing.cache_precision must be 1-12"},
		{"sample ratio", func(c *Config) { c.Telemetry.SampleRatio = 2 }, "telemetry.sample_ratio"},
		{"telemetry endpoint", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.OTLPEndpoint = ""
		}, "telemetry.otlp_endpoint is required"},
		{"navigator", func(c *Config) { c.Navigator.MinMoveMeters = -1 }, "navigator distances"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg, err := Load("econav-api")
	require.NoError(t, err)
	cfg.Server.Port = -1
	cfg.Geocoding.Timeout = 0

	err = cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "geocoding.timeout")
}
