// Package config loads EcoNav360 configuration from defaults, an optional
// config.yaml and ECONAV_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Routing provider names.
const (
	RoutingOSRM       = "osrm"
	RoutingMapmyIndia = "mapmyindia"
	RoutingORS        = "openrouteservice"
)

// Config holds all application configuration.
type Config struct {
	Env       string          `mapstructure:"env"`
	LogLevel  string          `mapstructure:"log_level"`
	Server    ServerConfig    `mapstructure:"server"`
	Geocoding GeocodingConfig `mapstructure:"geocoding"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Navigator NavigatorConfig `mapstructure:"navigator"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequireTLS      bool          `mapstructure:"require_tls"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	RateLimit       int           `mapstructure:"rate_limit"`
	LookupRateLimit int           `mapstructure:"lookup_rate_limit"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type GeocodingConfig struct {
	NominatimURL  string        `mapstructure:"nominatim_url"`
	UserAgent     string        `mapstructure:"user_agent"`
	MapmyIndiaKey string        `mapstructure:"mapmyindia_key"`
	MapmyIndiaURL string        `mapstructure:"mapmyindia_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
}

type RoutingConfig struct {
	Provider        string        `mapstructure:"provider"`
	OSRMURL         string        `mapstructure:"osrm_url"`
	MapmyIndiaKey   string        `mapstructure:"mapmyindia_key"`
	MapmyIndiaURL   string        `mapstructure:"mapmyindia_url"`
	ORSKey          string        `mapstructure:"ors_key"`
	ORSURL          string        `mapstructure:"ors_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	StaleIfErrorTTL time.Duration `mapstructure:"stale_if_error_ttl"`
	CachePrecision  uint          `mapstructure:"cache_precision"`
}

// ValkeyConfig enables the shared geocode cache. Empty Addr keeps the cache
// in process.
type ValkeyConfig struct {
	Addr      string `mapstructure:"addr"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Insecure     bool    `mapstructure:"insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// NavigatorConfig tunes the headless navigator.
type NavigatorConfig struct {
	APIBaseURL     string        `mapstructure:"api_base_url"`
	MinMoveMeters  float64       `mapstructure:"min_move_meters"`
	MinInterval    time.Duration `mapstructure:"min_interval"`
	RecenterMeters float64       `mapstructure:"recenter_meters"`
	DebounceDelay  time.Duration `mapstructure:"debounce_delay"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
}

// Load reads configuration from file and environment variables.
// ECONAV_ROUTING_PROVIDER overrides routing.provider, and so on.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("ECONAV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// A single key serves both MapmyIndia APIs unless set separately.
	if cfg.Routing.MapmyIndiaKey == "" {
		cfg.Routing.MapmyIndiaKey = cfg.Geocoding.MapmyIndiaKey
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("env", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.port", 5174)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.require_tls", false)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.lookup_rate_limit", 30)

	v.SetDefault("geocoding.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoding.user_agent", "EcoNav360/1.0 (contact: dev@example.com)")
	v.SetDefault("geocoding.mapmyindia_key", "")
	v.SetDefault("geocoding.mapmyindia_url", "https://atlas.mapmyindia.com")
	v.SetDefault("geocoding.timeout", 12*time.Second)
	v.SetDefault("geocoding.cache_ttl", 24*time.Hour)

	v.SetDefault("routing.provider", RoutingOSRM)
	v.SetDefault("routing.osrm_url", "https://router.project-osrm.org")
	v.SetDefault("routing.mapmyindia_key", "")
	v.SetDefault("routing.mapmyindia_url", "https://apis.mapmyindia.com")
	v.SetDefault("routing.ors_key", "")
	v.SetDefault("routing.ors_url", "https://api.openrouteservice.org")
	v.SetDefault("routing.timeout", 12*time.Second)
	v.SetDefault("routing.cache_ttl", 5*time.Minute)
	v.SetDefault("routing.stale_if_error_ttl", 15*time.Minute)
	v.SetDefault("routing.cache_precision", 8)

	v.SetDefault("valkey.addr", "")
	v.SetDefault("valkey.key_prefix", "econav:geocode:")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sample_ratio", 1.0)

	v.SetDefault("navigator.api_base_url", "http://localhost:5174")
	v.SetDefault("navigator.min_move_meters", 15.0)
	v.SetDefault("navigator.min_interval", time.Second)
	v.SetDefault("navigator.recenter_meters", 30.0)
	v.SetDefault("navigator.debounce_delay", 250*time.Millisecond)
	v.SetDefault("navigator.fetch_timeout", 12*time.Second)
}

// Validate checks that configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.RateLimit <= 0 || c.Server.LookupRateLimit <= 0 {
		errs = append(errs, "server rate limits must be positive")
	}

	errs = appendURLError(errs, "geocoding.nominatim_url", c.Geocoding.NominatimURL)
	if c.Geocoding.Timeout <= 0 {
		errs = append(errs, "geocoding.timeout must be positive")
	}

	switch c.Routing.Provider {
	case RoutingOSRM:
		errs = appendURLError(errs, "routing.osrm_url", c.Routing.OSRMURL)
	case RoutingMapmyIndia:
		if c.Routing.MapmyIndiaKey == "" {
			errs = append(errs, "routing.mapmyindia_key is required when routing.provider is mapmyindia")
		}
		errs = appendURLError(errs, "routing.mapmyindia_url", c.Routing.MapmyIndiaURL)
	case RoutingORS:
		if c.Routing.ORSKey == "" {
			errs = append(errs, "routing.ors_key is required when routing.provider is openrouteservice")
		}
		errs = appendURLError(errs, "routing.ors_url", c.Routing.ORSURL)
	default:
		errs = append(errs, fmt.Sprintf("routing.provider must be one of %q, %q or %q, got %q",
			RoutingOSRM, RoutingMapmyIndia, RoutingORS, c.Routing.Provider))
	}
	if c.Routing.Timeout <= 0 {
		errs = append(errs, "routing.timeout must be positive")
	}
	if c.Routing.CachePrecision < 1 || c.Routing.CachePrecision > 12 {
		errs = append(errs, fmt.Sprintf("routing.cache_precision must be 1-12, got %d", c.Routing.CachePrecision))
	}

	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		errs = append(errs, "telemetry.otlp_endpoint is required when telemetry is enabled")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, "telemetry.sample_ratio must be within [0, 1]")
	}

	errs = appendURLError(errs, "navigator.api_base_url", c.Navigator.APIBaseURL)
	if c.Navigator.MinMoveMeters < 0 || c.Navigator.RecenterMeters < 0 {
		errs = append(errs, "navigator distances must not be negative")
	}
	if c.Navigator.MinInterval < 0 || c.Navigator.DebounceDelay < 0 || c.Navigator.FetchTimeout < 0 {
		errs = append(errs, "navigator durations must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func appendURLError(errs []string, key, raw string) []string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return append(errs, fmt.Sprintf("%s must be an absolute URL, got %q", key, raw))
	}
	return errs
}
