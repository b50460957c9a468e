// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Supported values for STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from defaults overlaid with environment
// variables; each koanf key is the lower-cased variable name.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string `koanf:"port"`

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// CORSOriginsCSV is the raw CORS_ORIGINS value; use CORSOrigins.
	CORSOriginsCSV string `koanf:"cors_origins"`

	// StoreDriver picks the durable backend probed at startup.
	StoreDriver string `koanf:"store_driver"`

	// DatabaseURL is the Postgres connection string. When empty the probe
	// fails and the in-memory store is used.
	DatabaseURL string `koanf:"database_url"`

	MongoURI      string `koanf:"mongodb_uri"`
	MongoDatabase string `koanf:"mongodb_database"`

	// StoreConnectTimeout bounds the startup probe of the durable backend.
	StoreConnectTimeout time.Duration `koanf:"store_connect_timeout"`

	// GoogleMapsAPIKey enables reverse geocoding and nearby places.
	GoogleMapsAPIKey   string        `koanf:"google_maps_api_key"`
	EnrichTimeout      time.Duration `koanf:"enrich_timeout"`
	NearbyRadiusMeters int           `koanf:"nearby_radius_meters"`

	// RedisURL enables caching of enrichment results.
	RedisURL       string        `koanf:"redis_url"`
	EnrichCacheTTL time.Duration `koanf:"enrich_cache_ttl"`

	CloudinaryCloudName string `koanf:"cloudinary_cloud_name"`
	CloudinaryAPIKey    string `koanf:"cloudinary_api_key"`
	CloudinaryAPISecret string `koanf:"cloudinary_api_secret"`
	// CloudinaryFolder scopes photo release; ids outside it are never destroyed.
	CloudinaryFolder    string `koanf:"cloudinary_folder"`

	// RateLimitRequests per RateLimitWindow applies to the append-point route.
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`
}

// CORSOrigins is the list of allowed cross-origin request origins.
func (c Config) CORSOrigins() []string {
	return splitCSV(c.CORSOriginsCSV)
}

// CloudinaryEnabled reports whether all Cloudinary credentials are set.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// DurableURL returns the connection string for the selected driver.
func (c Config) DurableURL() string {
	if c.StoreDriver == DriverMongo {
		return c.MongoURI
	}
	return c.DatabaseURL
}

func defaults() Config {
	return Config{
		Port:                "8080",
		LogLevel:            "info",
		CORSOriginsCSV:      "http://localhost:3000",
		StoreDriver:         DriverPostgres,
		MongoDatabase:       "mapme",
		StoreConnectTimeout: 5 * time.Second,
		EnrichTimeout:       5 * time.Second,
		NearbyRadiusMeters:  100,
		EnrichCacheTTL:      24 * time.Hour,
		RateLimitRequests:   100,
		RateLimitWindow:     15 * time.Minute,
		MaxBodyBytes:        1 << 20,
		CloudinaryFolder:    "travel-memories",
	}
}

// Load reads configuration from environment variables and returns a Config.
// Unset or empty variables keep their defaults. Returns an error when a value
// cannot be parsed or STORE_DRIVER names an unsupported driver. A missing
// durable URL is not an error.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("config.Load: defaults: %w", err)
	}

	envProvider := env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		if strings.TrimSpace(value) == "" {
			return "", nil
		}
		return strings.ToLower(key), strings.TrimSpace(value)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("config.Load: environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}

	cfg.StoreDriver = strings.ToLower(cfg.StoreDriver)
	switch cfg.StoreDriver {
	case DriverPostgres, DriverMongo:
	default:
		return Config{}, fmt.Errorf("config.Load: STORE_DRIVER must be %q or %q, got %q",
			DriverPostgres, DriverMongo, cfg.StoreDriver)
	}
	if cfg.NearbyRadiusMeters < 0 {
		return Config{}, fmt.Errorf("config.Load: NEARBY_RADIUS_METERS must not be negative")
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("config.Load: MAX_BODY_BYTES must be positive")
	}

	return cfg, nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
