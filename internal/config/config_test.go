package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cmd-f-hackthon/MapMe/internal/config"
)

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test. Empty values are ignored by Load.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "LOG_LEVEL", "CORS_ORIGINS", "STORE_DRIVER", "DATABASE_URL",
		"MONGODB_URI", "MONGODB_DATABASE", "STORE_CONNECT_TIMEOUT",
		"GOOGLE_MAPS_API_KEY", "ENRICH_TIMEOUT", "NEARBY_RADIUS_METERS",
		"REDIS_URL", "ENRICH_CACHE_TTL", "CLOUDINARY_CLOUD_NAME",
		"CLOUDINARY_API_KEY", "CLOUDINARY_API_SECRET", "RATE_LIMIT_REQUESTS",
		"RATE_LIMIT_WINDOW", "MAX_BODY_BYTES", "CLOUDINARY_FOLDER",
	} {
		t.Setenv(k, "")
	}
}

// TestLoad_defaults verifies that every value falls back to its default when
// nothing is set, including a missing DATABASE_URL.
func TestLoad_defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()

	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins())
	require.Equal(t, config.DriverPostgres, cfg.StoreDriver)
	require.Empty(t, cfg.DatabaseURL)
	require.Empty(t, cfg.DurableURL())
	require.Equal(t, "mapme", cfg.MongoDatabase)
	require.Equal(t, 5*time.Second, cfg.StoreConnectTimeout)
	require.Equal(t, 5*time.Second, cfg.EnrichTimeout)
	require.Equal(t, 100, cfg.NearbyRadiusMeters)
	require.Equal(t, 24*time.Hour, cfg.EnrichCacheTTL)
	require.Equal(t, 100, cfg.RateLimitRequests)
	require.Equal(t, 15*time.Minute, cfg.RateLimitWindow)
	require.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	require.False(t, cfg.CloudinaryEnabled())
	require.Equal(t, "travel-memories", cfg.CloudinaryFolder)
}

// TestLoad_overrides verifies that values can be overridden via env vars.
func TestLoad_overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://user:pass@db:5432/mapme")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("STORE_CONNECT_TIMEOUT", "250ms")
	t.Setenv("NEARBY_RADIUS_METERS", "0")
	t.Setenv("RATE_LIMIT_REQUESTS", "10")
	t.Setenv("RATE_LIMIT_WINDOW", "1m")
	t.Setenv("CLOUDINARY_CLOUD_NAME", "demo")
	t.Setenv("CLOUDINARY_API_KEY", "key")
	t.Setenv("CLOUDINARY_API_SECRET", "secret")
	t.Setenv("CLOUDINARY_FOLDER", "mapme-photos")

	cfg, err := config.Load()

	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "postgres://user:pass@db:5432/mapme", cfg.DurableURL())
	require.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSOrigins())
	require.Equal(t, 250*time.Millisecond, cfg.StoreConnectTimeout)
	require.Equal(t, 0, cfg.NearbyRadiusMeters)
	require.Equal(t, 10, cfg.RateLimitRequests)
	require.Equal(t, time.Minute, cfg.RateLimitWindow)
	require.True(t, cfg.CloudinaryEnabled())
	require.Equal(t, "mapme-photos", cfg.CloudinaryFolder)
}

// TestLoad_mongoDriver verifies that the mongo driver reads its own URI.
func TestLoad_mongoDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "Mongo")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("DATABASE_URL", "postgres://ignored")

	cfg, err := config.Load()

	require.NoError(t, err)
	require.Equal(t, config.DriverMongo, cfg.StoreDriver)
	require.Equal(t, "mongodb://localhost:27017", cfg.DurableURL())
}

// TestLoad_invalid verifies that unsupported or unparsable values are
// rejected and the error names the problem.
func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"unknown driver", "STORE_DRIVER", "sqlite", "STORE_DRIVER"},
		{"bad duration", "STORE_CONNECT_TIMEOUT", "soon", "store_connect_timeout"},
		{"bad number", "RATE_LIMIT_REQUESTS", "lots", "rate_limit_requests"},
		{"negative radius", "NEARBY_RADIUS_METERS", "-5", "NEARBY_RADIUS_METERS"},
		{"zero body cap", "MAX_BODY_BYTES", "0", "MAX_BODY_BYTES"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := config.Load()

			require.Error(t, err)
			require.ErrorContains(t, err, tc.want)
		})
	}
}
