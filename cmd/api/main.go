// Package main is the entry point for the MapMe API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/cmd-f-hackthon/MapMe/internal/config"
	"github.com/cmd-f-hackthon/MapMe/internal/enrich"
	"github.com/cmd-f-hackthon/MapMe/internal/handler"
	"github.com/cmd-f-hackthon/MapMe/internal/media"
	"github.com/cmd-f-hackthon/MapMe/internal/middleware"
	"github.com/cmd-f-hackthon/MapMe/internal/repo"
	"github.com/cmd-f-hackthon/MapMe/internal/service"
	"github.com/cmd-f-hackthon/MapMe/spec"
)

func main() {
	// --- Config -----------------------------------------------------------
	// A .env file is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("reading .env failed", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		// Use the default logger before the configured one exists.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Storage ----------------------------------------------------------
	// The durable backend is probed in the background. Requests arriving
	// before the probe finishes wait on the selector, bounded by their own
	// context; the probe itself is bounded by STORE_CONNECT_TIMEOUT.
	selector := repo.NewSelector(logger)
	defer selector.Close()

	durable, connect := storageConnector(cfg)
	go selector.Select(context.Background(), durable, connect, cfg.StoreConnectTimeout)

	// --- Collaborators ----------------------------------------------------
	var enricher service.Enricher
	if cfg.GoogleMapsAPIKey != "" {
		google := enrich.NewGoogleClient(cfg.GoogleMapsAPIKey, cfg.EnrichTimeout, logger)
		var resolver enrich.Resolver = enrich.NewGateway(google, google, cfg.NearbyRadiusMeters, logger)
		if cfg.RedisURL != "" {
			rdb, err := enrich.NewRedisClient(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "error", err)
				os.Exit(1)
			}
			defer rdb.Close()
			resolver = enrich.NewCache(resolver, rdb, cfg.EnrichCacheTTL, logger)
		}
		enricher = resolver
	} else {
		slog.Info("GOOGLE_MAPS_API_KEY not set, location enrichment disabled")
	}

	var photos service.PhotoReleaser = media.Noop{}
	if cfg.CloudinaryEnabled() {
		cld, err := media.NewCloudinaryReleaser(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		if err != nil {
			slog.Error("invalid Cloudinary credentials", "error", err)
			os.Exit(1)
		}
		photos = cld
	}

	journal := service.NewJournalService(selector, enricher, photos, logger)

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer → CORS → body cap.
	// RequestID generates a unique trace ID per request.
	// RealIP sets r.RemoteAddr from X-Forwarded-For / X-Real-IP (safe behind a proxy),
	// which is also what the append-point rate limiter keys on.
	// SlogLogger writes one structured JSON log line per request.
	// Recoverer catches panics and returns HTTP 500 instead of crashing.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins()))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	server := handler.NewServer(journal, selector, logger,
		handler.WithAppendLimiter(middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)),
		handler.WithOpenAPI(spec.OpenAPI),
	)
	server.Routes(r)

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	// Websocket connections clear these deadlines once upgraded.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 15 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "store_driver", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// storageConnector picks the durable backend for the configured driver.
// An empty URL still yields a connector; it fails the probe immediately so
// the in-memory fallback is selected.
func storageConnector(cfg config.Config) (repo.Backend, repo.Connector) {
	if cfg.StoreDriver == config.DriverMongo {
		return repo.BackendMongo, repo.ConnectMongo(cfg.DurableURL(), cfg.MongoDatabase)
	}
	return repo.BackendPostgres, repo.ConnectPostgres(cfg.DurableURL())
}
