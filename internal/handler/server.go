// Package handler implements the HTTP handlers for the MapMe API.
// All handlers are methods on Server. Methods are split into files by
// resource (entries.go, health.go, capture_ws.go) but share the same Server
// struct so they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cmd-f-hackthon/MapMe/internal/domain"
	"github.com/cmd-f-hackthon/MapMe/internal/repo"
	"github.com/cmd-f-hackthon/MapMe/internal/service"
)

// EntryServicer defines the business operations the entry handlers depend on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching storage or the service layer.
type EntryServicer interface {
	Create(ctx context.Context, in service.NewEntry) (domain.Entry, error)
	CreateFromCapture(ctx context.Context, points []domain.PathPoint, owner domain.Owner, notesOrTitle string) (domain.Entry, error)
	AppendLocation(ctx context.Context, id string, p domain.PathPoint) (domain.Entry, error)
	Update(ctx context.Context, id string, patch domain.EntryPatch) (domain.Entry, error)
	GetByID(ctx context.Context, id string) (domain.Entry, error)
	ListAll(ctx context.Context) ([]domain.Entry, error)
	ListForOwner(ctx context.Context, ownerID string) ([]domain.Entry, error)
	DeleteByID(ctx context.Context, id string) error
	Stats(ctx context.Context, id string) (domain.Stats, error)
}

// StorageReporter reports which storage backend is serving requests.
// *repo.Selector implements it.
type StorageReporter interface {
	Backend() repo.Backend
}

// Server holds the dependencies of every handler.
type Server struct {
	entries     EntryServicer
	storage     StorageReporter
	log         *slog.Logger
	appendLimit func(http.Handler) http.Handler
	openAPI     []byte
	upgrader    websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithAppendLimiter installs a middleware (typically a rate limiter) in front
// of POST /entries/{id}/points.
func WithAppendLimiter(mw func(http.Handler) http.Handler) Option {
	return func(s *Server) { s.appendLimit = mw }
}

// WithOpenAPI sets the document served at /openapi.yaml.
func WithOpenAPI(doc []byte) Option {
	return func(s *Server) { s.openAPI = doc }
}

// WithCheckOrigin sets the origin check for websocket upgrades. The default
// accepts every origin; CORS is enforced at the HTTP layer.
func WithCheckOrigin(check func(r *http.Request) bool) Option {
	return func(s *Server) { s.upgrader.CheckOrigin = check }
}

// NewServer constructs the Server with all its dependencies.
// storage may be nil, in which case /healthz reports "pending".
func NewServer(entries EntryServicer, storage StorageReporter, log *slog.Logger, opts ...Option) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		entries:     entries,
		storage:     storage,
		log:         log,
		appendLimit: func(next http.Handler) http.Handler { return next },
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/entries", func(r chi.Router) {
		r.Get("/", s.ListEntries)
		r.Post("/", s.CreateEntry)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetEntry)
			r.Patch("/", s.UpdateEntry)
			r.Delete("/", s.DeleteEntry)
			r.Get("/stats", s.GetEntryStats)
			r.With(s.appendLimit).Post("/points", s.AppendPoint)
		})
	})

	r.Get("/captures/ws", s.CaptureSocket)
}

// Handler returns a chi router with every endpoint registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Routes(r)
	return r
}
