package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmd-f-hackthon/MapMe/internal/domain"
	"github.com/cmd-f-hackthon/MapMe/internal/metrics"
)

// Backend names the storage implementation serving requests.
type Backend string

const (
	// BackendPending is reported until the startup selection completes.
	BackendPending  Backend = "pending"
	BackendPostgres Backend = "postgres"
	BackendMongo    Backend = "mongo"
	BackendMemory   Backend = "memory"
)

// DefaultProbeTimeout bounds the durable backend probe when no timeout is given.
const DefaultProbeTimeout = 5 * time.Second

// Connector opens a durable backend. It returns the repo and a function that
// releases the underlying connections.
type Connector func(ctx context.Context) (EntryRepo, func(), error)

// Selector decides once per process which backend serves every request.
// Until Select has finished, calls made through the Selector block on the
// caller's context; they never see an unset backend.
//
// Selector itself implements EntryRepo so the service layer can be wired
// before the probe has run.
type Selector struct {
	once  sync.Once
	ready chan struct{}

	// Written once before ready is closed, read-only afterwards.
	repo    EntryRepo
	backend Backend
	closeFn func()

	log *slog.Logger
}

var _ EntryRepo = (*Selector)(nil)

// NewSelector returns a Selector with no backend chosen yet.
func NewSelector(log *slog.Logger) *Selector {
	if log == nil {
		log = slog.Default()
	}
	return &Selector{
		ready:   make(chan struct{}),
		backend: BackendPending,
		log:     log,
	}
}

// Select probes the durable backend with connect, bounded by timeout, and
// falls back to the in-memory backend if it fails, hangs, or connect is nil.
// Only the first call does any work; the choice is never revisited.
func (s *Selector) Select(ctx context.Context, durable Backend, connect Connector, timeout time.Duration) Backend {
	s.once.Do(func() {
		start := time.Now()

		r, closeFn, err := probe(ctx, connect, timeout)
		if err != nil {
			s.log.Warn("durable storage unavailable, using in-memory fallback",
				"backend", durable,
				"error", err,
			)
			r, closeFn, durable = NewMemoryEntryRepo(), nil, BackendMemory
		} else {
			s.log.Info("storage backend selected", "backend", durable)
		}

		s.repo = r
		s.closeFn = closeFn
		s.backend = durable

		metrics.StorageSelectionSeconds.Observe(time.Since(start).Seconds())
		metrics.SetStorageBackend(string(durable))

		close(s.ready)
	})
	return s.Backend()
}

// probe runs connect with a deadline. A connector that ignores its context is
// abandoned at the deadline; if it later succeeds its connections are closed.
func probe(ctx context.Context, connect Connector, timeout time.Duration) (EntryRepo, func(), error) {
	if connect == nil {
		return nil, nil, errors.New("no durable backend configured")
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		repo    EntryRepo
		closeFn func()
		err     error
	}
	done := make(chan result, 1)
	go func() {
		r, closeFn, err := connect(ctx)
		done <- result{repo: r, closeFn: closeFn, err: err}
	}()

	select {
	case res := <-done:
		return res.repo, res.closeFn, res.err
	case <-ctx.Done():
		go func() {
			if res := <-done; res.err == nil && res.closeFn != nil {
				res.closeFn()
			}
		}()
		return nil, nil, fmt.Errorf("connect: %w", ctx.Err())
	}
}

// Backend reports the selected backend, or BackendPending while the probe runs.
// It never blocks.
func (s *Selector) Backend() Backend {
	select {
	case <-s.ready:
		return s.backend
	default:
		return BackendPending
	}
}

// Wait blocks until a backend is selected or ctx ends. In the latter case it
// returns domain.ErrUnavailable.
func (s *Selector) Wait(ctx context.Context) (EntryRepo, error) {
	select {
	case <-s.ready:
		return s.repo, nil
	default:
	}

	select {
	case <-s.ready:
		return s.repo, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("repo.Selector.Wait: %w: %w", domain.ErrUnavailable, ctx.Err())
	}
}

// Close releases the durable backend's connections, if one was selected.
func (s *Selector) Close() {
	select {
	case <-s.ready:
		if s.closeFn != nil {
			s.closeFn()
		}
	default:
	}
}

func (s *Selector) Create(ctx context.Context, entry domain.Entry) (domain.Entry, error) {
	r, err := s.Wait(ctx)
	if err != nil {
		return domain.Entry{}, err
	}
	return r.Create(ctx, entry)
}

func (s *Selector) GetByID(ctx context.Context, id string) (domain.Entry, error) {
	r, err := s.Wait(ctx)
	if err != nil {
		return domain.Entry{}, err
	}
	return r.GetByID(ctx, id)
}

func (s *Selector) List(ctx context.Context) ([]domain.Entry, error) {
	r, err := s.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return r.List(ctx)
}

func (s *Selector) ListByOwner(ctx context.Context, ownerID string) ([]domain.Entry, error) {
	r, err := s.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return r.ListByOwner(ctx, ownerID)
}

func (s *Selector) AppendPath(ctx context.Context, id string, points []domain.PathPoint) (domain.Entry, error) {
	r, err := s.Wait(ctx)
	if err != nil {
		return domain.Entry{}, err
	}
	return r.AppendPath(ctx, id, points)
}

func (s *Selector) Update(ctx context.Context, entry domain.Entry) (domain.Entry, error) {
	r, err := s.Wait(ctx)
	if err != nil {
		return domain.Entry{}, err
	}
	return r.Update(ctx, entry)
}

func (s *Selector) Delete(ctx context.Context, id string) error {
	r, err := s.Wait(ctx)
	if err != nil {
		return err
	}
	return r.Delete(ctx, id)
}
