// Package service contains the business logic for the MapMe journal.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No storage code lives here; services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cmd-f-hackthon/MapMe/internal/capture"
	"github.com/cmd-f-hackthon/MapMe/internal/domain"
	"github.com/cmd-f-hackthon/MapMe/internal/geo"
	"github.com/cmd-f-hackthon/MapMe/internal/metrics"
	"github.com/cmd-f-hackthon/MapMe/internal/repo"
	"github.com/cmd-f-hackthon/MapMe/internal/validation"
)

// Enricher resolves location details for an anchor. It never fails; a
// degraded lookup returns partial or empty details.
type Enricher interface {
	Resolve(ctx context.Context, c domain.Coordinate) domain.LocationDetails
}

// PhotoReleaser deletes an externally stored photo. Owns reports whether a
// public id belongs to this application and may therefore be released.
type PhotoReleaser interface {
	Owns(publicID string) bool
	Release(ctx context.Context, publicID string) error
}

// AnonymousName is the owner name given to entries created without an owner.
const AnonymousName = "Anonymous"

// titleTimeLayout formats the time in generated titles.
const titleTimeLayout = "Jan 2, 2006 3:04 PM"

// NewEntry is the input to JournalService.Create.
// Anchor may be nil when Path is non-empty; it then defaults to Path[0].
type NewEntry struct {
	Title   string
	Content string
	Owner   domain.Owner
	Anchor  *domain.Coordinate
	Path    []domain.PathPoint
	Notes   string
	Emoji   string
	Photo   *domain.Photo
}

// JournalService turns captures and requests into stored entries and answers
// queries over them.
type JournalService struct {
	repo     repo.EntryRepo
	enricher Enricher
	photos   PhotoReleaser
	log      *slog.Logger
	now      func() time.Time
}

// Option configures a JournalService.
type Option func(*JournalService)

// WithClock overrides the clock used for generated titles and appended points.
func WithClock(now func() time.Time) Option {
	return func(s *JournalService) { s.now = now }
}

// NewJournalService constructs a JournalService. enricher and photos may be
// nil, in which case enrichment and photo release are skipped.
func NewJournalService(r repo.EntryRepo, enricher Enricher, photos PhotoReleaser, log *slog.Logger, opts ...Option) *JournalService {
	if log == nil {
		log = slog.Default()
	}
	s := &JournalService{
		repo:     r,
		enricher: enricher,
		photos:   photos,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates a client-built entry and persists it.
// A path of exactly one point is rejected: a marker has none and a route
// needs at least two. When both anchor and path are given, the anchor must be
// the first path point.
func (s *JournalService) Create(ctx context.Context, in NewEntry) (domain.Entry, error) {
	if n := len(in.Path); n > 0 && n < capture.MinRoutePoints {
		return domain.Entry{}, fmt.Errorf("service.JournalService.Create: %w: a route needs at least %d points",
			domain.ErrValidation, capture.MinRoutePoints)
	}

	var anchor domain.Coordinate
	switch {
	case in.Anchor == nil && len(in.Path) == 0:
		return domain.Entry{}, fmt.Errorf("service.JournalService.Create: %w: anchor is required", domain.ErrValidation)
	case in.Anchor == nil:
		anchor = in.Path[0].Coordinate
	default:
		anchor = *in.Anchor
		if len(in.Path) > 0 && in.Path[0].Coordinate != anchor {
			return domain.Entry{}, fmt.Errorf("service.JournalService.Create: %w: anchor must equal the first path point",
				domain.ErrValidation)
		}
	}

	if err := validateEntryInput(anchor, in.Path, in.Owner); err != nil {
		return domain.Entry{}, fmt.Errorf("service.JournalService.Create: %w", err)
	}
	if in.Photo != nil && in.Photo.PublicID != "" && s.photos != nil && !s.photos.Owns(in.Photo.PublicID) {
		return domain.Entry{}, fmt.Errorf("service.JournalService.Create: %w: photo publicId is outside the upload folder",
			domain.ErrValidation)
	}

	e := domain.Entry{
		Title:   strings.TrimSpace(in.Title),
		Content: in.Content,
		Owner:   in.Owner,
		Anchor:  domain.Anchor{Coordinate: anchor},
		Path:    in.Path,
		Notes:   in.Notes,
		Emoji:   in.Emoji,
		Photo:   in.Photo,
	}
	result, err := s.persist(ctx, e)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("service.JournalService.Create: %w", err)
	}
	return result, nil
}

// CreateFromCapture persists the points of a finalized capture. One point
// becomes a marker and notesOrTitle its notes; two or more become a route
// anchored at the first point and notesOrTitle its title.
func (s *JournalService) CreateFromCapture(ctx context.Context, points []domain.PathPoint, owner domain.Owner, notesOrTitle string) (domain.Entry, error) {
	if len(points) == 0 {
		return domain.Entry{}, fmt.Errorf("service.JournalService.CreateFromCapture: %w: capture has no points", domain.ErrValidation)
	}
	if err := validateEntryInput(points[0].Coordinate, points, owner); err != nil {
		return domain.Entry{}, fmt.Errorf("service.JournalService.CreateFromCapture: %w", err)
	}

	text := strings.TrimSpace(notesOrTitle)
	e := domain.Entry{
		Owner:  owner,
		Anchor: domain.Anchor{Coordinate: points[0].Coordinate},
	}
	if len(points) < capture.MinRoutePoints {
		e.Notes = text
		e.Content = text
	} else {
		e.Title = text
		e.Path = points
	}

	result, err := s.persist(ctx, e)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("service.JournalService.CreateFromCapture: %w", err)
	}
	return result, nil
}

// persist fills defaults, enriches the anchor and stores the entry.
// Enrichment happens before the write, so a failed write stores nothing.
func (s *JournalService) persist(ctx context.Context, e domain.Entry) (domain.Entry, error) {
	s.applyDefaults(&e)

	if s.enricher != nil {
		e.Anchor.Details = s.enricher.Resolve(ctx, e.Anchor.Coordinate)
	}

	result, err := s.repo.Create(ctx, e)
	if err != nil {
		return domain.Entry{}, err
	}
	metrics.EntriesCreated.WithLabelValues(string(result.Kind())).Inc()
	return result, nil
}

func (s *JournalService) applyDefaults(e *domain.Entry) {
	if strings.TrimSpace(e.Owner.ID) == "" {
		e.Owner.ID = "anon-" + uuid.NewString()
		if e.Owner.Name == "" {
			e.Owner.Name = AnonymousName
		}
	}
	name := e.Owner.Name
	if name == "" {
		name = AnonymousName
	}
	stamp := s.now().UTC().Format(titleTimeLayout)

	if e.Kind() == domain.KindRoute {
		if e.Title == "" {
			e.Title = fmt.Sprintf("%s's Tracked Route - %s", name, stamp)
		}
		if e.Content == "" {
			e.Content = fmt.Sprintf("GPS tracked route with %d points by %s", len(e.Path), name)
		}
		return
	}
	if e.Title == "" {
		e.Title = fmt.Sprintf("%s's Marker - %s", name, stamp)
	}
	if e.Content == "" {
		e.Content = "Location marker"
	}
}

// AppendLocation adds one point to the end of an entry's path. A zero
// Timestamp is replaced by the server clock. A supplied timestamp earlier
// than the last stored point is a validation error. The anchor is never
// rewritten, so appending to a marker keeps its original position.
func (s *JournalService) AppendLocation(ctx context.Context, id string, p domain.PathPoint) (domain.Entry, error) {
	if err := validation.Struct(p); err != nil {
		return domain.Entry{}, fmt.Errorf("service.JournalService.AppendLocation: %w", err)
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("service.JournalService.AppendLocation: %w", err)
	}

	var last time.Time
	if n := len(current.Path); n > 0 {
		last = current.Path[n-1].Timestamp
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = s.now().UTC()
		if p.Timestamp.Before(last) {
			p.Timestamp = last
		}
	}
	if err := domain.CheckPathOrder(last, []domain.PathPoint{p}); err != nil {
		return domain.Entry{}, fmt.Errorf("service.JournalService.AppendLocation: %w", err)
	}

	// Concurrent appends to the same entry are last-write-wins on the order
	// check above; the append itself never drops stored points.
	result, err := s.repo.AppendPath(ctx, id, []domain.PathPoint{p})
	if err != nil {
		return domain.Entry{}, fmt.Errorf("service.JournalService.AppendLocation: %w", err)
	}
	metrics.PointsAppended.Inc()
	return result, nil
}

// Update applies patch to the entry's title, content, notes and emoji.
// Returns domain.ErrValidation when the title is set to blank.
func (s *JournalService) Update(ctx context.Context, id string, patch domain.EntryPatch) (domain.Entry, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return domain.Entry{}, fmt.Errorf("service.JournalService.Update: %w: title must not be empty", domain.ErrValidation)
		}
		patch.Title = &title
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("service.JournalService.Update: %w", err)
	}

	result, err := s.repo.Update(ctx, patch.Apply(current))
	if err != nil {
		return domain.Entry{}, fmt.Errorf("service.JournalService.Update: %w", err)
	}
	return result, nil
}

// GetByID returns a single entry.
// Returns domain.ErrNotFound if no entry with that ID exists.
func (s *JournalService) GetByID(ctx context.Context, id string) (domain.Entry, error) {
	result, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("service.JournalService.GetByID: %w", err)
	}
	return result, nil
}

// ListAll returns every entry, newest first.
// Always returns a non-nil slice so callers can safely range over it.
func (s *JournalService) ListAll(ctx context.Context) ([]domain.Entry, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.JournalService.ListAll: %w", err)
	}
	if entries == nil {
		return []domain.Entry{}, nil
	}
	return entries, nil
}

// ListForOwner returns the entries of one owner, newest first.
// Always returns a non-nil slice so callers can safely range over it.
func (s *JournalService) ListForOwner(ctx context.Context, ownerID string) ([]domain.Entry, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("service.JournalService.ListForOwner: %w: owner id is required", domain.ErrValidation)
	}
	entries, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service.JournalService.ListForOwner: %w", err)
	}
	if entries == nil {
		return []domain.Entry{}, nil
	}
	return entries, nil
}

// DeleteByID removes an entry and then asks the media collaborator to
// release its photo. A failed release is logged and does not fail the delete.
func (s *JournalService) DeleteByID(ctx context.Context, id string) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("service.JournalService.DeleteByID: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.JournalService.DeleteByID: %w", err)
	}
	metrics.EntriesDeleted.Inc()

	if current.Photo == nil || current.Photo.PublicID == "" || s.photos == nil {
		return nil
	}
	if !s.photos.Owns(current.Photo.PublicID) {
		// Stored before the folder check existed, or with release disabled.
		s.log.WarnContext(ctx, "photo not released: outside the upload folder",
			"entry_id", id,
			"public_id", current.Photo.PublicID,
		)
		return nil
	}
	if err := s.photos.Release(ctx, current.Photo.PublicID); err != nil {
		metrics.PhotoReleaseFailures.Inc()
		s.log.WarnContext(ctx, "photo release failed",
			"entry_id", id,
			"public_id", current.Photo.PublicID,
			"error", err,
		)
	}
	return nil
}

// Stats summarizes an entry's path: point count, great-circle length and
// the time between the first and last point.
func (s *JournalService) Stats(ctx context.Context, id string) (domain.Stats, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("service.JournalService.Stats: %w", err)
	}

	st := domain.Stats{
		Kind:           e.Kind(),
		PointCount:     len(e.Path),
		DistanceMeters: geo.PathDistance(e.Path),
	}
	if n := len(e.Path); n >= 2 {
		st.DurationSeconds = e.Path[n-1].Timestamp.Sub(e.Path[0].Timestamp).Seconds()
	}
	return st, nil
}

// validateEntryInput checks the anchor, every path point, the path order and
// the owner.
func validateEntryInput(anchor domain.Coordinate, path []domain.PathPoint, owner domain.Owner) error {
	if err := validation.Coordinate(anchor); err != nil {
		return err
	}
	for i, p := range path {
		if err := validation.Struct(p); err != nil {
			return fmt.Errorf("path point %d: %w", i, err)
		}
	}
	if err := domain.CheckPathOrder(time.Time{}, path); err != nil {
		return err
	}
	return validation.Struct(owner)
}
