package repo

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/cmd-f-hackthon/MapMe/internal/domain"
)

// memEntryRepo is the in-memory implementation of EntryRepo used when the
// durable backend is unreachable at startup. Ids come from a counter starting
// at 1 and are rendered as decimal strings, so callers see the same opaque id
// type as with the durable backends. Nothing survives a restart.
type memEntryRepo struct {
	mu          sync.RWMutex
	seq         uint64
	entries     map[string]memRecord
	now         func() time.Time
	lastCreated time.Time
}

type memRecord struct {
	seq   uint64
	entry domain.Entry
}

// NewMemoryEntryRepo returns an empty in-memory EntryRepo.
func NewMemoryEntryRepo() EntryRepo {
	return newMemoryEntryRepo(time.Now)
}

func newMemoryEntryRepo(now func() time.Time) *memEntryRepo {
	return &memEntryRepo{
		entries: make(map[string]memRecord),
		now:     now,
	}
}

// Create stores a copy of entry under the next sequential id.
func (r *memEntryRepo) Create(ctx context.Context, entry domain.Entry) (domain.Entry, error) {
	if err := ctx.Err(); err != nil {
		return domain.Entry{}, fmt.Errorf("repo.memEntryRepo.Create: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Keep CreatedAt strictly increasing even when the clock has not advanced
	// between two creations.
	now := r.now().UTC()
	if !now.After(r.lastCreated) {
		now = r.lastCreated.Add(time.Nanosecond)
	}
	r.lastCreated = now

	r.seq++
	e := entry.Clone()
	e.ID = strconv.FormatUint(r.seq, 10)
	e.Path = nonNilPath(e.Path)
	e.CreatedAt = now
	e.UpdatedAt = now
	r.entries[e.ID] = memRecord{seq: r.seq, entry: e}

	return e.Clone(), nil
}

// GetByID returns a copy of the stored entry.
func (r *memEntryRepo) GetByID(_ context.Context, id string) (domain.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.entries[id]
	if !ok {
		return domain.Entry{}, fmt.Errorf("repo.memEntryRepo.GetByID: %w", domain.ErrNotFound)
	}
	return rec.entry.Clone(), nil
}

// List returns all entries, most recent first.
func (r *memEntryRepo) List(_ context.Context) ([]domain.Entry, error) {
	return r.collect(func(domain.Entry) bool { return true }), nil
}

// ListByOwner returns the entries of one owner, most recent first.
func (r *memEntryRepo) ListByOwner(_ context.Context, ownerID string) ([]domain.Entry, error) {
	return r.collect(func(e domain.Entry) bool { return e.Owner.ID == ownerID }), nil
}

func (r *memEntryRepo) collect(keep func(domain.Entry) bool) []domain.Entry {
	r.mu.RLock()
	recs := make([]memRecord, 0, len(r.entries))
	for _, rec := range r.entries {
		if keep(rec.entry) {
			recs = append(recs, memRecord{seq: rec.seq, entry: rec.entry.Clone()})
		}
	}
	r.mu.RUnlock()

	// seq order is creation order, and CreatedAt is strictly increasing with it.
	slices.SortFunc(recs, func(a, b memRecord) int {
		switch {
		case a.seq > b.seq:
			return -1
		case a.seq < b.seq:
			return 1
		default:
			return 0
		}
	})

	out := make([]domain.Entry, len(recs))
	for i, rec := range recs {
		out[i] = rec.entry
	}
	return out
}

// AppendPath adds points after the existing path.
func (r *memEntryRepo) AppendPath(_ context.Context, id string, points []domain.PathPoint) (domain.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.entries[id]
	if !ok {
		return domain.Entry{}, fmt.Errorf("repo.memEntryRepo.AppendPath: %w", domain.ErrNotFound)
	}
	added := domain.Entry{Path: points}.Clone().Path
	rec.entry.Path = append(rec.entry.Path, added...)
	rec.entry.UpdatedAt = r.now().UTC()
	r.entries[id] = rec

	return rec.entry.Clone(), nil
}

// Update overwrites title, content, notes and emoji.
func (r *memEntryRepo) Update(_ context.Context, entry domain.Entry) (domain.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.entries[entry.ID]
	if !ok {
		return domain.Entry{}, fmt.Errorf("repo.memEntryRepo.Update: %w", domain.ErrNotFound)
	}
	rec.entry.Title = entry.Title
	rec.entry.Content = entry.Content
	rec.entry.Notes = entry.Notes
	rec.entry.Emoji = entry.Emoji
	rec.entry.UpdatedAt = r.now().UTC()
	r.entries[entry.ID] = rec

	return rec.entry.Clone(), nil
}

// Delete removes an entry. Its id is never reused.
func (r *memEntryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return fmt.Errorf("repo.memEntryRepo.Delete: %w", domain.ErrNotFound)
	}
	delete(r.entries, id)
	return nil
}
