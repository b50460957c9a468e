// Package repo contains all storage access logic for the MapMe journal.
// EntryRepo is the single storage contract; it has a Postgres, a MongoDB and
// an in-memory implementation, and a Selector that picks one at startup.
// No business logic lives here, only queries and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/cmd-f-hackthon/MapMe/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EntryRepo defines the persistence operations for journal entries.
// The service layer depends on this interface, not on a concrete backend.
// Ids are opaque strings on every backend; a malformed id is ErrNotFound.
type EntryRepo interface {
	// Create inserts a new entry and returns the persisted record with the
	// backend-assigned ID, CreatedAt and UpdatedAt populated.
	Create(ctx context.Context, entry domain.Entry) (domain.Entry, error)

	// GetByID retrieves a single entry.
	// Returns domain.ErrNotFound if no entry with that ID exists.
	GetByID(ctx context.Context, id string) (domain.Entry, error)

	// List returns all entries ordered by CreatedAt descending.
	List(ctx context.Context) ([]domain.Entry, error)

	// ListByOwner returns the entries of one owner ordered by CreatedAt descending.
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Entry, error)

	// AppendPath adds points after the existing path and returns the updated
	// entry. Returns domain.ErrNotFound if no entry with that ID exists.
	AppendPath(ctx context.Context, id string, points []domain.PathPoint) (domain.Entry, error)

	// Update overwrites title, content, notes and emoji and returns the updated
	// record. Returns domain.ErrNotFound if no entry with that ID exists.
	Update(ctx context.Context, entry domain.Entry) (domain.Entry, error)

	// Delete removes an entry by ID. Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error
}

// pgEntryRepo is the Postgres implementation of EntryRepo.
type pgEntryRepo struct {
	db db
}

// NewPostgresEntryRepo constructs an EntryRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewPostgresEntryRepo(db db) EntryRepo {
	return &pgEntryRepo{db: db}
}

const entryColumns = `id, title, content, owner_id, owner_name, owner_email,
		anchor_lng, anchor_lat, details, path, notes, emoji, photo, created_at, updated_at`

// Create inserts a new entry row and returns the full persisted record.
// created_at uses clock_timestamp() so rows inserted in one transaction
// still order strictly by creation time.
func (r *pgEntryRepo) Create(ctx context.Context, entry domain.Entry) (domain.Entry, error) {
	const q = `
		INSERT INTO entries (title, content, owner_id, owner_name, owner_email,
		                     anchor_lng, anchor_lat, details, path, notes, emoji, photo)
		VALUES (@title, @content, @owner_id, @owner_name, @owner_email,
		        @anchor_lng, @anchor_lat, @details, @path, @notes, @emoji, @photo)
		RETURNING ` + entryColumns

	details, path, photo, err := encodeEntryJSON(entry)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("repo.EntryRepo.Create: encode: %w", err)
	}

	args := pgx.NamedArgs{
		"title":       entry.Title,
		"content":     entry.Content,
		"owner_id":    entry.Owner.ID,
		"owner_name":  entry.Owner.Name,
		"owner_email": entry.Owner.Email,
		"anchor_lng":  entry.Anchor.Longitude,
		"anchor_lat":  entry.Anchor.Latitude,
		"details":     details,
		"path":        path,
		"notes":       entry.Notes,
		"emoji":       entry.Emoji,
		"photo":       photo, // nil becomes NULL
	}

	result, err := scanEntry(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Entry{}, pgErr("repo.EntryRepo.Create", err)
	}
	return result, nil
}

// GetByID retrieves an entry by primary key.
func (r *pgEntryRepo) GetByID(ctx context.Context, id string) (domain.Entry, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("repo.EntryRepo.GetByID: %w", domain.ErrNotFound)
	}

	q := `SELECT ` + entryColumns + ` FROM entries WHERE id = @id`

	result, err := scanEntry(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": uid}))
	if err != nil {
		return domain.Entry{}, pgErr("repo.EntryRepo.GetByID", err)
	}
	return result, nil
}

// List returns all entries, most recent first.
func (r *pgEntryRepo) List(ctx context.Context) ([]domain.Entry, error) {
	q := `SELECT ` + entryColumns + ` FROM entries ORDER BY created_at DESC, id DESC`
	return r.query(ctx, "repo.EntryRepo.List", q)
}

// ListByOwner returns the entries of one owner, most recent first.
func (r *pgEntryRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Entry, error) {
	q := `SELECT ` + entryColumns + ` FROM entries
		WHERE owner_id = @owner_id
		ORDER BY created_at DESC, id DESC`
	return r.query(ctx, "repo.EntryRepo.ListByOwner", q, pgx.NamedArgs{"owner_id": ownerID})
}

func (r *pgEntryRepo) query(ctx context.Context, op, q string, args ...any) ([]domain.Entry, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, pgErr(op, err)
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, pgErr(op+": scan", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, pgErr(op+": rows", err)
	}
	return entries, nil
}

// AppendPath concatenates points onto the stored jsonb path in one statement.
func (r *pgEntryRepo) AppendPath(ctx context.Context, id string, points []domain.PathPoint) (domain.Entry, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("repo.EntryRepo.AppendPath: %w", domain.ErrNotFound)
	}

	raw, err := json.Marshal(nonNilPath(points))
	if err != nil {
		return domain.Entry{}, fmt.Errorf("repo.EntryRepo.AppendPath: encode: %w", err)
	}

	q := `
		UPDATE entries
		SET path       = path || @points::jsonb,
		    updated_at = clock_timestamp()
		WHERE id = @id
		RETURNING ` + entryColumns

	result, err := scanEntry(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": uid, "points": raw}))
	if err != nil {
		return domain.Entry{}, pgErr("repo.EntryRepo.AppendPath", err)
	}
	return result, nil
}

// Update overwrites the mutable text fields of an entry.
func (r *pgEntryRepo) Update(ctx context.Context, entry domain.Entry) (domain.Entry, error) {
	uid, err := uuid.Parse(entry.ID)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("repo.EntryRepo.Update: %w", domain.ErrNotFound)
	}

	q := `
		UPDATE entries
		SET title      = @title,
		    content    = @content,
		    notes      = @notes,
		    emoji      = @emoji,
		    updated_at = clock_timestamp()
		WHERE id = @id
		RETURNING ` + entryColumns

	args := pgx.NamedArgs{
		"id":      uid,
		"title":   entry.Title,
		"content": entry.Content,
		"notes":   entry.Notes,
		"emoji":   entry.Emoji,
	}

	result, err := scanEntry(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Entry{}, pgErr("repo.EntryRepo.Update", err)
	}
	return result, nil
}

// Delete removes an entry by primary key.
func (r *pgEntryRepo) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("repo.EntryRepo.Delete: %w", domain.ErrNotFound)
	}

	const q = `DELETE FROM entries WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": uid})
	if err != nil {
		return pgErr("repo.EntryRepo.Delete", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.EntryRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scanEntry to be
// reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanEntry maps a single database row into a domain.Entry.
// It handles the UUID conversion and decodes the jsonb columns.
func scanEntry(s scanner) (domain.Entry, error) {
	var (
		e       domain.Entry
		id      pgtype.UUID
		details []byte
		path    []byte
		photo   []byte
	)

	err := s.Scan(&id, &e.Title, &e.Content, &e.Owner.ID, &e.Owner.Name, &e.Owner.Email,
		&e.Anchor.Longitude, &e.Anchor.Latitude, &details, &path, &e.Notes, &e.Emoji, &photo,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Entry{}, domain.ErrNotFound
		}
		return domain.Entry{}, err
	}

	e.ID = uuid.UUID(id.Bytes).String()
	if err := json.Unmarshal(details, &e.Anchor.Details); err != nil {
		return domain.Entry{}, fmt.Errorf("decode details: %w", err)
	}
	if err := json.Unmarshal(path, &e.Path); err != nil {
		return domain.Entry{}, fmt.Errorf("decode path: %w", err)
	}
	e.Path = nonNilPath(e.Path)
	if photo != nil {
		e.Photo = &domain.Photo{}
		if err := json.Unmarshal(photo, e.Photo); err != nil {
			return domain.Entry{}, fmt.Errorf("decode photo: %w", err)
		}
	}

	return e, nil
}

// encodeEntryJSON renders the jsonb columns. photo is nil when the entry has none.
func encodeEntryJSON(e domain.Entry) (details, path, photo []byte, err error) {
	if details, err = json.Marshal(e.Anchor.Details); err != nil {
		return nil, nil, nil, err
	}
	if path, err = json.Marshal(nonNilPath(e.Path)); err != nil {
		return nil, nil, nil, err
	}
	if e.Photo != nil {
		if photo, err = json.Marshal(e.Photo); err != nil {
			return nil, nil, nil, err
		}
	}
	return details, path, photo, nil
}

// pgErr keeps ErrNotFound as is and tags every other failure as ErrStorage.
func pgErr(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}

func nonNilPath(p []domain.PathPoint) []domain.PathPoint {
	if p == nil {
		return []domain.PathPoint{}
	}
	return p
}
