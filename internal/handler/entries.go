package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/oapi-codegen/runtime"

	"github.com/cmd-f-hackthon/MapMe/internal/domain"
	"github.com/cmd-f-hackthon/MapMe/internal/service"
	"github.com/cmd-f-hackthon/MapMe/internal/validation"
)

// CoordinateRequest is a coordinate as sent by clients. Both fields are
// required; an omitted latitude is an error, not the equator.
type CoordinateRequest struct {
	Longitude *float64 `json:"longitude" validate:"required"`
	Latitude  *float64 `json:"latitude" validate:"required"`
}

func (c CoordinateRequest) toDomain() domain.Coordinate {
	return domain.Coordinate{Longitude: *c.Longitude, Latitude: *c.Latitude}
}

// PathPointRequest is one timestamped sample of a client-built route.
type PathPointRequest struct {
	Longitude *float64   `json:"longitude" validate:"required"`
	Latitude  *float64   `json:"latitude" validate:"required"`
	Timestamp *time.Time `json:"timestamp" validate:"required"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
}

// CreateEntryRequest is the body of POST /entries.
type CreateEntryRequest struct {
	Title   string             `json:"title"`
	Content string             `json:"content"`
	Anchor  *CoordinateRequest `json:"anchor"`
	Path    []PathPointRequest `json:"path" validate:"omitempty,dive"`
	Owner   *domain.Owner      `json:"owner"`
	Notes   string             `json:"notes"`
	Emoji   string             `json:"emoji"`
	Photo   *domain.Photo      `json:"photo"`
}

// AppendPointRequest is the body of POST /entries/{id}/points. Without a
// timestamp the server clock is used.
type AppendPointRequest struct {
	Coordinate *CoordinateRequest `json:"coordinate" validate:"required"`
	Timestamp  *time.Time         `json:"timestamp,omitempty"`
	Accuracy   *float64           `json:"accuracy,omitempty"`
}

// UpdateEntryRequest is the body of PATCH /entries/{id}. Omitted fields are kept.
type UpdateEntryRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Notes   *string `json:"notes"`
	Emoji   *string `json:"emoji"`
}

// DeleteResponse is the body of a successful DELETE /entries/{id}.
type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// CreateEntry handles POST /entries.
func (s *Server) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var body CreateEntryRequest
	if !s.decodeBody(w, r, &body) {
		return
	}

	created, err := s.entries.Create(r.Context(), requestToNewEntry(body))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListEntries handles GET /entries and GET /entries?owner={ownerId}.
// Entries are ordered newest first.
func (s *Server) ListEntries(w http.ResponseWriter, r *http.Request) {
	var owner *string
	if err := runtime.BindQueryParameter("form", true, false, "owner", r.URL.Query(), &owner); err != nil {
		requestError(w, "invalid owner parameter")
		return
	}

	var (
		entries []domain.Entry
		err     error
	)
	if owner != nil {
		entries, err = s.entries.ListForOwner(r.Context(), *owner)
	} else {
		entries, err = s.entries.ListAll(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetEntry handles GET /entries/{id}.
func (s *Server) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}

	entry, err := s.entries.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// UpdateEntry handles PATCH /entries/{id}.
func (s *Server) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	var body UpdateEntryRequest
	if !s.decodeBody(w, r, &body) {
		return
	}

	updated, err := s.entries.Update(r.Context(), id, domain.EntryPatch{
		Title:   body.Title,
		Content: body.Content,
		Notes:   body.Notes,
		Emoji:   body.Emoji,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteEntry handles DELETE /entries/{id}.
func (s *Server) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}

	if err := s.entries.DeleteByID(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{ID: id, Deleted: true})
}

// AppendPoint handles POST /entries/{id}/points.
func (s *Server) AppendPoint(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	var body AppendPointRequest
	if !s.decodeBody(w, r, &body) {
		return
	}

	p := domain.PathPoint{Coordinate: body.Coordinate.toDomain(), Accuracy: body.Accuracy}
	if body.Timestamp != nil {
		p.Timestamp = body.Timestamp.UTC()
	}

	updated, err := s.entries.AppendLocation(r.Context(), id, p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// GetEntryStats handles GET /entries/{id}/stats.
func (s *Server) GetEntryStats(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}

	stats, err := s.entries.Stats(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// --- request helpers --------------------------------------------------------

// entryID binds the {id} path parameter. Ids are opaque strings; whether one
// exists is for the service to decide.
func entryID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil || id == "" {
		requestError(w, "invalid entry id")
		return "", false
	}
	return id, true
}

// decodeBody decodes and validates the JSON body into dst. It writes the
// error response itself and reports whether the handler should continue.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("body_too_large", "request body too large"))
			return false
		}
		requestError(w, "request body could not be read")
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		requestError(w, "request body must be valid JSON")
		return false
	}
	if err := validation.Struct(dst); err != nil {
		requestError(w, unwrapMessage(err))
		return false
	}
	return true
}

// requestToNewEntry converts a validated CreateEntryRequest into service input.
func requestToNewEntry(body CreateEntryRequest) service.NewEntry {
	in := service.NewEntry{
		Title:   body.Title,
		Content: body.Content,
		Notes:   body.Notes,
		Emoji:   body.Emoji,
		Photo:   body.Photo,
	}
	if body.Owner != nil {
		in.Owner = *body.Owner
	}
	if body.Anchor != nil && body.Anchor.Longitude != nil && body.Anchor.Latitude != nil {
		c := body.Anchor.toDomain()
		in.Anchor = &c
	}
	for _, p := range body.Path {
		in.Path = append(in.Path, domain.PathPoint{
			Coordinate: domain.Coordinate{Longitude: *p.Longitude, Latitude: *p.Latitude},
			Timestamp:  p.Timestamp.UTC(),
			Accuracy:   p.Accuracy,
		})
	}
	return in
}
