package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// entry does not exist in the active storage backend.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails business rule validation
// (e.g. coordinate out of range, empty capture, timestamps going backwards).
// Handlers should map this to HTTP 400 Bad Request.
var ErrValidation = errors.New("validation error")

// ErrStorage wraps failures of the durable backend after startup succeeded.
// It is never retried and never triggers a new backend selection.
// Handlers should map this to a generic HTTP 500 without leaking details.
var ErrStorage = errors.New("storage error")

// ErrUnavailable is returned when a caller gives up waiting for the startup
// backend selection to complete.
// Handlers should map this to HTTP 503 Service Unavailable.
var ErrUnavailable = errors.New("storage backend not ready")
