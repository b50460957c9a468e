package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmd-f-hackthon/MapMe/internal/middleware"
)

func doFrom(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/entries/1/points", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// TestRateLimiter_RejectsOverLimit verifies that the request after the quota
// is answered with 429 and the JSON error body.
func TestRateLimiter_RejectsOverLimit(t *testing.T) {
	h := middleware.NewRateLimiter(2, time.Minute)(trivialHandler)

	require.Equal(t, http.StatusOK, doFrom(h, "10.0.0.1:1234").Code)
	require.Equal(t, http.StatusOK, doFrom(h, "10.0.0.1:1234").Code)

	rec := doFrom(h, "10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"rate_limited","message":"too many requests"}}`, rec.Body.String())
}

// TestRateLimiter_KeyedByClient verifies that one client's quota does not
// affect another.
func TestRateLimiter_KeyedByClient(t *testing.T) {
	h := middleware.NewRateLimiter(1, time.Minute)(trivialHandler)

	require.Equal(t, http.StatusOK, doFrom(h, "10.0.0.1:1234").Code)
	require.Equal(t, http.StatusTooManyRequests, doFrom(h, "10.0.0.1:1234").Code)

	assert.Equal(t, http.StatusOK, doFrom(h, "10.0.0.2:1234").Code)
}

// TestRateLimiter_Disabled verifies that a zero quota disables limiting.
func TestRateLimiter_Disabled(t *testing.T) {
	h := middleware.NewRateLimiter(0, time.Minute)(trivialHandler)

	for range 5 {
		assert.Equal(t, http.StatusOK, doFrom(h, "10.0.0.1:1234").Code)
	}
}
