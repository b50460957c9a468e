package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmd-f-hackthon/MapMe/internal/handler"
	"github.com/cmd-f-hackthon/MapMe/internal/repo"
	"github.com/cmd-f-hackthon/MapMe/spec"
)

// mockStorage is a test double for handler.StorageReporter.
type mockStorage struct {
	backend repo.Backend
}

func (m *mockStorage) Backend() repo.Backend { return m.backend }

var (
	_ handler.StorageReporter = (*mockStorage)(nil)
	_ handler.StorageReporter = (*repo.Selector)(nil)
)

// TestGetHealth_reportsStorage verifies that GET /healthz returns HTTP 200
// with the backend currently serving requests.
func TestGetHealth_reportsStorage(t *testing.T) {
	for _, backend := range []repo.Backend{repo.BackendPending, repo.BackendPostgres, repo.BackendMongo, repo.BackendMemory} {
		t.Run(string(backend), func(t *testing.T) {
			h := handler.NewServer(nil, &mockStorage{backend: backend}, nil).Handler()

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			var body handler.HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, "ok", body.Status)
			assert.Equal(t, string(backend), body.Storage)
		})
	}
}

// TestGetHealth_noStorage verifies that a server without a storage reporter
// answers "pending" rather than failing.
func TestGetHealth_noStorage(t *testing.T) {
	h := handler.NewServer(nil, nil, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","storage":"pending"}`, rec.Body.String())
}

func TestGetOpenAPI(t *testing.T) {
	h := handler.NewServer(nil, nil, nil, handler.WithOpenAPI(spec.OpenAPI)).Handler()

	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "openapi:"))
}

func TestGetMetrics(t *testing.T) {
	h := handler.NewServer(nil, nil, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mapme_")
}
