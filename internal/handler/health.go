package handler

import (
	"net/http"

	"github.com/cmd-f-hackthon/MapMe/internal/repo"
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

// GetHealth handles GET /healthz.
// It returns HTTP 200 while the process is running, together with the storage
// backend in use. "pending" means the startup probe has not finished yet.
func (s *Server) GetHealth(w http.ResponseWriter, _ *http.Request) {
	backend := repo.BackendPending
	if s.storage != nil {
		backend = s.storage.Backend()
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Storage: string(backend)})
}

// GetOpenAPI handles GET /openapi.yaml.
func (s *Server) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	if len(s.openAPI) == 0 {
		writeJSON(w, http.StatusNotFound, errorBody("not_found", "no API document configured"))
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(s.openAPI)
}
