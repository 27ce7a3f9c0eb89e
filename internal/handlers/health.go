package handlers

import (
	"net/http"
	"runtime"

	"forma-server/internal/logging"
	"forma-server/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`

	TotalAssets  int `json:"totalAssets"`
	TotalFolders int `json:"totalFolders"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports service health. The catalog being unreachable degrades
// the service with a 503.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	code := http.StatusOK

	assets, err := h.db.GetAllAssets(r.Context())
	if err != nil {
		logging.Error("health check catalog query failed: %v", err)
		response.Status = statusDegraded
		code = http.StatusServiceUnavailable
	} else {
		response.TotalAssets = len(assets)
	}

	folders, err := h.db.GetWatchedFolders(r.Context())
	if err == nil {
		response.TotalFolders = len(folders)
	}

	writeJSONCode(w, code, response)
}

// Liveness is a trivial liveness probe.
func (h *Handlers) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, "alive")
}

// Version returns build information.
func (h *Handlers) Version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, startup.GetBuildInfo())
}
