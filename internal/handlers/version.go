package handlers

import (
	"net/http"

	"video-mosaic/internal/logging"
	"video-mosaic/internal/startup"
)

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	buildInfo := startup.GetBuildInfo()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, buildInfo)
}

// GetConfig returns the effective configuration as YAML with credentials
// masked.
func (h *Handlers) GetConfig(w http.ResponseWriter, _ *http.Request) {
	data, err := h.config.YAML()
	if err != nil {
		writeJSONError(w, "Failed to render config", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(data); err != nil {
		logging.Debug("failed to write config response: %v", err)
	}
}
