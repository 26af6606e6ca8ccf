package handlers

import (
	"net/http"

	"video-mosaic/internal/database"
	"video-mosaic/internal/logging"
)

// ListMosaics pages through the index, newest first. ?input= filters to one
// source video.
func (h *Handlers) ListMosaics(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		writeJSONError(w, "Listing requires the sqlite index backend", http.StatusNotImplemented)
		return
	}

	opts := database.ListOptions{
		InputPath: r.URL.Query().Get("input"),
		Page:      queryInt(r, "page", 1),
		PageSize:  queryInt(r, "pageSize", 100),
	}

	listing, err := h.lister.ListMosaics(r.Context(), opts)
	if err != nil {
		logging.Error("Failed to list mosaics: %v", err)
		writeJSONError(w, "Failed to list mosaics", http.StatusInternalServerError)
		return
	}
	if listing.Items == nil {
		listing.Items = []database.MosaicEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, listing)
}
