package handlers

import (
	"encoding/json"
	"net/http"

	"video-mosaic/internal/density"
	"video-mosaic/internal/layout"
)

// LayoutRequest is the body of POST /api/layout. The aspect ratio comes
// from Aspect or from VideoWidth/VideoHeight. The thumbnail count comes
// from Count or, when zero, from Duration and the density.
type LayoutRequest struct {
	Aspect      float64          `json:"aspect,omitempty"`
	VideoWidth  int              `json:"videoWidth,omitempty"`
	VideoHeight int              `json:"videoHeight,omitempty"`
	Count       int              `json:"count,omitempty"`
	Duration    float64          `json:"duration,omitempty"`
	Width       int              `json:"width,omitempty"`
	Density     *density.Level   `json:"density,omitempty"`
	Strategy    *layout.Strategy `json:"strategy,omitempty"`
}

// LayoutResponse carries the solved layout and, when a duration was given,
// the timestamp for each cell.
type LayoutResponse struct {
	Layout     layout.Layout `json:"layout"`
	Count      int           `json:"count"`
	FillRatio  float64       `json:"fillRatio"`
	Timestamps []float64     `json:"timestamps,omitempty"`
}

// SolveLayout computes a layout without reading any video.
func (h *Handlers) SolveLayout(w http.ResponseWriter, r *http.Request) {
	var req LayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	aspect := req.Aspect
	if aspect <= 0 && req.VideoWidth > 0 && req.VideoHeight > 0 {
		aspect = float64(req.VideoWidth) / float64(req.VideoHeight)
	}
	if aspect <= 0 {
		writeJSONError(w, "aspect or videoWidth/videoHeight is required", http.StatusBadRequest)
		return
	}

	width := h.config.Width
	if req.Width > 0 {
		width = req.Width
	}
	level := h.config.DensityLevel
	if req.Density != nil {
		level = *req.Density
	}
	strategy := h.config.LayoutMode
	if req.Strategy != nil {
		strategy = *req.Strategy
	}

	count := req.Count
	if count <= 0 {
		if req.Duration <= 0 {
			writeJSONError(w, "count or duration is required", http.StatusBadRequest)
			return
		}
		count = density.Count(req.Duration, width, level)
	}

	l := h.solver.SolveLayout(aspect, count, width, strategy, level)

	resp := LayoutResponse{
		Layout:    l,
		Count:     l.ThumbCount,
		FillRatio: l.FillRatio(),
	}
	if req.Duration > 0 {
		resp.Timestamps = l.Timestamps(req.Duration)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp)
}
