package handlers

import (
	"net/http"
	"runtime"
	"time"

	"video-mosaic/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Batch progress
	Processing       bool `json:"processing"`
	Queued           int  `json:"queued"`
	InFlight         int  `json:"inFlight"`
	ConcurrencyLimit int  `json:"concurrencyLimit"`

	// Index summary
	IndexBackend string `json:"indexBackend"`
	TotalMosaics int    `json:"totalMosaics,omitempty"`
	LastBatchRun string `json:"lastBatchRun,omitempty"`

	// Heap pressure, when a memory monitor is attached
	MemoryPressure string  `json:"memoryPressure,omitempty"`
	HeapBytes      uint64  `json:"heapBytes,omitempty"`
	HeapRatio      float64 `json:"heapRatio,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	ready := h.ready.Load()
	state := h.batches.State()

	response := HealthResponse{
		Status:           statusStarting,
		Ready:            ready,
		Version:          startup.Version,
		Uptime:           time.Since(h.started).Round(time.Second).String(),
		Processing:       state.Processing,
		Queued:           state.Queued,
		InFlight:         len(state.InFlight),
		ConcurrencyLimit: state.ConcurrencyLimit,
		IndexBackend:     h.config.IndexBackend,
		GoVersion:        runtime.Version(),
		NumCPU:           runtime.NumCPU(),
		NumGoroutine:     runtime.NumGoroutine(),
	}
	if ready {
		response.Status = statusHealthy
	}

	if h.stats != nil {
		stats := h.stats.GetStats()
		response.TotalMosaics = stats.TotalMosaics
		if !stats.LastRun.IsZero() {
			response.LastBatchRun = stats.LastRun.Format(time.RFC3339)
		}
	}

	if h.memory != nil {
		response.MemoryPressure = h.memory.Pressure().String()
		response.HeapBytes, response.HeapRatio = h.memory.Usage()
	}

	w.Header().Set("Content-Type", "application/json")

	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness check (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the service is ready to accept traffic
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.ready.Load() {
		writeJSONStatus(w, "ready", http.StatusOK)
		return
	}
	writeJSONStatus(w, "not_ready", http.StatusServiceUnavailable)
}
