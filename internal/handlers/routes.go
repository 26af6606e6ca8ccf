package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes wires every handler onto r.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	// Health and version
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/batches", h.SubmitBatch).Methods(http.MethodPost)
	api.HandleFunc("/batches", h.CancelBatch).Methods(http.MethodDelete)
	api.HandleFunc("/batches/state", h.GetBatchState).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", h.CancelJob).Methods(http.MethodDelete)
	api.HandleFunc("/events", h.StreamEvents).Methods(http.MethodGet)
	api.HandleFunc("/layout", h.SolveLayout).Methods(http.MethodPost)
	api.HandleFunc("/mosaics", h.ListMosaics).Methods(http.MethodGet)
	api.HandleFunc("/config", h.GetConfig).Methods(http.MethodGet)
}
