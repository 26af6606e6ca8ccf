package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"video-mosaic/internal/density"
	"video-mosaic/internal/discovery"
	"video-mosaic/internal/layout"
	"video-mosaic/internal/logging"
	"video-mosaic/internal/mosaic"
)

// maxJobsPerRequest bounds one submission, including directory expansion.
const maxJobsPerRequest = 10000

// JobSettings overrides the configured mosaic defaults. Unset fields keep
// the default.
type JobSettings struct {
	Width       int              `json:"width,omitempty"`
	Density     *density.Level   `json:"density,omitempty"`
	Strategy    *layout.Strategy `json:"strategy,omitempty"`
	Format      string           `json:"format,omitempty"`
	AddBorder   *bool            `json:"addBorder,omitempty"`
	AddShadow   *bool            `json:"addShadow,omitempty"`
	MinDuration *float64         `json:"minDuration,omitempty"`
	Overwrite   bool             `json:"overwrite,omitempty"`
	Preview     bool             `json:"preview,omitempty"`
}

// JobSpec names one input explicitly. An empty Output is derived from the
// request's OutputDir.
type JobSpec struct {
	Input  string `json:"input"`
	Output string `json:"output,omitempty"`
	JobSettings
}

// SubmitRequest is the body of POST /api/batches. Paths may name files or
// directories; Jobs give per-input settings. Both may be combined.
type SubmitRequest struct {
	Paths     []string  `json:"paths,omitempty"`
	Jobs      []JobSpec `json:"jobs,omitempty"`
	OutputDir string    `json:"outputDir,omitempty"`
	Recursive *bool     `json:"recursive,omitempty"`
	Budget    int       `json:"budget,omitempty"`
	JobSettings
}

// SubmitResponse lists the ids assigned to the accepted jobs, in order.
type SubmitResponse struct {
	JobIDs []string `json:"jobIds"`
	Count  int      `json:"count"`
}

// SubmitBatch expands the request into jobs and queues them.
func (h *Handlers) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if len(req.Paths) == 0 && len(req.Jobs) == 0 {
		writeJSONError(w, "paths or jobs is required", http.StatusBadRequest)
		return
	}

	jobs, err := h.buildJobs(r, &req)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(jobs) == 0 {
		writeJSONError(w, "No videos found", http.StatusBadRequest)
		return
	}
	if len(jobs) > maxJobsPerRequest {
		writeJSONError(w, fmt.Sprintf("Too many jobs (%d, limit %d)", len(jobs), maxJobsPerRequest), http.StatusRequestEntityTooLarge)
		return
	}

	budget := req.Budget
	if budget <= 0 {
		budget = h.config.JobBudget
	}

	ids := h.batches.Submit(jobs, budget)
	logging.Info("Batch submitted: %d jobs, budget %d", len(ids), budget)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, SubmitResponse{JobIDs: ids, Count: len(ids)})
}

func (h *Handlers) buildJobs(r *http.Request, req *SubmitRequest) ([]mosaic.JobRequest, error) {
	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = h.config.OutputDir
	}

	var jobs []mosaic.JobRequest

	if len(req.Paths) > 0 {
		opts := discovery.DefaultOptions()
		if req.Recursive != nil {
			opts.Recursive = *req.Recursive
		}
		inputs, err := discovery.Find(r.Context(), req.Paths, opts)
		if err != nil {
			return nil, err
		}
		tmpl, ext := h.template(req.JobSettings)
		jobs = append(jobs, discovery.Jobs(inputs, tmpl, outputDir, ext)...)
	}

	for i, item := range req.Jobs {
		if strings.TrimSpace(item.Input) == "" {
			return nil, fmt.Errorf("jobs[%d]: input is required", i)
		}
		merged := mergeSettings(req.JobSettings, item.JobSettings)
		job, ext := h.template(merged)
		job.Input = item.Input
		job.Output = item.Output
		if job.Output == "" {
			job.Output = discovery.OutputPath(item.Input, outputDir, job.Width, job.Density, ext)
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// template applies s on top of the configured defaults and returns the
// request together with the output extension.
func (h *Handlers) template(s JobSettings) (mosaic.JobRequest, string) {
	c := h.config
	job := mosaic.JobRequest{
		Width:       c.Width,
		Density:     c.DensityLevel,
		Strategy:    c.LayoutMode,
		AddBorder:   c.AddBorder,
		AddShadow:   c.AddShadow,
		BorderWidth: c.BorderWidth,
		MinDuration: c.MinDuration,
		Overwrite:   s.Overwrite,
		Preview:     s.Preview,
	}
	if s.Width > 0 {
		job.Width = s.Width
	}
	if s.Density != nil {
		job.Density = *s.Density
	}
	if s.Strategy != nil {
		job.Strategy = *s.Strategy
	}
	if s.AddBorder != nil {
		job.AddBorder = *s.AddBorder
	}
	if s.AddShadow != nil {
		job.AddShadow = *s.AddShadow
	}
	if s.MinDuration != nil {
		job.MinDuration = *s.MinDuration
	}

	ext := c.Format
	if s.Format != "" {
		ext = strings.TrimPrefix(strings.ToLower(s.Format), ".")
	}
	return job, ext
}

// mergeSettings returns base with every field set in override replacing it.
func mergeSettings(base, override JobSettings) JobSettings {
	out := base
	if override.Width > 0 {
		out.Width = override.Width
	}
	if override.Density != nil {
		out.Density = override.Density
	}
	if override.Strategy != nil {
		out.Strategy = override.Strategy
	}
	if override.Format != "" {
		out.Format = override.Format
	}
	if override.AddBorder != nil {
		out.AddBorder = override.AddBorder
	}
	if override.AddShadow != nil {
		out.AddShadow = override.AddShadow
	}
	if override.MinDuration != nil {
		out.MinDuration = override.MinDuration
	}
	out.Overwrite = base.Overwrite || override.Overwrite
	out.Preview = base.Preview || override.Preview
	return out
}

// GetBatchState returns the orchestrator's current counters.
func (h *Handlers) GetBatchState(w http.ResponseWriter, _ *http.Request) {
	state := h.batches.State()
	if state.InFlight == nil {
		state.InFlight = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, state)
}

// CancelBatch cancels every queued and running job.
func (h *Handlers) CancelBatch(w http.ResponseWriter, _ *http.Request) {
	h.batches.CancelAll()
	logging.Info("Batch cancellation requested")
	writeJSONStatus(w, "cancelling", http.StatusAccepted)
}

// CancelJob cancels one job by id.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeJSONError(w, "Job id is required", http.StatusBadRequest)
		return
	}
	if !h.batches.CancelJob(id) {
		writeJSONError(w, "Job not found or already finished", http.StatusNotFound)
		return
	}
	writeJSONStatus(w, "cancelling", http.StatusAccepted)
}
