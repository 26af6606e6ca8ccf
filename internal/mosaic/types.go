package mosaic

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"time"

	"video-mosaic/internal/density"
	"video-mosaic/internal/frames"
	"video-mosaic/internal/layout"
)

// JobRequest describes one mosaic to generate. It is read-only once
// submitted.
type JobRequest struct {
	ID       string          `json:"id,omitempty"`
	Input    string          `json:"input"`
	Output   string          `json:"output"`
	Width    int             `json:"width,omitempty"`
	Density  density.Level   `json:"density"`
	Strategy layout.Strategy `json:"strategy"`

	AddBorder   bool        `json:"addBorder,omitempty"`
	AddShadow   bool        `json:"addShadow,omitempty"`
	BorderWidth int         `json:"borderWidth,omitempty"`
	BorderColor color.NRGBA `json:"borderColor,omitempty"`

	// MinDuration rejects videos shorter than this many seconds.
	MinDuration float64 `json:"minDuration,omitempty"`
	// Overwrite regenerates even when the index already has the mosaic.
	Overwrite bool `json:"overwrite,omitempty"`
	// MaxConcurrency caps frame extraction for this job. Zero uses the
	// engine default.
	MaxConcurrency int `json:"maxConcurrency,omitempty"`
	// Preview produces a single-row strip instead of a full mosaic.
	Preview bool `json:"preview,omitempty"`
}

// JobResult is produced once per finished job, including skipped ones.
type JobResult struct {
	JobID       string        `json:"jobId"`
	Input       string        `json:"input"`
	Output      string        `json:"output,omitempty"`
	ContentHash string        `json:"contentHash,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
	Skipped     bool          `json:"skipped,omitempty"`
	SkipReason  string        `json:"skipReason,omitempty"`
	Layout      layout.Layout `json:"layout"`
}

// Stage is the coarse phase of a running job.
type Stage string

const (
	StageDiscovering Stage = "discovering"
	StageExtracting  Stage = "extracting"
	StageCompositing Stage = "compositing"
	StageSaving      Stage = "saving"
)

// Progress is reported while a job runs. ETA is nil until it can be
// estimated.
type Progress struct {
	JobID    string         `json:"jobId"`
	Stage    Stage          `json:"stage"`
	Fraction float64        `json:"fraction"`
	ETA      *time.Duration `json:"eta,omitempty"`
}

// ProgressFunc receives progress updates. Calls for one job are sequential.
type ProgressFunc func(Progress)

// Key identifies a generated mosaic for deduplication.
type Key struct {
	ContentHash string          `json:"contentHash"`
	Width       int             `json:"width"`
	Density     density.Level   `json:"density"`
	Strategy    layout.Strategy `json:"strategy"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%d|%s|%s", k.ContentHash, k.Width, k.Density, k.Strategy)
}

// Record is the provenance stored for a generated mosaic.
type Record struct {
	Key       Key             `json:"key"`
	Input     string          `json:"input"`
	Output    string          `json:"output"`
	Metadata  frames.Metadata `json:"metadata"`
	Layout    layout.Layout   `json:"layout"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Index answers whether a mosaic already exists and records new ones.
// Implementations must be safe for concurrent use.
type Index interface {
	Exists(ctx context.Context, key Key) (bool, error)
	Record(ctx context.Context, rec Record) error
}

// Writer stores encoded output and returns its canonical location.
type Writer interface {
	Write(ctx context.Context, target string, data []byte, contentType string) (string, error)
}

// ErrCancelled is returned, wrapping the context error, when a job is
// cancelled.
var ErrCancelled = errors.New("job cancelled")

// InputError reports a job that cannot run because of its input: missing
// file, unreadable metadata, too short or a bad request.
type InputError struct {
	Path   string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("input %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("input %s: %s", e.Path, e.Reason)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
}
