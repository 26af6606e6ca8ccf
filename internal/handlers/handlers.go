package handlers

import (
	"context"
	"sync/atomic"
	"time"

	"video-mosaic/internal/batch"
	"video-mosaic/internal/database"
	"video-mosaic/internal/density"
	"video-mosaic/internal/layout"
	"video-mosaic/internal/memory"
	"video-mosaic/internal/metrics"
	"video-mosaic/internal/mosaic"
	"video-mosaic/internal/startup"
)

// Batches is the orchestrator surface the API drives.
type Batches interface {
	Submit(jobs []mosaic.JobRequest, budget int) []string
	CancelAll()
	CancelJob(id string) bool
	State() batch.State
	Subscribe() (<-chan batch.Event, func())
}

// LayoutSolver computes layouts without touching video files.
type LayoutSolver interface {
	SolveLayout(aspect float64, count, width int, strategy layout.Strategy, level density.Level) layout.Layout
}

// MosaicLister pages through the SQLite index.
type MosaicLister interface {
	ListMosaics(ctx context.Context, opts database.ListOptions) (*database.MosaicListing, error)
}

// MemoryGauge reports heap pressure for /health.
type MemoryGauge interface {
	Pressure() memory.Pressure
	Usage() (alloc uint64, ratio float64)
}

type Handlers struct {
	batches Batches
	solver  LayoutSolver
	lister  MosaicLister
	stats   metrics.StatsProvider
	config  *startup.Config
	memory  MemoryGauge

	started time.Time
	ready   atomic.Bool
}

// New returns handlers for the API. lister and stats may be nil when the
// index backend does not provide them.
func New(b Batches, solver LayoutSolver, lister MosaicLister, stats metrics.StatsProvider, config *startup.Config) *Handlers {
	return &Handlers{
		batches: b,
		solver:  solver,
		lister:  lister,
		stats:   stats,
		config:  config,
		started: time.Now(),
	}
}

// SetMemoryGauge adds heap usage to the health response.
func (h *Handlers) SetMemoryGauge(g MemoryGauge) {
	h.memory = g
}

// SetReady flips the readiness check. It is set once startup completes and
// cleared when shutdown begins.
func (h *Handlers) SetReady(ready bool) {
	h.ready.Store(ready)
}
