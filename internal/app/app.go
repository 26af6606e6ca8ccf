// Package app assembles the mosaic pipeline from a loaded configuration.
// The HTTP server and the command line tool share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"video-mosaic/internal/batch"
	"video-mosaic/internal/database"
	"video-mosaic/internal/frames"
	"video-mosaic/internal/logging"
	"video-mosaic/internal/memory"
	"video-mosaic/internal/metrics"
	"video-mosaic/internal/mosaic"
	"video-mosaic/internal/pebblestore"
	"video-mosaic/internal/startup"
	"video-mosaic/internal/storage"
)

// App holds the wired pipeline. Fields for a disabled index are nil.
type App struct {
	Config *startup.Config

	Source       *frames.FFmpeg
	Writer       *storage.Writer
	Engine       *mosaic.Engine
	Monitor      *memory.Monitor
	Orchestrator *batch.Orchestrator

	DB     *database.Database
	Pebble *pebblestore.Store

	log logging.Logger
}

// New opens the configured index and builds the engine and orchestrator.
// The orchestrator and memory monitor are started; Close stops them.
func New(ctx context.Context, cfg *startup.Config) (*App, error) {
	a := &App{
		Config: cfg,
		log:    logging.With("app"),
	}

	src := frames.NewFFmpeg()
	src.FFmpegPath = cfg.FFmpegPath
	src.FFprobePath = cfg.FFprobePath
	a.Source = src

	index, err := a.openIndex(ctx)
	if err != nil {
		return nil, err
	}

	a.Writer = storage.NewWriter(cfg.Storage)

	opts := mosaic.DefaultOptions()
	opts.Layout.Screen = cfg.ScreenOrNil()
	opts.Workers = cfg.ExtractWorkers
	opts.Quality = cfg.Quality
	opts.Labels = cfg.Labels
	opts.Footer = cfg.Footer
	a.Engine = mosaic.New(src, index, a.Writer, opts)

	a.Monitor = memory.NewMonitor(memory.DefaultConfig())
	a.Monitor.Start()

	a.Orchestrator = batch.New(a.Engine, batch.Options{
		Pressure:     a.Monitor,
		Budget:       cfg.JobBudget,
		TickInterval: cfg.TickInterval,
		OnIdle:       a.batchFinished,
	})
	a.Orchestrator.Start()

	return a, nil
}

// openIndex opens the backend named by the configuration. A nil index
// disables deduplication.
func (a *App) openIndex(ctx context.Context) (mosaic.Index, error) {
	start := time.Now()
	cfg := a.Config

	switch cfg.IndexBackend {
	case startup.IndexSQLite:
		db, err := database.New(ctx, cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open index: %w", err)
		}
		a.DB = db
		startup.LogIndexInit(cfg.IndexBackend, cfg.DatabasePath, int64(db.GetStats().TotalMosaics), time.Since(start))
		return db, nil

	case startup.IndexPebble:
		store, err := pebblestore.Open(cfg.PebbleDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open index: %w", err)
		}
		a.Pebble = store
		startup.LogIndexInit(cfg.IndexBackend, cfg.PebbleDir, int64(store.GetStats().TotalMosaics), time.Since(start))
		return store, nil

	default:
		startup.LogIndexInit(startup.IndexNone, "", 0, 0)
		return nil, nil
	}
}

// batchFinished records the completion time and refreshes cached stats.
func (a *App) batchFinished(s batch.State) {
	if a.DB == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.DB.SetLastBatchRun(ctx, time.Now()); err != nil {
		a.log.Warn("Failed to record batch run: %v", err)
	}
	if err := a.DB.RefreshStats(ctx); err != nil {
		a.log.Warn("Failed to refresh index statistics: %v", err)
	}
	a.log.Debug("Index refreshed after batch (%d completed, %d skipped)", s.Completed, s.Skipped)
}

// Stats returns the stats provider for the open index, or nil.
func (a *App) Stats() metrics.StatsProvider {
	switch {
	case a.DB != nil:
		return a.DB
	case a.Pebble != nil:
		return a.Pebble
	}
	return nil
}

// DBPath is the SQLite file path, or empty for other backends.
func (a *App) DBPath() string {
	if a.DB == nil {
		return ""
	}
	return a.DB.Path()
}

// Close stops the orchestrator, cancelling running jobs, then releases
// the index and cloud clients.
func (a *App) Close() error {
	if a.Orchestrator != nil {
		a.Orchestrator.Close()
	}
	if a.Monitor != nil {
		a.Monitor.Stop()
	}

	var errs []error
	if a.Writer != nil {
		if err := a.Writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if a.Pebble != nil {
		if err := a.Pebble.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pebble: %w", err))
		}
	}
	return errors.Join(errs...)
}
