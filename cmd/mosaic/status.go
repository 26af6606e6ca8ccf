package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"sort"
	"time"

	"video-mosaic/internal/database"
	"video-mosaic/internal/mosaic"
	"video-mosaic/internal/pebblestore"
	"video-mosaic/internal/startup"
)

const (
	// Default timeout for index operations
	defaultTimeout = 30 * time.Second
	pathColumn     = 48
)

// statusEntry is one index row, shared by both backends.
type statusEntry struct {
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Key       string    `json:"key"`
	Thumbs    int       `json:"thumbs"`
	CreatedAt time.Time `json:"createdAt"`
}

type statusReport struct {
	Backend      string        `json:"backend"`
	Location     string        `json:"location,omitempty"`
	TotalMosaics int           `json:"totalMosaics"`
	LastBatchRun *time.Time    `json:"lastBatchRun,omitempty"`
	Pruned       int           `json:"pruned,omitempty"`
	Recent       []statusEntry `json:"recent"`
}

func runStatus(ctx context.Context, args []string, env cliEnv) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	limit := fs.Int("limit", 10, "number of recent mosaics to list")
	input := fs.String("input", "", "only list mosaics of this video (sqlite index)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	vacuum := fs.Bool("vacuum", false, "compact the sqlite index before reporting")
	prune := fs.Duration("prune", 0, "drop pebble index records older than this before reporting")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cfg, err := startup.LoadWithDefaults(cliDefaults())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var report *statusReport
	switch cfg.IndexBackend {
	case startup.IndexSQLite:
		report, err = sqliteStatus(ctx, cfg.DatabasePath, *input, *limit, *vacuum)
	case startup.IndexPebble:
		report, err = pebbleStatus(cfg.PebbleDir, *limit, *prune)
	default:
		report = &statusReport{Backend: startup.IndexNone}
	}
	if err != nil {
		return err
	}

	if *jsonOut {
		if report.Recent == nil {
			report.Recent = []statusEntry{}
		}
		enc := json.NewEncoder(env.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printStatus(env.stdout, report)
	return nil
}

func sqliteStatus(ctx context.Context, path, input string, limit int, vacuum bool) (*statusReport, error) {
	db, err := database.New(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer db.Close()

	if vacuum {
		if err := db.Vacuum(ctx); err != nil {
			return nil, fmt.Errorf("failed to vacuum index: %w", err)
		}
	}

	stats := db.GetStats()
	report := &statusReport{
		Backend:      startup.IndexSQLite,
		Location:     path,
		TotalMosaics: stats.TotalMosaics,
	}
	if !stats.LastRun.IsZero() {
		last := stats.LastRun
		report.LastBatchRun = &last
	}

	if limit <= 0 {
		return report, nil
	}
	listing, err := db.ListMosaics(ctx, database.ListOptions{InputPath: input, Page: 1, PageSize: limit})
	if err != nil {
		return nil, err
	}
	for _, e := range listing.Items {
		key := mosaic.Key{ContentHash: e.ContentHash, Width: e.Width, Density: e.Density, Strategy: e.Strategy}
		report.Recent = append(report.Recent, statusEntry{
			Input:     e.InputPath,
			Output:    e.OutputPath,
			Key:       shortKey(key),
			Thumbs:    e.ThumbCount,
			CreatedAt: e.CreatedAt,
		})
	}
	return report, nil
}

func pebbleStatus(dir string, limit int, prune time.Duration) (*statusReport, error) {
	store, err := pebblestore.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer store.Close()

	var pruned int
	if prune > 0 {
		if pruned, err = store.Prune(prune); err != nil {
			return nil, fmt.Errorf("failed to prune index: %w", err)
		}
	}

	records, err := store.List()
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	report := &statusReport{
		Backend:      startup.IndexPebble,
		Location:     dir,
		TotalMosaics: len(records),
		Pruned:       pruned,
	}
	for i, rec := range records {
		if i >= limit {
			break
		}
		report.Recent = append(report.Recent, statusEntry{
			Input:     rec.Input,
			Output:    rec.Output,
			Key:       shortKey(rec.Key),
			Thumbs:    rec.Layout.ThumbCount,
			CreatedAt: rec.CreatedAt,
		})
	}
	return report, nil
}

// shortKey abbreviates the content hash for display.
func shortKey(k mosaic.Key) string {
	hash := k.ContentHash
	if len(hash) > 12 {
		hash = hash[:12]
	}
	return fmt.Sprintf("%s %d %s %s", hash, k.Width, k.Density, k.Strategy)
}

func printStatus(w io.Writer, r *statusReport) {
	fmt.Fprintln(w, titleStyle.Render("Mosaic index"))
	fmt.Fprintln(w, row("Backend", r.Backend))
	if r.Backend == startup.IndexNone {
		fmt.Fprintln(w, mutedStyle.Render("Index disabled; every job renders."))
		return
	}
	fmt.Fprintln(w, row("Location", r.Location))
	fmt.Fprintln(w, row("Mosaics", r.TotalMosaics))
	if r.Pruned > 0 {
		fmt.Fprintln(w, row("Pruned", r.Pruned))
	}
	if r.LastBatchRun != nil {
		fmt.Fprintln(w, row("Last batch", r.LastBatchRun.Local().Format(time.DateTime)))
	}
	if len(r.Recent) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Recent"))
	for _, e := range r.Recent {
		fmt.Fprintf(w, "%s  %-*s  %4d thumbs  %s\n",
			mutedStyle.Render(e.CreatedAt.Local().Format(time.DateTime)),
			pathColumn, truncate(e.Input, pathColumn), e.Thumbs,
			mutedStyle.Render(e.Key))
	}
}
