package mosaic

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"sync"
	"time"

	"video-mosaic/internal/compositor"
	"video-mosaic/internal/density"
	"video-mosaic/internal/filesystem"
	"video-mosaic/internal/frames"
	"video-mosaic/internal/layout"
	"video-mosaic/internal/logging"
	"video-mosaic/internal/metrics"
	"video-mosaic/internal/output"
)

// Options configures an Engine.
type Options struct {
	Layout layout.Options
	// Workers is the default per-job extraction limit. Zero uses
	// workers.ForExtraction.
	Workers    int
	Quality    int
	Background color.NRGBA
	Labels     bool
	Footer     bool
	Retry      filesystem.RetryConfig
}

// DefaultOptions returns labels and footer on with default layout tuning.
func DefaultOptions() Options {
	return Options{
		Layout:  layout.DefaultOptions(),
		Quality: output.DefaultQuality,
		Labels:  true,
		Footer:  true,
		Retry:   filesystem.DefaultRetryConfig(),
	}
}

// Engine generates mosaics. It is safe for concurrent use.
type Engine struct {
	src     frames.Source
	index   Index
	writer  Writer
	encoder *output.Encoder
	opts    Options

	mu       sync.Mutex
	inFlight map[Key]string
}

// New returns an Engine. index may be nil, which disables deduplication.
func New(src frames.Source, index Index, writer Writer, opts Options) *Engine {
	if opts.Retry.MaxRetries == 0 && opts.Retry.InitialBackoff == 0 {
		opts.Retry = filesystem.DefaultRetryConfig()
	}
	return &Engine{
		src:      src,
		index:    index,
		writer:   writer,
		encoder:  output.NewEncoder(opts.Quality),
		opts:     opts,
		inFlight: make(map[Key]string),
	}
}

// SolveLayout computes a layout without touching any video.
func (e *Engine) SolveLayout(aspect float64, count, width int, strategy layout.Strategy, level density.Level) layout.Layout {
	return layout.Solve(aspect, count, width, strategy, level, e.opts.Layout)
}

// job carries the per-request state shared by the mosaic and preview paths.
type job struct {
	req      JobRequest
	log      logging.Logger
	progress ProgressFunc
	start    time.Time
	meta     frames.Metadata
	format   output.Format
}

func (j *job) report(stage Stage, fraction float64, eta *time.Duration) {
	if j.progress == nil {
		return
	}
	j.progress(Progress{JobID: j.req.ID, Stage: stage, Fraction: fraction, ETA: eta})
}

// ComposeMosaic generates the full mosaic for req. A job that is already in
// the index, or identical to one currently running, returns a result with
// Skipped set and a nil error.
func (e *Engine) ComposeMosaic(ctx context.Context, req JobRequest, progress ProgressFunc) (res *JobResult, err error) {
	j, err := e.prepare(ctx, req, progress)
	defer func() { observeOutcome(res, err) }()
	if err != nil {
		return nil, err
	}
	width := j.req.Width

	hash := ContentHash(j.req.Input, j.meta)
	key := Key{ContentHash: hash, Width: width, Density: j.req.Density, Strategy: j.req.Strategy}

	// The key is held across the index lookup; an identical job that has
	// released it has already recorded.
	if !e.acquire(key, j.req.ID) {
		j.log.Info("Identical job already running for %s", j.req.Input)
		return j.skipped(hash, "identical job in progress"), nil
	}
	defer e.release(key)
	if reason, skip := e.checkIndex(ctx, j, key); skip {
		return j.skipped(hash, reason), nil
	}

	stageStart := time.Now()
	count := e.thumbnailCount(j.meta, width, j.req.Strategy, j.req.Density)
	lay := e.SolveLayout(j.meta.Aspect(), count, width, j.req.Strategy, j.req.Density)
	metrics.MosaicStageDuration.WithLabelValues("layout").Observe(time.Since(stageStart).Seconds())
	j.log.Debug("Layout %s: %dx%d grid, %d thumbnails on %s", lay.Strategy, lay.Rows, lay.Cols, lay.ThumbCount, lay.CanvasSize)

	fx := e.effects(j.req)
	location, size, err := e.render(ctx, j, lay, fx)
	if err != nil {
		return nil, err
	}

	rec := Record{
		Key:       key,
		Input:     j.req.Input,
		Output:    location,
		Metadata:  j.meta,
		Layout:    lay,
		CreatedAt: time.Now().UTC(),
	}
	if e.index != nil {
		// The mosaic exists now; its provenance is recorded even if the
		// caller has since cancelled.
		if err := e.index.Record(context.WithoutCancel(ctx), rec); err != nil {
			metrics.IndexWriteErrors.Inc()
			j.log.Warn("Failed to record mosaic for %s: %v", j.req.Input, err)
		}
	}

	elapsed := time.Since(j.start)
	metrics.MosaicJobDuration.WithLabelValues(j.req.Strategy.String()).Observe(elapsed.Seconds())
	metrics.MosaicThumbnails.Observe(float64(lay.ThumbCount))
	metrics.MosaicOutputBytes.WithLabelValues(string(j.format)).Observe(float64(size))
	j.log.Info("Mosaic for %s written to %s (%d thumbnails, %v)", j.req.Input, location, lay.ThumbCount, elapsed.Round(time.Millisecond))

	return &JobResult{
		JobID:       j.req.ID,
		Input:       j.req.Input,
		Output:      location,
		ContentHash: hash,
		Elapsed:     elapsed,
		Layout:      lay,
	}, nil
}

// ComposePreview generates a single-row strip of PreviewCount frames. It
// bypasses the index.
func (e *Engine) ComposePreview(ctx context.Context, req JobRequest, progress ProgressFunc) (res *JobResult, err error) {
	j, err := e.prepare(ctx, req, progress)
	defer func() { observeOutcome(res, err) }()
	if err != nil {
		return nil, err
	}

	count := density.PreviewCount(j.meta.Duration, j.req.Density)
	lay := layout.Strip(j.meta.Aspect(), count, j.req.Width)

	fx := e.effects(j.req)
	fx.Footer = false
	location, _, err := e.render(ctx, j, lay, fx)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(j.start)
	j.log.Info("Preview for %s written to %s (%d frames, %v)", j.req.Input, location, lay.ThumbCount, elapsed.Round(time.Millisecond))
	return &JobResult{
		JobID:       j.req.ID,
		Input:       j.req.Input,
		Output:      location,
		ContentHash: ContentHash(j.req.Input, j.meta),
		Elapsed:     elapsed,
		Layout:      lay,
	}, nil
}

// prepare validates the request and loads metadata.
func (e *Engine) prepare(ctx context.Context, req JobRequest, progress ProgressFunc) (*job, error) {
	j := &job{
		req:      req,
		log:      logging.With("job " + shortID(req.ID)),
		progress: progress,
		start:    time.Now(),
	}
	if j.req.Width <= 0 {
		j.req.Width = layout.DefaultWidth
	}

	j.report(StageDiscovering, 0, nil)
	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}

	if !j.req.Density.Valid() {
		return nil, &InputError{Path: req.Input, Reason: fmt.Sprintf("invalid density %d", int(req.Density))}
	}
	format, err := output.FormatFromPath(req.Output)
	if err != nil {
		return nil, &InputError{Path: req.Input, Reason: "bad output target", Err: err}
	}
	j.format = format

	info, err := filesystem.StatWithRetry(req.Input, e.opts.Retry)
	if err != nil {
		return nil, &InputError{Path: req.Input, Reason: "cannot stat input", Err: err}
	}
	if info.IsDir() {
		return nil, &InputError{Path: req.Input, Reason: "input is a directory"}
	}

	stageStart := time.Now()
	meta, err := e.src.LoadMetadata(ctx, req.Input)
	metrics.MosaicStageDuration.WithLabelValues("metadata").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}
		return nil, &InputError{Path: req.Input, Reason: "cannot read metadata", Err: err}
	}
	if req.MinDuration > 0 && meta.Duration < req.MinDuration {
		return nil, &InputError{
			Path:   req.Input,
			Reason: fmt.Sprintf("duration %.1fs below minimum %.1fs", meta.Duration, req.MinDuration),
		}
	}
	j.meta = meta
	j.report(StageDiscovering, 1, nil)
	return j, nil
}

// checkIndex consults the dedup index. Index errors are logged and treated
// as a miss.
func (e *Engine) checkIndex(ctx context.Context, j *job, key Key) (string, bool) {
	if e.index == nil {
		return "", false
	}
	if j.req.Overwrite {
		metrics.DedupChecksTotal.WithLabelValues("bypass").Inc()
		return "", false
	}

	exists, err := e.index.Exists(ctx, key)
	switch {
	case err != nil:
		metrics.DedupChecksTotal.WithLabelValues("error").Inc()
		j.log.Warn("Dedup lookup failed for %s: %v", j.req.Input, err)
		return "", false
	case exists:
		metrics.DedupChecksTotal.WithLabelValues("hit").Inc()
		j.log.Info("Mosaic already generated for %s", j.req.Input)
		return "already generated", true
	default:
		metrics.DedupChecksTotal.WithLabelValues("miss").Inc()
		return "", false
	}
}

func (e *Engine) acquire(key Key, jobID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[key]; busy {
		return false
	}
	e.inFlight[key] = jobID
	return true
}

func (e *Engine) release(key Key) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, key)
}

// thumbnailCount uses the screen grid for auto layouts when a screen is
// configured, and the duration formula otherwise.
func (e *Engine) thumbnailCount(meta frames.Metadata, width int, strategy layout.Strategy, level density.Level) int {
	if strategy == layout.Auto && e.opts.Layout.Screen.Valid() {
		cols, rows := layout.ScreenGrid(meta.Aspect(), e.opts.Layout.Screen)
		if cols > 0 && rows > 0 {
			return density.ScreenCount(cols, rows)
		}
	}
	return density.Count(meta.Duration, width, level)
}

func (e *Engine) effects(req JobRequest) compositor.Effects {
	fx := compositor.DefaultEffects()
	fx.Border = req.AddBorder
	fx.Shadow = req.AddShadow
	if req.BorderWidth > 0 {
		fx.BorderWidth = req.BorderWidth
	}
	if req.BorderColor != (color.NRGBA{}) {
		fx.BorderColor = req.BorderColor
	}
	fx.Labels = e.opts.Labels
	fx.Footer = e.opts.Footer
	return fx
}

// render composes, encodes and writes one layout. It returns the written
// location and the encoded size.
func (e *Engine) render(ctx context.Context, j *job, lay layout.Layout, fx compositor.Effects) (string, int, error) {
	workers := e.opts.Workers
	if j.req.MaxConcurrency > 0 {
		workers = j.req.MaxConcurrency
	}
	comp := compositor.New(e.src, compositor.Options{Workers: workers, Background: e.opts.Background})

	stageStart := time.Now()
	j.report(StageExtracting, 0, nil)
	img, err := comp.Compose(ctx, lay, j.req.Input, j.meta, fx, func(done, total int) {
		elapsed := time.Since(stageStart)
		eta := time.Duration(float64(elapsed) / float64(done) * float64(total-done))
		j.report(StageExtracting, float64(done)/float64(total), &eta)
	})
	metrics.MosaicStageDuration.WithLabelValues("compose").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, cancelled(ctx)
		}
		return "", 0, err
	}
	j.report(StageCompositing, 1, nil)

	stageStart = time.Now()
	j.report(StageSaving, 0, nil)
	data, err := e.encoder.Encode(img, j.format)
	metrics.MosaicStageDuration.WithLabelValues("encode").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		return "", 0, &compositor.Error{Kind: compositor.KindEncodeFailed, Path: j.req.Input, Err: err}
	}
	if ctx.Err() != nil {
		return "", 0, cancelled(ctx)
	}

	stageStart = time.Now()
	location, err := e.writer.Write(ctx, j.req.Output, data, j.format.ContentType())
	metrics.MosaicStageDuration.WithLabelValues("write").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, cancelled(ctx)
		}
		return "", 0, &compositor.Error{Kind: compositor.KindEncodeFailed, Path: j.req.Input, Err: err}
	}
	j.report(StageSaving, 1, nil)
	return location, len(data), nil
}

func (j *job) skipped(hash, reason string) *JobResult {
	return &JobResult{
		JobID:       j.req.ID,
		Input:       j.req.Input,
		Output:      j.req.Output,
		ContentHash: hash,
		Elapsed:     time.Since(j.start),
		Skipped:     true,
		SkipReason:  reason,
	}
}

// observeOutcome counts the job by its terminal status.
func observeOutcome(res *JobResult, err error) {
	var status string
	switch {
	case err == nil && res != nil && res.Skipped:
		status = "skipped"
	case err == nil:
		status = "completed"
	case errors.Is(err, ErrCancelled):
		status = "cancelled"
	default:
		status = "failed"
	}
	metrics.MosaicJobsTotal.WithLabelValues(status).Inc()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}
