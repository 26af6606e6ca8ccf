package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"video-mosaic/internal/app"
	"video-mosaic/internal/batch"
	"video-mosaic/internal/density"
	"video-mosaic/internal/discovery"
	"video-mosaic/internal/layout"
	"video-mosaic/internal/logging"
	"video-mosaic/internal/mosaic"
	"video-mosaic/internal/output"
	"video-mosaic/internal/startup"
)

// runFlags are the mosaic settings accepted by the run command. Zero values
// keep the configured default.
type runFlags struct {
	width       int
	density     string
	strategy    string
	format      string
	out         string
	budget      int
	minDuration float64
	border      bool
	shadow      bool
	overwrite   bool
	preview     bool
	noRecursive bool
	hidden      bool
	jsonOut     bool
	verbose     bool
}

func parseRunFlags(args []string, stderr io.Writer) (*runFlags, []string, error) {
	f := &runFlags{}
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&f.width, "width", 0, "mosaic width in pixels")
	fs.StringVar(&f.density, "density", "", "density level: XXL, XL, L, M, S, XS or XXS")
	fs.StringVar(&f.strategy, "strategy", "", "layout strategy: classic, auto, custom or emphasis")
	fs.StringVar(&f.format, "format", "", "output format: jpg, png, webp, heic or avif")
	fs.StringVar(&f.out, "out", "", "output directory or s3:// / gs:// prefix (default: next to each video)")
	fs.IntVar(&f.budget, "budget", 0, "maximum concurrent jobs")
	fs.Float64Var(&f.minDuration, "min-duration", 0, "skip videos shorter than this many seconds")
	fs.BoolVar(&f.border, "border", false, "draw a border around each thumbnail")
	fs.BoolVar(&f.shadow, "shadow", false, "draw a drop shadow under each thumbnail")
	fs.BoolVar(&f.overwrite, "overwrite", false, "regenerate mosaics already in the index")
	fs.BoolVar(&f.preview, "preview", false, "generate a single-row preview strip")
	fs.BoolVar(&f.noRecursive, "no-recursive", false, "do not descend into subdirectories")
	fs.BoolVar(&f.hidden, "hidden", false, "include hidden files and directories")
	fs.BoolVar(&f.jsonOut, "json", false, "print results as JSON")
	fs.BoolVar(&f.verbose, "v", false, "log pipeline activity")
	if err := fs.Parse(args); err != nil {
		return nil, nil, errUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return nil, nil, errUsage
	}
	return f, fs.Args(), nil
}

// template builds the job settings shared by every discovered input and
// returns the output extension.
func (f *runFlags) template(cfg *startup.Config) (mosaic.JobRequest, string, error) {
	job := mosaic.JobRequest{
		Width:       cfg.Width,
		Density:     cfg.DensityLevel,
		Strategy:    cfg.LayoutMode,
		AddBorder:   cfg.AddBorder || f.border,
		AddShadow:   cfg.AddShadow || f.shadow,
		BorderWidth: cfg.BorderWidth,
		MinDuration: cfg.MinDuration,
		Overwrite:   f.overwrite,
		Preview:     f.preview,
	}
	if f.width > 0 {
		job.Width = f.width
	}
	if f.density != "" {
		level, err := density.Parse(f.density)
		if err != nil {
			return job, "", err
		}
		job.Density = level
	}
	if f.strategy != "" {
		strategy, err := layout.ParseStrategy(f.strategy)
		if err != nil {
			return job, "", err
		}
		job.Strategy = strategy
	}
	if f.minDuration > 0 {
		job.MinDuration = f.minDuration
	}

	ext := cfg.Format
	if f.format != "" {
		ext = strings.TrimPrefix(strings.ToLower(f.format), ".")
	}
	if _, err := output.FormatFromPath("mosaic." + ext); err != nil {
		return job, "", err
	}
	return job, ext, nil
}

func runMosaics(ctx context.Context, args []string, env cliEnv) error {
	flags, paths, err := parseRunFlags(args, env.stderr)
	if err != nil {
		return err
	}
	if flags.verbose {
		logging.SetLevel(logging.LevelInfo)
	}

	cfg, err := startup.LoadWithDefaults(cliDefaults())
	if err != nil {
		return err
	}

	tmpl, ext, err := flags.template(cfg)
	if err != nil {
		return err
	}

	format, _ := output.FormatFromPath("mosaic." + ext)
	if format.NeedsVips() {
		if err := output.InitVips(output.DefaultVipsConfig()); err != nil {
			return fmt.Errorf("%s output needs libvips: %w", ext, err)
		}
		defer output.ShutdownVips()
	}

	opts := discovery.DefaultOptions()
	opts.Recursive = !flags.noRecursive
	opts.IncludeHidden = flags.hidden
	inputs, err := discovery.Find(ctx, paths, opts)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no videos found in %s", strings.Join(paths, ", "))
	}
	jobs := discovery.Jobs(inputs, tmpl, flags.out, ext)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(env.stderr, "Warning: %v\n", err)
		}
	}()

	budget := flags.budget
	if budget <= 0 {
		budget = cfg.JobBudget
	}

	start := time.Now()
	p := newProgressPrinter(env.stdout, env.live && !flags.jsonOut, len(jobs))
	if !flags.jsonOut {
		fmt.Fprintln(env.stdout, titleStyle.Render(fmt.Sprintf("Generating %d mosaic(s), up to %d at a time", len(jobs), budget)))
	}

	var results []mosaic.JobResult
	for res := range a.Orchestrator.RunBatch(ctx, jobs, budget, p.handle) {
		results = append(results, res)
	}
	p.finish()

	s := p.summary(time.Since(start))
	if flags.jsonOut {
		if err := writeRunJSON(env.stdout, results, s); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(env.stdout, renderSummary(s))
	}

	if s.Failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", s.Failed, s.Total)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("interrupted: %w", ctx.Err())
	}
	return nil
}

// runSummary tallies terminal events for one run.
type runSummary struct {
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Cancelled int           `json:"cancelled"`
	Elapsed   time.Duration `json:"elapsed"`
	Failures  []jobFailure  `json:"failures,omitempty"`
}

type jobFailure struct {
	Input string `json:"input"`
	Error string `json:"error"`
}

func writeRunJSON(w io.Writer, results []mosaic.JobResult, s runSummary) error {
	if results == nil {
		results = []mosaic.JobResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Summary runSummary         `json:"summary"`
		Results []mosaic.JobResult `json:"results"`
	}{s, results})
}

// progressPrinter renders batch events. In live mode the current job is
// redrawn on one line; otherwise only finished jobs are printed.
type progressPrinter struct {
	w     io.Writer
	live  bool
	total int

	inputs  map[string]string
	done    int
	counts  runSummary
	lastLen int
}

func newProgressPrinter(w io.Writer, live bool, total int) *progressPrinter {
	return &progressPrinter{
		w:      w,
		live:   live,
		total:  total,
		inputs: make(map[string]string),
		counts: runSummary{Total: total},
	}
}

// handle is called from a single goroutine in event order.
func (p *progressPrinter) handle(ev batch.Event) {
	if ev.Input != "" {
		p.inputs[ev.JobID] = ev.Input
	}
	name := filepath.Base(p.inputs[ev.JobID])

	switch ev.Kind {
	case batch.EventQueued:
		return
	case batch.EventProgress:
		if p.live && ev.Progress != nil {
			p.redraw(fmt.Sprintf("[%d/%d] %s: %s %3.0f%%", p.done, p.total, name, ev.Progress.Stage, ev.Progress.Fraction*100))
		}
		return
	}

	p.done++
	var line string
	switch ev.Kind {
	case batch.EventCompleted:
		p.counts.Completed++
		out := ""
		elapsed := time.Duration(0)
		if ev.Result != nil {
			out = ev.Result.Output
			elapsed = ev.Result.Elapsed
		}
		line = okStyle.Render("done") + fmt.Sprintf("  %s -> %s ", name, out) + mutedStyle.Render(elapsed.Round(time.Millisecond).String())
	case batch.EventSkipped:
		p.counts.Skipped++
		reason := ""
		if ev.Result != nil {
			reason = ev.Result.SkipReason
		}
		line = warnStyle.Render("skip") + fmt.Sprintf("  %s ", name) + mutedStyle.Render(reason)
	case batch.EventFailed:
		p.counts.Failed++
		msg := ev.Error
		if msg == "" && ev.Err != nil {
			msg = ev.Err.Error()
		}
		p.counts.Failures = append(p.counts.Failures, jobFailure{Input: p.inputs[ev.JobID], Error: msg})
		line = errorStyle.Render("fail") + fmt.Sprintf("  %s: %s", name, msg)
	case batch.EventCancelled:
		p.counts.Cancelled++
		line = mutedStyle.Render("cancelled") + "  " + name
	default:
		return
	}

	p.clear()
	fmt.Fprintf(p.w, "[%d/%d] %s\n", p.done, p.total, line)
}

func (p *progressPrinter) redraw(s string) {
	p.clear()
	fmt.Fprint(p.w, s)
	p.lastLen = len(s)
}

func (p *progressPrinter) clear() {
	if p.live && p.lastLen > 0 {
		fmt.Fprint(p.w, "\r\033[K")
		p.lastLen = 0
	}
}

func (p *progressPrinter) finish() {
	p.clear()
}

func (p *progressPrinter) summary(elapsed time.Duration) runSummary {
	s := p.counts
	s.Elapsed = elapsed
	return s
}
