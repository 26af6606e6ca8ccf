package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"video-mosaic/internal/density"
	"video-mosaic/internal/layout"
	"video-mosaic/internal/startup"
)

type layoutOutput struct {
	Layout     layout.Layout `json:"layout"`
	Count      int           `json:"count"`
	FillRatio  float64       `json:"fillRatio"`
	Timestamps []float64     `json:"timestamps,omitempty"`
}

func runLayout(args []string, env cliEnv) error {
	defaults := startup.DefaultConfig()

	fs := flag.NewFlagSet("layout", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	aspect := fs.Float64("aspect", 0, "video aspect ratio, e.g. 1.7778")
	video := fs.String("video", "", "video resolution WxH, used when -aspect is not set")
	count := fs.Int("count", 0, "thumbnail count; zero derives it from -duration")
	duration := fs.Float64("duration", 0, "video duration in seconds")
	width := fs.Int("width", defaults.Width, "mosaic width in pixels")
	levelName := fs.String("density", defaults.Density, "density level")
	strategyName := fs.String("strategy", defaults.Strategy, "layout strategy")
	screen := fs.String("screen", "", "screen for the auto strategy, WxH or WxH@scale")
	timestamps := fs.Bool("timestamps", false, "print the timestamp of each cell")
	jsonOut := fs.Bool("json", false, "print the layout as JSON")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *aspect <= 0 && *video != "" {
		w, h, err := parseSize(*video)
		if err != nil {
			return fmt.Errorf("invalid -video: %w", err)
		}
		*aspect = float64(w) / float64(h)
	}
	if *aspect <= 0 {
		return fmt.Errorf("-aspect or -video is required")
	}
	if *width <= 0 {
		return fmt.Errorf("-width must be positive")
	}

	level, err := density.Parse(*levelName)
	if err != nil {
		return err
	}
	strategy, err := layout.ParseStrategy(*strategyName)
	if err != nil {
		return err
	}

	opts := layout.DefaultOptions()
	if *screen != "" {
		s, err := parseScreen(*screen)
		if err != nil {
			return fmt.Errorf("invalid -screen: %w", err)
		}
		opts.Screen = &s
	}

	n := *count
	if n <= 0 {
		if *duration <= 0 {
			return fmt.Errorf("-count or -duration is required")
		}
		n = density.Count(*duration, *width, level)
	}

	l := layout.Solve(*aspect, n, *width, strategy, level, opts)
	out := layoutOutput{Layout: l, Count: l.ThumbCount, FillRatio: l.FillRatio()}
	if *duration > 0 {
		out.Timestamps = l.Timestamps(*duration)
	}

	if *jsonOut {
		enc := json.NewEncoder(env.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w := env.stdout
	fmt.Fprintln(w, titleStyle.Render("Layout"))
	fmt.Fprintln(w, row("Strategy", l.Strategy))
	fmt.Fprintln(w, row("Canvas", l.CanvasSize))
	fmt.Fprintln(w, row("Grid", fmt.Sprintf("%d rows x %d cols", l.Rows, l.Cols)))
	fmt.Fprintln(w, row("Thumbnails", l.ThumbCount))
	if len(l.Sizes) > 0 {
		fmt.Fprintln(w, row("Thumb size", l.Sizes[0]))
	}
	fmt.Fprintln(w, row("Fill", fmt.Sprintf("%.1f%%", out.FillRatio*100)))
	for i, s := range l.Sections {
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("  band %d: %d thumbs, %d per row at %s, %.1fs-%.1fs",
			i+1, s.Count, s.ThumbsPerRow, s.ThumbSize, s.TimeRange[0], s.TimeRange[1])))
	}
	if *timestamps {
		for i, ts := range out.Timestamps {
			fmt.Fprintf(w, "  %3d  %s\n", i+1, formatTimestamp(ts))
		}
	}
	return nil
}

// parseSize parses "WxH".
func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("%q is not WxH", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("%q is not WxH", s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("%q is not WxH", s)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%q must be positive", s)
	}
	return w, h, nil
}

// parseScreen parses "WxH" or "WxH@scale".
func parseScreen(s string) (layout.Screen, error) {
	size, scaleStr, hasScale := strings.Cut(s, "@")
	w, h, err := parseSize(size)
	if err != nil {
		return layout.Screen{}, err
	}
	screen := layout.Screen{Width: w, Height: h, Scale: 1}
	if hasScale {
		scale, err := strconv.ParseFloat(scaleStr, 64)
		if err != nil || scale <= 0 {
			return layout.Screen{}, fmt.Errorf("invalid scale %q", scaleStr)
		}
		screen.Scale = scale
	}
	return screen, nil
}

func formatTimestamp(sec float64) string {
	total := int(sec)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
