package layout

import (
	"image"
	"math"

	"video-mosaic/internal/density"
)

// Tunables. The auto weights and emphasis bounds are product decisions and
// are kept as named values rather than derived.
const (
	DefaultTargetAspect = 16.0 / 9.0
	DefaultWidth        = 1920
	DefaultBandGapRatio = 0.05

	// EmphasisPaddingCap caps the band gap at this fraction of the small
	// thumbnail height.
	EmphasisPaddingCap = 0.15
	MaxEmphasisCols    = 24
	MaxEmphasisRows    = 40
	// EmphasisScale is the linear scale of middle-band thumbnails.
	EmphasisScale = 2

	AutoCoverageWeight    = 0.4
	AutoReadabilityWeight = 0.4
	AutoAspectWeight      = 0.2
	// ReadabilityTarget is the multiple of the minimum legible height at
	// which readability saturates.
	ReadabilityTarget       = 2.0
	MinThumbPointsLandscape = 160
	MinThumbPointsPortrait  = 200
)

// Screen describes the display the auto strategy sizes against. Width and
// Height are in points; Scale converts points to pixels.
type Screen struct {
	Width  int     `json:"width" koanf:"width"`
	Height int     `json:"height" koanf:"height"`
	Scale  float64 `json:"scale" koanf:"scale"`
}

// Valid reports whether s describes a usable display.
func (s *Screen) Valid() bool {
	return s != nil && s.Width > 0 && s.Height > 0
}

// Pixels returns the display size in pixels.
func (s *Screen) Pixels() Size {
	scale := s.Scale
	if scale <= 0 {
		scale = 1
	}
	return Size{
		Width:  int(float64(s.Width) * scale),
		Height: int(float64(s.Height) * scale),
	}
}

// Options tunes Solve.
type Options struct {
	TargetAspect float64
	Screen       *Screen
	BandGapRatio float64
}

// DefaultOptions returns a 16:9 target without a screen.
func DefaultOptions() Options {
	return Options{
		TargetAspect: DefaultTargetAspect,
		BandGapRatio: DefaultBandGapRatio,
	}
}

func (o Options) targetAspect() float64 {
	if o.TargetAspect <= 0 || math.IsNaN(o.TargetAspect) || math.IsInf(o.TargetAspect, 0) {
		return DefaultTargetAspect
	}
	return o.TargetAspect
}

// Solve places count thumbnails of the given aspect ratio on a canvas of
// the given width. It never fails: when a strategy cannot produce a valid
// layout it degrades to the classic grid. The returned ThumbCount may be
// lower than count when the geometry cannot fit every thumbnail, never
// higher.
func Solve(aspect float64, count, width int, strategy Strategy, level density.Level, opts Options) Layout {
	if aspect <= 0 || math.IsNaN(aspect) || math.IsInf(aspect, 0) {
		aspect = DefaultTargetAspect
	}
	if count < 1 {
		count = 1
	}
	if width < 1 {
		width = DefaultWidth
	}

	var l Layout
	switch strategy {
	case Custom:
		l = solveEmphasis(aspect, count, width, level, opts)
	case Auto:
		l = solveAuto(aspect, count, width, opts)
	default:
		l = solveClassic(aspect, count, width, opts.targetAspect())
	}

	if l.ThumbCount == 0 || l.Validate() != nil {
		l = solveClassic(aspect, count, width, opts.targetAspect())
	}
	return l
}

// Strip lays count thumbnails out in a single row, used for previews.
func Strip(aspect float64, count, width int) Layout {
	if aspect <= 0 || math.IsNaN(aspect) {
		aspect = DefaultTargetAspect
	}
	if count < 1 {
		count = 1
	}
	if width < 1 {
		width = DefaultWidth
	}
	thumbW := width / count
	if thumbW < 1 {
		thumbW = 1
		count = width
	}
	thumbH := max(1, int(float64(thumbW)/aspect))
	l := grid(count, 1, count, thumbW, thumbH, Size{Width: width, Height: thumbH}, image.Point{})
	l.Strategy = Classic
	return l
}

type classicCandidate struct {
	rows, cols     int
	thumbW, thumbH int
	actual         int
	score          float64
}

func solveClassic(aspect float64, count, width int, targetAspect float64) Layout {
	canvasH := int(math.Round(float64(width) / targetAspect))
	if canvasH < 1 {
		canvasH = 1
	}

	var best *classicCandidate
	for rows := 1; rows <= count; rows++ {
		cols := ceilDiv(count, rows)
		thumbW := width / cols
		thumbH := int(float64(thumbW) / aspect)
		if thumbW < 1 || thumbH < 1 {
			continue
		}

		adjustedRows := min(rows, ceilDiv(canvasH, thumbH))
		actual := min(count, adjustedRows*cols)
		fill := float64(adjustedRows*thumbH) / float64(canvasH)
		score := math.Abs(1-fill) + math.Abs(float64(actual-count))/float64(count)

		if best == nil || score < best.score {
			best = &classicCandidate{rows: adjustedRows, cols: cols, thumbW: thumbW, thumbH: thumbH, actual: actual, score: score}
		}

		if rows*thumbH > canvasH {
			break
		}
	}

	if best == nil {
		// Too many thumbnails for the width; a single thumbnail still beats
		// an empty mosaic.
		thumbH := max(1, int(float64(width)/aspect))
		l := grid(1, 1, 1, width, thumbH, Size{Width: width, Height: max(canvasH, thumbH)}, image.Point{})
		l.Strategy = Classic
		return l
	}

	usedRows := ceilDiv(best.actual, best.cols)
	canvas := Size{Width: width, Height: max(canvasH, usedRows*best.thumbH)}
	offset := image.Pt((width-best.cols*best.thumbW)/2, 0)
	l := grid(best.actual, usedRows, best.cols, best.thumbW, best.thumbH, canvas, offset)
	l.Strategy = Classic
	return l
}

// grid lays n thumbnails row-major starting at offset.
func grid(n, rows, cols, thumbW, thumbH int, canvas Size, offset image.Point) Layout {
	l := Layout{
		Rows:       rows,
		Cols:       cols,
		ThumbCount: n,
		Positions:  make([]image.Point, 0, n),
		Sizes:      make([]Size, 0, n),
		CanvasSize: canvas,
	}
	for i := 0; i < n; i++ {
		r, c := i/cols, i%cols
		l.Positions = append(l.Positions, image.Pt(offset.X+c*thumbW, offset.Y+r*thumbH))
		l.Sizes = append(l.Sizes, Size{Width: thumbW, Height: thumbH})
	}
	return l
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
