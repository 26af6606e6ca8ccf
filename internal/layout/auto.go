package layout

import (
	"image"
	"math"
)

// MinThumbSize returns the smallest legible thumbnail, in pixels, for a
// source of the given aspect on screen. Portrait sources are bounded by
// height, landscape sources by width.
func MinThumbSize(aspect float64, screen *Screen) Size {
	scale := 1.0
	if screen != nil && screen.Scale > 0 {
		scale = screen.Scale
	}
	if aspect < 1 {
		h := int(MinThumbPointsPortrait * scale)
		return Size{Width: max(1, int(float64(h)*aspect)), Height: h}
	}
	w := int(MinThumbPointsLandscape * scale)
	return Size{Width: w, Height: max(1, int(float64(w)/aspect))}
}

// ScreenGrid returns how many legible thumbnails fit across and down the
// screen.
func ScreenGrid(aspect float64, screen *Screen) (maxCols, maxRows int) {
	if !screen.Valid() {
		return 0, 0
	}
	px := screen.Pixels()
	minSize := MinThumbSize(aspect, screen)
	return max(1, px.Width/minSize.Width), max(1, px.Height/minSize.Height)
}

type autoCandidate struct {
	rows, cols     int
	thumbW, thumbH int
	score          float64
}

func solveAuto(aspect float64, count, width int, opts Options) Layout {
	screen := opts.Screen
	if !screen.Valid() {
		return solveClassic(aspect, count, width, opts.targetAspect())
	}
	px := screen.Pixels()
	maxCols, maxRows := ScreenGrid(aspect, screen)
	minSize := MinThumbSize(aspect, screen)
	screenAspect := float64(px.Width) / float64(px.Height)

	var best *autoCandidate
	for rows := 1; rows <= maxRows; rows++ {
		for cols := 1; cols <= maxCols; cols++ {
			if rows*cols < count {
				continue
			}
			thumbW := px.Width / cols
			thumbH := int(float64(thumbW) / aspect)
			if rows*thumbH > px.Height {
				thumbH = px.Height / rows
				thumbW = int(float64(thumbH) * aspect)
			}
			if thumbW < 1 || thumbH < 1 {
				continue
			}

			coverage := float64(count*thumbW*thumbH) / float64(px.Width*px.Height)
			readability := math.Min(1, float64(thumbH)/(ReadabilityTarget*float64(minSize.Height)))
			gridAspect := float64(cols*thumbW) / float64(rows*thumbH)
			aspectPref := math.Min(gridAspect, screenAspect) / math.Max(gridAspect, screenAspect)

			score := AutoCoverageWeight*coverage + AutoReadabilityWeight*readability + AutoAspectWeight*aspectPref
			if best == nil || score > best.score {
				best = &autoCandidate{rows: rows, cols: cols, thumbW: thumbW, thumbH: thumbH, score: score}
			}
		}
	}

	if best == nil {
		return solveClassic(aspect, count, px.Width, opts.targetAspect())
	}

	usedRows := ceilDiv(count, best.cols)
	offset := image.Pt((px.Width-best.cols*best.thumbW)/2, (px.Height-usedRows*best.thumbH)/2)
	l := grid(count, usedRows, best.cols, best.thumbW, best.thumbH, px, offset)
	l.Strategy = Auto
	return l
}
