package layout

import (
	"image"
	"math"

	"video-mosaic/internal/density"
)

// emphasisRows is the starting band configuration for one density level.
type emphasisRows struct {
	cols   int
	top    int
	mid    int
	bottom int
}

var emphasisTable = map[density.Level]emphasisRows{
	density.XXS: {cols: 12, top: 3, mid: 3, bottom: 3},
	density.XS:  {cols: 10, top: 3, mid: 2, bottom: 3},
	density.S:   {cols: 8, top: 2, mid: 2, bottom: 2},
	density.M:   {cols: 6, top: 2, mid: 2, bottom: 2},
	density.L:   {cols: 6, top: 1, mid: 2, bottom: 1},
	density.XL:  {cols: 4, top: 1, mid: 1, bottom: 1},
	density.XXL: {cols: 4, top: 1, mid: 1, bottom: 1},
}

type band struct {
	rows   int
	perRow int
	size   Size
}

type emphasisGeometry struct {
	cfg    emphasisRows
	width  int
	aspect float64
	gapCap float64

	small, large Size
	largeCols    int
	gap          int
	height       int
}

func (g *emphasisGeometry) compute() bool {
	smallW := g.width / g.cfg.cols
	smallH := int(float64(smallW) / g.aspect)
	if smallW < 1 || smallH < 1 {
		return false
	}
	g.small = Size{Width: smallW, Height: smallH}
	g.largeCols = max(1, g.cfg.cols/EmphasisScale)
	largeW := smallW * EmphasisScale
	g.large = Size{Width: largeW, Height: max(1, int(float64(largeW)/g.aspect))}
	g.gap = int(math.Round(float64(smallH) * g.gapCap))

	bands := g.bands()
	g.height = 0
	nonEmpty := 0
	for _, b := range bands {
		if b.rows == 0 {
			continue
		}
		g.height += b.rows * b.size.Height
		nonEmpty++
	}
	if nonEmpty > 1 {
		g.height += (nonEmpty - 1) * g.gap
	}
	return g.height > 0
}

func (g *emphasisGeometry) bands() []band {
	return []band{
		{rows: g.cfg.top, perRow: g.cfg.cols, size: g.small},
		{rows: g.cfg.mid, perRow: g.largeCols, size: g.large},
		{rows: g.cfg.bottom, perRow: g.cfg.cols, size: g.small},
	}
}

func (g *emphasisGeometry) cells() int {
	return (g.cfg.top+g.cfg.bottom)*g.cfg.cols + g.cfg.mid*g.largeCols
}

func (g *emphasisGeometry) canvasAspect() float64 {
	return float64(g.width) / float64(g.height)
}

// solveEmphasis builds the three band contact sheet. Portrait sources trade
// columns for width because a naive grid wastes horizontal space on them;
// landscape sources grow rows until the request fits, so the canvas may end
// up taller than the target aspect.
func solveEmphasis(aspect float64, count, width int, level density.Level, opts Options) Layout {
	cfg, ok := emphasisTable[level]
	if !ok {
		cfg = emphasisTable[density.M]
	}
	gapRatio := opts.BandGapRatio
	if gapRatio < 0 {
		gapRatio = 0
	}
	g := &emphasisGeometry{
		width:  width,
		aspect: aspect,
		gapCap: math.Min(gapRatio, EmphasisPaddingCap),
		cfg:    cfg,
	}
	target := opts.targetAspect()

	if aspect < 1 {
		g.cfg.cols *= 2
		g.cfg.top = max(1, g.cfg.top/2)
		g.cfg.bottom = max(1, g.cfg.bottom/2)
		if !g.compute() {
			return Layout{}
		}
		for g.canvasAspect() < target && g.cfg.cols < MaxEmphasisCols {
			g.cfg.cols++
			if !g.compute() {
				return Layout{}
			}
		}
	} else {
		if !g.compute() {
			return Layout{}
		}
		// Shrink first when the table alone overshoots the request.
		for g.cells() > count && g.totalRows() > 3 {
			g.dropRow()
			g.compute()
		}
		for step := 0; g.cells() < count && g.totalRows() < MaxEmphasisRows; step++ {
			switch step % 3 {
			case 0:
				g.cfg.top++
			case 1:
				g.cfg.bottom++
			default:
				g.cfg.mid++
			}
			g.compute()
		}
	}

	return g.build(count)
}

func (g *emphasisGeometry) totalRows() int {
	return g.cfg.top + g.cfg.mid + g.cfg.bottom
}

func (g *emphasisGeometry) dropRow() {
	switch {
	case g.cfg.top >= g.cfg.bottom && g.cfg.top >= g.cfg.mid && g.cfg.top > 1:
		g.cfg.top--
	case g.cfg.bottom >= g.cfg.mid && g.cfg.bottom > 1:
		g.cfg.bottom--
	case g.cfg.mid > 1:
		g.cfg.mid--
	case g.cfg.top > 1:
		g.cfg.top--
	}
}

func (g *emphasisGeometry) build(count int) Layout {
	total := min(count, g.cells())
	l := Layout{
		Strategy:   Custom,
		Rows:       g.totalRows(),
		Cols:       g.cfg.cols,
		ThumbCount: total,
		Positions:  make([]image.Point, 0, total),
		Sizes:      make([]Size, 0, total),
		CanvasSize: Size{Width: g.width, Height: g.height},
	}

	y := 0
	placed := 0
	for _, b := range g.bands() {
		if b.rows == 0 {
			continue
		}
		if placed >= total {
			break
		}
		offsetX := (g.width - b.perRow*b.size.Width) / 2
		section := Section{StartIndex: placed, ThumbsPerRow: b.perRow, ThumbSize: b.size}
		for r := 0; r < b.rows && placed < total; r++ {
			for c := 0; c < b.perRow && placed < total; c++ {
				l.Positions = append(l.Positions, image.Pt(offsetX+c*b.size.Width, y+r*b.size.Height))
				l.Sizes = append(l.Sizes, b.size)
				placed++
				section.Count++
			}
		}
		l.Sections = append(l.Sections, section)
		y += b.rows*b.size.Height + g.gap
	}

	// Time ranges are proportional to each band's share of the thumbnails.
	start := 0.0
	for i := range l.Sections {
		share := float64(l.Sections[i].Count) / float64(total)
		end := start + share
		if i == len(l.Sections)-1 {
			end = 1
		}
		l.Sections[i].TimeRange = [2]float64{start, end}
		start = end
	}
	return l
}
