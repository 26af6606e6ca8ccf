package compositor

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// renderTile styles a decoded frame into a w x h tile. The border and
// shadow are inset into the tile so nothing spills into neighbouring cells.
func renderTile(frame image.Image, w, h int, fx Effects, ts float64) *image.NRGBA {
	tile := image.NewNRGBA(image.Rect(0, 0, w, h))

	border := 0
	if fx.Border && fx.BorderWidth > 0 {
		border = fx.BorderWidth
	}
	shadow := 0
	if fx.Shadow {
		shadow = max(2, min(w, h)/40)
	}

	// Inner frame area after reserving the halo.
	inner := image.Rect(border, border, w-border-shadow, h-border-shadow)
	if inner.Dx() < 1 || inner.Dy() < 1 {
		inner = image.Rect(0, 0, w, h)
		border, shadow = 0, 0
	}
	framed := inner.Inset(-border)

	if shadow > 0 {
		drawShadow(tile, framed.Add(image.Pt(shadow, shadow)), float64(shadow)/2)
	}
	if border > 0 {
		draw.Draw(tile, framed, &image.Uniform{C: fx.BorderColor}, image.Point{}, draw.Src)
	}

	fitted := frame
	if b := frame.Bounds(); b.Dx() != inner.Dx() || b.Dy() != inner.Dy() {
		fitted = imaging.Fill(frame, inner.Dx(), inner.Dy(), imaging.Center, imaging.Lanczos)
	}
	draw.Draw(tile, inner, fitted, fitted.Bounds().Min, draw.Src)

	if fx.Labels {
		drawTimestamp(tile, inner, ts)
	}
	return tile
}

func drawShadow(dst *image.NRGBA, r image.Rectangle, sigma float64) {
	layer := image.NewNRGBA(dst.Bounds())
	draw.Draw(layer, r.Intersect(layer.Bounds()), &image.Uniform{C: color.NRGBA{A: 140}}, image.Point{}, draw.Src)
	if sigma > 0 {
		layer = imaging.Blur(layer, sigma)
	}
	draw.Draw(dst, dst.Bounds(), layer, image.Point{}, draw.Over)
}
