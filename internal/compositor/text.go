package compositor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"video-mosaic/internal/frames"
	"video-mosaic/internal/logging"
)

const minLabelPoints = 9

var (
	fontOnce sync.Once
	fontData *opentype.Font
	fontErr  error
)

func regularFont() (*opentype.Font, error) {
	fontOnce.Do(func() {
		fontData, fontErr = opentype.Parse(goregular.TTF)
	})
	return fontData, fontErr
}

// newFace returns a face of the given pixel size. Faces are not safe for
// concurrent use, so every tile gets its own.
func newFace(size float64) (font.Face, error) {
	f, err := regularFont()
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// FormatTimestamp renders seconds as HH:MM:SS.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

func drawTimestamp(dst *image.NRGBA, inner image.Rectangle, ts float64) {
	size := math.Max(minLabelPoints, float64(inner.Dy())*0.09)
	face, err := newFace(size)
	if err != nil {
		logging.Warn("Label font unavailable: %v", err)
		return
	}
	defer face.Close()

	text := FormatTimestamp(ts)
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(color.White), Face: face}
	metrics := face.Metrics()
	textW := d.MeasureString(text).Ceil()
	textH := (metrics.Ascent + metrics.Descent).Ceil()
	pad := max(2, textH/4)

	strip := image.Rect(inner.Min.X, inner.Max.Y-textH-2*pad, inner.Min.X+textW+2*pad, inner.Max.Y).Intersect(inner)
	if strip.Empty() {
		return
	}
	draw.Draw(dst, strip, &image.Uniform{C: color.NRGBA{A: 150}}, image.Point{}, draw.Over)

	d.Dot = fixed.P(strip.Min.X+pad, strip.Max.Y-pad-metrics.Descent.Ceil())
	d.DrawString(text)
}

// FooterText summarises the source video for the footer band.
func FooterText(meta frames.Metadata) string {
	parts := []string{filepath.Base(meta.SourcePath)}
	if meta.Codec != "" {
		parts = append(parts, meta.Codec)
	}
	if meta.Width > 0 && meta.Height > 0 {
		parts = append(parts, meta.Resolution())
	}
	parts = append(parts, FormatTimestamp(meta.Duration))
	return strings.Join(parts, "  |  ")
}

func drawFooter(dst *image.NRGBA, band image.Rectangle, meta frames.Metadata) {
	draw.Draw(dst, band, &image.Uniform{C: color.NRGBA{R: 30, G: 30, B: 30, A: 255}}, image.Point{}, draw.Src)

	face, err := newFace(math.Max(minLabelPoints, float64(band.Dy())*0.4))
	if err != nil {
		logging.Warn("Footer font unavailable: %v", err)
		return
	}
	defer face.Close()

	m := face.Metrics()
	textH := (m.Ascent + m.Descent).Ceil()
	baseline := band.Min.Y + (band.Dy()-textH)/2 + m.Ascent.Ceil()
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.NRGBA{R: 220, G: 220, B: 220, A: 255}),
		Face: face,
		Dot:  fixed.P(band.Min.X+band.Dy()/2, baseline),
	}
	d.DrawString(FooterText(meta))
}
