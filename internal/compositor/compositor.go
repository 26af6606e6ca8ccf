package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"video-mosaic/internal/frames"
	"video-mosaic/internal/layout"
	"video-mosaic/internal/logging"
	"video-mosaic/internal/metrics"
	"video-mosaic/internal/workers"
)

// MaxCanvasPixels bounds the surface size. A 16384x16384 canvas is the
// largest output most encoders accept.
const MaxCanvasPixels = 16384 * 16384

// Options configures a Compositor.
type Options struct {
	// Workers is the number of frames decoded concurrently. Zero uses
	// workers.ForExtraction.
	Workers    int
	Background color.NRGBA
}

// Effects are the per-job styling switches.
type Effects struct {
	Border      bool
	BorderWidth int
	BorderColor color.NRGBA
	Shadow      bool
	Labels      bool
	Footer      bool
}

// DefaultEffects returns labels and footer on, with a thin white border.
func DefaultEffects() Effects {
	return Effects{
		Border:      false,
		BorderWidth: 2,
		BorderColor: color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		Shadow:      false,
		Labels:      true,
		Footer:      true,
	}
}

// ProgressFunc receives the number of thumbnails drawn so far.
type ProgressFunc func(done, total int)

// Compositor builds mosaic images from a frame source.
type Compositor struct {
	src  frames.Source
	opts Options
}

// New returns a Compositor reading frames from src.
func New(src frames.Source, opts Options) *Compositor {
	if opts.Workers <= 0 {
		opts.Workers = workers.ForExtraction()
	}
	if opts.Background == (color.NRGBA{}) {
		opts.Background = color.NRGBA{R: 18, G: 18, B: 18, A: 255}
	}
	return &Compositor{src: src, opts: opts}
}

// Workers returns the extraction concurrency limit.
func (c *Compositor) Workers() int {
	return c.opts.Workers
}

// FooterHeight returns the height of the metadata band appended below a
// canvas of the given height.
func FooterHeight(canvasHeight int) int {
	return max(24, canvasHeight/10)
}

// Compose extracts one frame per layout cell at the layout's timestamps and
// draws them onto a new canvas. The first extraction failure cancels the
// remaining work. A cancelled ctx returns ctx.Err() unwrapped.
func (c *Compositor) Compose(ctx context.Context, lay layout.Layout, path string, meta frames.Metadata, fx Effects, progress ProgressFunc) (*image.NRGBA, error) {
	canvasW, canvasH := lay.CanvasSize.Width, lay.CanvasSize.Height
	footerH := 0
	if fx.Footer {
		footerH = FooterHeight(canvasH)
	}
	if canvasW <= 0 || canvasH <= 0 {
		return nil, &Error{Kind: KindAllocFailed, Path: path, Err: fmt.Errorf("invalid canvas %dx%d", canvasW, canvasH)}
	}
	if int64(canvasW)*int64(canvasH+footerH) > MaxCanvasPixels {
		return nil, &Error{Kind: KindAllocFailed, Path: path, Err: fmt.Errorf("canvas %dx%d exceeds %d pixels", canvasW, canvasH+footerH, MaxCanvasPixels)}
	}
	if err := lay.Validate(); err != nil {
		return nil, &Error{Kind: KindAllocFailed, Path: path, Err: err}
	}

	canvas := imaging.New(canvasW, canvasH+footerH, c.opts.Background)
	timestamps := lay.Timestamps(meta.Duration)
	total := lay.ThumbCount

	// mu is the draw gate; done is only touched under it.
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)

	start := time.Now()
	for i := 0; i < total; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			decodeStart := time.Now()
			frame, err := c.src.DecodeFrame(gctx, path, timestamps[i])
			metrics.FrameDecodeDuration.Observe(time.Since(decodeStart).Seconds())
			if err != nil {
				metrics.FramesDecodedTotal.WithLabelValues("error").Inc()
				return err
			}
			metrics.FramesDecodedTotal.WithLabelValues("success").Inc()

			cell := lay.Rect(i)
			tile := renderTile(frame, cell.Dx(), cell.Dy(), fx, timestamps[i])

			if err := gctx.Err(); err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			draw.Draw(canvas, cell, tile, image.Point{}, draw.Over)
			done++
			if progress != nil {
				progress(done, total)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &Error{Kind: KindExtractionFailed, Path: path, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if footerH > 0 {
		drawFooter(canvas, image.Rect(0, canvasH, canvasW, canvasH+footerH), meta)
	}

	logging.Debug("Composed %d thumbnails for %s in %v", total, path, time.Since(start))
	return canvas, nil
}
