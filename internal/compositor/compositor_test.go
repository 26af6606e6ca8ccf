package compositor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"video-mosaic/internal/density"
	"video-mosaic/internal/frames"
	"video-mosaic/internal/layout"
)

// fakeSource returns a solid frame whose colour is derived from the
// timestamp.
type fakeSource struct {
	maxDelay time.Duration
	failAt   int // fail the n-th call (1-based), 0 never
	block    bool

	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32

	mu  sync.Mutex
	rng *rand.Rand
}

func (f *fakeSource) LoadMetadata(_ context.Context, path string) (frames.Metadata, error) {
	return frames.Metadata{Duration: 600, Width: 1920, Height: 1080, Codec: "h264", SourcePath: path}, nil
}

func (f *fakeSource) DecodeFrame(ctx context.Context, _ string, ts float64) (image.Image, error) {
	n := f.calls.Add(1)
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.maxDelay > 0 {
		f.mu.Lock()
		d := time.Duration(f.rng.Int63n(int64(f.maxDelay)))
		f.mu.Unlock()
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failAt > 0 && int(n) == f.failAt {
		return nil, &frames.DecodeError{Path: "v.mp4", Timestamp: ts, Err: errors.New("corrupt packet")}
	}

	v := uint8(int(ts) % 256)
	img := image.NewNRGBA(image.Rect(0, 0, 64, 36))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, 255-v, v/2, 255
	}
	return img, nil
}

func testLayout(strategy layout.Strategy) layout.Layout {
	return layout.Solve(16.0/9.0, 40, 960, strategy, density.M, layout.DefaultOptions())
}

func testMeta() frames.Metadata {
	return frames.Metadata{Duration: 600, Width: 1920, Height: 1080, Codec: "h264", SourcePath: "/videos/v.mp4"}
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestCompose_DrawOrderIndependence(t *testing.T) {
	fx := Effects{Border: true, BorderWidth: 2, BorderColor: color.NRGBA{R: 255, G: 255, B: 255, A: 255}, Shadow: true, Labels: true, Footer: true}

	for _, strategy := range []layout.Strategy{layout.Classic, layout.Custom} {
		t.Run(strategy.String(), func(t *testing.T) {
			lay := testLayout(strategy)

			serial := New(&fakeSource{}, Options{Workers: 1})
			want, err := serial.Compose(context.Background(), lay, "v.mp4", testMeta(), fx, nil)
			if err != nil {
				t.Fatalf("serial Compose() error = %v", err)
			}
			wantPNG := encodePNG(t, want)

			for run := 0; run < 3; run++ {
				src := &fakeSource{maxDelay: 5 * time.Millisecond, rng: rand.New(rand.NewSource(int64(run + 1)))}
				c := New(src, Options{Workers: 8})
				got, err := c.Compose(context.Background(), lay, "v.mp4", testMeta(), fx, nil)
				if err != nil {
					t.Fatalf("concurrent Compose() error = %v", err)
				}
				if !bytes.Equal(encodePNG(t, got), wantPNG) {
					t.Fatalf("run %d: concurrent output differs from serial output", run)
				}
			}
		})
	}
}

func TestCompose_CanvasSize(t *testing.T) {
	lay := testLayout(layout.Classic)
	c := New(&fakeSource{}, Options{Workers: 4})

	tests := []struct {
		name   string
		footer bool
		wantH  int
	}{
		{"without footer", false, lay.CanvasSize.Height},
		{"with footer", true, lay.CanvasSize.Height + FooterHeight(lay.CanvasSize.Height)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := c.Compose(context.Background(), lay, "v.mp4", testMeta(), Effects{Footer: tt.footer}, nil)
			if err != nil {
				t.Fatalf("Compose() error = %v", err)
			}
			b := img.Bounds()
			if b.Dx() != lay.CanvasSize.Width || b.Dy() != tt.wantH {
				t.Errorf("canvas = %dx%d, want %dx%d", b.Dx(), b.Dy(), lay.CanvasSize.Width, tt.wantH)
			}
		})
	}
}

func TestCompose_RespectsWorkerLimit(t *testing.T) {
	src := &fakeSource{maxDelay: 2 * time.Millisecond, rng: rand.New(rand.NewSource(7))}
	c := New(src, Options{Workers: 3})

	var last, calls int
	progress := func(done, total int) {
		calls++
		if done != last+1 {
			t.Errorf("progress jumped from %d to %d", last, done)
		}
		last = done
		if total != 40 {
			t.Errorf("progress total = %d, want 40", total)
		}
	}

	if _, err := c.Compose(context.Background(), testLayout(layout.Classic), "v.mp4", testMeta(), Effects{}, progress); err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if peak := src.peak.Load(); peak > 3 {
		t.Errorf("peak concurrent decodes = %d, want <= 3", peak)
	}
	if calls != 40 || last != 40 {
		t.Errorf("progress calls = %d, last = %d, want 40", calls, last)
	}
}

func TestCompose_ExtractionFailure(t *testing.T) {
	c := New(&fakeSource{failAt: 5}, Options{Workers: 2})

	_, err := c.Compose(context.Background(), testLayout(layout.Classic), "v.mp4", testMeta(), Effects{}, nil)

	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("Compose() error = %v, want *Error", err)
	}
	if cerr.Kind != KindExtractionFailed {
		t.Errorf("Kind = %v, want %v", cerr.Kind, KindExtractionFailed)
	}
	var decErr *frames.DecodeError
	if !errors.As(err, &decErr) {
		t.Errorf("error chain lost the DecodeError: %v", err)
	}
}

func TestCompose_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := New(&fakeSource{block: true}, Options{Workers: 4})

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Compose(ctx, testLayout(layout.Classic), "v.mp4", testMeta(), Effects{}, nil)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Compose() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Compose() did not return after cancellation")
	}
}

func TestCompose_AllocFailure(t *testing.T) {
	c := New(&fakeSource{}, Options{Workers: 1})

	tests := []struct {
		name string
		lay  layout.Layout
	}{
		{"empty canvas", layout.Layout{}},
		{"oversized canvas", layout.Layout{CanvasSize: layout.Size{Width: 100000, Height: 100000}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compose(context.Background(), tt.lay, "v.mp4", testMeta(), Effects{}, nil)
			var cerr *Error
			if !errors.As(err, &cerr) || cerr.Kind != KindAllocFailed {
				t.Errorf("Compose() error = %v, want KindAllocFailed", err)
			}
		})
	}
}

func TestRenderTile_StaysInsideCell(t *testing.T) {
	frame := image.NewNRGBA(image.Rect(0, 0, 320, 180))
	fx := Effects{Border: true, BorderWidth: 3, BorderColor: color.NRGBA{R: 255, A: 255}, Shadow: true, Labels: true}

	tile := renderTile(frame, 96, 54, fx, 3725)
	if b := tile.Bounds(); b.Dx() != 96 || b.Dy() != 54 {
		t.Errorf("tile bounds = %v, want 96x54", b)
	}

	// Degenerate cell: effects are dropped rather than overflowing.
	tiny := renderTile(frame, 4, 3, fx, 0)
	if b := tiny.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Errorf("tiny tile bounds = %v, want 4x3", b)
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00"},
		{59.9, "00:00:59"},
		{61, "00:01:01"},
		{3661, "01:01:01"},
		{-3, "00:00:00"},
	}
	for _, tt := range tests {
		if got := FormatTimestamp(tt.in); got != tt.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFooterText(t *testing.T) {
	got := FooterText(testMeta())
	want := "v.mp4  |  h264  |  1920x1080  |  00:10:00"
	if got != want {
		t.Errorf("FooterText() = %q, want %q", got, want)
	}
}
