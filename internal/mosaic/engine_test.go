package mosaic

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"video-mosaic/internal/compositor"
	"video-mosaic/internal/density"
	"video-mosaic/internal/frames"
	"video-mosaic/internal/layout"
	"video-mosaic/internal/metrics"
	"video-mosaic/internal/storage"
)

type fakeSource struct {
	meta    frames.Metadata
	metaErr error
	failAt  float64 // decode fails at timestamps >= failAt when > 0

	// gate, when set, blocks every decode until closed or ctx is done.
	gate    chan struct{}
	started chan struct{}
	once    sync.Once

	mu      sync.Mutex
	decodes int
}

func (f *fakeSource) LoadMetadata(_ context.Context, path string) (frames.Metadata, error) {
	if f.metaErr != nil {
		return frames.Metadata{}, f.metaErr
	}
	m := f.meta
	m.SourcePath = path
	return m, nil
}

func (f *fakeSource) DecodeFrame(ctx context.Context, _ string, ts float64) (image.Image, error) {
	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failAt > 0 && ts >= f.failAt {
		return nil, errors.New("corrupt packet")
	}
	f.mu.Lock()
	f.decodes++
	f.mu.Unlock()

	img := image.NewNRGBA(image.Rect(0, 0, 32, 18))
	c := color.NRGBA{R: uint8(int(ts) % 256), G: 80, B: 160, A: 255}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img, nil
}

type memIndex struct {
	mu        sync.Mutex
	records   map[Key]Record
	existsErr error
	recordErr error
}

func newMemIndex() *memIndex {
	return &memIndex{records: make(map[Key]Record)}
}

func (m *memIndex) Exists(_ context.Context, key Key) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[key]
	return ok, nil
}

func (m *memIndex) Record(_ context.Context, rec Record) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Key] = rec
	return nil
}

// staleIndex answers every Exists from a snapshot taken on entry. The
// second lookup then waits for a record before returning, reproducing a
// store that is slow to answer while an identical job finishes.
type staleIndex struct {
	*memIndex
	recorded chan struct{}
	once     sync.Once

	mu    sync.Mutex
	calls int
}

func (s *staleIndex) Exists(ctx context.Context, key Key) (bool, error) {
	exists, err := s.memIndex.Exists(ctx, key)
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()
	if n == 2 {
		select {
		case <-s.recorded:
		case <-time.After(2 * time.Second):
		}
	}
	return exists, err
}

func (s *staleIndex) Record(ctx context.Context, rec Record) error {
	err := s.memIndex.Record(ctx, rec)
	s.once.Do(func() { close(s.recorded) })
	return err
}

func (m *memIndex) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func defaultMeta() frames.Metadata {
	return frames.Metadata{Duration: 600, Width: 1920, Height: 1080, Codec: "h264"}
}

// newTestJob creates an input file and returns a request writing a PNG into
// the same temp dir.
func newTestJob(t *testing.T) JobRequest {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(input, []byte("not really a video"), 0o644); err != nil {
		t.Fatal(err)
	}
	return JobRequest{
		ID:       "job-1",
		Input:    input,
		Output:   filepath.Join(dir, "out", "clip.png"),
		Width:    320,
		Density:  density.M,
		Strategy: layout.Classic,
	}
}

func newTestEngine(src frames.Source, index Index) *Engine {
	opts := DefaultOptions()
	opts.Workers = 4
	return New(src, index, storage.NewWriter(storage.Config{}), opts)
}

func TestComposeMosaic(t *testing.T) {
	src := &fakeSource{meta: defaultMeta()}
	index := newMemIndex()
	e := newTestEngine(src, index)
	req := newTestJob(t)

	res, err := e.ComposeMosaic(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("ComposeMosaic() error = %v", err)
	}
	if res.Skipped {
		t.Fatal("first run should not be skipped")
	}

	want := density.Count(600, 320, density.M)
	if res.Layout.ThumbCount == 0 || res.Layout.ThumbCount > want {
		t.Errorf("ThumbCount = %d, want 1..%d", res.Layout.ThumbCount, want)
	}
	if src.decodes != res.Layout.ThumbCount {
		t.Errorf("decodes = %d, want %d", src.decodes, res.Layout.ThumbCount)
	}
	if res.ContentHash != ContentHash(req.Input, src.meta) {
		t.Errorf("ContentHash = %s, want hash of input", res.ContentHash)
	}
	if res.Output != req.Output {
		t.Errorf("Output = %q, want %q", res.Output, req.Output)
	}
	if _, err := os.Stat(req.Output); err != nil {
		t.Errorf("output not written: %v", err)
	}
	if index.len() != 1 {
		t.Errorf("index has %d records, want 1", index.len())
	}
}

func TestComposeMosaicDedup(t *testing.T) {
	src := &fakeSource{meta: defaultMeta()}
	index := newMemIndex()
	e := newTestEngine(src, index)
	req := newTestJob(t)

	if _, err := e.ComposeMosaic(context.Background(), req, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	decodes := src.decodes

	res, err := e.ComposeMosaic(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !res.Skipped || res.SkipReason == "" {
		t.Errorf("second run = %+v, want skipped with reason", res)
	}
	if src.decodes != decodes {
		t.Error("skipped job must not decode frames")
	}

	// A different density is a different mosaic.
	other := req
	other.Density = density.L
	res, err = e.ComposeMosaic(context.Background(), other, nil)
	if err != nil || res.Skipped {
		t.Errorf("different density: res=%+v err=%v, want generated", res, err)
	}

	// Overwrite regenerates and still records.
	req.Overwrite = true
	before := testutil.ToFloat64(metrics.DedupChecksTotal.WithLabelValues("bypass"))
	res, err = e.ComposeMosaic(context.Background(), req, nil)
	if err != nil || res.Skipped {
		t.Errorf("overwrite: res=%+v err=%v, want generated", res, err)
	}
	if got := testutil.ToFloat64(metrics.DedupChecksTotal.WithLabelValues("bypass")); got != before+1 {
		t.Errorf("bypass counter delta = %v, want 1", got-before)
	}
	if index.len() != 2 {
		t.Errorf("index has %d records, want 2", index.len())
	}
}

// Two identical jobs yield one completed and one skipped result whichever
// way they interleave.
func TestComposeMosaicIdenticalJobs(t *testing.T) {
	t.Run("concurrent", func(t *testing.T) {
		src := &fakeSource{meta: defaultMeta(), gate: make(chan struct{}), started: make(chan struct{})}
		index := newMemIndex()
		e := newTestEngine(src, index)
		req := newTestJob(t)

		type outcome struct {
			res *JobResult
			err error
		}
		first := make(chan outcome, 1)
		go func() {
			res, err := e.ComposeMosaic(context.Background(), req, nil)
			first <- outcome{res, err}
		}()
		<-src.started

		second := req
		second.ID = "job-2"
		res, err := e.ComposeMosaic(context.Background(), second, nil)
		if err != nil {
			t.Fatalf("second job error = %v", err)
		}
		if !res.Skipped {
			t.Error("job identical to a running one should be skipped")
		}

		close(src.gate)
		out := <-first
		if out.err != nil || out.res.Skipped {
			t.Errorf("first job = %+v, %v; want completed", out.res, out.err)
		}
		if index.len() != 1 {
			t.Errorf("index has %d records, want 1", index.len())
		}
	})

	t.Run("slow index lookup", func(t *testing.T) {
		src := &fakeSource{meta: defaultMeta(), gate: make(chan struct{}), started: make(chan struct{})}
		index := &staleIndex{memIndex: newMemIndex(), recorded: make(chan struct{})}
		e := newTestEngine(src, index)
		req := newTestJob(t)

		type outcome struct {
			res *JobResult
			err error
		}
		results := make(chan outcome, 2)
		run := func(id string) {
			r := req
			r.ID = id
			res, err := e.ComposeMosaic(context.Background(), r, nil)
			results <- outcome{res, err}
		}

		go run("job-a")
		<-src.started
		go run("job-b")
		close(src.gate)

		var completed, skipped int
		for i := 0; i < 2; i++ {
			out := <-results
			if out.err != nil {
				t.Fatalf("job error = %v", out.err)
			}
			if out.res.Skipped {
				skipped++
			} else {
				completed++
			}
		}
		if completed != 1 || skipped != 1 {
			t.Errorf("completed=%d skipped=%d, want 1 and 1", completed, skipped)
		}
	})

	t.Run("sequential", func(t *testing.T) {
		src := &fakeSource{meta: defaultMeta()}
		index := newMemIndex()
		e := newTestEngine(src, index)
		req := newTestJob(t)

		var completed, skipped int
		for _, id := range []string{"job-b", "job-a"} {
			r := req
			r.ID = id
			res, err := e.ComposeMosaic(context.Background(), r, nil)
			if err != nil {
				t.Fatalf("%s: %v", id, err)
			}
			if res.Skipped {
				skipped++
			} else {
				completed++
			}
		}
		if completed != 1 || skipped != 1 {
			t.Errorf("completed=%d skipped=%d, want 1 and 1", completed, skipped)
		}
	})
}

func TestComposeMosaicInputErrors(t *testing.T) {
	tests := []struct {
		name   string
		src    *fakeSource
		mutate func(*JobRequest)
	}{
		{
			name:   "missing input",
			src:    &fakeSource{meta: defaultMeta()},
			mutate: func(r *JobRequest) { r.Input += ".missing" },
		},
		{
			name:   "input is a directory",
			src:    &fakeSource{meta: defaultMeta()},
			mutate: func(r *JobRequest) { r.Input = filepath.Dir(r.Input) },
		},
		{
			name:   "too short",
			src:    &fakeSource{meta: defaultMeta()},
			mutate: func(r *JobRequest) { r.MinDuration = 601 },
		},
		{
			name: "unreadable metadata",
			src:  &fakeSource{metaErr: &frames.MetadataError{Path: "x", Err: errors.New("moov atom not found")}},
		},
		{
			name:   "unsupported output",
			src:    &fakeSource{meta: defaultMeta()},
			mutate: func(r *JobRequest) { r.Output = "out.gif" },
		},
		{
			name:   "invalid density",
			src:    &fakeSource{meta: defaultMeta()},
			mutate: func(r *JobRequest) { r.Density = density.Level(42) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newTestJob(t)
			if tt.mutate != nil {
				tt.mutate(&req)
			}
			_, err := newTestEngine(tt.src, newMemIndex()).ComposeMosaic(context.Background(), req, nil)
			var inputErr *InputError
			if !errors.As(err, &inputErr) {
				t.Fatalf("error = %v, want *InputError", err)
			}
		})
	}
}

func TestComposeMosaicExtractionFailure(t *testing.T) {
	src := &fakeSource{meta: defaultMeta(), failAt: 300}
	index := newMemIndex()
	req := newTestJob(t)

	_, err := newTestEngine(src, index).ComposeMosaic(context.Background(), req, nil)
	var compErr *compositor.Error
	if !errors.As(err, &compErr) || compErr.Kind != compositor.KindExtractionFailed {
		t.Fatalf("error = %v, want extraction failure", err)
	}
	if _, statErr := os.Stat(req.Output); !os.IsNotExist(statErr) {
		t.Error("no output should be written after a failed extraction")
	}
	if index.len() != 0 {
		t.Error("failed job must not be recorded")
	}
}

func TestComposeMosaicEncodeFailure(t *testing.T) {
	req := newTestJob(t)
	req.Output = filepath.Join(filepath.Dir(req.Output), "clip.avif")

	_, err := newTestEngine(&fakeSource{meta: defaultMeta()}, nil).ComposeMosaic(context.Background(), req, nil)
	var compErr *compositor.Error
	if !errors.As(err, &compErr) || compErr.Kind != compositor.KindEncodeFailed {
		t.Fatalf("error = %v, want encode failure without libvips", err)
	}
}

func TestComposeMosaicCancelled(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newTestEngine(&fakeSource{meta: defaultMeta()}, nil).ComposeMosaic(ctx, newTestJob(t), nil)
		if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) {
			t.Fatalf("error = %v, want ErrCancelled wrapping context.Canceled", err)
		}
	})

	t.Run("during extraction", func(t *testing.T) {
		src := &fakeSource{meta: defaultMeta(), gate: make(chan struct{}), started: make(chan struct{})}
		e := newTestEngine(src, newMemIndex())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		req := newTestJob(t)
		errc := make(chan error, 1)
		go func() {
			_, err := e.ComposeMosaic(ctx, req, nil)
			errc <- err
		}()
		<-src.started
		cancel()

		select {
		case err := <-errc:
			if !errors.Is(err, ErrCancelled) {
				t.Fatalf("error = %v, want ErrCancelled", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("cancelled job did not return")
		}
	})
}

func TestComposeMosaicIndexErrorsAreNonFatal(t *testing.T) {
	index := newMemIndex()
	index.existsErr = errors.New("database is locked")
	index.recordErr = errors.New("database is locked")

	before := testutil.ToFloat64(metrics.IndexWriteErrors)
	res, err := newTestEngine(&fakeSource{meta: defaultMeta()}, index).ComposeMosaic(context.Background(), newTestJob(t), nil)
	if err != nil || res.Skipped {
		t.Fatalf("ComposeMosaic() = %+v, %v; want completed", res, err)
	}
	if got := testutil.ToFloat64(metrics.IndexWriteErrors); got != before+1 {
		t.Errorf("IndexWriteErrors delta = %v, want 1", got-before)
	}
}

func TestComposeMosaicProgress(t *testing.T) {
	var events []Progress
	_, err := newTestEngine(&fakeSource{meta: defaultMeta()}, nil).ComposeMosaic(context.Background(), newTestJob(t), func(p Progress) {
		events = append(events, p)
	})
	if err != nil {
		t.Fatalf("ComposeMosaic() error = %v", err)
	}
	if len(events) < 4 {
		t.Fatalf("got %d progress events, want at least 4", len(events))
	}
	if events[0].Stage != StageDiscovering {
		t.Errorf("first stage = %s, want discovering", events[0].Stage)
	}
	last := events[len(events)-1]
	if last.Stage != StageSaving || last.Fraction != 1 {
		t.Errorf("last event = %+v, want saving at 1", last)
	}

	order := map[Stage]int{StageDiscovering: 0, StageExtracting: 1, StageCompositing: 2, StageSaving: 3}
	prevStage, prevFrac := 0, 0.0
	for _, p := range events {
		if p.JobID != "job-1" {
			t.Errorf("progress JobID = %q", p.JobID)
		}
		s := order[p.Stage]
		if s < prevStage {
			t.Fatalf("stage went backwards: %s", p.Stage)
		}
		if s == prevStage && p.Fraction < prevFrac {
			t.Fatalf("fraction went backwards in %s: %v < %v", p.Stage, p.Fraction, prevFrac)
		}
		if p.Stage == StageExtracting && p.Fraction > 0 && p.ETA == nil {
			t.Error("extracting progress should carry an ETA")
		}
		prevStage, prevFrac = s, p.Fraction
	}
}

func TestComposePreview(t *testing.T) {
	src := &fakeSource{meta: defaultMeta()}
	index := newMemIndex()
	req := newTestJob(t)
	req.Preview = true

	res, err := newTestEngine(src, index).ComposePreview(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("ComposePreview() error = %v", err)
	}
	want := density.PreviewCount(600, density.M)
	if res.Layout.Rows != 1 || res.Layout.ThumbCount != want {
		t.Errorf("preview layout = %d thumbs in %d rows, want %d in 1", res.Layout.ThumbCount, res.Layout.Rows, want)
	}
	if index.len() != 0 {
		t.Error("previews are not recorded in the index")
	}
}

func TestThumbnailCount(t *testing.T) {
	meta := defaultMeta()

	e := newTestEngine(&fakeSource{}, nil)
	if got, want := e.thumbnailCount(meta, 1920, layout.Auto, density.M), density.Count(600, 1920, density.M); got != want {
		t.Errorf("auto without screen = %d, want duration count %d", got, want)
	}

	e.opts.Layout.Screen = &layout.Screen{Width: 1920, Height: 1080, Scale: 2}
	if got := e.thumbnailCount(meta, 1920, layout.Auto, density.M); got != 144 {
		t.Errorf("auto with screen = %d, want 144", got)
	}
	if got, want := e.thumbnailCount(meta, 1920, layout.Classic, density.M), density.Count(600, 1920, density.M); got != want {
		t.Errorf("classic = %d, want %d", got, want)
	}
}

func TestContentHash(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	meta := defaultMeta()

	h := ContentHash("/v/a.mp4", meta)
	if len(h) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(h))
	}
	if ContentHash("/v/a.mp4", meta) != h {
		t.Error("hash must be deterministic")
	}
	if ContentHash("/v/b.mp4", meta) == h {
		t.Error("hash must depend on path")
	}

	withDate := meta
	withDate.CreationDate = &created
	if ContentHash("/v/a.mp4", withDate) == h {
		t.Error("hash must depend on creation date")
	}

	tests := []struct {
		name string
		path string
		meta frames.Metadata
		want string
	}{
		{"no creation date", "/v/a.mp4", meta, "/v/a.mp41920x1080h264"},
		{"with creation date", "/v/a.mp4", withDate, "/v/a.mp41920x1080h2642024-03-01T12:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := sha256.Sum256([]byte(tt.want))
			if got := ContentHash(tt.path, tt.meta); got != hex.EncodeToString(sum[:]) {
				t.Errorf("ContentHash() = %s, want sha256(%q)", got, tt.want)
			}
		})
	}

	// Duration and source path do not participate.
	other := meta
	other.Duration = 1
	other.SourcePath = "elsewhere"
	if ContentHash("/v/a.mp4", other) != h {
		t.Error("hash must ignore duration and SourcePath")
	}
}

func TestSolveLayout(t *testing.T) {
	e := newTestEngine(&fakeSource{}, nil)
	l := e.SolveLayout(16.0/9.0, 120, 3840, layout.Classic, density.M)
	if err := l.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if l.ThumbCount == 0 || l.ThumbCount > 120 {
		t.Errorf("ThumbCount = %d", l.ThumbCount)
	}
}
