package layout

import (
	"encoding/json"
	"math"
	"testing"

	"video-mosaic/internal/density"
)

func TestSolveClassicReferenceGrid(t *testing.T) {
	l := Solve(16.0/9.0, 120, 3840, Classic, density.M, DefaultOptions())

	if l.Strategy != Classic {
		t.Fatalf("Strategy = %v, want classic", l.Strategy)
	}
	if l.Rows != 11 || l.Cols != 11 {
		t.Errorf("grid = %dx%d, want 11x11", l.Rows, l.Cols)
	}
	if l.ThumbCount != 120 {
		t.Errorf("ThumbCount = %d, want 120", l.ThumbCount)
	}
	if l.Sizes[0] != (Size{Width: 349, Height: 196}) {
		t.Errorf("thumb size = %v, want 349x196", l.Sizes[0])
	}
	if l.CanvasSize != (Size{Width: 3840, Height: 2160}) {
		t.Errorf("canvas = %v, want 3840x2160", l.CanvasSize)
	}
	if fill := l.FillRatio(); fill < 0.85 {
		t.Errorf("FillRatio() = %.3f, want >= 0.85", fill)
	}
	if err := l.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestSolveInvariants(t *testing.T) {
	aspects := []float64{16.0 / 9.0, 9.0 / 16.0, 1, 2.35, 4.0 / 3.0}
	counts := []int{1, 4, 37, 120, 800}
	widths := []int{320, 1920, 5120}
	strategies := []Strategy{Classic, Custom, Auto}

	opts := DefaultOptions()
	opts.Screen = &Screen{Width: 1512, Height: 982, Scale: 2}

	for _, strategy := range strategies {
		for _, level := range density.All() {
			for _, aspect := range aspects {
				for _, count := range counts {
					for _, width := range widths {
						l := Solve(aspect, count, width, strategy, level, opts)
						if err := l.Validate(); err != nil {
							t.Fatalf("Solve(%.2f, %d, %d, %v, %v) invalid: %v", aspect, count, width, strategy, level, err)
						}
						if l.ThumbCount < 1 || l.ThumbCount > count {
							t.Fatalf("Solve(%.2f, %d, %d, %v, %v) ThumbCount = %d", aspect, count, width, strategy, level, l.ThumbCount)
						}
					}
				}
			}
		}
	}
}

func TestSolveDegenerateInputs(t *testing.T) {
	tests := []struct {
		name   string
		aspect float64
		count  int
		width  int
	}{
		{"zero count", 16.0 / 9.0, 0, 1920},
		{"zero width", 16.0 / 9.0, 10, 0},
		{"nan aspect", math.NaN(), 10, 1920},
		{"negative aspect", -1, 10, 1920},
		{"more thumbs than pixels", 16.0 / 9.0, 5000, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Solve(tt.aspect, tt.count, tt.width, Classic, density.M, DefaultOptions())
			if l.ThumbCount < 1 {
				t.Errorf("ThumbCount = %d, want at least one thumbnail", l.ThumbCount)
			}
			if err := l.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
}

func TestSolveCustomLandscapeSections(t *testing.T) {
	l := Solve(16.0/9.0, 60, 1920, Custom, density.M, DefaultOptions())

	if l.Strategy != Custom {
		t.Fatalf("Strategy = %v, want custom", l.Strategy)
	}
	if len(l.Sections) != 3 {
		t.Fatalf("len(Sections) = %d, want 3", len(l.Sections))
	}

	small := l.Sections[0].ThumbSize
	large := l.Sections[1].ThumbSize
	if large.Width != small.Width*EmphasisScale {
		t.Errorf("middle band width = %d, want %d", large.Width, small.Width*EmphasisScale)
	}
	if l.Sections[2].ThumbSize != small {
		t.Errorf("bottom band size = %v, want %v", l.Sections[2].ThumbSize, small)
	}

	if l.Sections[0].TimeRange[0] != 0 || l.Sections[2].TimeRange[1] != 1 {
		t.Errorf("time ranges do not span the video: %v .. %v", l.Sections[0].TimeRange, l.Sections[2].TimeRange)
	}
	for i := 1; i < len(l.Sections); i++ {
		if l.Sections[i].TimeRange[0] != l.Sections[i-1].TimeRange[1] {
			t.Errorf("section %d starts at %v, previous ends at %v", i, l.Sections[i].TimeRange[0], l.Sections[i-1].TimeRange[1])
		}
	}

	// Bands are stacked top to bottom with a gap between them.
	topBottom := l.Rect(l.Sections[0].Count - 1).Max.Y
	midTop := l.Rect(l.Sections[1].StartIndex).Min.Y
	if midTop <= topBottom {
		t.Errorf("middle band starts at y=%d, top band ends at y=%d", midTop, topBottom)
	}
	maxGap := int(math.Round(float64(small.Height) * EmphasisPaddingCap))
	if gap := midTop - topBottom; gap > maxGap {
		t.Errorf("band gap = %d, want <= %d", gap, maxGap)
	}
}

func TestSolveCustomLandscapeGrowsToCount(t *testing.T) {
	tests := []struct {
		name  string
		level density.Level
		count int
	}{
		{"M past the target aspect", density.M, 91},
		{"XXS large request", density.XXS, 300},
		{"XL small table", density.XL, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Solve(16.0/9.0, tt.count, 1920, Custom, tt.level, DefaultOptions())
			if l.Strategy != Custom {
				t.Fatalf("Strategy = %v, want custom", l.Strategy)
			}
			if l.ThumbCount != tt.count {
				t.Errorf("ThumbCount = %d, want %d", l.ThumbCount, tt.count)
			}
			if err := l.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
}

func TestSolveCustomPortraitWidensGrid(t *testing.T) {
	opts := DefaultOptions()
	l := Solve(9.0/16.0, 200, 1920, Custom, density.M, opts)

	if l.Strategy != Custom {
		t.Fatalf("Strategy = %v, want custom", l.Strategy)
	}
	if l.Cols <= emphasisTable[density.M].cols {
		t.Errorf("Cols = %d, want more than the landscape table's %d", l.Cols, emphasisTable[density.M].cols)
	}
	aspect := float64(l.CanvasSize.Width) / float64(l.CanvasSize.Height)
	if aspect < opts.TargetAspect && l.Cols < MaxEmphasisCols {
		t.Errorf("canvas aspect = %.3f with %d cols, want >= %.3f", aspect, l.Cols, opts.TargetAspect)
	}
}

func TestSolveAuto(t *testing.T) {
	t.Run("fills the screen", func(t *testing.T) {
		screen := &Screen{Width: 1920, Height: 1080, Scale: 2}
		opts := DefaultOptions()
		opts.Screen = screen

		l := Solve(16.0/9.0, 40, 1920, Auto, density.M, opts)
		if l.Strategy != Auto {
			t.Fatalf("Strategy = %v, want auto", l.Strategy)
		}
		if l.CanvasSize != (Size{Width: 3840, Height: 2160}) {
			t.Errorf("canvas = %v, want screen pixels 3840x2160", l.CanvasSize)
		}
		if l.ThumbCount != 40 {
			t.Errorf("ThumbCount = %d, want 40", l.ThumbCount)
		}
		minSize := MinThumbSize(16.0/9.0, screen)
		for i, s := range l.Sizes {
			if s.Height < minSize.Height {
				t.Fatalf("thumb %d height %d below legible minimum %d", i, s.Height, minSize.Height)
			}
		}
	})

	t.Run("falls back to classic without a screen", func(t *testing.T) {
		got := Solve(16.0/9.0, 120, 3840, Auto, density.M, DefaultOptions())
		want := Solve(16.0/9.0, 120, 3840, Classic, density.M, DefaultOptions())
		if got.Strategy != Classic {
			t.Errorf("Strategy = %v, want classic", got.Strategy)
		}
		if got.Rows != want.Rows || got.Cols != want.Cols || got.CanvasSize != want.CanvasSize {
			t.Errorf("auto without screen = %dx%d %v, want %dx%d %v",
				got.Rows, got.Cols, got.CanvasSize, want.Rows, want.Cols, want.CanvasSize)
		}
	})
}

func TestScreenGrid(t *testing.T) {
	cols, rows := ScreenGrid(16.0/9.0, &Screen{Width: 1920, Height: 1080, Scale: 2})
	if cols != 12 || rows != 12 {
		t.Errorf("ScreenGrid = %dx%d, want 12x12", cols, rows)
	}

	cols, rows = ScreenGrid(16.0/9.0, nil)
	if cols != 0 || rows != 0 {
		t.Errorf("ScreenGrid(nil) = %dx%d, want 0x0", cols, rows)
	}
}

func TestStrip(t *testing.T) {
	l := Strip(16.0/9.0, 12, 1920)
	if l.ThumbCount != 12 || l.Rows != 1 {
		t.Fatalf("Strip = %d thumbs in %d rows, want 12 in 1", l.ThumbCount, l.Rows)
	}
	if l.Sizes[0] != (Size{Width: 160, Height: 90}) {
		t.Errorf("thumb size = %v, want 160x90", l.Sizes[0])
	}
	if err := l.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestTimestamps(t *testing.T) {
	for _, strategy := range []Strategy{Classic, Custom} {
		t.Run(strategy.String(), func(t *testing.T) {
			l := Solve(16.0/9.0, 60, 1920, strategy, density.M, DefaultOptions())
			ts := l.Timestamps(600)
			if len(ts) != l.ThumbCount {
				t.Fatalf("len(Timestamps) = %d, want %d", len(ts), l.ThumbCount)
			}
			for i, v := range ts {
				if v <= 0 || v >= 600 {
					t.Errorf("timestamp %d = %v, want inside (0, 600)", i, v)
				}
				if i > 0 && v <= ts[i-1] {
					t.Errorf("timestamp %d = %v not after %v", i, v, ts[i-1])
				}
			}
		})
	}
}

func TestLayoutJSON(t *testing.T) {
	l := Solve(16.0/9.0, 30, 1920, Custom, density.M, DefaultOptions())

	data, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got Layout
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Strategy != l.Strategy || got.ThumbCount != l.ThumbCount || got.CanvasSize != l.CanvasSize {
		t.Errorf("round trip header = %v/%d/%v, want %v/%d/%v",
			got.Strategy, got.ThumbCount, got.CanvasSize, l.Strategy, l.ThumbCount, l.CanvasSize)
	}
	for i := range l.Positions {
		if got.Rect(i) != l.Rect(i) {
			t.Fatalf("rect %d = %v, want %v", i, got.Rect(i), l.Rect(i))
		}
	}
	if len(got.Sections) != len(l.Sections) {
		t.Errorf("len(Sections) = %d, want %d", len(got.Sections), len(l.Sections))
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", Classic, false},
		{"classic", Classic, false},
		{"custom", Custom, false},
		{"emphasis", Custom, false},
		{"auto", Auto, false},
		{"spiral", Classic, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStrategy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseStrategy(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
