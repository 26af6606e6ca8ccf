package layout

import (
	"encoding/json"
	"fmt"
	"image"
	"strings"
)

// Strategy selects the placement algorithm.
type Strategy int

const (
	// Classic is a uniform grid chosen by fill-ratio search.
	Classic Strategy = iota
	// Custom is the banded emphasis layout with a larger middle band.
	Custom
	// Auto sizes a uniform grid to the largest available display.
	Auto
)

var strategyNames = map[Strategy]string{
	Classic: "classic",
	Custom:  "custom",
	Auto:    "auto",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy converts a strategy name into a Strategy. "emphasis" is
// accepted as an alias for custom.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "classic", "":
		return Classic, nil
	case "custom", "emphasis":
		return Custom, nil
	case "auto":
		return Auto, nil
	}
	return Classic, fmt.Errorf("unknown layout strategy %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if _, ok := strategyNames[s]; !ok {
		return nil, fmt.Errorf("invalid layout strategy %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `json:"w"`
	Height int `json:"h"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Area returns Width*Height.
func (s Size) Area() int {
	return s.Width * s.Height
}

// Section is a contiguous band of uniformly sized thumbnails. Only the
// emphasis strategy produces sections.
type Section struct {
	StartIndex   int        `json:"startIndex"`
	Count        int        `json:"count"`
	TimeRange    [2]float64 `json:"timeRange"`
	ThumbsPerRow int        `json:"thumbsPerRow"`
	ThumbSize    Size       `json:"thumbSize"`
}

// Layout is the solved placement of every thumbnail on the canvas.
// Positions and Sizes are index-aligned and both have ThumbCount entries.
type Layout struct {
	Strategy   Strategy
	Rows       int
	Cols       int
	ThumbCount int
	Positions  []image.Point
	Sizes      []Size
	CanvasSize Size
	Sections   []Section
}

// Rect returns the rectangle occupied by thumbnail i.
func (l Layout) Rect(i int) image.Rectangle {
	p, s := l.Positions[i], l.Sizes[i]
	return image.Rect(p.X, p.Y, p.X+s.Width, p.Y+s.Height)
}

// FillRatio is the fraction of the canvas covered by thumbnails.
func (l Layout) FillRatio() float64 {
	canvas := l.CanvasSize.Area()
	if canvas == 0 {
		return 0
	}
	covered := 0
	for _, s := range l.Sizes {
		covered += s.Area()
	}
	return float64(covered) / float64(canvas)
}

// Validate checks the structural invariants of l.
func (l Layout) Validate() error {
	if l.ThumbCount < 0 {
		return fmt.Errorf("negative thumb count %d", l.ThumbCount)
	}
	if len(l.Positions) != l.ThumbCount || len(l.Sizes) != l.ThumbCount {
		return fmt.Errorf("positions=%d sizes=%d thumbCount=%d mismatch", len(l.Positions), len(l.Sizes), l.ThumbCount)
	}
	canvas := image.Rect(0, 0, l.CanvasSize.Width, l.CanvasSize.Height)
	for i := 0; i < l.ThumbCount; i++ {
		r := l.Rect(i)
		if r.Empty() {
			return fmt.Errorf("thumbnail %d has empty size %v", i, l.Sizes[i])
		}
		if !r.In(canvas) {
			return fmt.Errorf("thumbnail %d rect %v outside canvas %v", i, r, canvas)
		}
	}
	if len(l.Sections) == 0 {
		return nil
	}
	next := 0
	for i, s := range l.Sections {
		if s.StartIndex != next {
			return fmt.Errorf("section %d starts at %d, want %d", i, s.StartIndex, next)
		}
		if s.Count <= 0 {
			return fmt.Errorf("section %d is empty", i)
		}
		next += s.Count
	}
	if next != l.ThumbCount {
		return fmt.Errorf("sections cover %d thumbnails, want %d", next, l.ThumbCount)
	}
	return nil
}

// Timestamps returns the extraction time, in seconds, for every thumbnail.
// Indices are spread evenly across the time range of their section; layouts
// without sections behave as a single section spanning the whole video.
func (l Layout) Timestamps(duration float64) []float64 {
	out := make([]float64, 0, l.ThumbCount)
	sections := l.Sections
	if len(sections) == 0 {
		sections = []Section{{Count: l.ThumbCount, TimeRange: [2]float64{0, 1}}}
	}
	for _, s := range sections {
		start, end := s.TimeRange[0], s.TimeRange[1]
		for j := 0; j < s.Count; j++ {
			frac := start + (end-start)*(float64(j)+0.5)/float64(s.Count)
			out = append(out, duration*frac)
		}
	}
	return out
}

type layoutJSON struct {
	Strategy   Strategy  `json:"strategy"`
	Rows       int       `json:"rows"`
	Cols       int       `json:"cols"`
	ThumbCount int       `json:"thumbCount"`
	Positions  [][2]int  `json:"positions"`
	Sizes      []Size    `json:"sizes"`
	CanvasSize Size      `json:"canvasSize"`
	Sections   []Section `json:"sections,omitempty"`
}

// MarshalJSON encodes positions as compact [x, y] pairs.
func (l Layout) MarshalJSON() ([]byte, error) {
	positions := make([][2]int, len(l.Positions))
	for i, p := range l.Positions {
		positions[i] = [2]int{p.X, p.Y}
	}
	return json.Marshal(layoutJSON{
		Strategy:   l.Strategy,
		Rows:       l.Rows,
		Cols:       l.Cols,
		ThumbCount: l.ThumbCount,
		Positions:  positions,
		Sizes:      l.Sizes,
		CanvasSize: l.CanvasSize,
		Sections:   l.Sections,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (l *Layout) UnmarshalJSON(data []byte) error {
	var raw layoutJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	positions := make([]image.Point, len(raw.Positions))
	for i, p := range raw.Positions {
		positions[i] = image.Pt(p[0], p[1])
	}
	*l = Layout{
		Strategy:   raw.Strategy,
		Rows:       raw.Rows,
		Cols:       raw.Cols,
		ThumbCount: raw.ThumbCount,
		Positions:  positions,
		Sizes:      raw.Sizes,
		CanvasSize: raw.CanvasSize,
		Sections:   raw.Sections,
	}
	return nil
}
