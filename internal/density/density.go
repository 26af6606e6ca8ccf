package density

import (
	"fmt"
	"math"
	"strings"
)

// Level controls how many thumbnails are extracted relative to a video's
// duration. XXS is the densest setting and XXL the sparsest.
type Level int

const (
	XXS Level = iota
	XS
	S
	M
	L
	XL
	XXL
)

// Count caps.
const (
	// MosaicCap bounds full mosaics.
	MosaicCap = 800
	// StripCap bounds thumbnail strips and previews.
	StripCap = 100
	// TrivialCount is returned for clips shorter than MinDuration.
	TrivialCount = 4
	// MinDuration is the duration, in seconds, below which a clip is
	// considered near-still.
	MinDuration = 5.0
	// PreviewBaseExtracts is the preview frame count at density M.
	PreviewBaseExtracts = 12
)

type coefficients struct {
	name               string
	factor             float64
	extractsMultiplier float64
}

var levels = [...]coefficients{
	XXS: {"XXS", 0.25, 4.0},
	XS:  {"XS", 0.5, 3.0},
	S:   {"S", 0.75, 2.0},
	M:   {"M", 1.0, 1.0},
	L:   {"L", 1.5, 0.75},
	XL:  {"XL", 2.0, 0.5},
	XXL: {"XXL", 4.0, 0.25},
}

// All returns every level from densest to sparsest.
func All() []Level {
	return []Level{XXS, XS, S, M, L, XL, XXL}
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	return l >= XXS && l <= XXL
}

// Factor is the thumbnail-count divisor for l.
func (l Level) Factor() float64 {
	if !l.Valid() {
		return levels[M].factor
	}
	return levels[l].factor
}

// ExtractsMultiplier scales preview extract counts.
func (l Level) ExtractsMultiplier() float64 {
	if !l.Valid() {
		return levels[M].extractsMultiplier
	}
	return levels[l].extractsMultiplier
}

func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levels[l].name
}

// Sparser reports whether a yields fewer thumbnails than b.
func Sparser(a, b Level) bool {
	return a.Factor() > b.Factor()
}

// Parse converts a level name (case-insensitive) into a Level.
func Parse(s string) (Level, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, c := range levels {
		if c.name == name {
			return Level(i), nil
		}
	}
	return M, fmt.Errorf("unknown density %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid density level %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Count returns the thumbnail count for a full mosaic.
//
// Usefulness of extra thumbnails grows sub-linearly with duration, hence the
// logarithmic term: a two hour film does not get 24x the thumbnails of a five
// minute clip.
func Count(duration float64, width int, level Level) int {
	return count(duration, width, level, MosaicCap)
}

// StripCount is Count for UI thumbnail strips.
func StripCount(duration float64, width int, level Level) int {
	return count(duration, width, level, StripCap)
}

func count(duration float64, width int, level Level, limit int) int {
	if duration < MinDuration || math.IsNaN(duration) {
		return TrivialCount
	}
	raw := float64(width)/200 + 10*math.Log(duration)
	n := int(math.Floor(raw / level.Factor()))
	return clamp(n, 1, limit)
}

// PreviewCount returns how many frames a preview extracts.
func PreviewCount(duration float64, level Level) int {
	if duration < MinDuration || math.IsNaN(duration) {
		return TrivialCount
	}
	n := int(math.Round(PreviewBaseExtracts * level.ExtractsMultiplier()))
	return clamp(n, 1, StripCap)
}

// ScreenCount derives the count from the tiles that fit on a display; it
// takes precedence over the duration formula for the auto strategy.
func ScreenCount(maxCols, maxRows int) int {
	return clamp(maxCols*maxRows, 1, MosaicCap)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
