package memory

import (
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"video-mosaic/internal/logging"
)

const (
	// DefaultMemoryRatio is the share of container memory given to the Go
	// heap. The rest is left for ffmpeg children and libvips buffers, which
	// GOMEMLIMIT does not see.
	DefaultMemoryRatio = 0.75

	sourceGOMEMLIMIT  = "GOMEMLIMIT"
	sourceMemoryLimit = "MEMORY_LIMIT"
	sourceCgroup      = "cgroup"
	sourceNone        = "none"
)

// cgroupMemoryMax is the cgroup v2 limit file. Tests point it elsewhere.
var cgroupMemoryMax = "/sys/fs/cgroup/memory.max"

// ConfigResult holds the result of memory configuration
type ConfigResult struct {
	Configured bool
	// Source is "GOMEMLIMIT", "MEMORY_LIMIT", "cgroup", or "none".
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

func (r ConfigResult) String() string {
	if !r.Configured {
		return "GOMEMLIMIT not configured"
	}
	if r.ContainerLimit == 0 {
		return fmt.Sprintf("GOMEMLIMIT %s (from %s)", formatBytes(r.GoMemLimit), r.Source)
	}
	return fmt.Sprintf("GOMEMLIMIT %s (%.0f%% of %s from %s)",
		formatBytes(r.GoMemLimit), r.Ratio*100, formatBytes(r.ContainerLimit), r.Source)
}

// ConfigureFromEnv sets GOMEMLIMIT from the container memory limit. Call it
// early in main, before large allocations.
//
// Environment variables:
//   - GOMEMLIMIT: takes precedence and is left untouched
//   - MEMORY_LIMIT: container limit, in bytes or with a Ki/Mi/Gi (or K/M/G) suffix
//   - MEMORY_RATIO: share of the limit for the Go heap (default 0.75)
//
// Without MEMORY_LIMIT the cgroup v2 memory.max file is consulted.
func ConfigureFromEnv() ConfigResult {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		result := ConfigResult{Source: sourceGOMEMLIMIT}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return result
	}

	source := sourceMemoryLimit
	limitStr := strings.TrimSpace(os.Getenv("MEMORY_LIMIT"))
	if limitStr == "" {
		source = sourceCgroup
		limitStr = readCgroupLimit()
	}
	if limitStr == "" {
		logging.Debug("No container memory limit found, GOMEMLIMIT left unset")
		return ConfigResult{Source: sourceNone}
	}

	limit, err := ParseSize(limitStr)
	if err != nil || limit <= 0 {
		logging.Warn("Ignoring memory limit %q from %s: %v", limitStr, source, err)
		return ConfigResult{Source: sourceNone}
	}

	ratio := DefaultMemoryRatio
	if ratioStr := os.Getenv("MEMORY_RATIO"); ratioStr != "" {
		parsed, err := strconv.ParseFloat(ratioStr, 64)
		switch {
		case err != nil:
			logging.Warn("Failed to parse MEMORY_RATIO %q: %v, using default %.2f", ratioStr, err, DefaultMemoryRatio)
		case parsed <= 0 || parsed > 1:
			logging.Warn("MEMORY_RATIO %q out of range (0.0-1.0], using default %.2f", ratioStr, DefaultMemoryRatio)
		default:
			ratio = parsed
		}
	}

	goMemLimit := int64(float64(limit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	result := ConfigResult{
		Configured:     true,
		Source:         source,
		ContainerLimit: limit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
	logging.Info("Configured %s", result)
	return result
}

func readCgroupLimit() string {
	data, err := os.ReadFile(cgroupMemoryMax)
	if err != nil {
		return ""
	}
	v := strings.TrimSpace(string(data))
	if v == "max" {
		return ""
	}
	return v
}

var sizeSuffixes = []struct {
	suffix string
	mult   int64
}{
	{"Ki", 1 << 10}, {"Mi", 1 << 20}, {"Gi", 1 << 30}, {"Ti", 1 << 40},
	{"K", 1000}, {"M", 1000 * 1000}, {"G", 1000 * 1000 * 1000}, {"T", 1000 * 1000 * 1000 * 1000},
}

// ParseSize parses a byte count with an optional Kubernetes style suffix.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	mult := int64(1)
	for _, sfx := range sizeSuffixes {
		if strings.HasSuffix(s, sfx.suffix) {
			s = strings.TrimSuffix(s, sfx.suffix)
			mult = sfx.mult
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size: %w", err)
	}
	if n < 0 || (n > 0 && mult > math.MaxInt64/n) {
		return 0, fmt.Errorf("size %d out of range", n)
	}
	return n * mult, nil
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
