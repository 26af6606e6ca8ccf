package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Environment overrides for each pool.
const (
	EnvExtractWorkers = "MOSAIC_EXTRACT_WORKERS"
	EnvJobWorkers     = "MOSAIC_JOB_WORKERS"
)

// Pool limits applied when no override is set.
const (
	MaxExtractWorkers = 32
	MaxJobWorkers     = 8
)

// Count returns the number of workers for a task with the given
// multiplier, derived from GOMAXPROCS so container CPU limits are respected.
// The limit caps the result; use 0 for no limit.
//
// A positive integer in the envVar environment variable overrides the
// calculation. The limit still applies to the override.
func Count(envVar string, multiplier float64, limit int) int {
	if envVar != "" {
		if override := os.Getenv(envVar); override != "" {
			if count, err := strconv.Atoi(override); err == nil && count > 0 {
				if limit > 0 && count > limit {
					return limit
				}
				return count
			}
		}
	}

	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForExtraction returns the per-job frame extraction concurrency: two
// workers per CPU since each one mostly waits on an ffmpeg process.
func ForExtraction() int {
	return Count(EnvExtractWorkers, 2.0, MaxExtractWorkers)
}

// ForJobs returns the default number of mosaics built concurrently in a
// batch. Each job already fans out over ForExtraction workers, so this
// stays at one per CPU.
func ForJobs() int {
	return Count(EnvJobWorkers, 1.0, MaxJobWorkers)
}
