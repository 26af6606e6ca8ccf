// Package memory keeps mosaic generation inside the container's memory
// budget.
//
// Mosaic canvases are large (a 5120 px wide sheet is tens of megabytes of
// NRGBA pixels before encoding) and every job also runs ffmpeg children, so
// two mechanisms work together:
//
// ConfigureFromEnv sets GOMEMLIMIT to a share of the container limit, taken
// from MEMORY_LIMIT (Kubernetes Downward API) or the cgroup v2 memory.max
// file. An explicit GOMEMLIMIT always wins.
//
//	| Variable     | Example | Meaning                              |
//	|--------------|---------|--------------------------------------|
//	| MEMORY_LIMIT | 2Gi     | container limit                      |
//	| MEMORY_RATIO | 0.75    | share of the limit for the Go heap   |
//
// Monitor samples heap usage and reports pressure to the batch scheduler:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	orch := batch.New(engine, batch.Options{Pressure: monitor})
//
// Above the high water mark ShouldThrottle reports true and the scheduler
// halves its concurrency limit. Above the critical mark IsPaused reports
// true until usage falls back below the high water mark; no new jobs start
// in that window. Jobs already running are never interrupted.
package memory
