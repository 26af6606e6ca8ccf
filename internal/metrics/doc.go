// Package metrics provides Prometheus instrumentation for video-mosaic.
//
// All metrics are registered on the default registry through promauto and
// prefixed with "video_mosaic_". Serve them with promhttp:
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// # Metric Categories
//
//   - HTTP: request counts, durations, in-flight requests, open event streams
//   - Database: query counts and durations by operation, SQLite file sizes
//   - Jobs: outcomes, per-stage durations, thumbnails per mosaic, output size,
//     frame decode counts and durations, dedup lookups
//   - Batch: queued and in-flight jobs, the adaptive concurrency limit and
//     how often pressure moved it
//   - Storage: writes per backend (local, s3, gcs)
//   - Filesystem: NFS stale-handle retries, recorded through the
//     filesystem.Observer returned by NewFilesystemObserver
//   - Memory: GOMEMLIMIT, heap usage ratio and pause state
//
// InitializeMetrics pre-populates label combinations so dashboards show
// zeros instead of gaps before the first job runs.
//
// # Collector
//
// Collector periodically refreshes gauges that are cheaper to poll than to
// maintain inline: runtime memory, SQLite file sizes and the number of
// indexed mosaics reported by a StatsProvider.
package metrics
