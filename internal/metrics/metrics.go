package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_mosaic_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_mosaic_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_mosaic_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	EventStreamsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_mosaic_event_streams_open",
			Help: "Number of connected server-sent event clients",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_mosaic_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_mosaic_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_mosaic_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)

	MosaicsIndexed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_mosaic_index_entries",
			Help: "Number of mosaics recorded in the dedup index",
		},
	)
)

// Mosaic job metrics
var (
	MosaicJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_mosaic_jobs_total",
			Help: "Total number of mosaic jobs by outcome",
		},
		[]string{"status"}, // completed, failed, skipped, cancelled
	)

	MosaicJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_mosaic_job_duration_seconds",
			Help:    "Duration of completed mosaic jobs",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"strategy"},
	)

	MosaicStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_mosaic_stage_duration_seconds",
			Help:    "Duration of each mosaic pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"}, // metadata, layout, compose, encode, write
	)

	MosaicThumbnails = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_mosaic_thumbnails_per_job",
			Help:    "Number of thumbnails placed per mosaic",
			Buckets: []float64{4, 12, 25, 50, 100, 200, 400, 800},
		},
	)

	MosaicOutputBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_mosaic_output_bytes",
			Help:    "Encoded mosaic size in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 2, 10),
		},
		[]string{"format"},
	)

	FramesDecodedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_mosaic_frames_decoded_total",
			Help: "Total number of frame decode attempts by status",
		},
		[]string{"status"},
	)

	FrameDecodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_mosaic_frame_decode_duration_seconds",
			Help:    "Time spent decoding a single frame",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	DedupChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_mosaic_dedup_checks_total",
			Help: "Dedup index lookups by result",
		},
		[]string{"result"}, // hit, miss, error, bypass
	)

	IndexWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_mosaic_index_write_errors_total",
			Help: "Dedup index writes that failed after a mosaic was saved",
		},
	)
)

// Batch orchestrator metrics
var (
	BatchJobsQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_mosaic_batch_jobs_queued",
			Help: "Jobs waiting for a slot",
		},
	)

	BatchJobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_mosaic_batch_jobs_in_flight",
			Help: "Jobs currently running",
		},
	)

	BatchConcurrencyLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_mosaic_batch_concurrency_limit",
			Help: "Current adaptive job concurrency limit",
		},
	)

	BatchesSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_mosaic_batches_submitted_total",
			Help: "Total number of batches submitted",
		},
	)

	BatchPressureAdjustments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_mosaic_batch_pressure_adjustments_total",
			Help: "Adaptive limit changes by direction",
		},
		[]string{"direction"}, // down, up, paused
	)
)

// Storage metrics
var (
	StorageWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_mosaic_storage_writes_total",
			Help: "Mosaic writes by backend and status",
		},
		[]string{"backend", "status"},
	)

	StorageWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_mosaic_storage_write_duration_seconds",
			Help:    "Mosaic write duration by backend",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"backend"},
	)
)

// Filesystem metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_mosaic_filesystem_retry_attempts_total",
			Help: "Filesystem retries after a stale NFS handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_mosaic_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_mosaic_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_mosaic_filesystem_stale_errors_total",
			Help: "ESTALE errors seen by filesystem operations",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_mosaic_filesystem_retry_duration_seconds",
			Help:    "Total time spent in a retried filesystem operation",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	GoMemLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_mosaic_go_memlimit_bytes",
			Help: "Configured GOMEMLIMIT in bytes",
		},
	)

	GoMemAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_mosaic_go_mem_alloc_bytes",
			Help: "Current heap allocation in bytes",
		},
	)

	GoMemSysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_mosaic_go_mem_sys_bytes",
			Help: "Total memory obtained from the OS",
		},
	)

	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_mosaic_memory_usage_ratio",
			Help: "Heap usage as a ratio of the memory limit (0.0-1.0)",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_mosaic_memory_paused",
			Help: "Whether new jobs are paused due to memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_mosaic_memory_gc_pauses_total",
			Help: "Times scheduling was paused for memory pressure",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_mosaic_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
