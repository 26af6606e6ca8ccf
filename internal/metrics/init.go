package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	for _, status := range []string{"completed", "failed", "skipped", "cancelled"} {
		MosaicJobsTotal.WithLabelValues(status)
	}
	for _, strategy := range []string{"classic", "custom", "auto"} {
		MosaicJobDuration.WithLabelValues(strategy)
	}
	for _, stage := range []string{"metadata", "layout", "compose", "encode", "write"} {
		MosaicStageDuration.WithLabelValues(stage)
	}
	for _, format := range []string{"jpeg", "png", "webp", "heif", "avif"} {
		MosaicOutputBytes.WithLabelValues(format)
	}
	for _, status := range []string{"success", "error"} {
		FramesDecodedTotal.WithLabelValues(status)
	}
	for _, result := range []string{"hit", "miss", "error", "bypass"} {
		DedupChecksTotal.WithLabelValues(result)
	}
	for _, direction := range []string{"down", "up", "paused"} {
		BatchPressureAdjustments.WithLabelValues(direction)
	}

	for _, backend := range []string{"local", "s3", "gcs"} {
		StorageWritesTotal.WithLabelValues(backend, "success")
		StorageWritesTotal.WithLabelValues(backend, "error")
		StorageWriteDuration.WithLabelValues(backend)
	}

	volumes := []string{"media", "output", "database", "unknown"}
	for _, op := range []string{"stat", "open", "readdir", "write"} {
		for _, vol := range volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, op := range []string{"initialize_schema", "mosaic_exists", "record_mosaic", "list_mosaics",
		"count_mosaics", "get_metadata", "set_metadata"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
