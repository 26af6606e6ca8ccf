package metrics

import "video-mosaic/internal/filesystem"

// filesystemObserver feeds filesystem retry events into the Filesystem*
// collectors.
type filesystemObserver struct{}

// NewFilesystemObserver returns the observer to pass to
// filesystem.SetObserver.
func NewFilesystemObserver() filesystem.Observer {
	return filesystemObserver{}
}

func (filesystemObserver) ObserveRetry(ev filesystem.RetryEvent) {
	switch ev.Outcome {
	case filesystem.RetryStale:
		FilesystemStaleErrors.WithLabelValues(ev.Op, ev.Volume).Inc()
	case filesystem.RetryScheduled:
		FilesystemRetryAttempts.WithLabelValues(ev.Op, ev.Volume).Inc()
	case filesystem.RetryRecovered:
		FilesystemRetrySuccess.WithLabelValues(ev.Op, ev.Volume).Inc()
	case filesystem.RetryExhausted:
		FilesystemRetryFailures.WithLabelValues(ev.Op, ev.Volume).Inc()
	case filesystem.RetryFinished:
		FilesystemRetryDuration.WithLabelValues(ev.Op, ev.Volume).Observe(ev.Elapsed.Seconds())
	}
}
