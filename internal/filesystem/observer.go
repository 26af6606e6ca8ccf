package filesystem

import "time"

// RetryOutcome classifies a RetryEvent.
type RetryOutcome string

const (
	// RetryStale: an attempt failed with ESTALE.
	RetryStale RetryOutcome = "stale"
	// RetryScheduled: another attempt follows after a backoff.
	RetryScheduled RetryOutcome = "scheduled"
	// RetryRecovered: an attempt after a stale handle succeeded.
	RetryRecovered RetryOutcome = "recovered"
	// RetryExhausted: the operation failed after MaxRetries retries.
	RetryExhausted RetryOutcome = "exhausted"
	// RetryFinished ends every operation; Elapsed covers all attempts.
	RetryFinished RetryOutcome = "finished"
)

// RetryEvent describes one step of a retried operation. Op is "stat",
// "open", "readdir" or "write"; Volume comes from the VolumeResolver.
type RetryEvent struct {
	Op      string
	Volume  string
	Outcome RetryOutcome
	Elapsed time.Duration
}

// Observer receives retry events. package metrics implements it so that
// this package stays free of Prometheus.
type Observer interface {
	ObserveRetry(ev RetryEvent)
}

var observer Observer

// SetObserver installs the observer for all later operations. nil disables
// reporting.
func SetObserver(o Observer) {
	observer = o
}

func notify(ev RetryEvent) {
	if o := observer; o != nil {
		o.ObserveRetry(ev)
	}
}
