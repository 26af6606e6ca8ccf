package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"video-mosaic/internal/filesystem"
)

type mockStatsProvider struct {
	stats Stats
}

func (m *mockStatsProvider) GetStats() Stats {
	return m.stats
}

func TestMetricsRegistered(t *testing.T) {
	tests := []struct {
		name   string
		metric prometheus.Collector
	}{
		{"HTTPRequestsTotal", HTTPRequestsTotal},
		{"DBQueryTotal", DBQueryTotal},
		{"MosaicJobsTotal", MosaicJobsTotal},
		{"MosaicStageDuration", MosaicStageDuration},
		{"FramesDecodedTotal", FramesDecodedTotal},
		{"DedupChecksTotal", DedupChecksTotal},
		{"BatchConcurrencyLimit", BatchConcurrencyLimit},
		{"StorageWritesTotal", StorageWritesTotal},
		{"FilesystemRetryAttempts", FilesystemRetryAttempts},
		{"MemoryUsageRatio", MemoryUsageRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Fatalf("%s metric is nil", tt.name)
			}
			// Registering again must collide with the promauto registration.
			err := prometheus.Register(tt.metric)
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				t.Errorf("%s not registered on the default registry: %v", tt.name, err)
			}
		})
	}
}

func TestInitializeMetrics(t *testing.T) {
	InitializeMetrics()

	if n := testutil.CollectAndCount(MosaicJobsTotal); n < 4 {
		t.Errorf("MosaicJobsTotal series = %d, want at least 4", n)
	}
	if n := testutil.CollectAndCount(StorageWritesTotal); n < 6 {
		t.Errorf("StorageWritesTotal series = %d, want at least 6", n)
	}
}

func TestFilesystemObserver(t *testing.T) {
	obs := NewFilesystemObserver()
	ev := func(o filesystem.RetryOutcome) filesystem.RetryEvent {
		return filesystem.RetryEvent{Op: "stat", Volume: "media", Outcome: o, Elapsed: 50 * time.Millisecond}
	}

	counters := map[filesystem.RetryOutcome]*prometheus.CounterVec{
		filesystem.RetryStale:     FilesystemStaleErrors,
		filesystem.RetryScheduled: FilesystemRetryAttempts,
		filesystem.RetryRecovered: FilesystemRetrySuccess,
		filesystem.RetryExhausted: FilesystemRetryFailures,
	}
	for outcome, vec := range counters {
		before := testutil.ToFloat64(vec.WithLabelValues("stat", "media"))
		obs.ObserveRetry(ev(outcome))
		if got := testutil.ToFloat64(vec.WithLabelValues("stat", "media")); got != before+1 {
			t.Errorf("%s: counter = %v, want %v", outcome, got, before+1)
		}
	}

	obs.ObserveRetry(ev(filesystem.RetryFinished))
	if n := testutil.CollectAndCount(FilesystemRetryDuration); n < 1 {
		t.Error("finished event did not observe a duration")
	}
}

func TestSetAppInfo(t *testing.T) {
	SetAppInfo("1.0.0", "abc123", "go1.25")

	if got := testutil.ToFloat64(AppInfo.WithLabelValues("1.0.0", "abc123", "go1.25")); got != 1 {
		t.Errorf("AppInfo = %v, want 1", got)
	}
}

func TestCollectorCollect(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "mosaic.db")
	if err := os.WriteFile(dbPath, make([]byte, 4096), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dbPath+"-wal", make([]byte, 1024), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewCollector(&mockStatsProvider{stats: Stats{TotalMosaics: 42}}, dbPath, time.Minute)
	c.collect()

	if got := testutil.ToFloat64(MosaicsIndexed); got != 42 {
		t.Errorf("MosaicsIndexed = %v, want 42", got)
	}
	if got := testutil.ToFloat64(DBSizeBytes.WithLabelValues("main")); got != 4096 {
		t.Errorf("main db size = %v, want 4096", got)
	}
	if got := testutil.ToFloat64(DBSizeBytes.WithLabelValues("wal")); got != 1024 {
		t.Errorf("wal size = %v, want 1024", got)
	}
	if got := testutil.ToFloat64(DBSizeBytes.WithLabelValues("shm")); got != 0 {
		t.Errorf("missing shm size = %v, want 0", got)
	}
	if got := testutil.ToFloat64(GoMemAllocBytes); got <= 0 {
		t.Errorf("GoMemAllocBytes = %v, want > 0", got)
	}
}

func TestCollectorNilProvider(_ *testing.T) {
	c := NewCollector(nil, "", time.Minute)
	c.collect()
}

func TestCollectorStartStop(_ *testing.T) {
	c := NewCollector(&mockStatsProvider{}, "", 10*time.Millisecond)
	c.Start()
	time.Sleep(30 * time.Millisecond)
	c.Stop()
	// A second stop must not panic.
	c.Stop()
}
