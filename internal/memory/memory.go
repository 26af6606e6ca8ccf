package memory

import (
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"video-mosaic/internal/logging"
	"video-mosaic/internal/metrics"
)

// Config sets the heap budget and the two marks pressure is judged by.
type Config struct {
	// MemoryLimitBytes is the budget. Zero falls back to GOMEMLIMIT.
	MemoryLimitBytes int64
	// HighWaterMark is the share of the budget where jobs are throttled.
	HighWaterMark float64
	// CriticalWaterMark is the share where no new jobs start.
	CriticalWaterMark float64
	CheckInterval     time.Duration
}

func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     2 * time.Second,
	}
}

// Pressure is the monitor's verdict on heap usage.
type Pressure int

const (
	PressureNormal Pressure = iota
	PressureHigh
	PressureCritical
)

func (p Pressure) String() string {
	switch p {
	case PressureHigh:
		return "high"
	case PressureCritical:
		return "critical"
	}
	return "normal"
}

// Monitor samples the heap and answers the batch scheduler's pressure
// questions. It satisfies batch.PressureSignal.
type Monitor struct {
	config Config
	limit  int64
	sample func() uint64

	stop     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	alloc    uint64
	pressure Pressure
}

// NewMonitor resolves the budget from config or GOMEMLIMIT. Without either
// the monitor never reports pressure.
func NewMonitor(config Config) *Monitor {
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultConfig().CheckInterval
	}
	limit := config.MemoryLimitBytes
	if limit == 0 {
		if l := debug.SetMemoryLimit(-1); l > 0 && l < math.MaxInt64 {
			limit = l
			logging.Info("Memory monitor budget from GOMEMLIMIT: %s", formatBytes(limit))
		}
	}
	if limit == 0 {
		logging.Warn("Memory monitor has no budget; mosaic jobs are never throttled")
	}
	return &Monitor{
		config: config,
		limit:  limit,
		sample: heapAlloc,
		stop:   make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Alloc
}

// Start takes a first sample and keeps sampling until Stop.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	m.checkMemory()
	go func() {
		ticker := time.NewTicker(m.config.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.checkMemory()
			case <-m.stop:
				return
			}
		}
	}()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// next applies the marks with hysteresis: critical holds until usage falls
// below the high water mark.
func (m *Monitor) next(prev Pressure, usage float64) Pressure {
	switch {
	case usage >= m.config.CriticalWaterMark:
		return PressureCritical
	case prev == PressureCritical && usage >= m.config.HighWaterMark:
		return PressureCritical
	case usage >= m.config.HighWaterMark:
		return PressureHigh
	}
	return PressureNormal
}

func (m *Monitor) checkMemory() {
	alloc := m.sample()
	usage := float64(alloc) / float64(m.limit)

	m.mu.Lock()
	prev := m.pressure
	m.alloc = alloc
	m.pressure = m.next(prev, usage)
	now := m.pressure
	m.mu.Unlock()

	metrics.MemoryUsageRatio.Set(usage)
	if now == prev {
		return
	}
	switch {
	case now == PressureCritical:
		logging.Warn("Memory critical (%.1f%% of budget), holding new mosaic jobs", usage*100)
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()
	case prev == PressureCritical:
		logging.Info("Memory back to %s (%.1f%% of budget), resuming mosaic jobs", now, usage*100)
		metrics.MemoryPaused.Set(0)
	default:
		logging.Debug("Memory pressure %s -> %s, heap %s", prev, now, formatBytes(int64(min(alloc, math.MaxInt64))))
	}
}

// Pressure returns the verdict of the latest sample.
func (m *Monitor) Pressure() Pressure {
	if m.limit == 0 {
		return PressureNormal
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pressure
}

// ShouldThrottle reports usage at or above the high water mark.
func (m *Monitor) ShouldThrottle() bool {
	return m.Pressure() >= PressureHigh
}

// IsPaused reports critical pressure.
func (m *Monitor) IsPaused() bool {
	return m.Pressure() == PressureCritical
}

// Usage returns the latest heap sample and its share of the budget.
func (m *Monitor) Usage() (alloc uint64, ratio float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.limit == 0 {
		return m.alloc, 0
	}
	return m.alloc, float64(m.alloc) / float64(m.limit)
}
