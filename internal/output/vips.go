package output

import (
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"video-mosaic/internal/logging"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// VipsConfig sizes libvips at startup.
type VipsConfig struct {
	// ConcurrencyLevel is the number of libvips worker threads per encode.
	ConcurrencyLevel int
	MaxCacheMem      int
}

// DefaultVipsConfig keeps libvips lean; mosaics are encoded once and never
// re-read, so the operation cache is of little use.
func DefaultVipsConfig() VipsConfig {
	return VipsConfig{
		ConcurrencyLevel: 2,
		MaxCacheMem:      16 * 1024 * 1024,
	}
}

// vipsLogBridge maps the application log level onto libvips' level and
// returns a handler forwarding vips messages to the application log.
func vipsLogBridge(appLevel logging.LogLevel) (vips.LogLevel, func(string, vips.LogLevel, string)) {
	var threshold vips.LogLevel
	switch appLevel {
	case logging.LevelDebug:
		threshold = vips.LogLevelInfo
	case logging.LevelInfo:
		threshold = vips.LogLevelWarning
	case logging.LevelWarn:
		threshold = vips.LogLevelError
	default:
		threshold = vips.LogLevelCritical
	}

	handler := func(domain string, level vips.LogLevel, msg string) {
		// vips levels follow GLib, where a lower value is more severe.
		switch {
		case level <= vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case level <= vips.LogLevelWarning:
			if threshold >= vips.LogLevelWarning {
				logging.Warn("[%s] %s", domain, msg)
			}
		default:
			if threshold >= vips.LogLevelInfo {
				logging.Debug("[%s] %s", domain, msg)
			}
		}
	}
	return threshold, handler
}

// InitVips starts libvips. It is safe to call more than once.
func InitVips(cfg VipsConfig) error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	level, handler := vipsLogBridge(logging.GetLevel())
	// Must be configured before Startup to take effect.
	vips.LoggingSettings(handler, level)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: max(1, cfg.ConcurrencyLevel),
		MaxCacheMem:      cfg.MaxCacheMem,
		MaxCacheSize:     0,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized (version: %s), webp/heif/avif output enabled", vips.Version)
	return nil
}

// ShutdownVips releases libvips. govips cannot be restarted afterwards.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}
