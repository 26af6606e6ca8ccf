package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"video-mosaic/internal/logging"
	"video-mosaic/internal/memory"
)

const rule = "------------------------------------------------------------"

const banner = `
        _     __                                      _
 _   __(_)___/ /__  ____     ____ ___  ____  _________ _(_)____
| | / / / __  / _ \/ __ \   / __ '__ \/ __ \/ ___/ __ '/ / ___/
| |/ / / /_/ /  __/ /_/ /  / / / / / / /_/ (__  ) /_/ / / /__
|___/_/\__,_/\___/\____/  /_/ /_/ /_/\____/____/\__,_/_/\___/
`

// section opens a titled block of the startup log.
func section(title string, args ...any) {
	logging.Info("")
	logging.Info(rule)
	logging.Info(title, args...)
	logging.Info(rule)
}

// field logs an indented, aligned "label: value" line.
func field(label string, value any) {
	logging.Info("  %-17s %v", label+":", value)
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func printBanner() {
	fmt.Println(rule + banner + rule)
	info := GetBuildInfo()
	logging.Info("  %s", info)
	field("Built", info.BuildTime)
	field("Started", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")
	field("Go", runtime.Version())
	procs, cpus := runtime.GOMAXPROCS(0), runtime.NumCPU()
	if procs < cpus {
		field("CPUs", fmt.Sprintf("%d of %d (container limit)", procs, cpus))
	} else {
		field("CPUs", cpus)
	}
	if !logging.IsDebugEnabled() {
		return
	}
	if wd, err := os.Getwd(); err == nil {
		logging.Debug("  Working dir:      %s", wd)
	}
	if host, err := os.Hostname(); err == nil {
		logging.Debug("  Hostname:         %s", host)
	}
}

// LogMemoryConfig logs the memory limit picked by memory.ConfigureFromEnv.
func LogMemoryConfig(result memory.ConfigResult) {
	section("MEMORY CONFIGURATION")
	switch {
	case !result.Configured:
		logging.Info("  No limit set; MEMORY_LIMIT or GOMEMLIMIT enables backpressure")
	case result.Source == "GOMEMLIMIT":
		field("GOMEMLIMIT", formatBytes(result.GoMemLimit)+" (from environment)")
	default:
		field("Container limit", fmt.Sprintf("%s (%s)", formatBytes(result.ContainerLimit), result.Source))
		field("GOMEMLIMIT", fmt.Sprintf("%s (%.0f%%)", formatBytes(result.GoMemLimit), result.Ratio*100))
	}
}

// LogEncoderInit reports which output formats are available.
func LogEncoderInit(vipsErr error) {
	section("ENCODER INITIALIZATION")
	field("JPEG, PNG", "ready")
	if vipsErr != nil {
		logging.Warn("  WebP, HEIF and AVIF disabled, libvips unavailable: %v", vipsErr)
		return
	}
	field("WebP, HEIF, AVIF", "ready (libvips)")
}

// LogFrameSourceInit checks that the ffprobe and ffmpeg binaries run.
// A missing binary is logged, not fatal: jobs fail until it is installed.
func LogFrameSourceInit(ffmpegPath, ffprobePath string) {
	section("FRAME SOURCE INITIALIZATION")
	for _, bin := range []string{ffprobePath, ffmpegPath} {
		version, err := binaryVersion(bin)
		if err != nil {
			logging.Warn("  %s unavailable, mosaic jobs will fail: %v", filepath.Base(bin), err)
			continue
		}
		field(filepath.Base(bin), version)
	}
}

// LogIndexInit reports the dedup index that was opened.
func LogIndexInit(backend, location string, entries int64, duration time.Duration) {
	section("INDEX INITIALIZATION")
	if backend == IndexNone {
		logging.Warn("  Index disabled, every job renders")
		return
	}
	field("Backend", backend)
	field("Location", location)
	field("Mosaics", entries)
	field("Opened in", duration.Round(time.Millisecond))
}

// LogOrchestratorInit reports batch concurrency settings.
func LogOrchestratorInit(budget, extractWorkers int, tick time.Duration) {
	section("ORCHESTRATOR INITIALIZATION")
	field("Job budget", budget)
	field("Extract workers", fmt.Sprintf("%d per job", extractWorkers))
	field("Adjust interval", tick)
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted lists the listening endpoints once startup is done.
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED in %v", config.StartupDuration.Round(time.Millisecond))
	field("API", "http://0.0.0.0:"+config.Port+"/api")
	field("Events", "http://0.0.0.0:"+config.Port+"/api/events")
	if config.MetricsEnabled {
		field("Metrics", "http://0.0.0.0:"+config.MetricsPort+"/metrics")
	} else {
		field("Metrics", "DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop")
	logging.Info(rule)
}

// LogShutdownInitiated opens the shutdown block.
func LogShutdownInitiated(signal string) {
	section("SHUTDOWN (%s)", signal)
}

// LogShutdownStep logs a step that is about to run, at debug level.
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a finished step.
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete closes the shutdown block.
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs and exits with status 1.
func LogFatal(format string, args ...any) {
	logging.Fatal(format, args...)
}

// formatBytes renders b with binary units, e.g. 1536 -> "1.5 KiB".
func formatBytes(b int64) string {
	if b < 1024 {
		return fmt.Sprintf("%d B", b)
	}
	v := float64(b)
	unit := -1
	for v >= 1024 && unit < len("KMGTPE")-1 {
		v /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %ciB", v, "KMGTPE"[unit])
}
