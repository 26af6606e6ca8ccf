// Package startup loads configuration and writes the sectioned startup and
// shutdown log shared by the server and, without the banner, the CLI.
//
// # Configuration
//
// [LoadConfig] starts from [DefaultConfig], layers an optional YAML file
// named by MOSAIC_CONFIG on top (koanf keys match the struct tags on
// [Config]), then applies environment variables, which always win.
// [LoadWithDefaults] does the same from caller-supplied defaults and logs
// nothing.
//
// Paths and index:
//
//   - MEDIA_DIR (default /media), OUTPUT_DIR (/output), DATABASE_DIR (/database)
//   - INDEX_BACKEND: sqlite, pebble or none (default sqlite)
//
// Servers and logging:
//
//   - PORT (8080), METRICS_PORT (9090), METRICS_ENABLED (true)
//   - LOG_LEVEL: debug, info, warn or error; LOG_HEALTH_CHECKS (true)
//
// Rendering defaults, used when a job leaves the field unset:
//
//   - MOSAIC_WIDTH, MOSAIC_DENSITY, MOSAIC_STRATEGY, MOSAIC_FORMAT, MOSAIC_QUALITY
//   - MOSAIC_LABELS, MOSAIC_FOOTER, MOSAIC_BORDER, MOSAIC_SHADOW
//   - MOSAIC_MIN_DURATION: shortest accepted video in seconds
//   - SCREEN_WIDTH, SCREEN_HEIGHT, SCREEN_SCALE: display for the auto strategy
//
// Concurrency:
//
//   - MOSAIC_JOB_WORKERS: batch budget; MOSAIC_EXTRACT_WORKERS: per job
//   - MOSAIC_TICK_INTERVAL: adaptive limit period (default 1s)
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see package memory
//
// Frame source and remote output:
//
//   - FFMPEG_PATH, FFPROBE_PATH (default: looked up on PATH)
//   - S3_REGION, S3_ACCESS_KEY, S3_SECRET_KEY, S3_ENDPOINT for s3:// targets
//   - GCS_CREDENTIALS_FILE for gs:// targets
//
// Malformed numeric, boolean or duration values are logged and ignored.
//
// # Directories
//
// The media directory is created when missing. The output directory is
// optional: when it cannot be written only local targets fail. The database
// directory must be writable unless INDEX_BACKEND=none.
//
// # Startup Log
//
// Each initialization step logs a titled section (LogMemoryConfig,
// LogEncoderInit, LogFrameSourceInit, LogIndexInit, LogOrchestratorInit,
// LogHTTPRoutes, LogServerStarted). LogFrameSourceInit runs ffmpeg and
// ffprobe with -version and reports the first line of each.
//
//	cfg, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//	startup.LogFrameSourceInit(cfg.FFmpegPath, cfg.FFprobePath)
//
// Build variables are set with -ldflags and reported by [GetBuildInfo].
package startup
