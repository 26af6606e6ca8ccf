// Package main provides the entry point for the Video Mosaic server.
//
// Video Mosaic turns video files into contact sheets: a grid of frames
// sampled across the running time, with timestamp labels and an optional
// metadata footer. The server accepts batches over HTTP, runs them on an
// adaptive worker pool and streams progress as server-sent events.
//
// # Application Lifecycle
//
// The application follows a structured initialization sequence:
//
//  1. Memory Configuration: Sets GOMEMLIMIT from environment or cgroup limits
//  2. Configuration Loading: Reads the optional YAML file and environment
//     variables, validates them and prepares directories
//  3. Metrics: Registers collectors and the filesystem retry observer
//  4. Encoders: Starts libvips for WebP, HEIF and AVIF output
//  5. Frame Source: Checks the ffmpeg and ffprobe binaries
//  6. Pipeline:
//     - Index: SQLite or Pebble dedup index, or none
//     - Storage: Local, S3 and GCS output writer
//     - Engine: Per-job extraction, layout, compositing and encoding
//     - Memory Monitor: Pressure signal for the orchestrator
//     - Orchestrator: Queue with an adaptive concurrency limit
//  7. HTTP Server Setup: Configures routes, middleware, and starts server
//  8. Graceful Shutdown: Handles SIGINT/SIGTERM, stops all components cleanly
//
// # Background Services
//
//   - Orchestrator loop: Schedules jobs and re-evaluates memory pressure
//     every TickInterval
//   - Memory Monitor: Samples heap usage against GOMEMLIMIT
//   - Metrics Collector: Updates Prometheus gauges every minute
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8080):
//     - Batch submission, state and cancellation
//     - Server-sent event stream of job progress
//     - Layout solving without video input
//     - Index listing (SQLite backend)
//     - Health, readiness and version endpoints
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//
// # Environment Variables
//
// See [video-mosaic/internal/startup] for the full list. The most common:
//
//   - MOSAIC_CONFIG: Optional YAML config file; environment wins over it
//   - MEDIA_DIR: Root directory containing videos
//   - OUTPUT_DIR: Default directory for generated mosaics
//   - DATABASE_DIR: Directory for the dedup index
//   - INDEX_BACKEND: sqlite, pebble or none (default: sqlite)
//   - PORT / METRICS_PORT / METRICS_ENABLED
//   - MOSAIC_JOB_WORKERS / MOSAIC_EXTRACT_WORKERS: Concurrency limits
//   - LOG_LEVEL: Logging level (debug/info/warn/error)
//   - GOMEMLIMIT: Memory limit (auto-detected from cgroups if not set)
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the server marks itself not ready, stops accepting
// requests and closes open event streams, cancels running jobs, closes the
// index and cloud clients, stops the metrics collector and server, and
// shuts libvips down. HTTP shutdown has a 30 second timeout.
//
// # Build Requirements
//
// CGO is required for SQLite and libvips. FFmpeg must be installed at run
// time.
//
//	go build -o video-mosaic .
//	go build -o mosaic ./cmd/mosaic
//
// # Related Packages
//
//   - [video-mosaic/internal/app]: Pipeline assembly shared with the CLI
//   - [video-mosaic/internal/batch]: Orchestrator and event stream
//   - [video-mosaic/internal/mosaic]: Per-job engine
//   - [video-mosaic/internal/handlers]: HTTP request handlers
//   - [video-mosaic/internal/middleware]: HTTP middleware (logging, metrics, recovery)
//   - [video-mosaic/internal/startup]: Configuration and initialization
package main
