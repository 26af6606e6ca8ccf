package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"video-mosaic/internal/app"
	"video-mosaic/internal/filesystem"
	"video-mosaic/internal/handlers"
	"video-mosaic/internal/logging"
	"video-mosaic/internal/memory"
	"video-mosaic/internal/metrics"
	"video-mosaic/internal/middleware"
	"video-mosaic/internal/output"
	"video-mosaic/internal/startup"

	"github.com/gorilla/mux"
)

const metricsCollectInterval = time.Minute

func main() {
	startTime := time.Now()

	// Size the Go heap before anything allocates
	startup.LogMemoryConfig(memory.ConfigureFromEnv())

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"media":    config.MediaDir,
		"output":   config.OutputDir,
		"database": config.DatabaseDir,
	}))

	// Encoders
	vipsErr := output.InitVips(output.DefaultVipsConfig())
	startup.LogEncoderInit(vipsErr)

	startup.LogFrameSourceInit(config.FFmpegPath, config.FFprobePath)

	// Index, engine and orchestrator
	a, err := app.New(context.Background(), config)
	if err != nil {
		startup.LogFatal("Failed to initialize mosaic pipeline: %v", err)
	}
	startup.LogOrchestratorInit(config.JobBudget, config.ExtractWorkers, config.TickInterval)

	collector := metrics.NewCollector(a.Stats(), a.DBPath(), metricsCollectInterval)
	collector.Start()

	// Initialize handlers
	var lister handlers.MosaicLister
	if a.DB != nil {
		lister = a.DB
	}
	h := handlers.New(a.Orchestrator, a.Engine, lister, a.Stats(), config)
	h.SetMemoryGauge(a.Monitor)

	// Setup router
	router := setupRouter(h)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)

	// Create server. WriteTimeout stays zero for the event stream, and
	// request contexts end on shutdown so open streams return.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelBase)

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config.MetricsPort)
	}

	// Start graceful shutdown handler
	done := make(chan struct{})
	go handleShutdown(srv, metricsSrv, h, a, collector, done)

	h.SetReady(true)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Recovery())
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	h.RegisterRoutes(r)
	return r
}

func startMetricsServer(port string) *http.Server {
	m := http.NewServeMux()
	m.Handle("/metrics", handlers.MetricsHandler())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           m,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

func handleShutdown(srv, metricsSrv *http.Server, h *handlers.Handlers, a *app.App, collector *metrics.Collector, done chan<- struct{}) {
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())
	h.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Cancelling running jobs")
	a.Orchestrator.CancelAll()
	startup.LogShutdownStepComplete("Jobs cancelled")

	startup.LogShutdownStep("Closing index and storage")
	if err := a.Close(); err != nil {
		logging.Warn("Pipeline shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Index and storage closed")
	}

	collector.Stop()
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	output.ShutdownVips()
	startup.LogShutdownComplete()
}
