package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/pulse/internal/adapters/http/api"
	service "github.com/okian/pulse/internal/app"
	"github.com/okian/pulse/internal/config"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Logger isn't configured yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}

	if cfg.LogJSON {
		err = logger.InitJSON()
	} else {
		err = logger.Init()
	}
	if err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Init()

	// Create and start the service with configuration options
	svc := service.New(
		service.WithConfig(cfg),
		service.WithLogger(log),
	)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return 1
	}
	defer svc.Stop()

	if cfg.RunOnce {
		return runOnce(ctx, svc, log)
	}

	// Start background updaters and the batch scheduler.
	go startSystemMetricsUpdater(ctx)
	go startScheduler(ctx, svc, cfg, log)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(svc, svc)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return 0
}

// runOnce performs a single batch pass plus a neglect sweep and exits.
// The exit status reports whether any events were handled, so cron-style
// invocations can tell an idle run from productive work.
func runOnce(ctx context.Context, svc *service.Service, log logger.Logger) int {
	summary, err := svc.RunPass(ctx)
	if err != nil {
		log.Error(ctx, "batch pass failed", logger.Error(err))
		return 1
	}
	neglected, err := svc.RunNeglectSweep(ctx)
	if err != nil {
		log.Error(ctx, "neglect sweep failed", logger.Error(err))
		return 1
	}
	log.Info(ctx, "single pass complete",
		logger.Int("fetched", summary.Fetched),
		logger.Int("processed", summary.Processed),
		logger.Int("skipped", summary.Skipped),
		logger.Int("failed", summary.Failed),
		logger.Int("neglected", neglected),
	)
	if !summary.Any() && neglected == 0 {
		return 2
	}
	return 0
}

// startScheduler drives the batch pass and the neglect sweep on their
// configured intervals until ctx is cancelled.
func startScheduler(ctx context.Context, svc *service.Service, cfg *config.Config, log logger.Logger) {
	passTicker := time.NewTicker(cfg.PassInterval)
	defer passTicker.Stop()
	sweepTicker := time.NewTicker(cfg.SweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-passTicker.C:
			if _, err := svc.RunPass(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error(ctx, "scheduled pass failed", logger.Error(err))
			}
		case <-sweepTicker.C:
			if _, err := svc.RunNeglectSweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error(ctx, "scheduled sweep failed", logger.Error(err))
			}
		}
	}
}

// startSystemMetricsUpdater periodically refreshes runtime gauges.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			metrics.UpdateSystemMemoryUsage(m.Alloc)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		}
	}
}
