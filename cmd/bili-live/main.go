// Command bili-live is the live-status watcher service. It runs the check
// cycle on a cron schedule and serves the token-gated HTTP surface.
//
// Usage:
//
//	bili-live
//	API_PORT=8080 CHECK_SCHEDULE="*/2 * * * *" bili-live

// @title bili-live API
// @version 1.0.0
// @description Watches a list of Bilibili streamers and pushes a digest when one of them goes live.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @contact.name bili-live
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"

	"github.com/lovetingyuan/bili-live/internal/api"
	"github.com/lovetingyuan/bili-live/internal/bili"
	"github.com/lovetingyuan/bili-live/internal/cache"
	"github.com/lovetingyuan/bili-live/internal/checker"
	"github.com/lovetingyuan/bili-live/internal/config"
	"github.com/lovetingyuan/bili-live/internal/events"
	"github.com/lovetingyuan/bili-live/internal/metrics"
	"github.com/lovetingyuan/bili-live/internal/notifications"
	"github.com/lovetingyuan/bili-live/internal/schedule"
	"github.com/lovetingyuan/bili-live/internal/store"

	_ "github.com/lovetingyuan/bili-live/docs" // swagger docs
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.SafeToken == "" {
		logger.Warn("SAFE_TOKEN is empty; every /api/v1 request will be rejected")
	}

	rec := metrics.NewRecorder(nil)

	// State store
	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	// Upstream client
	client, err := bili.NewClient(bili.Options{
		APIURL:            cfg.BiliAPIURL,
		ProxyPrefix:       cfg.BiliProxyPrefix,
		Direct:            cfg.BiliDirect,
		RequestsPerMinute: cfg.BiliRequestsPerMinute,
		Recorder:          rec,
	}, logger)
	if err != nil {
		return fmt.Errorf("create bili client: %w", err)
	}

	notifier, err := notifications.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create notifier: %w", err)
	}

	publisher, err := events.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("open events publisher: %w", err)
	}
	defer publisher.Close()

	appCache := cache.New(true)

	chk := checker.New(checker.Options{
		Store:       st,
		Fetcher:     client,
		Notifier:    notifier,
		Publisher:   publisher,
		Metrics:     rec,
		FallbackIDs: cfg.UpIDs,
		OnPersist:   func() { appCache.Invalidate(cache.KeyInspect) },
		Logger:      logger,
	})

	// Periodic check cycle
	sched, err := schedule.New(ctx, schedule.Config{
		Cron:           cfg.CheckSchedule,
		RunImmediately: true,
	}, chk.RunScheduled, logger)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			logger.Error("Scheduler shutdown error", "error", err)
		}
	}()

	// Create router
	router := api.NewRouter(api.Deps{
		Service: chk,
		Store:   st,
		Cache:   appCache,
		Metrics: rec.Handler(),
		Logger:  logger,
	}, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // a check cycle may retry upstream and wait on the push provider
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting bili-live",
			"addr", addr,
			"environment", cfg.Environment,
			"store", cfg.StoreDriver,
			"channel", cfg.NotifyChannel,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt or listener failure
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
	return nil
}

// newLogger writes text to a terminal and JSON otherwise.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
