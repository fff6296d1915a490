package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resort/internal/infra/config"
	ginserver "resort/internal/infra/http/gin"
	"resort/internal/infra/obs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootLogger := obs.NewLogger(obs.LoggerOptions{Env: os.Getenv("APP_ENV")})
	if err := config.LoadDotEnv(".env"); err != nil {
		bootLogger.Warn("dotenv load failed", "error", err)
	}
	cfg, err := config.Load()
	if err != nil {
		bootLogger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(obs.LoggerOptions{Env: cfg.Env, Level: cfg.LogLevel, File: cfg.LogFile})
	metrics := obs.NewMetrics()

	app, err := buildApplication(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	if err := loadFixtures(ctx, cfg.FixturesPath, app.uow, logger); err != nil {
		logger.Warn("catalog fixtures load failed", "error", err, "path", cfg.FixturesPath)
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Probes:  app.probes,
		Timeout: 2 * time.Second,
	}, metrics, app.handlers)

	app.startBackground(ctx, logger)

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "store", cfg.Store)
	if err := serve(ctx, server, 5*time.Second, logger); err != nil {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	app.wait()
	logger.Info("HTTP server stopped")
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// serve blocks until ctx is cancelled and the server has drained in-flight
// requests, or until the listener fails.
func serve(ctx context.Context, server httpServer, grace time.Duration, logger *slog.Logger) error {
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	// ListenAndServe returns as soon as Shutdown starts; handlers still
	// running may hand notices to the dispatcher until it completes.
	<-drained
	return nil
}
