package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artifactflow/server/internal/config"
)

// runServe loads configuration, wires the application, starts the HTTP
// server, and blocks until SIGINT/SIGTERM triggers a graceful shutdown.
func runServe(ctx context.Context, configPath string, debug bool) error {
	logger := newLogger(debug)

	var cfg *config.Config
	if configFileExists(configPath) {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config %q: %w", configPath, err)
		}
		cfg = loaded
	} else {
		loaded, err := config.Load("")
		if err != nil {
			return fmt.Errorf("load config from environment: %w", err)
		}
		cfg = loaded
		logger.Info("no config file found, using defaults and environment overrides", "path", configPath)
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(sigCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}

	if err := a.server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	<-sigCtx.Done()
	logger.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.shutdown(shutdownCtx, 30*time.Second)

	logger.Info("shutdown complete")
	return nil
}

// newLogger builds the process-wide slog.Logger, matching main's default
// JSON handler but with debug-level verbosity when requested.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
