package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dagwatch/dagwatch/internal/app"
	"github.com/dagwatch/dagwatch/internal/config"
	"github.com/dagwatch/dagwatch/internal/observability"
	"github.com/dagwatch/dagwatch/internal/platform/logging"
)

// Entry point for the scheduled refresh job. Runs one full pass and exits,
// so a cron or CI schedule can drive it.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.NewJSON(cfg.LogLevel)
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	shutdownTracing, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		logger.Error("init uptrace", "error", err)
		os.Exit(1)
	}

	container, err := app.NewContainer(cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		os.Exit(1)
	}
	defer func() { _ = container.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	runErr := container.Refresh.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("shutdown tracing", "error", err)
	}

	if runErr != nil {
		logger.Error("refresh failed", "error", runErr, "elapsed", time.Since(start).String())
		os.Exit(1)
	}

	logger.Info("refresh completed", "elapsed", time.Since(start).String())
}
