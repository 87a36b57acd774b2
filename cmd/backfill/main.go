package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dagwatch/dagwatch/internal/app"
	"github.com/dagwatch/dagwatch/internal/config"
	"github.com/dagwatch/dagwatch/internal/platform/logging"
)

// Entry point for the one-off historical migration. Fills fields that older
// refresh versions never wrote. Safe to re-run; complete records are left
// untouched.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.NewJSON(cfg.LogLevel)
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	container, err := app.NewContainer(cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		os.Exit(1)
	}
	defer func() { _ = container.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	changed, err := container.Backfill.MigrateHistorical(ctx)
	if err != nil {
		logger.Error("backfill failed", "error", err)
		os.Exit(1)
	}

	logger.Info("backfill completed", "records_changed", changed)
}
