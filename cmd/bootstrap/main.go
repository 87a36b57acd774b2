package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dagwatch/dagwatch/internal/app"
	"github.com/dagwatch/dagwatch/internal/config"
	"github.com/dagwatch/dagwatch/internal/platform/logging"
)

// Entry point for the one-off historical seed. Scrapes a window of completed
// events from the results archive and folds them into the historical
// collection. Re-running with a larger offset extends the collection.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	events := flag.Int("events", cfg.BootstrapRecentEvents, "number of completed events to ingest")
	offset := flag.Int("offset", 0, "number of most recent events to skip")
	flag.Parse()

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

	start := time.Now()
	added, err := container.Bootstrap.Run(ctx, *events, *offset)
	if err != nil {
		logger.Error("bootstrap failed", "error", err, "elapsed", time.Since(start).String())
		os.Exit(1)
	}

	logger.Info("bootstrap completed",
		"events", *events,
		"offset", *offset,
		"fights_added", added,
		"elapsed", time.Since(start).String(),
	)
}
