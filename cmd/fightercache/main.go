package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/dagwatch/dagwatch/internal/app"
	"github.com/dagwatch/dagwatch/internal/config"
	"github.com/dagwatch/dagwatch/internal/domain/fighter"
	"github.com/dagwatch/dagwatch/internal/platform/logging"
)

// Maintenance tool for the fighter origin cache. "show" resolves through the
// classifier, so running it on an uncached name populates the cache.
func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

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

	switch strings.ToLower(strings.TrimSpace(os.Args[1])) {
	case "list":
		listOrigins(ctx, container)
	case "show":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "show requires a fighter name")
			os.Exit(2)
		}
		showOrigin(ctx, container, strings.Join(os.Args[2:], " "))
	case "invalidate":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "invalidate requires a fighter name")
			os.Exit(2)
		}
		invalidateOrigin(ctx, container, strings.Join(os.Args[2:], " "))
	default:
		printUsage()
		os.Exit(2)
	}
}

func listOrigins(ctx context.Context, container *app.Container) {
	cached := container.Origins.Cached(ctx)
	keys := make([]string, 0, len(cached))
	for key := range cached {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		printOrigin(cached[key])
	}
	fmt.Printf("%d fighters cached\n", len(keys))
}

func showOrigin(ctx context.Context, container *app.Container, name string) {
	printOrigin(container.Origins.Classify(ctx, name))
}

func invalidateOrigin(ctx context.Context, container *app.Container, name string) {
	if container.Origins.Invalidate(ctx, name) {
		fmt.Printf("removed %q from the cache\n", name)
		return
	}
	fmt.Printf("%q was not cached\n", name)
}

func printOrigin(origin fighter.Origin) {
	region := origin.Country
	if origin.State != nil && *origin.State != "" {
		region = fmt.Sprintf("%s, %s", *origin.State, origin.Country)
	}
	marker := " "
	if origin.IsDagestani {
		marker = "*"
	}
	fmt.Printf("%s %-30s %s\n", marker, origin.Name, region)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: fightercache <command> [args]

commands:
  list               print every cached fighter origin
  show <name>        resolve one fighter, caching the result
  invalidate <name>  drop one fighter from the cache`)
}
