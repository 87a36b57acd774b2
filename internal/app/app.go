package app

import (
	"fmt"
	"net/http"

	"github.com/dagwatch/dagwatch/external/espn"
	"github.com/dagwatch/dagwatch/external/openai"
	"github.com/dagwatch/dagwatch/external/ufcstats"
	"github.com/dagwatch/dagwatch/internal/classifier"
	"github.com/dagwatch/dagwatch/internal/config"
	"github.com/dagwatch/dagwatch/internal/interfaces/httpapi"
	"github.com/dagwatch/dagwatch/internal/platform/logging"
	"github.com/dagwatch/dagwatch/internal/platform/resilience"
	"github.com/dagwatch/dagwatch/internal/storage"
	"github.com/dagwatch/dagwatch/internal/usecase"
)

// Container holds every wired service an entry point might need. Close
// releases the store connection when the backend has one.
type Container struct {
	Store     storage.Store
	Origins   *classifier.Service
	Reconcile *usecase.ReconcileService
	Stats     *usecase.StatsService
	Refresh   *usecase.RefreshService
	Bootstrap *usecase.BootstrapService
	Backfill  *usecase.BackfillService
	Queries   *usecase.QueryService

	closers []func() error
}

func (c *Container) Close() error {
	var firstErr error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewContainer wires the full service graph from configuration.
func NewContainer(cfg config.Config, logger *logging.Logger) (*Container, error) {
	if logger == nil {
		logger = logging.Default()
	}

	c := &Container{}

	store, err := newStore(cfg, logger, c)
	if err != nil {
		return nil, err
	}
	c.Store = store

	openaiClient := openai.NewClient(openai.ClientConfig{
		BaseURL:     cfg.OpenAIBaseURL,
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.OpenAIModel,
		Timeout:     cfg.OpenAITimeout,
		MaxAttempts: cfg.OpenAIMaxAttempts,
		Logger:      logger,
	})
	c.Origins = classifier.NewService(
		&openaiProvider{client: openaiClient},
		store,
		logger,
		classifier.Config{CacheFallbacks: cfg.ClassifierCacheFallbacks},
	)

	espnClient := espn.NewClient(espn.ClientConfig{
		BaseURL:     cfg.ESPNBaseURL,
		Timeout:     cfg.ESPNTimeout,
		MaxAttempts: cfg.ESPNMaxAttempts,
		RetryDelay:  cfg.ESPNRetryDelay,
		Logger:      logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.ESPNCircuitEnabled,
			FailureThreshold: cfg.ESPNCircuitFailureCount,
			OpenTimeout:      cfg.ESPNCircuitOpenTimeout,
		},
	})

	archiveClient := ufcstats.NewClient(ufcstats.ClientConfig{
		BaseURL:    cfg.UFCStatsBaseURL,
		Timeout:    cfg.UFCStatsTimeout,
		FetchDelay: cfg.UFCStatsFetchDelay,
		Logger:     logger,
	})

	c.Reconcile = usecase.NewReconcileService(
		espnClient,
		archiveClient,
		c.Origins,
		store,
		logger,
		usecase.ReconcileConfig{FetchConcurrency: cfg.FetchConcurrency},
	)
	c.Stats = usecase.NewStatsService(store, c.Origins, logger)
	c.Refresh = usecase.NewRefreshService(c.Reconcile, c.Stats, store, logger, usecase.RefreshConfig{
		LockTTL: cfg.RefreshLockTTL,
	})
	c.Bootstrap = usecase.NewBootstrapService(
		archiveClient,
		c.Origins,
		c.Reconcile,
		c.Stats,
		logger,
		usecase.BootstrapConfig{ClassifyWorkers: cfg.FetchConcurrency},
	)
	c.Backfill = usecase.NewBackfillService(store, c.Origins, logger)
	c.Queries = usecase.NewCachedQueryService(store, cfg.QueryCacheTTL)

	return c, nil
}

// NewHTTPServer wires the service graph behind the public router.
func NewHTTPServer(cfg config.Config, logger *logging.Logger) (*http.Server, *Container, error) {
	if cfg.HTTPAddr == "" {
		return nil, nil, fmt.Errorf("http server addr cannot be empty")
	}

	container, err := NewContainer(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	handler := httpapi.NewHandler(container.Queries, container.Refresh, logger)
	router := httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins, cfg.InternalJobToken)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server, container, nil
}

func newStore(cfg config.Config, logger *logging.Logger, c *Container) (storage.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		store, err := storage.OpenPostgresStore(cfg.DBURL, logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, store.Close)
		return store, nil
	case config.StoreBackendFile:
		return storage.NewFileStore(cfg.DataDir, logger), nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}
