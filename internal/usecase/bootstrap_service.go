package usecase

import (
	"context"
	"fmt"
	"sync"

	ants "github.com/panjf2000/ants/v2"

	"github.com/dagwatch/dagwatch/internal/domain/fighter"
	"github.com/dagwatch/dagwatch/internal/platform/logging"
)

type BootstrapConfig struct {
	// ClassifyWorkers bounds concurrent origin lookups while warming the
	// fighter cache for a large batch.
	ClassifyWorkers int
}

// BootstrapService builds the historical collection from scratch by walking
// the results archive. Repeated runs with increasing offsets extend the
// collection further back in time.
type BootstrapService struct {
	archive   ArchiveProvider
	origins   OriginResolver
	reconcile *ReconcileService
	stats     *StatsService
	logger    *logging.Logger
	cfg       BootstrapConfig
}

func NewBootstrapService(
	archive ArchiveProvider,
	origins OriginResolver,
	reconcile *ReconcileService,
	stats *StatsService,
	logger *logging.Logger,
	cfg BootstrapConfig,
) *BootstrapService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ClassifyWorkers < 1 {
		cfg.ClassifyWorkers = 4
	}
	return &BootstrapService{
		archive:   archive,
		origins:   origins,
		reconcile: reconcile,
		stats:     stats,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run scans eventCount archive events starting at offset, warms the fighter
// cache for every name seen, merges the Dagestani fights and recomputes
// stats. It returns how many historical records were added.
func (s *BootstrapService) Run(ctx context.Context, eventCount, offset int) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "BootstrapService.Run")
	defer span.End()

	if eventCount < 1 {
		return 0, fmt.Errorf("%w: event count must be at least one", ErrInvalidInput)
	}
	if offset < 0 {
		return 0, fmt.Errorf("%w: offset must not be negative", ErrInvalidInput)
	}

	events, err := s.archive.FetchCompletedEvents(ctx, eventCount, offset)
	if err != nil {
		return 0, fmt.Errorf("fetch completed events: %w", err)
	}
	if len(events) == 0 {
		s.logger.WarnContext(ctx, "archive returned no events", "offset", offset, "limit", eventCount)
		return 0, nil
	}

	fights, err := s.reconcile.CollectArchiveFights(ctx, events)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "collected archive fights", "events", len(events), "fights", len(fights))

	if err := s.warmOrigins(ctx, fights); err != nil {
		return 0, err
	}

	added, err := s.reconcile.AppendArchiveFights(ctx, fights)
	if err != nil {
		return 0, err
	}

	if _, err := s.stats.Recompute(ctx); err != nil {
		return added, err
	}
	return added, nil
}

// warmOrigins classifies every fighter seen in the batch ahead of the merge
// so the merge itself runs against a hot cache.
func (s *BootstrapService) warmOrigins(ctx context.Context, fights []ArchiveFight) error {
	names := make(map[string]string, len(fights)*2)
	for _, item := range fights {
		names[fighter.CacheKey(item.FighterA)] = item.FighterA
		names[fighter.CacheKey(item.FighterB)] = item.FighterB
	}
	delete(names, "")
	s.logger.InfoContext(ctx, "warming fighter origin cache", "fighters", len(names))

	workers, err := ants.NewPool(s.cfg.ClassifyWorkers)
	if err != nil {
		return fmt.Errorf("create classification pool: %w", err)
	}
	defer workers.Release()

	var wg sync.WaitGroup
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		name := name
		wg.Add(1)
		if err := workers.Submit(func() {
			defer wg.Done()
			s.origins.Classify(ctx, name)
		}); err != nil {
			wg.Done()
			s.logger.WarnContext(ctx, "classification task rejected", "fighter", name, "error", err)
		}
	}
	wg.Wait()
	return ctx.Err()
}
