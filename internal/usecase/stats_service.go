package usecase

import (
	"context"
	"fmt"

	"github.com/dagwatch/dagwatch/internal/domain/fight"
	"github.com/dagwatch/dagwatch/internal/domain/fighter"
	"github.com/dagwatch/dagwatch/internal/platform/logging"
	"github.com/dagwatch/dagwatch/internal/storage"
)

// StatsService derives the aggregate record from the historical collection.
// The aggregate is recomputed in full on every run, never incremented.
type StatsService struct {
	store   storage.Store
	origins OriginResolver
	logger  *logging.Logger
}

func NewStatsService(store storage.Store, origins OriginResolver, logger *logging.Logger) *StatsService {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatsService{store: store, origins: origins, logger: logger}
}

// ComputeStats folds a historical collection and an origin cache into the
// aggregate record. WinRate is a 0-1 fraction, 0 for an empty collection.
func ComputeStats(historical []fight.HistoricalMatch, origins map[string]fighter.Origin) fight.Stats {
	stats := fight.Stats{}
	events := make(map[string]struct{}, len(historical))
	for _, match := range historical {
		switch match.Result {
		case fight.ResultWin:
			stats.Wins++
		case fight.ResultLoss:
			stats.Losses++
		}
		events[match.EventID] = struct{}{}
	}

	stats.Total = stats.Wins + stats.Losses
	if stats.Total > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.Total)
	}
	stats.UniqueEvents = len(events)
	stats.FightersAnalyzed = len(origins)
	for _, origin := range origins {
		if origin.IsDagestani {
			stats.DagestaniFighters++
		}
	}
	return stats
}

// Recompute rebuilds and persists the aggregate from current documents.
func (s *StatsService) Recompute(ctx context.Context) (fight.Stats, error) {
	ctx, span := startUsecaseSpan(ctx, "StatsService.Recompute")
	defer span.End()

	var historical []fight.HistoricalMatch
	s.store.Read(ctx, storage.DocHistorical, &historical)

	var origins map[string]fighter.Origin
	if s.origins != nil {
		origins = s.origins.Cached(ctx)
	}

	stats := ComputeStats(historical, origins)
	if err := s.store.Write(ctx, storage.DocStats, stats); err != nil {
		return fight.Stats{}, fmt.Errorf("persist stats: %w", err)
	}

	s.logger.InfoContext(ctx, "stats recomputed",
		"wins", stats.Wins,
		"losses", stats.Losses,
		"total", stats.Total,
		"win_rate", stats.WinRate,
	)
	return stats, nil
}
