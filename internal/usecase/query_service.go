package usecase

import (
	"context"
	"time"

	"github.com/dagwatch/dagwatch/internal/domain/fight"
	"github.com/dagwatch/dagwatch/internal/platform/cache"
	"github.com/dagwatch/dagwatch/internal/storage"
)

// QueryService is the read surface over the persisted collections. All
// readers get a safe zero value when a document is missing or unreadable.
type QueryService struct {
	store storage.Store

	upcomingCache   *cache.Store[[]fight.UpcomingMatch]
	historicalCache *cache.Store[[]fight.HistoricalMatch]
	statsCache      *cache.Store[fight.Stats]
}

func NewQueryService(store storage.Store) *QueryService {
	return &QueryService{store: store}
}

// NewCachedQueryService layers a TTL read cache over the store so the HTTP
// surface does not hit disk or the database on every request. State written
// by a refresh becomes visible once the TTL lapses.
func NewCachedQueryService(store storage.Store, ttl time.Duration) *QueryService {
	if ttl <= 0 {
		return NewQueryService(store)
	}
	return &QueryService{
		store:           store,
		upcomingCache:   cache.NewStore[[]fight.UpcomingMatch](ttl),
		historicalCache: cache.NewStore[[]fight.HistoricalMatch](ttl),
		statsCache:      cache.NewStore[fight.Stats](ttl),
	}
}

func (s *QueryService) LoadUpcoming(ctx context.Context) []fight.UpcomingMatch {
	ctx, span := startUsecaseSpan(ctx, "QueryService.LoadUpcoming")
	defer span.End()

	if s.upcomingCache != nil {
		matches, _ := s.upcomingCache.GetOrLoad(ctx, storage.DocUpcoming, func(ctx context.Context) ([]fight.UpcomingMatch, error) {
			return s.readUpcoming(ctx), nil
		})
		return matches
	}
	return s.readUpcoming(ctx)
}

func (s *QueryService) readUpcoming(ctx context.Context) []fight.UpcomingMatch {
	matches := []fight.UpcomingMatch{}
	s.store.Read(ctx, storage.DocUpcoming, &matches)
	return matches
}

func (s *QueryService) LoadHistorical(ctx context.Context) []fight.HistoricalMatch {
	ctx, span := startUsecaseSpan(ctx, "QueryService.LoadHistorical")
	defer span.End()

	if s.historicalCache != nil {
		matches, _ := s.historicalCache.GetOrLoad(ctx, storage.DocHistorical, func(ctx context.Context) ([]fight.HistoricalMatch, error) {
			return s.readHistorical(ctx), nil
		})
		return matches
	}
	return s.readHistorical(ctx)
}

func (s *QueryService) readHistorical(ctx context.Context) []fight.HistoricalMatch {
	matches := []fight.HistoricalMatch{}
	s.store.Read(ctx, storage.DocHistorical, &matches)
	return matches
}

func (s *QueryService) LoadStats(ctx context.Context) fight.Stats {
	ctx, span := startUsecaseSpan(ctx, "QueryService.LoadStats")
	defer span.End()

	if s.statsCache != nil {
		stats, _ := s.statsCache.GetOrLoad(ctx, storage.DocStats, func(ctx context.Context) (fight.Stats, error) {
			return s.readStats(ctx), nil
		})
		return stats
	}
	return s.readStats(ctx)
}

func (s *QueryService) readStats(ctx context.Context) fight.Stats {
	stats := fight.Stats{}
	s.store.Read(ctx, storage.DocStats, &stats)
	return stats
}

// LastRefresh reports when the last successful refresh finished, false when
// no refresh has completed yet. Never cached so job status is always live.
func (s *QueryService) LastRefresh(ctx context.Context) (time.Time, bool) {
	ctx, span := startUsecaseSpan(ctx, "QueryService.LastRefresh")
	defer span.End()

	var doc struct {
		Timestamp string `json:"timestamp"`
	}
	if s.store.Read(ctx, storage.DocLastRefresh, &doc) && doc.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, doc.Timestamp); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}
