package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/dagwatch/dagwatch/internal/domain/fight"
	"github.com/dagwatch/dagwatch/internal/domain/fighter"
	"github.com/dagwatch/dagwatch/internal/platform/logging"
	"github.com/dagwatch/dagwatch/internal/storage"
)

// LiveProvider serves the currently visible event window with full cards.
type LiveProvider interface {
	FetchEvents(ctx context.Context) ([]fight.RawEvent, error)
	FetchEventDetails(ctx context.Context, eventID string) (fight.RawEventWithCard, error)
}

// ArchiveEvent is one completed event as listed by the results archive.
type ArchiveEvent struct {
	ID   string
	Name string
	Date string
	URL  string
}

// ArchiveFight carries the outcome of one completed fight. The archive does
// not report rounds, so merged records get a sentinel round value.
type ArchiveFight struct {
	EventID   string
	EventName string
	EventDate string
	FighterA  string
	FighterB  string
	Winner    string
	Method    string
}

// ArchiveProvider serves completed events beyond the live window.
type ArchiveProvider interface {
	FetchCompletedEvents(ctx context.Context, limit, offset int) ([]ArchiveEvent, error)
	FetchEventFights(ctx context.Context, event ArchiveEvent) ([]ArchiveFight, error)
}

// OriginResolver maps a fighter name to a cached origin.
type OriginResolver interface {
	Classify(ctx context.Context, name string) fighter.Origin
	Cached(ctx context.Context) map[string]fighter.Origin
}

const archiveRound = "N/A"

type ReconcileConfig struct {
	// FetchConcurrency bounds parallel card fetches against the live
	// provider during an upcoming rebuild.
	FetchConcurrency int
}

// ReconcileService folds provider snapshots into the persisted collections.
// The upcoming collection is replaced wholesale on every rebuild; the
// historical collection only ever grows.
type ReconcileService struct {
	live    LiveProvider
	archive ArchiveProvider
	origins OriginResolver
	store   storage.Store
	logger  *logging.Logger
	cfg     ReconcileConfig
}

func NewReconcileService(
	live LiveProvider,
	archive ArchiveProvider,
	origins OriginResolver,
	store storage.Store,
	logger *logging.Logger,
	cfg ReconcileConfig,
) *ReconcileService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FetchConcurrency < 1 {
		cfg.FetchConcurrency = 4
	}
	return &ReconcileService{
		live:    live,
		archive: archive,
		origins: origins,
		store:   store,
		logger:  logger,
		cfg:     cfg,
	}
}

// RebuildUpcoming replaces the upcoming collection from a fresh live
// snapshot. Fights already recorded as historical are excluded so a fight
// never appears in both collections.
func (s *ReconcileService) RebuildUpcoming(ctx context.Context) ([]fight.UpcomingMatch, error) {
	ctx, span := startUsecaseSpan(ctx, "ReconcileService.RebuildUpcoming")
	defer span.End()

	events, err := s.live.FetchEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch live events: %w", err)
	}
	upcomingEvents, completedEvents := fight.Categorize(events)
	s.logger.InfoContext(ctx, "categorized live events",
		"upcoming", len(upcomingEvents),
		"completed", len(completedEvents),
	)

	cards := s.fetchCards(ctx, upcomingEvents)

	var historical []fight.HistoricalMatch
	s.store.Read(ctx, storage.DocHistorical, &historical)
	recorded := fight.KeySet(historical)

	matches := make([]fight.UpcomingMatch, 0, len(cards))
	for _, card := range cards {
		for _, f := range card.Fights {
			if fight.IsCompletedStatus(f.Status) {
				continue
			}
			a, b, ok := fightPair(f.Competitors)
			if !ok {
				continue
			}
			if _, exists := recorded[fight.Key(card.ID, a.Name, b.Name)]; exists {
				continue
			}

			originA := s.origins.Classify(ctx, a.Name)
			originB := s.origins.Classify(ctx, b.Name)
			if !originA.IsDagestani && !originB.IsDagestani {
				continue
			}

			matches = append(matches, fight.UpcomingMatch{
				EventID:      card.ID,
				EventName:    card.Name,
				EventDate:    card.Date,
				FighterA:     a.Name,
				FighterB:     b.Name,
				IsDagestaniA: originA.IsDagestani,
				IsDagestaniB: originB.IsDagestani,
				CountryA:     originA.Country,
				CountryB:     originB.Country,
			})
		}
	}

	fight.SortUpcomingByDate(matches)
	if err := s.store.Write(ctx, storage.DocUpcoming, matches); err != nil {
		return nil, fmt.Errorf("persist upcoming collection: %w", err)
	}
	s.logger.InfoContext(ctx, "rebuilt upcoming collection", "matches", len(matches))
	return matches, nil
}

// fetchCards resolves full cards for the given events with bounded
// parallelism. An event whose card cannot be fetched is logged and dropped;
// one bad event must not sink the rebuild.
func (s *ReconcileService) fetchCards(ctx context.Context, events []fight.RawEvent) []fight.RawEventWithCard {
	p := pool.NewWithResults[*fight.RawEventWithCard]().WithMaxGoroutines(s.cfg.FetchConcurrency)
	for _, event := range events {
		event := event
		p.Go(func() *fight.RawEventWithCard {
			card, err := s.live.FetchEventDetails(ctx, event.ID)
			if err != nil {
				s.logger.WarnContext(ctx, "skip event card", "event_id", event.ID, "error", err)
				return nil
			}
			return &card
		})
	}

	results := p.Wait()
	cards := make([]fight.RawEventWithCard, 0, len(results))
	for _, card := range results {
		if card != nil {
			cards = append(cards, *card)
		}
	}
	return cards
}

// MergeCompleted appends newly completed Dagestani fights from the archive.
// It scans the most recent eventCount events starting at offset and returns
// how many records were added.
func (s *ReconcileService) MergeCompleted(ctx context.Context, eventCount, offset int) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "ReconcileService.MergeCompleted")
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

	fights, err := s.CollectArchiveFights(ctx, events)
	if err != nil {
		return 0, err
	}
	return s.AppendArchiveFights(ctx, fights)
}

// CollectArchiveFights resolves the fight lists for the given archive
// events. A failing event is logged and skipped so one broken page cannot
// sink a whole scan.
func (s *ReconcileService) CollectArchiveFights(ctx context.Context, events []ArchiveEvent) ([]ArchiveFight, error) {
	fights := make([]ArchiveFight, 0, len(events)*12)
	for _, event := range events {
		if ctx.Err() != nil {
			return fights, ctx.Err()
		}
		items, err := s.archive.FetchEventFights(ctx, event)
		if err != nil {
			s.logger.WarnContext(ctx, "skip archive event", "event_id", event.ID, "event_name", event.Name, "error", err)
			continue
		}
		fights = append(fights, items...)
	}
	return fights, nil
}

// AppendArchiveFights merges pre-fetched archive fights into the historical
// collection, deduplicating against everything already recorded.
func (s *ReconcileService) AppendArchiveFights(ctx context.Context, fights []ArchiveFight) (int, error) {
	var historical []fight.HistoricalMatch
	s.store.Read(ctx, storage.DocHistorical, &historical)
	recorded := fight.KeySet(historical)

	added := 0
	for _, item := range fights {
		record, ok := s.buildHistorical(ctx, item, recorded)
		if !ok {
			continue
		}
		recorded[fight.Key(record.EventID, record.FighterA, record.FighterB)] = struct{}{}
		historical = append(historical, record)
		added++
	}

	if added == 0 {
		s.logger.InfoContext(ctx, "no new completed fights found", "fights_scanned", len(fights))
		return 0, nil
	}

	fight.SortHistoricalByDate(historical)
	if err := s.store.Write(ctx, storage.DocHistorical, historical); err != nil {
		return 0, fmt.Errorf("persist historical collection: %w", err)
	}
	s.logger.InfoContext(ctx, "merged completed fights", "added", added, "total", len(historical))
	return added, nil
}

func (s *ReconcileService) buildHistorical(ctx context.Context, item ArchiveFight, recorded map[string]struct{}) (fight.HistoricalMatch, bool) {
	if strings.TrimSpace(item.FighterA) == "" || strings.TrimSpace(item.FighterB) == "" {
		return fight.HistoricalMatch{}, false
	}
	if _, exists := recorded[fight.Key(item.EventID, item.FighterA, item.FighterB)]; exists {
		return fight.HistoricalMatch{}, false
	}

	originA := s.origins.Classify(ctx, item.FighterA)
	originB := s.origins.Classify(ctx, item.FighterB)
	if !originA.IsDagestani && !originB.IsDagestani {
		return fight.HistoricalMatch{}, false
	}

	// When both corners are Dagestani the first corner is the tracked one.
	dagestani := item.FighterA
	if !originA.IsDagestani {
		dagestani = item.FighterB
	}
	result := fight.ResultLoss
	if item.Winner == dagestani {
		result = fight.ResultWin
	}

	return fight.HistoricalMatch{
		EventID:          item.EventID,
		EventName:        item.EventName,
		EventDate:        item.EventDate,
		FighterA:         item.FighterA,
		FighterB:         item.FighterB,
		Winner:           item.Winner,
		Method:           item.Method,
		Round:            archiveRound,
		IsDagestaniA:     originA.IsDagestani,
		IsDagestaniB:     originB.IsDagestani,
		CountryA:         originA.Country,
		CountryB:         originB.Country,
		DagestaniFighter: dagestani,
		Result:           result,
	}, true
}

func fightPair(competitors []fight.RawCompetitor) (a, b fight.RawCompetitor, ok bool) {
	if len(competitors) < 2 {
		return fight.RawCompetitor{}, fight.RawCompetitor{}, false
	}
	a, b = competitors[0], competitors[1]
	if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(b.Name) == "" {
		return fight.RawCompetitor{}, fight.RawCompetitor{}, false
	}
	return a, b, true
}
