package usecase

import (
	"context"
	"fmt"

	"github.com/dagwatch/dagwatch/internal/domain/fight"
	"github.com/dagwatch/dagwatch/internal/platform/logging"
	"github.com/dagwatch/dagwatch/internal/storage"
)

// BackfillService repairs historical records written by earlier pipeline
// versions that lacked the round, dagestaniFighter and result fields.
type BackfillService struct {
	store   storage.Store
	origins OriginResolver
	logger  *logging.Logger
}

func NewBackfillService(store storage.Store, origins OriginResolver, logger *logging.Logger) *BackfillService {
	if logger == nil {
		logger = logging.Default()
	}
	return &BackfillService{store: store, origins: origins, logger: logger}
}

// MigrateHistorical fills the derived fields on every historical record that
// is missing them and persists the repaired collection. Existing values are
// left alone, so the migration is idempotent. It returns how many records
// were changed.
func (s *BackfillService) MigrateHistorical(ctx context.Context) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "BackfillService.MigrateHistorical")
	defer span.End()

	var historical []fight.HistoricalMatch
	if !s.store.Read(ctx, storage.DocHistorical, &historical) || len(historical) == 0 {
		s.logger.InfoContext(ctx, "no historical records to migrate")
		return 0, nil
	}

	changed := 0
	for i := range historical {
		if s.migrateRecord(ctx, &historical[i]) {
			changed++
		}
	}

	if changed == 0 {
		s.logger.InfoContext(ctx, "historical records already migrated", "records", len(historical))
		return 0, nil
	}

	if err := s.store.Write(ctx, storage.DocHistorical, historical); err != nil {
		return 0, fmt.Errorf("persist migrated collection: %w", err)
	}
	s.logger.InfoContext(ctx, "historical migration complete", "changed", changed, "records", len(historical))
	return changed, nil
}

func (s *BackfillService) migrateRecord(ctx context.Context, record *fight.HistoricalMatch) bool {
	changed := false

	if record.Round == "" {
		record.Round = archiveRound
		changed = true
	}
	if record.DagestaniFighter == "" {
		dagestani := record.FighterA
		if !record.IsDagestaniA {
			dagestani = record.FighterB
		}
		record.DagestaniFighter = dagestani
		changed = true
	}
	if record.Result == "" {
		record.Result = fight.ResultLoss
		if record.Winner == record.DagestaniFighter {
			record.Result = fight.ResultWin
		}
		changed = true
	}
	if s.origins != nil && (record.CountryA == "" || record.CountryB == "") {
		if record.CountryA == "" {
			record.CountryA = s.origins.Classify(ctx, record.FighterA).Country
		}
		if record.CountryB == "" {
			record.CountryB = s.origins.Classify(ctx, record.FighterB).Country
		}
		changed = true
	}
	return changed
}
