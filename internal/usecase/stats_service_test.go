package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagwatch/dagwatch/internal/domain/fight"
	"github.com/dagwatch/dagwatch/internal/domain/fighter"
	"github.com/dagwatch/dagwatch/internal/platform/logging"
	"github.com/dagwatch/dagwatch/internal/storage"
)

func TestComputeStats(t *testing.T) {
	historical := []fight.HistoricalMatch{
		{EventID: "e1", Result: fight.ResultWin},
		{EventID: "e1", Result: fight.ResultWin},
		{EventID: "e2", Result: fight.ResultLoss},
	}
	origins := map[string]fighter.Origin{
		"islam makhachev":   {IsDagestani: true},
		"conor mcgregor":    {},
		"umar nurmagomedov": {IsDagestani: true},
	}

	stats := ComputeStats(historical, origins)
	assert.Equal(t, 2, stats.Wins)
	assert.Equal(t, 1, stats.Losses)
	assert.Equal(t, 3, stats.Total)
	assert.InDelta(t, 2.0/3.0, stats.WinRate, 1e-9)
	assert.Equal(t, 2, stats.UniqueEvents)
	assert.Equal(t, 3, stats.FightersAnalyzed)
	assert.Equal(t, 2, stats.DagestaniFighters)
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil, nil)
	assert.Zero(t, stats.Wins)
	assert.Zero(t, stats.Losses)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.WinRate)
}

func TestRecomputePersistsAndIsIdempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	historical := []fight.HistoricalMatch{
		{EventID: "e1", Result: fight.ResultWin},
		{EventID: "e2", Result: fight.ResultLoss},
	}
	require.NoError(t, store.Write(context.Background(), storage.DocHistorical, historical))

	svc := NewStatsService(store, &fakeOrigins{dagestani: dagestaniSet("Islam Makhachev")}, logging.NewNop())

	first, err := svc.Recompute(context.Background())
	require.NoError(t, err)
	second, err := svc.Recompute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var persisted fight.Stats
	require.True(t, store.Read(context.Background(), storage.DocStats, &persisted))
	assert.Equal(t, first, persisted)
}

func TestRecomputeWithMissingHistorical(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewStatsService(store, nil, logging.NewNop())

	stats, err := svc.Recompute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.WinRate)

	var persisted fight.Stats
	assert.True(t, store.Read(context.Background(), storage.DocStats, &persisted))
}
