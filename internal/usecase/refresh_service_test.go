package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagwatch/dagwatch/internal/domain/fight"
	"github.com/dagwatch/dagwatch/internal/platform/logging"
	"github.com/dagwatch/dagwatch/internal/storage"
)

func newRefreshFixture(live *fakeLive, archive *fakeArchive, store storage.Store) *RefreshService {
	origins := &fakeOrigins{dagestani: dagestaniSet("Islam Makhachev")}
	reconcile := newReconcile(live, archive, origins, store)
	stats := NewStatsService(store, origins, logging.NewNop())
	return NewRefreshService(reconcile, stats, store, logging.NewNop(), RefreshConfig{})
}

func lastRefreshDoc(t *testing.T, store storage.Store) (string, bool) {
	t.Helper()
	var doc struct {
		Timestamp string `json:"timestamp"`
	}
	ok := store.Read(context.Background(), storage.DocLastRefresh, &doc)
	return doc.Timestamp, ok && doc.Timestamp != ""
}

func TestRunWritesTimestampOnSuccess(t *testing.T) {
	store := storage.NewMemoryStore()
	live := &fakeLive{
		events: []fight.RawEvent{{ID: "e1", Name: "Event", Date: "2025-02-01T00:00Z", Status: "pre"}},
		cards: map[string]fight.RawEventWithCard{
			"e1": {ID: "e1", Name: "Event", Date: "2025-02-01T00:00Z", Fights: []fight.RawFight{
				{ID: "f1", Status: "pre", Competitors: []fight.RawCompetitor{
					{Name: "Islam Makhachev"}, {Name: "Arman Tsarukyan"},
				}},
			}},
		},
	}
	archive := &fakeArchive{events: []ArchiveEvent{{ID: "done", Name: "Done", Date: "January 18, 2025"}}}
	svc := newRefreshFixture(live, archive, store)

	require.NoError(t, svc.Run(context.Background()))

	timestamp, ok := lastRefreshDoc(t, store)
	require.True(t, ok)
	_, err := time.Parse(time.RFC3339, timestamp)
	assert.NoError(t, err)

	var stats fight.Stats
	assert.True(t, store.Read(context.Background(), storage.DocStats, &stats))
	var upcoming []fight.UpcomingMatch
	require.True(t, store.Read(context.Background(), storage.DocUpcoming, &upcoming))
	assert.Len(t, upcoming, 1)
}

func TestRunSkipsTimestampWhenStepFails(t *testing.T) {
	store := storage.NewMemoryStore()
	live := &fakeLive{eventsErr: errors.New("provider down")}
	archive := &fakeArchive{events: []ArchiveEvent{{ID: "done", Name: "Done"}}}
	svc := newRefreshFixture(live, archive, store)

	err := svc.Run(context.Background())
	require.Error(t, err)

	_, ok := lastRefreshDoc(t, store)
	assert.False(t, ok, "failed run must not record a refresh timestamp")

	var stats fight.Stats
	assert.True(t, store.Read(context.Background(), storage.DocStats, &stats), "stats step still runs after a failed step")
}

func TestRunContinuesAfterArchiveFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	live := &fakeLive{events: nil}
	archive := &fakeArchive{eventsErr: errors.New("scrape blocked")}
	svc := newRefreshFixture(live, archive, store)

	err := svc.Run(context.Background())
	require.Error(t, err)

	var upcoming []fight.UpcomingMatch
	assert.True(t, store.Read(context.Background(), storage.DocUpcoming, &upcoming), "upcoming rebuild still ran")
	_, ok := lastRefreshDoc(t, store)
	assert.False(t, ok)
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Write(context.Background(), storage.DocRefreshLock, refreshLock{
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}))

	svc := newRefreshFixture(&fakeLive{}, &fakeArchive{}, store)
	err := svc.Run(context.Background())
	assert.ErrorIs(t, err, ErrRefreshInProgress)
}

func TestRunTakesOverStaleLock(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Write(context.Background(), storage.DocRefreshLock, refreshLock{
		StartedAt: time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC3339),
	}))

	svc := newRefreshFixture(&fakeLive{}, &fakeArchive{}, store)
	require.NoError(t, svc.Run(context.Background()))

	var lock refreshLock
	store.Read(context.Background(), storage.DocRefreshLock, &lock)
	assert.Empty(t, lock.StartedAt, "lock is released after the run")
}
