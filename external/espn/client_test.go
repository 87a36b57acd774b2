package espn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagwatch/dagwatch/internal/platform/logging"
	"github.com/dagwatch/dagwatch/internal/platform/resilience"
	"github.com/dagwatch/dagwatch/internal/usecase"
)

const scoreboardPayload = `{
  "events": [
    {
      "id": 600040888,
      "name": "UFC 311: Makhachev vs. Moicano",
      "shortName": "UFC 311",
      "date": "2025-01-18T23:00Z",
      "status": {"type": {"name": "STATUS_SCHEDULED", "state": "pre"}},
      "competitions": [
        {
          "id": "401720711",
          "status": {"period": 0, "type": {"name": "STATUS_SCHEDULED", "state": "pre", "detail": ""}},
          "competitors": [
            {"winner": false, "athlete": {"displayName": "Islam Makhachev"}},
            {"winner": false, "athlete": {"displayName": "Renato Moicano"}}
          ]
        }
      ]
    },
    {
      "id": "600040777",
      "name": "UFC 310: Pantoja vs. Asakura",
      "date": "2024-12-08T03:00Z",
      "status": {"type": {"name": "STATUS_FINAL", "state": "post"}},
      "competitions": [
        {
          "id": "401720600",
          "status": {"period": 2, "type": {"name": "STATUS_FINAL", "state": "post", "detail": "Final - Round 2"}},
          "competitors": [
            {"winner": true, "athlete": {"displayName": "Alexandre Pantoja"}},
            {"winner": false, "athlete": {"displayName": "Kai Asakura"}}
          ]
        }
      ]
    },
    {
      "name": "malformed event without id",
      "date": "2025-02-01T00:00Z",
      "status": {"type": {"state": "pre"}}
    }
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(ClientConfig{
		BaseURL:     server.URL,
		MaxAttempts: 3,
		RetryDelay:  5 * time.Millisecond,
		Logger:      logging.NewNop(),
	})
}

func TestNewClientLeavesSharedHTTPClientUntouched(t *testing.T) {
	shared := &http.Client{}
	NewClient(ClientConfig{HTTPClient: shared, Logger: logging.NewNop()})
	assert.Zero(t, shared.Timeout)
}

func TestFetchEventsMapsAndValidates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scoreboard", r.URL.Path)
		_, _ = w.Write([]byte(scoreboardPayload))
	})

	events, err := client.FetchEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2, "event without id must be dropped")

	assert.Equal(t, "600040888", events[0].ID)
	assert.Equal(t, "UFC 311: Makhachev vs. Moicano", events[0].Name)
	assert.Equal(t, "2025-01-18T23:00Z", events[0].Date)
	assert.Equal(t, "STATUS_SCHEDULED", events[0].Status)
	assert.Equal(t, "STATUS_FINAL", events[1].Status)
}

func TestFetchEventDetails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(scoreboardPayload))
	})

	card, err := client.FetchEventDetails(context.Background(), "600040777")
	require.NoError(t, err)
	require.Len(t, card.Fights, 1)

	f := card.Fights[0]
	assert.Equal(t, "401720600", f.ID)
	assert.Equal(t, "STATUS_FINAL", f.Status)
	assert.Equal(t, "Final - Round 2", f.Method)
	assert.Equal(t, "2", f.Round)
	require.Len(t, f.Competitors, 2)
	assert.Equal(t, "Alexandre Pantoja", f.Competitors[0].Name)
	assert.True(t, f.Competitors[0].Winner)
}

func TestFetchEventDetailsOutsideWindow(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(scoreboardPayload))
	})

	card, err := client.FetchEventDetails(context.Background(), "999999")
	require.NoError(t, err)
	assert.Equal(t, "999999", card.ID)
	assert.Equal(t, "Unknown Event", card.Name)
	assert.Empty(t, card.Fights)
}

func TestFetchEventsRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(scoreboardPayload))
	})

	events, err := client.FetchEvents(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchEventsExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.FetchEvents(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchEventsDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.FetchEvents(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCircuitBreakerRejectsAfterFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{
		BaseURL:     server.URL,
		MaxAttempts: 1,
		RetryDelay:  time.Millisecond,
		Logger:      logging.NewNop(),
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 1,
			OpenTimeout:      time.Minute,
		},
	})

	_, err := client.FetchEvents(context.Background())
	require.Error(t, err)

	_, err = client.FetchEvents(context.Background())
	require.ErrorIs(t, err, usecase.ErrDependencyUnavailable)
}
