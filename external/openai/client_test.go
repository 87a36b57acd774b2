package openai

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
)

func completionBody(content string) string {
	return `{"choices":[{"message":{"content":` + content + `}}]}`
}

func newTestClient(baseURL string) *Client {
	return NewClient(ClientConfig{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		MaxAttempts: 2,
		RetryDelay:  5 * time.Millisecond,
		Logger:      logging.NewNop(),
	})
}

func TestNewClientLeavesSharedHTTPClientUntouched(t *testing.T) {
	shared := &http.Client{}
	NewClient(ClientConfig{HTTPClient: shared, Logger: logging.NewNop()})
	assert.Zero(t, shared.Timeout)
}

func TestClassifyFighterParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody(`"{\"country\": \"Russia\", \"state\": \"Dagestan\", \"isDagestani\": true}"`)))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.ClassifyFighter(context.Background(), "Islam Makhachev")
	require.NoError(t, err)

	assert.Equal(t, "Russia", result.Country)
	require.NotNil(t, result.State)
	assert.Equal(t, "Dagestan", *result.State)
	assert.True(t, result.IsDagestani)
}

func TestClassifyFighterDefaultsMissingFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionBody(`"{\"country\": \"\", \"state\": \"\", \"isDagestani\": false}"`)))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.ClassifyFighter(context.Background(), "Somebody New")
	require.NoError(t, err)

	assert.Equal(t, "Unknown", result.Country)
	assert.Nil(t, result.State)
	assert.False(t, result.IsDagestani)
}

func TestClassifyFighterRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(completionBody(`"{\"country\": \"Ireland\", \"state\": null, \"isDagestani\": false}"`)))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.ClassifyFighter(context.Background(), "Conor McGregor")
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "Ireland", result.Country)
}

func TestClassifyFighterDoesNotRetryAuthFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.ClassifyFighter(context.Background(), "Islam Makhachev")

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClassifyFighterRejectsGarbageContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionBody(`"country: Russia"`)))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.ClassifyFighter(context.Background(), "Islam Makhachev")
	assert.Error(t, err)
}

func TestClassifyFighterRequiresCredential(t *testing.T) {
	client := NewClient(ClientConfig{Logger: logging.NewNop()})

	assert.False(t, client.Enabled())
	_, err := client.ClassifyFighter(context.Background(), "Islam Makhachev")
	assert.Error(t, err)
}
