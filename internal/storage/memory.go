package storage

import (
	"context"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
)

// MemoryStore is an in-process Store used by tests and dry runs.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string][]byte
	modified map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string][]byte),
		modified: make(map[string]time.Time),
	}
}

func (s *MemoryStore) Read(_ context.Context, key string, target any) bool {
	s.mu.RLock()
	raw, ok := s.docs[key]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if err := sonic.Unmarshal(raw, target); err != nil {
		return false
	}
	return true
}

func (s *MemoryStore) Write(_ context.Context, key string, value any) error {
	raw, err := sonic.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.docs[key] = raw
	s.modified[key] = time.Now().UTC()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LastModified(_ context.Context, key string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.modified[key]
	return at, ok
}

// Corrupt replaces a document with bytes that do not parse, for tests that
// exercise the read-with-fallback contract.
func (s *MemoryStore) Corrupt(key string) {
	s.mu.Lock()
	s.docs[key] = []byte("{not json")
	s.modified[key] = time.Now().UTC()
	s.mu.Unlock()
}
