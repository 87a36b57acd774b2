package classifier

import (
	"context"
	"sync"

	"github.com/dagwatch/dagwatch/internal/domain/fighter"
	"github.com/dagwatch/dagwatch/internal/platform/logging"
	"github.com/dagwatch/dagwatch/internal/platform/resilience"
	"github.com/dagwatch/dagwatch/internal/storage"
)

// Provider resolves one fighter name to an origin. The OpenAI client
// satisfies it in production.
type Provider interface {
	Enabled() bool
	ClassifyFighter(ctx context.Context, name string) (Origin, error)
}

// Origin mirrors the provider response before it is stamped with the
// fighter name and persisted.
type Origin struct {
	Country     string
	State       *string
	IsDagestani bool
}

type Config struct {
	// CacheFallbacks controls whether Unknown results produced on provider
	// failure are persisted. When false a failed lookup is retried on the
	// next refresh instead of sticking.
	CacheFallbacks bool
}

// Service is a read-through origin cache. The full cache document is
// rewritten after every resolved name so progress survives a crashed run.
type Service struct {
	provider Provider
	store    storage.Store
	logger   *logging.Logger
	cfg      Config

	mu     sync.Mutex
	cache  map[string]fighter.Origin
	flight resilience.SingleFlight[fighter.Origin]
}

func NewService(provider Provider, store storage.Store, logger *logging.Logger, cfg Config) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		provider: provider,
		store:    store,
		logger:   logger,
		cfg:      cfg,
	}
}

func (s *Service) loadLocked(ctx context.Context) {
	if s.cache != nil {
		return
	}
	cache := map[string]fighter.Origin{}
	s.store.Read(ctx, storage.DocFighters, &cache)
	s.cache = cache
}

// Classify returns the cached origin for name, consulting the provider on
// a miss. It never returns an error; provider failures degrade to an
// Unknown origin. The lock only guards the cache map, so misses for
// distinct names resolve against the provider concurrently; concurrent
// misses for the same name share one provider call.
func (s *Service) Classify(ctx context.Context, name string) fighter.Origin {
	key := fighter.CacheKey(name)

	if origin, ok := s.lookup(ctx, key); ok {
		return origin
	}

	origin, _, _ := s.flight.Do(key, func() (fighter.Origin, error) {
		// A shared flight may have cached the name while we queued.
		if cached, ok := s.lookup(ctx, key); ok {
			return cached, nil
		}

		origin, fromFallback := s.resolve(ctx, name)
		if fromFallback && !s.cfg.CacheFallbacks {
			return origin, nil
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.cache[key] = origin
		if err := s.store.Write(ctx, storage.DocFighters, s.cache); err != nil {
			s.logger.WarnContext(ctx, "persist fighter cache failed", "fighter", name, "error", err)
		}
		return origin, nil
	})
	return origin
}

func (s *Service) lookup(ctx context.Context, key string) (fighter.Origin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx)
	origin, ok := s.cache[key]
	return origin, ok
}

func (s *Service) resolve(ctx context.Context, name string) (origin fighter.Origin, fromFallback bool) {
	if s.provider == nil || !s.provider.Enabled() {
		return fighter.UnknownOrigin(name), true
	}

	resolved, err := s.provider.ClassifyFighter(ctx, name)
	if err != nil {
		s.logger.WarnContext(ctx, "fighter classification failed", "fighter", name, "error", err)
		return fighter.UnknownOrigin(name), true
	}

	return fighter.Origin{
		Name:        name,
		Country:     resolved.Country,
		State:       resolved.State,
		IsDagestani: resolved.IsDagestani,
	}, false
}

// Cached returns a copy of the in-memory cache, loading it from the store
// on first use.
func (s *Service) Cached(ctx context.Context) map[string]fighter.Origin {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx)

	out := make(map[string]fighter.Origin, len(s.cache))
	for k, v := range s.cache {
		out[k] = v
	}
	return out
}

// Invalidate drops one cached name and persists the shrunken cache.
func (s *Service) Invalidate(ctx context.Context, name string) bool {
	key := fighter.CacheKey(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx)

	if _, ok := s.cache[key]; !ok {
		return false
	}
	delete(s.cache, key)
	if err := s.store.Write(ctx, storage.DocFighters, s.cache); err != nil {
		s.logger.WarnContext(ctx, "persist fighter cache failed", "fighter", name, "error", err)
	}
	return true
}
