package classifier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagwatch/dagwatch/internal/domain/fighter"
	"github.com/dagwatch/dagwatch/internal/platform/logging"
	"github.com/dagwatch/dagwatch/internal/storage"
)

type fakeProvider struct {
	enabled bool
	calls   int
	origins map[string]Origin
	err     error
}

func (f *fakeProvider) Enabled() bool { return f.enabled }

func (f *fakeProvider) ClassifyFighter(_ context.Context, name string) (Origin, error) {
	f.calls++
	if f.err != nil {
		return Origin{}, f.err
	}
	if origin, ok := f.origins[name]; ok {
		return origin, nil
	}
	return Origin{Country: fighter.CountryUnknown}, nil
}

func dagestan() *string {
	s := "Dagestan"
	return &s
}

func TestClassifyCachesProviderResult(t *testing.T) {
	provider := &fakeProvider{
		enabled: true,
		origins: map[string]Origin{
			"Islam Makhachev": {Country: "Russia", State: dagestan(), IsDagestani: true},
		},
	}
	store := storage.NewMemoryStore()
	svc := NewService(provider, store, logging.NewNop(), Config{CacheFallbacks: true})

	first := svc.Classify(context.Background(), "Islam Makhachev")
	require.True(t, first.IsDagestani)
	assert.Equal(t, "Russia", first.Country)

	second := svc.Classify(context.Background(), "Islam Makhachev")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.calls, "second lookup must hit the cache")

	persisted := map[string]fighter.Origin{}
	require.True(t, store.Read(context.Background(), storage.DocFighters, &persisted))
	assert.Contains(t, persisted, "islam makhachev")
}

func TestClassifyKeyNormalization(t *testing.T) {
	provider := &fakeProvider{
		enabled: true,
		origins: map[string]Origin{
			"Khabib Nurmagomedov": {Country: "Russia", State: dagestan(), IsDagestani: true},
		},
	}
	svc := NewService(provider, storage.NewMemoryStore(), logging.NewNop(), Config{CacheFallbacks: true})

	svc.Classify(context.Background(), "Khabib Nurmagomedov")
	svc.Classify(context.Background(), "  khabib nurmagomedov  ")

	assert.Equal(t, 1, provider.calls)
}

func TestClassifyFallbackIsSticky(t *testing.T) {
	provider := &fakeProvider{enabled: true, err: errors.New("rate limited")}
	svc := NewService(provider, storage.NewMemoryStore(), logging.NewNop(), Config{CacheFallbacks: true})

	got := svc.Classify(context.Background(), "Petr Yan")
	assert.Equal(t, fighter.CountryUnknown, got.Country)
	assert.False(t, got.IsDagestani)

	svc.Classify(context.Background(), "Petr Yan")
	assert.Equal(t, 1, provider.calls, "fallback must be cached")
}

func TestClassifyFallbackRetriedWhenNotCached(t *testing.T) {
	provider := &fakeProvider{enabled: true, err: errors.New("rate limited")}
	svc := NewService(provider, storage.NewMemoryStore(), logging.NewNop(), Config{CacheFallbacks: false})

	svc.Classify(context.Background(), "Petr Yan")
	svc.Classify(context.Background(), "Petr Yan")
	assert.Equal(t, 2, provider.calls)
}

func TestClassifyDisabledProviderSkipsCalls(t *testing.T) {
	provider := &fakeProvider{enabled: false}
	svc := NewService(provider, storage.NewMemoryStore(), logging.NewNop(), Config{CacheFallbacks: true})

	got := svc.Classify(context.Background(), "Merab Dvalishvili")
	assert.Equal(t, fighter.CountryUnknown, got.Country)
	assert.Zero(t, provider.calls)
}

func TestClassifySurvivesCorruptCacheDocument(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Corrupt(storage.DocFighters)

	provider := &fakeProvider{
		enabled: true,
		origins: map[string]Origin{
			"Umar Nurmagomedov": {Country: "Russia", State: dagestan(), IsDagestani: true},
		},
	}
	svc := NewService(provider, store, logging.NewNop(), Config{CacheFallbacks: true})

	got := svc.Classify(context.Background(), "Umar Nurmagomedov")
	assert.True(t, got.IsDagestani)
}

// blockingProvider parks every classification until released, so tests can
// observe which lookups are in flight at the same time.
type blockingProvider struct {
	started chan string
	release chan struct{}
	calls   atomic.Int32
}

func (p *blockingProvider) Enabled() bool { return true }

func (p *blockingProvider) ClassifyFighter(_ context.Context, name string) (Origin, error) {
	p.calls.Add(1)
	p.started <- name
	<-p.release
	return Origin{Country: "Russia", State: dagestan(), IsDagestani: true}, nil
}

func TestClassifyDistinctNamesResolveConcurrently(t *testing.T) {
	provider := &blockingProvider{
		started: make(chan string, 2),
		release: make(chan struct{}),
	}
	svc := NewService(provider, storage.NewMemoryStore(), logging.NewNop(), Config{CacheFallbacks: true})

	var wg sync.WaitGroup
	for _, name := range []string{"Islam Makhachev", "Umar Nurmagomedov"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			got := svc.Classify(context.Background(), name)
			assert.True(t, got.IsDagestani)
		}(name)
	}

	// Both provider calls must be in flight before either is released.
	for i := 0; i < 2; i++ {
		select {
		case <-provider.started:
		case <-time.After(2 * time.Second):
			t.Fatal("lookups for distinct names did not overlap")
		}
	}

	close(provider.release)
	wg.Wait()
	assert.Equal(t, int32(2), provider.calls.Load())
}

func TestClassifySameNameSharesOneProviderCall(t *testing.T) {
	provider := &blockingProvider{
		started: make(chan string, 2),
		release: make(chan struct{}),
	}
	store := storage.NewMemoryStore()
	svc := NewService(provider, store, logging.NewNop(), Config{CacheFallbacks: true})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := svc.Classify(context.Background(), "Islam Makhachev")
			assert.True(t, got.IsDagestani)
		}()
	}

	select {
	case <-provider.started:
	case <-time.After(2 * time.Second):
		t.Fatal("no lookup reached the provider")
	}
	// Give the second caller time to either join the in-flight call or to
	// queue behind it; neither path may reach the provider again.
	time.Sleep(50 * time.Millisecond)
	close(provider.release)
	wg.Wait()

	assert.Equal(t, int32(1), provider.calls.Load())

	persisted := map[string]fighter.Origin{}
	require.True(t, store.Read(context.Background(), storage.DocFighters, &persisted))
	assert.Contains(t, persisted, "islam makhachev")
}

func TestInvalidate(t *testing.T) {
	provider := &fakeProvider{
		enabled: true,
		origins: map[string]Origin{
			"Islam Makhachev": {Country: "Russia", State: dagestan(), IsDagestani: true},
		},
	}
	svc := NewService(provider, storage.NewMemoryStore(), logging.NewNop(), Config{CacheFallbacks: true})

	svc.Classify(context.Background(), "Islam Makhachev")
	assert.True(t, svc.Invalidate(context.Background(), "ISLAM MAKHACHEV"))
	assert.False(t, svc.Invalidate(context.Background(), "Islam Makhachev"))

	svc.Classify(context.Background(), "Islam Makhachev")
	assert.Equal(t, 2, provider.calls)
}
