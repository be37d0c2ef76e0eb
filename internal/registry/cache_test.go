package registry_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilchat/veilchat/internal/registry"
)

// fakeCache is an in-process CacheClient with call counters.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	gets    int
	sets    int
	dels    int
	failAll bool
}

var errCacheDown = errors.New("cache down")

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (f *fakeCache) Get(_ context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.failAll {
		return errCacheDown
	}
	raw, ok := f.entries[key]
	if !ok {
		return errors.New("cache miss")
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.failAll {
		return errCacheDown
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.entries[key] = raw
	return nil
}

func (f *fakeCache) Del(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dels++
	if f.failAll {
		return errCacheDown
	}
	delete(f.entries, key)
	return nil
}

func newCachedRepo(t *testing.T) (*registry.CachedRepository, *registry.InMemoryRepository, *fakeCache) {
	t.Helper()
	repo := registry.NewInMemoryRepository()
	cache := newFakeCache()
	cached := registry.NewCachedRepository(repo, cache, time.Minute, zerolog.Nop())
	return cached, repo, cache
}

func TestCachedRepository_ReadAside(t *testing.T) {
	cached, repo, cache := newCachedRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, newRegistration("alice@example.com", "dev-1", "tok-1")))

	// First read misses and populates.
	regs, err := cached.ListByJID(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, 1, cache.sets)

	// Mutate the backing store directly; the cached copy still serves.
	_, err = repo.DeleteByJID(ctx, "alice@example.com")
	require.NoError(t, err)

	regs, err = cached.ListByJID(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Len(t, regs, 1, "second read should come from cache")
	assert.Equal(t, 1, cache.sets, "cache hit should not re-populate")
}

func TestCachedRepository_InvalidateOnWrite(t *testing.T) {
	cached, _, cache := newCachedRepo(t)
	ctx := context.Background()

	require.NoError(t, cached.Upsert(ctx, newRegistration("alice@example.com", "dev-1", "tok-1")))
	assert.Equal(t, 1, cache.dels, "upsert should invalidate")

	// Populate the cache, then delete through the decorator.
	_, err := cached.ListByJID(ctx, "alice@example.com")
	require.NoError(t, err)

	require.NoError(t, cached.Delete(ctx, "alice@example.com", "dev-1"))

	regs, err := cached.ListByJID(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Empty(t, regs, "read after delete must not serve the stale list")
}

func TestCachedRepository_CleanupInvalidates(t *testing.T) {
	cached, _, _ := newCachedRepo(t)
	ctx := context.Background()

	require.NoError(t, cached.Upsert(ctx, newRegistration("bob@example.com", "dev-1", "dead-token")))

	// Warm the cache with the registration present.
	regs, err := cached.ListByJID(ctx, "bob@example.com")
	require.NoError(t, err)
	require.Len(t, regs, 1)

	// Provider reported the token dead; cleanup must drop the cached list
	// so the next call does not push to it again.
	require.NoError(t, cached.DeleteQuietly(ctx, "bob@example.com", "dev-1"))

	regs, err = cached.ListByJID(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Empty(t, regs)
}

func TestCachedRepository_CacheDownIsNotFatal(t *testing.T) {
	cached, repo, cache := newCachedRepo(t)
	ctx := context.Background()
	cache.failAll = true

	require.NoError(t, repo.Upsert(ctx, newRegistration("alice@example.com", "dev-1", "tok-1")))

	// Reads fall through to the repository.
	regs, err := cached.ListByJID(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Len(t, regs, 1)

	// Writes still land even though invalidation fails.
	require.NoError(t, cached.Upsert(ctx, newRegistration("alice@example.com", "dev-2", "tok-2")))
	require.NoError(t, cached.Delete(ctx, "alice@example.com", "dev-1"))

	regs, err = repo.ListByJID(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Len(t, regs, 1)
}

func TestCachedRepository_DeleteByJIDInvalidates(t *testing.T) {
	cached, _, cache := newCachedRepo(t)
	ctx := context.Background()

	require.NoError(t, cached.Upsert(ctx, newRegistration("alice@example.com", "dev-1", "tok-1")))
	require.NoError(t, cached.Upsert(ctx, newRegistration("alice@example.com", "dev-2", "tok-2")))

	_, err := cached.ListByJID(ctx, "alice@example.com")
	require.NoError(t, err)

	count, err := cached.DeleteByJID(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	regs, err := cached.ListByJID(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Empty(t, regs)
	assert.GreaterOrEqual(t, cache.dels, 3)
}
