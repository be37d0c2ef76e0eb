package registry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CacheClient defines the subset of Redis commands the cached repository needs.
type CacheClient interface {
	// Get unmarshals the cached value into dest, or returns an error on a miss.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedRepository decorates a Repository with read-aside caching of the
// per-JID registration list. Every call fan-out starts with a ListByJID, so
// hot callees stop hitting Postgres between registration changes. Writes go
// to the source of truth first and then invalidate the cached list; a broken
// cache never fails a request, it only costs the optimization.
type CachedRepository struct {
	repo   Repository
	cache  CacheClient
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedRepository creates the caching decorator.
func NewCachedRepository(repo Repository, cache CacheClient, ttl time.Duration, logger zerolog.Logger) *CachedRepository {
	return &CachedRepository{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "registry_cache").Logger(),
	}
}

// ListByJID tries the cache first and falls back to the real repository.
func (c *CachedRepository) ListByJID(ctx context.Context, jid string) ([]*Registration, error) {
	key := c.cacheKey(jid)

	var cached []*Registration
	if err := c.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	fresh, err := c.repo.ListByJID(ctx, jid)
	if err != nil {
		return nil, err
	}

	// Populate on miss. Caching is an optimization, not a transaction; if
	// Redis is down we just keep serving from Postgres.
	if err := c.cache.Set(ctx, key, fresh, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("jid", jid).Msg("failed to populate registration cache")
	}

	return fresh, nil
}

// Upsert writes through and invalidates the account's cached list.
func (c *CachedRepository) Upsert(ctx context.Context, reg *Registration) error {
	if err := c.repo.Upsert(ctx, reg); err != nil {
		return err
	}
	c.invalidate(ctx, reg.JID)
	return nil
}

// Delete writes through and invalidates the account's cached list.
func (c *CachedRepository) Delete(ctx context.Context, jid, deviceID string) error {
	if err := c.repo.Delete(ctx, jid, deviceID); err != nil {
		return err
	}
	c.invalidate(ctx, jid)
	return nil
}

// DeleteQuietly writes through and invalidates the account's cached list.
// A dead token must stop being served as soon as cleanup runs, otherwise the
// next call would push to it again from cache.
func (c *CachedRepository) DeleteQuietly(ctx context.Context, jid, deviceID string) error {
	if err := c.repo.DeleteQuietly(ctx, jid, deviceID); err != nil {
		return err
	}
	c.invalidate(ctx, jid)
	return nil
}

// DeleteByJID writes through and invalidates the account's cached list.
func (c *CachedRepository) DeleteByJID(ctx context.Context, jid string) (int64, error) {
	count, err := c.repo.DeleteByJID(ctx, jid)
	if err != nil {
		return 0, err
	}
	c.invalidate(ctx, jid)
	return count, nil
}

// PurgeOlderThan passes through. The sweep removes registrations months past
// their last write; cached copies of those lists age out within the TTL.
func (c *CachedRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return c.repo.PurgeOlderThan(ctx, cutoff)
}

func (c *CachedRepository) invalidate(ctx context.Context, jid string) {
	if err := c.cache.Del(ctx, c.cacheKey(jid)); err != nil {
		c.logger.Warn().Err(err).Str("jid", jid).Msg("failed to invalidate registration cache")
	}
}

func (c *CachedRepository) cacheKey(jid string) string {
	return "veil:push:regs:" + jid
}

// Ensure CachedRepository implements Repository interface.
var _ Repository = (*CachedRepository)(nil)
