package metadata

import (
	"context"
	"time"
)

// ValueCache is the slice of the cache client the manager needs;
// cache.Client satisfies it.
type ValueCache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

// CachedManager wraps another Manager with a short-TTL read cache so the
// webhook hot path does not hit the remote store on every delivery. Values
// are cached exactly as the inner manager returns them; layered beneath the
// encrypting wrapper the cache only ever holds ciphertext. Writes invalidate
// instead of refreshing, so the next read repopulates from the source of
// truth; staleness across instances is bounded by the TTL.
type CachedManager struct {
	inner Manager
	cache ValueCache
	ttl   time.Duration
}

func NewCachedManager(inner Manager, cache ValueCache, ttl time.Duration) *CachedManager {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedManager{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}
}

func (m *CachedManager) cacheKey(key string) string {
	return "metadata:" + key
}

func (m *CachedManager) Get(ctx context.Context, key string) (string, bool, error) {
	var cached string
	if err := m.cache.Get(ctx, m.cacheKey(key), &cached); err == nil {
		return cached, true, nil
	}

	value, found, err := m.inner.Get(ctx, key)
	if err != nil || !found {
		return value, found, err
	}

	// Best effort; a failed cache write must not fail the read.
	m.cache.Set(ctx, m.cacheKey(key), value, m.ttl)
	return value, true, nil
}

func (m *CachedManager) Set(ctx context.Context, key, value string) error {
	if err := m.inner.Set(ctx, key, value); err != nil {
		return err
	}
	m.cache.Delete(ctx, m.cacheKey(key))
	return nil
}

func (m *CachedManager) Delete(ctx context.Context, key string) error {
	if err := m.inner.Delete(ctx, key); err != nil {
		return err
	}
	m.cache.Delete(ctx, m.cacheKey(key))
	return nil
}
