package cache

import (
	"context"
	"time"
)

// LayeredCache fronts a Redis cache with a small in-process layer.
// Reads fill the local layer; writes go through to both.
type LayeredCache struct {
	local  *MemoryCache
	remote *RedisCache

	// localTTL bounds how long a remote value may be served locally.
	localTTL time.Duration
}

// NewLayeredCache wraps remote with an in-process read layer.
func NewLayeredCache(remote *RedisCache, opts ...MemoryOption) *LayeredCache {
	return &LayeredCache{
		local:    NewMemoryCache(opts...),
		remote:   remote,
		localTTL: time.Minute,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := lc.remote.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	localTTL := ttl
	if localTTL <= 0 || localTTL > lc.localTTL {
		localTTL = lc.localTTL
	}
	_ = lc.local.Set(ctx, key, value, localTTL)
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.local.Get(ctx, key, dest); err == nil {
		return nil
	}
	if err := lc.remote.Get(ctx, key, dest); err != nil {
		return err
	}
	_ = lc.local.Set(ctx, key, dest, lc.localTTL)
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.local.Delete(ctx, keys...)
	return lc.remote.Delete(ctx, keys...)
}

func (lc *LayeredCache) Exists(ctx context.Context, key string) (bool, error) {
	if ok, err := lc.local.Exists(ctx, key); err == nil && ok {
		return true, nil
	}
	return lc.remote.Exists(ctx, key)
}

// Close closes both layers.
func (lc *LayeredCache) Close() error {
	_ = lc.local.Close()
	return lc.remote.Close()
}
