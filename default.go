package tandem

import (
	"context"
	"sync"
	"time"
)

var (
	defaultMu    sync.Mutex
	defaultCache Cache
)

// Default returns the process-wide cache used by the package-level helpers,
// building it on first use from environment configuration (FromEnv). When
// Redis is absent or misconfigured the default degrades to local-only; it
// never fails to come up.
func Default() Cache {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultCache == nil {
		cfg, _ := FromEnv()
		defaultCache, _ = FromConfig(cfg, Options{})
	}
	return defaultCache
}

// SetDefault replaces the process-wide cache and returns the previous one
// (nil when none was built yet). The caller owns closing the returned cache.
func SetDefault(c Cache) Cache {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultCache
	defaultCache = c
	return prev
}

// GetCached reads key from the default cache. See Cache.Get.
func GetCached(ctx context.Context, key string, dest any) (bool, error) {
	return Default().Get(ctx, key, dest)
}

// SetCached writes key to the default cache. See Cache.Set.
func SetCached(ctx context.Context, key string, value any, ttl time.Duration) error {
	return Default().Set(ctx, key, value, ttl)
}

// DeleteCached removes key from the default cache.
func DeleteCached(ctx context.Context, key string) error {
	return Default().Delete(ctx, key)
}

// ClearCachedPattern removes matching keys from the default cache.
func ClearCachedPattern(ctx context.Context, pattern string) (int, error) {
	return Default().ClearPattern(ctx, pattern)
}

// CachedStats snapshots the default cache.
func CachedStats(ctx context.Context) Stats {
	return Default().Stats(ctx)
}
