package redis

import (
	"context"
	"time"
)

// LockStoreInterface defines the interface for per-trip distributed locking.
type LockStoreInterface interface {
	AcquireTripLock(ctx context.Context, tripID string, ttl time.Duration) (bool, error)
	ReleaseTripLock(ctx context.Context, tripID string) error
}

// SuppressionCacheInterface defines the interface for the suppression cache.
type SuppressionCacheInterface interface {
	GetSuppression(ctx context.Context, channel, address string) (*CachedSuppression, error)
	SetSuppression(ctx context.Context, entry *CachedSuppression) error
	InvalidateSuppression(ctx context.Context, channel, address string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface        = (*LockStore)(nil)
	_ SuppressionCacheInterface = (*CacheStore)(nil)
)
