package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore caches suppression entries in Redis. The registry is read on
// every dispatch and written rarely, so a short-TTL read-through cache
// keeps the hot path off Postgres.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// SuppressionCacheTTL bounds how stale a cached opt-out decision can be.
const SuppressionCacheTTL = 60 * time.Second

const suppressionCachePrefix = "cache:suppression:"

// CachedSuppression represents a cached suppression decision.
type CachedSuppression struct {
	Address    string `json:"address"`
	Channel    string `json:"channel"`
	Suppressed bool   `json:"suppressed"`
}

func suppressionKey(channel, address string) string {
	return suppressionCachePrefix + channel + ":" + address
}

// GetSuppression retrieves a cached suppression decision.
// Returns nil on a cache miss.
func (s *CacheStore) GetSuppression(ctx context.Context, channel, address string) (*CachedSuppression, error) {
	data, err := s.client.Get(ctx, suppressionKey(channel, address)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var entry CachedSuppression
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// SetSuppression stores a suppression decision in cache.
func (s *CacheStore) SetSuppression(ctx context.Context, entry *CachedSuppression) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, suppressionKey(entry.Channel, entry.Address), data, SuppressionCacheTTL).Err()
}

// InvalidateSuppression removes a suppression decision from cache. Called
// on opt-out and resubscribe so writes become visible immediately.
func (s *CacheStore) InvalidateSuppression(ctx context.Context, channel, address string) error {
	return s.client.Del(ctx, suppressionKey(channel, address)).Err()
}
