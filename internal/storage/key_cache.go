package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"credgate/internal/metrics"
	"credgate/internal/models"
	"credgate/internal/utils"
)

const keyCachePrefix = "api_key:"

// KeyCache caches API key records in Redis, keyed by the secret's hash.
// It is advisory: every failure is treated as a miss and the caller falls
// back to the durable store. Records cross the cache boundary through one
// typed encode/decode pair so the stored shape can never drift between the
// write and read paths.
type KeyCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *utils.Logger
}

// NewKeyCache creates a key record cache with the given TTL.
func NewKeyCache(client *redis.Client, ttl time.Duration) *KeyCache {
	return &KeyCache{
		client: client,
		ttl:    ttl,
		logger: utils.NewLogger("key-cache"),
	}
}

func encodeKey(key *models.APIKey) ([]byte, error) {
	return json.Marshal(key)
}

func decodeKey(data []byte) (*models.APIKey, error) {
	var key models.APIKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

// Get returns the cached record for a key hash, or a miss.
func (c *KeyCache) Get(ctx context.Context, keyHash string) (*models.APIKey, bool) {
	data, err := c.client.Get(ctx, keyCachePrefix+keyHash).Bytes()
	if err == redis.Nil {
		metrics.CacheMisses.Inc()
		return nil, false
	}
	if err != nil {
		c.logger.Error("Cache read failed, falling back to store", "error", err)
		metrics.CacheMisses.Inc()
		return nil, false
	}

	key, err := decodeKey(data)
	if err != nil {
		// Undecodable entries are evicted so they cannot shadow the store.
		c.logger.Warn("Evicting undecodable cache entry", "hash", keyHash, "error", err)
		c.client.Del(ctx, keyCachePrefix+keyHash)
		metrics.CacheMisses.Inc()
		return nil, false
	}

	metrics.CacheHits.Inc()
	return key, true
}

// Set stores a record under its key hash.
func (c *KeyCache) Set(ctx context.Context, key *models.APIKey) {
	data, err := encodeKey(key)
	if err != nil {
		c.logger.Error("Failed to encode key record for cache", "error", err)
		return
	}

	if err := c.client.Set(ctx, keyCachePrefix+key.KeyHash, data, c.ttl).Err(); err != nil {
		c.logger.Error("Cache write failed", "error", err)
	}
}

// Invalidate drops the cached record for a key hash. Administrative
// mutations must call this or callers observe stale records for up to
// the TTL.
func (c *KeyCache) Invalidate(ctx context.Context, keyHash string) error {
	return c.client.Del(ctx, keyCachePrefix+keyHash).Err()
}
