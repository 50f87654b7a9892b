package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"valora_backend/platform/logger"
)

// JSON caches marshalled values in redis under TTL'd keys. A nil client
// disables the cache: Get always misses and Set is a no-op, so callers
// need no redis-configured branch.
type JSON struct {
	client *redis.Client
	log    *logger.Logger
}

// NewJSON creates a redis JSON cache. client may be nil.
func NewJSON(client *redis.Client, log *logger.Logger) *JSON {
	return &JSON{client: client, log: log}
}

// Get unmarshals the cached value for key into dest and reports a hit.
// Transport and decode failures are logged and treated as misses.
func (c *JSON) Get(ctx context.Context, key string, dest any) bool {
	if c.client == nil {
		return false
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.log.Warn("cache entry corrupt, ignoring", "key", key, "error", err)
		return false
	}
	return true
}

// Set stores the marshalled value under key for the given lifetime.
func (c *JSON) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.client == nil || ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache entry %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	return nil
}
