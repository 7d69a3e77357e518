// Package redis provides a Redis-backed TTL cache implementing the
// domain.ResponseCache interface, used for the session response cache so
// identical messages within a short window skip the provider chain.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/verdant/internal/domain"
	"github.com/davidbz/verdant/internal/observability"
)

// Cache stores values as plain Redis strings with per-key expiry.
type Cache struct {
	client *redis.Client
	prefix string
}

// NewCache creates a new Redis cache adapter.
func NewCache(client *redis.Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Get returns the cached value for key, or domain.ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		observability.FromContext(ctx).Warn("redis get failed",
			observability.Error(err),
			observability.String("key", key))
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// Set stores value under key with the given TTL, overwriting any prior entry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete evicts the entry for key, if any.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
