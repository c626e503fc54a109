// Package cache provides the Redis-backed classification cache adapter.
package cache

import (
	"context"
	"fmt"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// ClassificationCache stores final classifications in Redis keyed by the
// review fingerprint.
type ClassificationCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ out.ClassificationCache = (*ClassificationCache)(nil)

// NewClassificationCache creates a Redis cache adapter. ttl <= 0 means
// entries never expire.
func NewClassificationCache(client *redis.Client, ttl time.Duration) *ClassificationCache {
	return &ClassificationCache{client: client, ttl: ttl}
}

// Get returns the cached classification for key, reporting a miss when the
// key is absent.
func (c *ClassificationCache) Get(ctx context.Context, key string) (*domain.Classification, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var result domain.Classification
	if err := json.Unmarshal(data, &result); err != nil {
		// Corrupt entry, treat as miss.
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	return &result, true, nil
}

// Set stores a classification under key.
func (c *ClassificationCache) Set(ctx context.Context, key string, result *domain.Classification) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}
