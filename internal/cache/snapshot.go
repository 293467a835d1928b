// Package cache provides the two caching layers around the engine: a
// Redis-backed queue snapshot cache shared by waiting-room displays,
// and an in-process LRU of recent triage results keyed by assessment
// content.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smart-triage-engine/internal/domain"
)

const snapshotKey = "triage:queue:snapshot"

// SnapshotCache publishes the latest queue snapshot to Redis so display
// boards and secondary readers can poll without hitting the queue
// manager.
type SnapshotCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewSnapshotCache creates a snapshot cache from a Redis URL.
func NewSnapshotCache(redisURL string, ttl time.Duration) (*SnapshotCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &SnapshotCache{redis: client, ttl: ttl}, nil
}

// PublishSnapshot stores the snapshot under a fixed key. Later
// sequence numbers always overwrite earlier ones; the TTL bounds
// staleness if the publisher dies.
func (c *SnapshotCache) PublishSnapshot(ctx context.Context, snapshot *domain.QueueSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := c.redis.Set(ctx, snapshotKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recently published snapshot, or
// (nil, nil) when none is cached.
func (c *SnapshotCache) LatestSnapshot(ctx context.Context) (*domain.QueueSnapshot, error) {
	val, err := c.redis.Get(ctx, snapshotKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snapshot domain.QueueSnapshot
	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		// Corrupted entry, drop it rather than serving garbage.
		c.redis.Del(ctx, snapshotKey)
		return nil, nil
	}
	return &snapshot, nil
}

// Ping checks if the Redis connection is alive.
func (c *SnapshotCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *SnapshotCache) Close() error {
	return c.redis.Close()
}
