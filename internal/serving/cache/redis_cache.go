// Package cache implements the Model Manager's optional StatusCache over
// the platform's Redis client, narrowed to the Get/Set/Delete slice of
// redis.Cache the manager actually needs between repository-watcher ticks.
package cache

import (
	"context"
	"time"

	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/manager"
)

// store is the slice of redis.Cache the StatusCache calls directly.
type store interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// RedisCache adapts a redis.Cache into manager.StatusCache, keyed by
// model name under a configurable prefix.
type RedisCache struct {
	store  store
	prefix string
	ttl    time.Duration
	logger logging.Logger
}

// NewRedisCache builds a RedisCache. ttl bounds how long a ListStatuses
// snapshot is served without consulting the manager directly.
func NewRedisCache(s store, prefix string, ttl time.Duration, logger logging.Logger) *RedisCache {
	return &RedisCache{store: s, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *RedisCache) key(modelName string) string {
	return c.prefix + modelName
}

// Get implements manager.StatusCache. A Redis error is treated the same as
// a miss — ListStatuses then reads the manager's map and Sets the entry again.
func (c *RedisCache) Get(modelName string) ([]manager.Snapshot, bool) {
	var out []manager.Snapshot
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := c.store.Get(ctx, c.key(modelName), &out); err != nil {
		return nil, false
	}
	return out, true
}

// Set implements manager.StatusCache.
func (c *RedisCache) Set(modelName string, snapshots []manager.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := c.store.Set(ctx, c.key(modelName), snapshots, c.ttl); err != nil {
		c.logger.Warn("status cache: failed to set entry", logging.String("model", modelName), logging.Err(err))
	}
}

// Invalidate implements manager.StatusCache.
func (c *RedisCache) Invalidate(modelName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := c.store.Delete(ctx, c.key(modelName)); err != nil {
		c.logger.Warn("status cache: failed to invalidate entry", logging.String("model", modelName), logging.Err(err))
	}
}

var _ manager.StatusCache = (*RedisCache)(nil)
