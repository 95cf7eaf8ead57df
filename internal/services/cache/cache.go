// Package cache stores computed reports in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/viniciusnovato/finance-sub000/internal/config"
	"github.com/viniciusnovato/finance-sub000/internal/utils"
)

// generationKey is bumped on every ledger write; report keys embed it so a
// single INCR invalidates all cached reports.
const generationKey = "reports:generation"

// ReportCache caches JSON documents keyed by report name and parameters.
type ReportCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect creates a cache from configuration. It returns nil when no Redis
// address is configured or the server cannot be reached; a nil
// *ReportCache is a valid cache that never hits.
func Connect(ctx context.Context, cfg *config.Config) *ReportCache {
	if cfg.RedisAddr == "" {
		utils.GetLogger().Info("REDIS_ADDR not set, report caching disabled")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		utils.GetLogger().Warn("Could not connect to Redis, report caching disabled",
			zap.String("addr", cfg.RedisAddr),
			zap.Error(err),
		)
		_ = rdb.Close()
		return nil
	}

	utils.GetLogger().Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
	return New(rdb, cfg.ReportCacheTTL)
}

// New wraps an existing Redis client.
func New(rdb *redis.Client, ttl time.Duration) *ReportCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ReportCache{rdb: rdb, ttl: ttl}
}

// Key resolves name to its key in the current generation. Callers resolve
// the key before computing a report and pass it to both Get and Set, so a
// report built while a write lands is stored where no reader looks.
func (c *ReportCache) Key(ctx context.Context, name string) (string, error) {
	if c == nil {
		return "", nil
	}
	generation, err := c.rdb.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("failed to read cache generation: %w", err)
	}
	return fmt.Sprintf("reports:%d:%s", generation, name), nil
}

// Get loads the report cached under key into dest. It reports false on a
// miss or when the cache is disabled.
func (c *ReportCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c == nil || key == "" {
		return false, nil
	}

	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cached report: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		utils.GetLogger().Warn("Discarding unreadable cached report", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return true, nil
}

// Set stores a report under key for the configured TTL.
func (c *ReportCache) Set(ctx context.Context, key string, value interface{}) error {
	if c == nil || key == "" {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache report: %w", err)
	}
	return nil
}

// Invalidate drops every cached report.
func (c *ReportCache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.rdb.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate reports: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *ReportCache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
