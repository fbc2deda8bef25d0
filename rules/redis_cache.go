package rules

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 500 * time.Millisecond

// RedisRulesCache stores the active rules list as JSON under a single key,
// so several service instances can share it. Redis failures degrade to
// cache misses and are logged, never returned.
type RedisRulesCache struct {
	rdb    *redis.Client
	key    string
	config CacheConfig
	logger *slog.Logger
}

// NewRedisRulesCache creates a Redis-backed cache for one rule set.
func NewRedisRulesCache(rdb *redis.Client, ruleSet string, config CacheConfig, logger *slog.Logger) *RedisRulesCache {
	if ruleSet == "" {
		ruleSet = DefaultRuleSet
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRulesCache{
		rdb:    rdb,
		key:    "noshow:rules:" + ruleSet,
		config: config,
		logger: logger,
	}
}

// Key returns the Redis key holding the cached rules.
func (c *RedisRulesCache) Key() string {
	return c.key
}

// Get returns the cached rules, or nil on a miss, expiry or Redis error.
func (c *RedisRulesCache) Get() []*Rule {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := c.rdb.Get(ctx, c.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis rules cache get failed", "key", c.key, "error", err)
		}
		return nil
	}

	var rules []*Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		c.logger.Warn("redis rules cache holds invalid payload", "key", c.key, "error", err)
		return nil
	}
	if rules == nil {
		rules = []*Rule{}
	}
	return rules
}

// Set stores rules with the configured TTL (0 keeps them until invalidated).
func (c *RedisRulesCache) Set(rules []*Rule) {
	if rules == nil {
		rules = []*Rule{}
	}
	data, err := json.Marshal(rules)
	if err != nil {
		c.logger.Warn("redis rules cache marshal failed", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := c.rdb.Set(ctx, c.key, data, c.config.TTL).Err(); err != nil {
		c.logger.Warn("redis rules cache set failed", "key", c.key, "error", err)
	}
}

// Invalidate deletes the cached rules.
func (c *RedisRulesCache) Invalidate() {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := c.rdb.Del(ctx, c.key).Err(); err != nil {
		c.logger.Warn("redis rules cache invalidate failed", "key", c.key, "error", err)
	}
}

// IsValid reports whether the key currently exists.
func (c *RedisRulesCache) IsValid() bool {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	n, err := c.rdb.Exists(ctx, c.key).Result()
	if err != nil {
		return false
	}
	return n == 1
}
