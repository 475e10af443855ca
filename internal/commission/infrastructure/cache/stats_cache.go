package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fuel-commission/internal/commission/application"
	commission "fuel-commission/internal/commission/domain"
)

const (
	statsKeyPrefix  = "commission:stats:"
	statsGenKey     = "commission:stats-generation"
	scanBatchSize   = 100
	defaultStatsTTL = time.Minute
)

// Options configures the Redis connection.
type Options struct {
	Enabled  bool
	RedisURL string
	TTL      time.Duration
}

type redisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopStatsCache struct{}

// NewStatsCache returns a Redis-backed cache, or a no-op one when disabled.
func NewStatsCache(opts Options) (application.StatsCache, error) {
	if !opts.Enabled {
		return NewNoopStatsCache(), nil
	}
	if opts.RedisURL == "" {
		return nil, errors.New("stats cache: empty redis url")
	}
	redisOpts, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisStatsCache(client, opts.TTL), nil
}

// NewRedisStatsCache wraps an existing client.
func NewRedisStatsCache(client *redis.Client, ttl time.Duration) application.StatsCache {
	if ttl <= 0 {
		ttl = defaultStatsTTL
	}
	return &redisStatsCache{client: client, ttl: ttl}
}

// NewNoopStatsCache returns a cache that never hits.
func NewNoopStatsCache() application.StatsCache {
	return &noopStatsCache{}
}

func (c *redisStatsCache) GetStats(ctx context.Context, key string) (*commission.Stats, error) {
	payload, err := c.client.Get(ctx, buildStatsKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	var stats commission.Stats
	if err := json.Unmarshal(payload, &stats); err != nil {
		return nil, fmt.Errorf("decode cached stats: %w", err)
	}
	return &stats, nil
}

func (c *redisStatsCache) SetStats(ctx context.Context, key string, stats commission.Stats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	if err := c.client.Set(ctx, buildStatsKey(key), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisStatsCache) Generation(ctx context.Context) (int64, error) {
	generation, err := c.client.Get(ctx, statsGenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation failed: %w", err)
	}
	return generation, nil
}

// Invalidate bumps the generation, then drops every cached stats entry.
func (c *redisStatsCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, statsGenKey).Err(); err != nil {
		return fmt.Errorf("redis incr generation failed: %w", err)
	}
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, statsKeyPrefix+"*", scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("redis scan failed: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis delete failed: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *noopStatsCache) GetStats(context.Context, string) (*commission.Stats, error) {
	return nil, nil
}

func (c *noopStatsCache) SetStats(context.Context, string, commission.Stats) error { return nil }

func (c *noopStatsCache) Generation(context.Context) (int64, error) { return 0, nil }

func (c *noopStatsCache) Invalidate(context.Context) error { return nil }

func buildStatsKey(key string) string {
	sum := sha1.Sum([]byte(key))
	return statsKeyPrefix + hex.EncodeToString(sum[:])
}
