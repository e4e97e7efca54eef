package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/commission-service/internal/domain"
)

// StatsCache stores computed monthly stats in Redis. Every key written for a
// principal is tracked in a set so the whole principal can be dropped at once,
// and a per-principal generation counter fences out writes computed before the
// last invalidation.
type StatsCache struct {
	client *redis.Client
}

// NewStatsCache wraps client.
func NewStatsCache(client *redis.Client) *StatsCache {
	return &StatsCache{client: client}
}

// Get returns the cached stats under key. A miss is reported with ok=false.
func (c *StatsCache) Get(ctx context.Context, key string) ([]domain.MonthlyStat, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var stats []domain.MonthlyStat
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false, err
	}
	return stats, true, nil
}

// Generation returns the invalidation counter of trackingKey; zero if it was
// never invalidated.
func (c *StatsCache) Generation(ctx context.Context, trackingKey string) (int64, error) {
	generation, err := c.client.Get(ctx, generationKey(trackingKey)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return generation, err
}

// Set writes stats under key and records key in the principal's tracking set,
// unless the generation moved past generation in the meantime.
func (c *StatsCache) Set(ctx context.Context, trackingKey, key string, generation int64, stats []domain.MonthlyStat, ttl time.Duration) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	genKey := generationKey(trackingKey)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, ttl)
			pipe.SAdd(ctx, trackingKey, key)
			pipe.Expire(ctx, trackingKey, ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// Invalidate bumps the generation and drops every key tracked under
// trackingKey.
func (c *StatsCache) Invalidate(ctx context.Context, trackingKey string) error {
	if err := c.client.Incr(ctx, generationKey(trackingKey)).Err(); err != nil {
		return err
	}
	keys, err := c.client.SMembers(ctx, trackingKey).Result()
	if err != nil {
		return err
	}
	keys = append(keys, trackingKey)
	return c.client.Del(ctx, keys...).Err()
}

func generationKey(trackingKey string) string {
	return trackingKey + ":gen"
}
