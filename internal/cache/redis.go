package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dpp-certification/internal/domain"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares product type definitions across API replicas
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl, prefix: "dpp:"}
}

func (c *RedisCache) Get(ctx context.Context, code string) (*domain.ProductType, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var pt domain.ProductType
	if err := json.Unmarshal(data, &pt); err != nil {
		// A corrupt entry is treated as a miss and overwritten on the next Set.
		return nil, false, nil
	}
	return &pt, true, nil
}

func (c *RedisCache) Set(ctx context.Context, pt *domain.ProductType) error {
	data, err := json.Marshal(pt)
	if err != nil {
		return fmt.Errorf("encode product type: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key(pt.Code), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, code string) error {
	if err := c.client.Del(ctx, c.prefix+key(code)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
