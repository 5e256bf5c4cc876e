package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const keyPrefixLink = "shortlink:link:"

// LinkKey returns the Redis key of a cached resolution.
func LinkKey(shortCode string) string {
	return keyPrefixLink + shortCode
}

// RedisCache shares resolutions between replicas.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, shortCode string) (*entity.RedirectTarget, error) {
	const op = "adapter.cache.RedisCache.Get"

	data, err := c.client.Get(ctx, LinkKey(shortCode)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: failed to get cached link: %w", op, err)
	}

	var target entity.RedirectTarget
	if err := json.Unmarshal(data, &target); err != nil {
		return nil, fmt.Errorf("%s: failed to decode cached link: %w", op, err)
	}

	return &target, nil
}

func (c *RedisCache) Set(ctx context.Context, shortCode string, target *entity.RedirectTarget) error {
	const op = "adapter.cache.RedisCache.Set"

	data, err := json.Marshal(target)
	if err != nil {
		return fmt.Errorf("%s: failed to encode link: %w", op, err)
	}

	if err := c.client.Set(ctx, LinkKey(shortCode), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("%s: failed to cache link: %w", op, err)
	}

	return nil
}

func (c *RedisCache) Delete(ctx context.Context, shortCode string) error {
	const op = "adapter.cache.RedisCache.Delete"

	if err := c.client.Del(ctx, LinkKey(shortCode)).Err(); err != nil {
		return fmt.Errorf("%s: failed to invalidate cached link: %w", op, err)
	}

	return nil
}
