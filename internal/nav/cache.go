package nav

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores lookup results between requests.
type Cache interface {
	Get(ctx context.Context, key string) ([]Record, bool, error)
	Set(ctx context.Context, key string, records []Record, ttl time.Duration) error
}

// RedisCache keeps lookup results as JSON strings in Redis.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: "nav:"}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]Record, bool, error) {
	val, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var records []Record
	if err := json.Unmarshal(val, &records); err != nil {
		return nil, false, err
	}
	return records, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, records []Record, ttl time.Duration) error {
	b, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.prefix+key, b, ttl).Err()
}
