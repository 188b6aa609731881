package cache

import (
	"context"
	"errors"
	"time"

	rediscache "github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// localCacheSize is the entry count for the in-process TinyLFU tier kept in
// front of Redis.
const localCacheSize = 8192

// Redis implements Cache over go-redis/cache with a local TinyLFU tier.
type Redis struct {
	cache *rediscache.Cache
}

// NewRedis wraps an existing Redis client.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{
		cache: rediscache.New(&rediscache.Options{
			Redis:      client,
			LocalCache: rediscache.NewTinyLFU(localCacheSize, time.Minute),
		}),
	}
}

func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return r.cache.Set(&rediscache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: value,
		TTL:   ttl,
	})
}

func (r *Redis) Get(ctx context.Context, key string, dest any) (bool, error) {
	err := r.cache.Get(ctx, key, dest)
	if errors.Is(err, rediscache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.cache.Delete(ctx, key)
}
