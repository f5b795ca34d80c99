package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/scan-intake/internal/core/domain"
)

const cacheKeyPrefix = "part:"

// RedisCache is a ResolutionCache backed by Redis, for deployments where
// several scan stations share one resolution cache. Expiry is enforced
// server-side through the key TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, code string) (domain.PartRecord, bool, error) {
	data, err := r.client.Get(ctx, cacheKeyPrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.PartRecord{}, false, nil
	}
	if err != nil {
		return domain.PartRecord{}, false, err
	}

	var part domain.PartRecord
	if err := json.Unmarshal(data, &part); err != nil {
		// A snapshot we cannot decode is as good as a miss.
		r.client.Del(ctx, cacheKeyPrefix+code)
		return domain.PartRecord{}, false, nil
	}

	return part, true, nil
}

func (r *RedisCache) Put(ctx context.Context, code string, part domain.PartRecord) error {
	data, err := json.Marshal(part)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, cacheKeyPrefix+code, data, r.ttl).Err()
}

func (r *RedisCache) Evict(ctx context.Context, code string) error {
	return r.client.Del(ctx, cacheKeyPrefix+code).Err()
}
