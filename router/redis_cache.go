package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache is a distributed alternative to the router's default
// in-process cache, keyed the same way and JSON-encoding cachedMatch
// slices the way internal/cache's manager JSON-encodes cached values.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache wraps an existing Redis client. prefix namespaces keys
// (e.g. "fabric:route_cache"); ttl defaults to the router's standard 60s
// when zero.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = cacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl, logger: logger.With(zap.String("component", "router_redis_cache"))}
}

func (r *RedisCache) redisKey(key cacheKey) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, key.kind, key.versionReq)
}

func (r *RedisCache) get(ctx context.Context, key cacheKey) ([]cachedMatch, bool) {
	raw, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("redis cache get failed", zap.Error(err))
		}
		return nil, false
	}
	var matches []cachedMatch
	if err := json.Unmarshal(raw, &matches); err != nil {
		r.logger.Warn("redis cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return matches, true
}

func (r *RedisCache) set(ctx context.Context, key cacheKey, matches []cachedMatch) {
	raw, err := json.Marshal(matches)
	if err != nil {
		r.logger.Warn("failed to encode cache entry", zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, r.redisKey(key), raw, r.ttl).Err(); err != nil {
		r.logger.Warn("redis cache set failed", zap.Error(err))
	}
}

func (r *RedisCache) clear(ctx context.Context) {
	iter := r.client.Scan(ctx, 0, r.prefix+":*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		r.logger.Warn("redis cache scan failed", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.logger.Warn("redis cache clear failed", zap.Error(err))
	}
}
