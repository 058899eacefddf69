package session

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
)

// RedisKeyPrefix is prepended to every session key written to redis.
const RedisKeyPrefix = "session:"

// RedisKV keeps entries in redis without expiry. Portals sharing one redis
// database and namespace share one session, last write wins.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV wraps client.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

// Ping reports whether redis is reachable.
func (r *RedisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, RedisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrAbsent
	}
	return v, err
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, RedisKeyPrefix+key, value, 0).Err()
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, RedisKeyPrefix+key).Err()
}
