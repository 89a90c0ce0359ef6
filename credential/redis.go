package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	redisValueField  = "v"
	redisSecureField = "s"
)

// RedisBackend stores each entry as a small hash under prefix:key with a
// native Redis TTL.
type RedisBackend struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisBackend creates a [RedisBackend]. prefix sets the key namespace.
func NewRedisBackend(client redis.UniversalClient, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "gs"
	}
	return &RedisBackend{
		redis:  client,
		prefix: prefix,
	}
}

func (b *RedisBackend) key(name string) string {
	return b.prefix + ":cred:" + name
}

// Get returns the value stored under key.
//
//	Performance: 1 Redis HGET.
func (b *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := b.redis.HGet(ctx, b.key(key), redisValueField).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return value, true, nil
}

// SetMany writes all entries in one MULTI/EXEC transaction.
//
//	Performance: 1 round trip (DEL + HSET + PEXPIRE per entry).
func (b *RedisBackend) SetMany(ctx context.Context, entries map[string]Entry) error {
	_, err := b.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for name, e := range entries {
			key := b.key(name)
			secure := "0"
			if e.Secure {
				secure = "1"
			}
			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, redisValueField, e.Value, redisSecureField, secure)
			if e.TTL > 0 {
				pipe.PExpire(ctx, key, e.TTL)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Delete removes keys. Missing keys are not an error.
func (b *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, b.key(k))
	}
	if err := b.redis.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Secure reports the secure flag recorded for key.
func (b *RedisBackend) Secure(ctx context.Context, key string) (bool, error) {
	v, err := b.redis.HGet(ctx, b.key(key), redisSecureField).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return v == "1", nil
}

// Ping returns a point-in-time Redis availability check.
func (b *RedisBackend) Ping(ctx context.Context) error {
	if err := b.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
