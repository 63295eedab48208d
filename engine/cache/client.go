package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"viaduct/lib/timer"
)

func (c Client) Get(ctx context.Context, k string) (string, error) {
	defer timer.Start(c.scope.ID(), "cache.get").Stop()
	return c.client.Get(ctx, k).Result()
}

// MGet returns one entry per key: the stored string, or redis.Nil for a
// miss.
func (c Client) MGet(ctx context.Context, ks ...string) ([]interface{}, error) {
	defer timer.Start(c.scope.ID(), "cache.mget").Stop()

	if len(ks) == 0 {
		return []interface{}{}, nil
	}
	pipe := c.client.Pipeline()
	results := make([]*redis.StringCmd, len(ks))
	for i := range ks {
		results[i] = pipe.Get(ctx, ks[i])
	}
	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		return nil, err
	}
	vals := make([]interface{}, len(ks))
	for i := range ks {
		v, err := results[i].Result()
		if err != nil {
			vals[i] = err
		} else {
			vals[i] = v
		}
	}
	return vals, nil
}

func (c Client) Set(ctx context.Context, k string, v interface{}, ttl time.Duration) error {
	defer timer.Start(c.scope.ID(), "cache.set").Stop()
	return c.client.Set(ctx, k, v, ttl).Err()
}

// SetNX stores only if the key is absent; reports whether it stored.
func (c Client) SetNX(ctx context.Context, k string, v interface{}, ttl time.Duration) (bool, error) {
	defer timer.Start(c.scope.ID(), "cache.setnx").Stop()
	return c.client.SetNX(ctx, k, v, ttl).Result()
}

// SetXX stores only if the key is present; reports whether it stored.
func (c Client) SetXX(ctx context.Context, k string, v interface{}, ttl time.Duration) (bool, error) {
	defer timer.Start(c.scope.ID(), "cache.setxx").Stop()
	return c.client.SetXX(ctx, k, v, ttl).Result()
}

// Del removes keys and returns how many existed.
func (c Client) Del(ctx context.Context, ks ...string) (int64, error) {
	defer timer.Start(c.scope.ID(), "cache.del").Stop()
	return c.client.Del(ctx, ks...).Result()
}

// Exists reports how many of the keys are present.
func (c Client) Exists(ctx context.Context, ks ...string) (int64, error) {
	defer timer.Start(c.scope.ID(), "cache.exists").Stop()
	return c.client.Exists(ctx, ks...).Result()
}

func (c Client) IncrBy(ctx context.Context, k string, delta int64) (int64, error) {
	defer timer.Start(c.scope.ID(), "cache.incrby").Stop()
	return c.client.IncrBy(ctx, k, delta).Result()
}

func (c Client) DecrBy(ctx context.Context, k string, delta int64) (int64, error) {
	defer timer.Start(c.scope.ID(), "cache.decrby").Stop()
	return c.client.DecrBy(ctx, k, delta).Result()
}
