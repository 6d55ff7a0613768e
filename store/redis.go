package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis adapts a go-redis client to the Store interface. It is the optional
// network implementation; deployments without Redis fall back to Memory.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the given address (host:port) and verifies the
// connection with a ping.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Redis{client: client}, nil
}

func (r *Redis) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return value, err
}

func (r *Redis) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) ZAdd(ctx context.Context, key string, members ...Member) error {
	zs := make([]redis.Z, 0, len(members))
	for _, member := range members {
		zs = append(zs, redis.Z{Score: member.Score, Member: member.Value})
	}
	return r.client.ZAdd(ctx, key, zs...).Err()
}

func (r *Redis) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.client.ZRange(ctx, key, start, stop).Result()
}

func (r *Redis) ZRem(ctx context.Context, key string, values ...string) error {
	members := make([]interface{}, 0, len(values))
	for _, value := range values {
		members = append(members, value)
	}
	return r.client.ZRem(ctx, key, members...).Err()
}

func (r *Redis) ZCard(ctx context.Context, key string) (int64, error) {
	return r.client.ZCard(ctx, key).Result()
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
