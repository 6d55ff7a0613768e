// Package store defines the thin key-value adapter the matchmaker and session
// layer depend on. It covers exactly the TTL and sorted-set capabilities the
// server needs; an in-memory implementation is always available and a Redis
// implementation can be swapped in behind the same interface.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("store: key not found")

// Member is one sorted-set entry. Sets order ascending by Score; the
// matchmaker uses enqueue timestamps as scores to get FIFO queues.
type Member struct {
	Score float64
	Value string
}

// Store is the boundary contract for matchmaking queues and sessions.
// zRange follows the usual sorted-set convention: stop == -1 means "through
// the last element".
type Store interface {
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error

	ZAdd(ctx context.Context, key string, members ...Member) error
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRem(ctx context.Context, key string, values ...string) error
	ZCard(ctx context.Context, key string) (int64, error)
}
