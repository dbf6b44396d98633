package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("kvstore: key not found")

// KV is the key-value collaborator the rest of the service is written
// against: JSON values under string keys plus ordered id lists and sets.
// No atomicity is assumed across calls.
type KV interface {
	// GetJSON unmarshals the value at key into dest, or returns ErrNotFound.
	GetJSON(ctx context.Context, key string, dest any) error

	// SetJSON marshals value under key. A zero ttl means no expiry.
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error

	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Ordered id lists.
	LPush(ctx context.Context, key string, values ...string) error
	RPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LRem(ctx context.Context, key string, value string) error

	// Unordered membership sets.
	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}
