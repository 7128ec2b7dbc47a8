package cache

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get for a missing key.
var ErrKeyNotFound = errors.New("key not found")

// Cache defines the key/value operations the coordinator needs from Redis.
type Cache interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error

	// SetNX stores value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	// CompareAndDelete removes key only while it still holds value.
	CompareAndDelete(ctx context.Context, key string, value string) (bool, error)
	// CompareAndExpire resets the ttl of key only while it still holds value.
	CompareAndExpire(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)

	Close() error
}
