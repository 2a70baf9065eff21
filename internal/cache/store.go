package cache

import (
	"context"
	"time"
)

// Store is the shared key/value store behind rate limits, resend cooldowns,
// weather report caching and single-use markers.
type Store interface {
	// IncrementWithTTL bumps the counter at key. The window starts with the
	// first increment and is not extended by later ones. It returns the new
	// count and the time left in the window.
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
