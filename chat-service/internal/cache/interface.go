package cache

import (
	"context"
	"time"
)

// MembershipCache remembers positive membership answers.
type MembershipCache interface {
	// Get returns ErrCacheMiss when key is unknown.
	Get(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, member bool, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	BuildKey(roomID, userID string) string
	Close() error
}
