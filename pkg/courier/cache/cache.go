// Package cache provides the durable key-value store the location cache
// persists carrier data into. Entries carry their fetch timestamp so
// callers can apply their own staleness policy; stores never expire
// entries themselves, because stale data is still wanted as a fallback
// when the carrier is unreachable.
package cache

import (
	"context"
	"time"
)

// Store is a durable key-value store with fetch timestamps.
// Get must return courier.ErrCacheMiss (via errors.Is) for absent keys.
type Store interface {
	Get(ctx context.Context, key string) (payload []byte, fetchedAt time.Time, err error)
	Set(ctx context.Context, key string, payload []byte, fetchedAt time.Time) error
	Delete(ctx context.Context, key string) error
}
