package statcache

import (
	"context"
	"time"
)

// Store is the shared key/value cache. Transact applies all ops or none of
// them. SetIfAbsent and DeleteIfValue back the distributed lock.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Transact(ctx context.Context, ops []Op) error
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key string, value []byte) (bool, error)
}
