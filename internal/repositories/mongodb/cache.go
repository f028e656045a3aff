package mongodb

import (
	"context"
	"time"
)

// Cache is the subset of pkg/cache used for read-through caching.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
