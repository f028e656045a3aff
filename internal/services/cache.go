package services

import (
	"context"
	"time"
)

// Cache is implemented by pkg/cache.RedisCache. Services treat it as optional
// and fall back to the repositories on any cache error.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
