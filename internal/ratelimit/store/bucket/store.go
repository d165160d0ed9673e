//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks Store

// Package bucket holds sliding-window request buckets keyed by client.
package bucket

import (
	"context"
	"time"

	"leitstand/internal/ratelimit/models"
)

// Store is a sliding-window counter. AllowN records cost requests when they
// fit within limit over window and reports the resulting budget.
type Store interface {
	AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (*models.RateLimitResult, error)
	Reset(ctx context.Context, key string) error
}

var (
	_ Store = (*InMemoryBucketStore)(nil)
	_ Store = (*RedisBucketStore)(nil)
)
