package bucket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"leitstand/internal/ratelimit/models"
)

// RedisBucketStore keeps each bucket as a sorted set of request members
// scored by their arrival time in milliseconds.
type RedisBucketStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedis wraps a go-redis client.
func NewRedis(client redis.UniversalClient) *RedisBucketStore {
	return &RedisBucketStore{client: client, now: time.Now}
}

// AllowN trims the window, optimistically records cost members and counts
// them in one MULTI block. Over-limit additions are removed again, so
// concurrent callers can only be denied too eagerly, never admitted past limit.
func (s *RedisBucketStore) AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := s.now()
	nowMs := now.UnixMilli()
	cutoff := nowMs - window.Milliseconds()

	members := make([]redis.Z, cost)
	names := make([]any, cost)
	for i := range members {
		name := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()
		members[i] = redis.Z{Score: float64(nowMs), Member: name}
		names[i] = name
	}

	var card *redis.IntCmd
	var oldest *redis.ZSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
		pipe.ZAdd(ctx, key, members...)
		card = pipe.ZCard(ctx, key)
		oldest = pipe.ZRangeWithScores(ctx, key, 0, 0)
		pipe.PExpire(ctx, key, window)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis sliding window %s: %w", key, err)
	}

	count := int(card.Val())
	resetAt := now.Add(window)
	if zs := oldest.Val(); len(zs) > 0 {
		resetAt = time.UnixMilli(int64(zs[0].Score)).Add(window)
	}

	if count <= limit {
		return &models.RateLimitResult{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - count,
			ResetAt:   resetAt,
		}, nil
	}

	if err := s.client.ZRem(ctx, key, names...).Err(); err != nil {
		return nil, fmt.Errorf("redis sliding window rollback %s: %w", key, err)
	}
	return &models.RateLimitResult{
		Allowed:    false,
		Limit:      limit,
		Remaining:  max(limit-(count-cost), 0),
		ResetAt:    resetAt,
		RetryAfter: models.RetryAfterSeconds(now, resetAt),
	}, nil
}

// Reset deletes the bucket.
func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
