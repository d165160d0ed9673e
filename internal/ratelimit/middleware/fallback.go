package middleware

import (
	"context"
	"log/slog"
	"time"

	"leitstand/internal/ratelimit/metrics"
	"leitstand/internal/ratelimit/models"
	"leitstand/internal/ratelimit/store/bucket"
	"leitstand/pkg/platform/circuit"
)

// fallbackStore routes checks to the primary store until its circuit opens,
// then to a local in-memory store until the primary recovers. While open the
// primary is still probed on every check so recovery is noticed.
type fallbackStore struct {
	primary  bucket.Store
	fallback bucket.Store
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func newFallbackStore(primary bucket.Store, breaker *circuit.Breaker, logger *slog.Logger, m *metrics.Metrics) *fallbackStore {
	return &fallbackStore{
		primary:  primary,
		fallback: bucket.New(),
		breaker:  breaker,
		logger:   logger,
		metrics:  m,
	}
}

// AllowN returns degraded=true when the answer came from the fallback. A
// primary error with the circuit still closed is returned so the caller can
// fail open.
func (f *fallbackStore) AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (*models.RateLimitResult, bool, error) {
	result, err := f.primary.AllowN(ctx, key, cost, limit, window)
	if err == nil {
		usePrimary, change := f.breaker.RecordSuccess()
		if change.Closed {
			f.logger.InfoContext(ctx, "rate limit store recovered", "breaker", f.breaker.Name())
			f.metrics.SetDegraded(false)
		}
		if usePrimary {
			return result, false, nil
		}
		return f.fromFallback(ctx, key, cost, limit, window)
	}

	useFallback, change := f.breaker.RecordFailure()
	if change.Opened {
		f.logger.WarnContext(ctx, "rate limit store unavailable, using in-memory fallback",
			"breaker", f.breaker.Name(), "error", err)
		f.metrics.SetDegraded(true)
	}
	if !useFallback {
		return nil, false, err
	}
	return f.fromFallback(ctx, key, cost, limit, window)
}

func (f *fallbackStore) fromFallback(ctx context.Context, key string, cost, limit int, window time.Duration) (*models.RateLimitResult, bool, error) {
	result, err := f.fallback.AllowN(ctx, key, cost, limit, window)
	return result, true, err
}
