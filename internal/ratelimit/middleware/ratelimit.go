package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"leitstand/internal/ratelimit/metrics"
	"leitstand/internal/ratelimit/models"
	"leitstand/internal/ratelimit/store/bucket"
	"leitstand/pkg/platform/circuit"
	"leitstand/pkg/platform/httputil"
	"leitstand/pkg/requestcontext"
)

// DegradedHeader is set while checks are served by the in-memory fallback.
const DegradedHeader = "X-RateLimit-Status"

type Middleware struct {
	store    *fallbackStore
	limit    models.Limit
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for tests and local runs).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithMetrics records decisions on m.
func WithMetrics(metrics *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = metrics
	}
}

// WithBreaker overrides the circuit breaker guarding the store.
func WithBreaker(b *circuit.Breaker) Option {
	return func(m *Middleware) {
		m.store.breaker = b
	}
}

// New limits each client IP to limit requests per sliding window in store.
func New(store bucket.Store, limit models.Limit, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limit:  limit,
		logger: logger,
	}
	m.store = newFallbackStore(store, circuit.New("ratelimit-store"), logger, nil)
	for _, opt := range opts {
		opt(m)
	}
	m.store.metrics = m.metrics
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit rejects clients over budget with 429. Store failures fail open.
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)
		key := models.NewIPRateLimitKey(ip)

		result, degraded, err := m.store.AllowN(ctx, key, 1, m.limit.Requests, m.limit.Window)
		if err != nil {
			m.metrics.IncrementDecision(metrics.DecisionError)
			m.logger.ErrorContext(ctx, "failed to check IP rate limit",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, result)
		if degraded {
			w.Header().Set(DegradedHeader, "degraded")
		}

		if !result.Allowed {
			m.metrics.IncrementDecision(metrics.DecisionDenied)
			m.logger.WarnContext(ctx, "rate limit exceeded",
				"request_id", requestcontext.RequestID(ctx),
				"retry_after", result.RetryAfter,
			)
			writeRateLimitExceeded(w, result)
			return
		}

		m.metrics.IncrementDecision(metrics.DecisionAllowed)
		next.ServeHTTP(w, r)
	})
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:            "rate_limit_exceeded",
		ErrorDescription: "too many requests",
		RetryAfter:       result.RetryAfter,
	})
}
