package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	ingesthandler "leitstand/internal/ingest/handler"
	ingestmetrics "leitstand/internal/ingest/metrics"
	ingestservice "leitstand/internal/ingest/service"
	ingeststore "leitstand/internal/ingest/store"
	"leitstand/internal/platform/config"
	"leitstand/internal/platform/metrics"
	"leitstand/internal/platform/redis"
	ratelimitmetrics "leitstand/internal/ratelimit/metrics"
	ratelimitmw "leitstand/internal/ratelimit/middleware"
	"leitstand/internal/ratelimit/models"
	"leitstand/internal/ratelimit/store/bucket"
	"leitstand/internal/storage"
)

// app holds everything main wires together.
type app struct {
	base    storage.BaseDir
	router  http.Handler
	redis   *redis.Client
	buckets *bucket.InMemoryBucketStore
	window  time.Duration
}

// newApp builds the HTTP surface from cfg. Failing to open the data
// directory is fatal for the caller.
func newApp(ctx context.Context, cfg config.Server, log *slog.Logger, reg *prometheus.Registry) (*app, error) {
	base, err := storage.OpenBaseDir(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open data dir: %w", err)
	}

	limit, err := models.ParseLimit(cfg.RateLimit)
	if err != nil {
		return nil, err
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &app{base: base, window: limit.Window}

	var store bucket.Store
	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		a.redis = rc
		store = bucket.NewRedis(rc.Client)
		log.Info("rate limit store: redis")
	} else {
		a.buckets = bucket.New()
		store = a.buckets
		log.Info("rate limit store: memory")
	}

	limiter := ratelimitmw.New(store, limit, log,
		ratelimitmw.WithMetrics(ratelimitmetrics.New(reg)),
	)

	svc, err := ingestservice.New(base,
		ingeststore.NewAppender(base.Path(), ingeststore.WithLockTimeout(cfg.LockTimeout)),
		ingestservice.WithLogger(log),
		ingestservice.WithMetrics(ingestmetrics.New(reg)),
	)
	if err != nil {
		return nil, err
	}

	h := ingesthandler.New(svc, log, ingesthandler.Config{
		Token:     cfg.Token,
		MaxBody:   cfg.MaxBody,
		Version:   cfg.Version,
		RateLimit: limiter.RateLimit,
	})
	a.router = ingesthandler.NewRouter(h, ingesthandler.RouterConfig{
		Logger:     log,
		Metrics:    metrics.New(reg),
		Gatherer:   reg,
		TrustProxy: cfg.TrustProxy,
	})
	return a, nil
}

// sweepBuckets drops idle in-memory buckets once per window until ctx ends.
func (a *app) sweepBuckets(ctx context.Context, log *slog.Logger) error {
	if a.buckets == nil {
		return nil
	}
	ticker := time.NewTicker(a.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := a.buckets.Sweep(); n > 0 {
				log.Debug("swept idle rate limit buckets", "count", n)
			}
		}
	}
}

func (a *app) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
