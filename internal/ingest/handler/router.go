package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leitstand/internal/platform/metrics"
	"leitstand/internal/platform/middleware"
	"leitstand/pkg/platform/middleware/metadata"
	"leitstand/pkg/platform/middleware/requesttime"
)

// RouterConfig wires the cross-cutting pieces of the HTTP surface.
type RouterConfig struct {
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	TrustProxy bool
}

// NewRouter mounts h behind the shared middleware stack and serves
// /metrics without auth.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(metadata.ClientMetadata(cfg.TrustProxy))
	r.Use(middleware.LatencyMiddleware(cfg.Metrics))

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	h.Register(r)
	return r
}
