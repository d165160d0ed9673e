package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Decision labels.
const (
	DecisionAllowed = "allowed"
	DecisionDenied  = "denied"
	DecisionError   = "error"
)

type Metrics struct {
	Decisions *prometheus.CounterVec
	Degraded  prometheus.Gauge
}

// New registers the rate limit collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leitstand_ratelimit_decisions_total",
			Help: "Rate limit checks by decision",
		}, []string{"decision"}),
		Degraded: f.NewGauge(prometheus.GaugeOpts{
			Name: "leitstand_ratelimit_degraded",
			Help: "1 while the shared store is bypassed for the in-memory fallback",
		}),
	}
}

func (m *Metrics) IncrementDecision(decision string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) SetDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.Degraded.Set(1)
		return
	}
	m.Degraded.Set(0)
}
