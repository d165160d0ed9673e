package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for RequestsTotal. They match the error codes returned to
// clients so dashboards and responses agree.
const (
	OutcomeOK = "ok"
)

// Rejection stages.
const (
	StageValidate = "validate"
	StageResolve  = "resolve"
	StageTarget   = "target"
	StageEntry    = "entry"
)

// Metrics holds the ingest collectors.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	LinesTotal       prometheus.Counter
	DomainRejections *prometheus.CounterVec
	AppendDuration   prometheus.Histogram
}

// New creates and registers the ingest metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leitstand_ingest_requests_total",
			Help: "Ingest requests by outcome",
		}, []string{"outcome"}),
		LinesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "leitstand_ingest_lines_total",
			Help: "JSONL lines appended",
		}),
		DomainRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leitstand_ingest_domain_rejections_total",
			Help: "Domains rejected, by the stage that rejected them",
		}, []string{"stage"}),
		AppendDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "leitstand_ingest_append_duration_seconds",
			Help:    "Time spent acquiring the file lock and appending",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
		}),
	}
}

func (m *Metrics) IncrementOutcome(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddLines(n int) {
	if m == nil {
		return
	}
	m.LinesTotal.Add(float64(n))
}

func (m *Metrics) IncrementRejection(stage string) {
	if m == nil {
		return
	}
	m.DomainRejections.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveAppend(seconds float64) {
	if m == nil {
		return
	}
	m.AppendDuration.Observe(seconds)
}
