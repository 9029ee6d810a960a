package mintsdk

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the client's prometheus collectors
type Metrics struct {
	reads        *prometheus.CounterVec
	prepares     *prometheus.CounterVec
	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
}

// NewMetrics registers the client collectors on reg. A nil reg uses a private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mintsdk",
			Name:      "reads_total",
			Help:      "On-chain reads by RPC method, provider and outcome.",
		}, []string{"method", "provider", "outcome"}),
		prepares: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mintsdk",
			Name:      "prepare_total",
			Help:      "Purchase preparations by outcome.",
		}, []string{"outcome"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mintsdk",
			Name:      "steps_total",
			Help:      "Executed transaction steps by kind and outcome.",
		}, []string{"kind", "outcome"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mintsdk",
			Name:      "step_duration_seconds",
			Help:      "Time from submission to confirmation of a transaction step.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"kind"}),
	}
	reg.MustRegister(m.reads, m.prepares, m.steps, m.stepDuration)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) observeRead(method, provider string, err error) {
	m.reads.WithLabelValues(method, provider, outcome(err)).Inc()
}

func (m *Metrics) observePrepare(result string) {
	m.prepares.WithLabelValues(result).Inc()
}

func (m *Metrics) observeStep(kind StepKind, err error, elapsed time.Duration) {
	m.steps.WithLabelValues(string(kind), outcome(err)).Inc()
	m.stepDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}
