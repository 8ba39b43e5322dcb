// Package metrics collects Prometheus metrics for the engine and exposes
// them over /metrics.
//
// All record methods are nil-safe so the engine packages can run without a
// collector in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the engine's metric instruments on a private registry.
type Collector struct {
	registry *prometheus.Registry

	convocationsOffered prometheus.Counter
	transitions         *prometheus.CounterVec
	expiredSwept        prometheus.Counter
	allocationDuration  prometheus.Histogram
	allocationOutcomes  *prometheus.CounterVec
	settlementSteps     *prometheus.CounterVec
	settlementOutcomes  *prometheus.CounterVec
}

// NewCollector registers the engine metrics on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		convocationsOffered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "convocations_offered_total",
			Help: "Convocations created by the allocator.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "convocation_transitions_total",
			Help: "State-machine transitions applied, labeled by target status.",
		}, []string{"to"}),
		expiredSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "convocations_expired_swept_total",
			Help: "Pending convocations marked expired by the deadline sweep.",
		}),
		allocationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "allocation_duration_seconds",
			Help:    "Time to run one matching round for a job.",
			Buckets: prometheus.DefBuckets,
		}),
		allocationOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "allocation_rounds_total",
			Help: "Matching rounds, labeled by outcome (matched / no_match).",
		}, []string{"outcome"}),
		settlementSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_steps_total",
			Help: "Settlement step executions, labeled by step and result.",
		}, []string{"step", "result"}),
		settlementOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_runs_total",
			Help: "Settlement orchestrations, labeled by outcome (paid / incomplete).",
		}, []string{"outcome"}),
	}

	c.registry.MustRegister(
		c.convocationsOffered,
		c.transitions,
		c.expiredSwept,
		c.allocationDuration,
		c.allocationOutcomes,
		c.settlementSteps,
		c.settlementOutcomes,
	)
	return c
}

// Handler returns the /metrics HTTP handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ConvocationOffered() {
	if c == nil {
		return
	}
	c.convocationsOffered.Inc()
}

func (c *Collector) TransitionApplied(to string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(to).Inc()
}

func (c *Collector) ExpiredSwept(n int) {
	if c == nil {
		return
	}
	c.expiredSwept.Add(float64(n))
}

func (c *Collector) AllocationObserved(d time.Duration, matched bool) {
	if c == nil {
		return
	}
	c.allocationDuration.Observe(d.Seconds())
	outcome := "no_match"
	if matched {
		outcome = "matched"
	}
	c.allocationOutcomes.WithLabelValues(outcome).Inc()
}

func (c *Collector) SettlementStep(step string, succeeded bool) {
	if c == nil {
		return
	}
	result := "failed"
	if succeeded {
		result = "succeeded"
	}
	c.settlementSteps.WithLabelValues(step, result).Inc()
}

func (c *Collector) SettlementRun(paid bool) {
	if c == nil {
		return
	}
	outcome := "incomplete"
	if paid {
		outcome = "paid"
	}
	c.settlementOutcomes.WithLabelValues(outcome).Inc()
}
