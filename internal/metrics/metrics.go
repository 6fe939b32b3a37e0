// Package metrics exposes orchestration counters and queue gauges in
// Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"redline/internal/jobs"
)

// Collector aggregates the daemon's Prometheus instruments.
type Collector struct {
	registry *prometheus.Registry

	fanoutOutcomes *prometheus.CounterVec
	claims         prometheus.Counter
	completions    prometheus.Counter
	failures       prometheus.Counter
	reconciles     *prometheus.CounterVec
	leaseRequeues  prometheus.Counter
	leaseFailures  prometheus.Counter
	lowConfidence  prometheus.Counter

	queueDepth  *prometheus.GaugeVec
	staleLeases prometheus.Gauge
}

// NewCollector builds a collector backed by its own registry so repeated
// construction (tests, restarts) never trips duplicate registration.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		fanoutOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "redline_fanout_outcomes_total",
			Help: "Fan-out pair outcomes by match method and disposition",
		}, []string{"method", "reason"}),
		claims: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redline_jobs_claimed_total",
			Help: "Jobs claimed by workers",
		}),
		completions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redline_jobs_completed_total",
			Help: "Jobs completed successfully",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redline_jobs_failed_total",
			Help: "Jobs that ended in failure",
		}),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "redline_parent_reconciles_total",
			Help: "Parent reconciliation outcomes by resulting status",
		}, []string{"status"}),
		leaseRequeues: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redline_lease_requeues_total",
			Help: "Expired-lease jobs returned to the queue",
		}),
		leaseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redline_lease_failures_total",
			Help: "Expired-lease jobs failed after exhausting retries",
		}),
		lowConfidence: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redline_alignments_low_confidence_total",
			Help: "Alignment results flagged low confidence",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "redline_queue_depth",
			Help: "Jobs per status",
		}, []string{"status"}),
		staleLeases: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redline_stale_leases",
			Help: "Started jobs whose lease has expired",
		}),
	}
	c.registry.MustRegister(
		c.fanoutOutcomes, c.claims, c.completions, c.failures,
		c.reconciles, c.leaseRequeues, c.leaseFailures, c.lowConfidence,
		c.queueDepth, c.staleLeases,
	)
	return c
}

// Handler serves the collector's registry in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordFanoutOutcome counts one candidate pair disposition.
func (c *Collector) RecordFanoutOutcome(method, reason string) {
	c.fanoutOutcomes.WithLabelValues(method, reason).Inc()
}

// RecordClaim counts a successful worker claim.
func (c *Collector) RecordClaim() { c.claims.Inc() }

// RecordCompletion counts a job completion.
func (c *Collector) RecordCompletion() { c.completions.Inc() }

// RecordFailure counts a job failure.
func (c *Collector) RecordFailure() { c.failures.Inc() }

// RecordReconcile counts a parent reaching a terminal status.
func (c *Collector) RecordReconcile(status jobs.Status) {
	c.reconciles.WithLabelValues(string(status)).Inc()
}

// RecordLeaseSweep counts one sweep's requeues and terminal failures.
func (c *Collector) RecordLeaseSweep(requeued, failed int) {
	c.leaseRequeues.Add(float64(requeued))
	c.leaseFailures.Add(float64(failed))
}

// RecordLowConfidence counts an alignment flagged for review.
func (c *Collector) RecordLowConfidence() { c.lowConfidence.Inc() }

// UpdateQueueDepth refreshes the per-status gauges from store stats.
func (c *Collector) UpdateQueueDepth(stats map[jobs.Status]int, staleLeases int) {
	for _, status := range []jobs.Status{jobs.StatusQueued, jobs.StatusStarted, jobs.StatusCompleted, jobs.StatusFailed, jobs.StatusCanceled} {
		c.queueDepth.WithLabelValues(string(status)).Set(float64(stats[status]))
	}
	c.staleLeases.Set(float64(staleLeases))
}
