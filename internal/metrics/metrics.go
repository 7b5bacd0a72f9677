// Package metrics exposes Puppetmaster's runtime counters as Prometheus
// collectors: puppet occupancy, scheduler round latency, and per-shard
// rename failures (spec.md §8's exit-code and saturation conditions made
// observable at runtime).
//
// No repo in the pack uses Prometheus directly; this package is grounded
// on the ecosystem convention surveyed across other_examples/ manifests
// (github.com/prometheus/client_golang appears repeatedly as the default
// metrics library for Go services) rather than on a specific teacher file.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles the handful of gauges/counters/histograms Puppetmaster
// needs. All are registered against the Registerer passed to New; callers
// typically pass prometheus.DefaultRegisterer or a test-local registry.
type Collector struct {
	PuppetsBusy     prometheus.Gauge
	SchedulerCycles prometheus.Histogram
	ShardFailures   *prometheus.CounterVec
	Events          *prometheus.CounterVec
}

// New builds and registers a Collector. Registration failures (e.g.
// double-registration in tests) are not fatal: the collector falls back to
// an unregistered instance so callers never need to handle an error just
// to observe a metric.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		PuppetsBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "puppetmaster",
			Name:      "puppets_busy",
			Help:      "Number of puppets currently executing a transaction.",
		}),
		SchedulerCycles: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "puppetmaster",
			Name:      "scheduler_round_cycles",
			Help:      "Cycles consumed by one tournament (all merge rounds), as reported by the scheduler.",
			Buckets:   prometheus.LinearBuckets(1, 1, 8),
		}),
		ShardFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "puppetmaster",
			Name:      "shard_rename_failures_total",
			Help:      "Rename failures per shard and cause.",
		}, []string{"shard", "reason"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "puppetmaster",
			Name:      "events_total",
			Help:      "Started/Finished events emitted, and transactions rejected at rename, by the dispatcher.",
		}, []string{"status"}),
	}
	for _, coll := range []prometheus.Collector{c.PuppetsBusy, c.SchedulerCycles, c.ShardFailures, c.Events} {
		_ = reg.Register(coll)
	}
	return c
}

// ObservePuppetsBusy records the current occupancy snapshot.
func (c *Collector) ObservePuppetsBusy(n int) {
	if c == nil {
		return
	}
	c.PuppetsBusy.Set(float64(n))
}

// ObserveSchedulerCycles records one tournament's modeled latency.
func (c *Collector) ObserveSchedulerCycles(cycles int) {
	if c == nil {
		return
	}
	c.SchedulerCycles.Observe(float64(cycles))
}

// IncShardFailure counts one rename failure on a given shard.
func (c *Collector) IncShardFailure(shard int, reason string) {
	if c == nil {
		return
	}
	c.ShardFailures.WithLabelValues(strconv.Itoa(shard), reason).Inc()
}

// IncEvent counts one event by status ("started", "finished", or
// "rejected" for a transaction whose rename failed).
func (c *Collector) IncEvent(status string) {
	if c == nil {
		return
	}
	c.Events.WithLabelValues(status).Inc()
}
