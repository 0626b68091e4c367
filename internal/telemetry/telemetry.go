// Package telemetry exposes a small set of Prometheus counters for the
// reclamation strategy dispatcher: how many Reclaim calls took each
// strategy path (the counter named allocations_total), how many SCC groups
// were collected, how many deferred-queue batches were flushed, and how
// many orphans were reported. It is optional instrumentation, not load-bearing
// for correctness — callers that never touch it pay no cost beyond the
// counter allocation.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the counters a Dispatcher reports to.
type Metrics struct {
	Registry *prometheus.Registry

	AllocationsByStrategy *prometheus.CounterVec
	SCCCollections        prometheus.Counter
	DeferredBatchesFlushed prometheus.Counter
	OrphansReported       prometheus.Counter
}

// New creates a fresh, privately-registered Metrics instance — it does
// not touch prometheus's global default registry, so multiple Dispatchers
// (e.g. one per test) never collide.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		AllocationsByStrategy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memcore",
			Name:      "allocations_total",
			Help:      "Reclaim calls dispatched, labeled by reclamation strategy.",
		}, []string{"strategy"}),
		SCCCollections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "memcore",
			Name:      "scc_collections_total",
			Help:      "Strongly connected component groups collected.",
		}),
		DeferredBatchesFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "memcore",
			Name:      "deferred_batches_flushed_total",
			Help:      "Deferred-decrement batches processed.",
		}),
		OrphansReported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "memcore",
			Name:      "orphans_reported_total",
			Help:      "Objects reported orphaned by the symmetric reference counter.",
		}),
	}

	reg.MustRegister(m.AllocationsByStrategy, m.SCCCollections, m.DeferredBatchesFlushed, m.OrphansReported)
	return m
}
