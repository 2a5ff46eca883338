// Package metrics holds the Prometheus collectors shared across the
// agent and exposes All() for registration.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// RestoreLatency observes end-to-end pod restore latency, from event
// receipt to a successful bind.
var RestoreLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "restore_latency_seconds",
		Help:    "End-to-end pod restore latency seconds",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 1, 2, 5},
	},
)

// BindConflicts counts optimistic bind attempts rejected with HTTP 409
// because another node already bound the pod.
var BindConflicts = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "bind_conflicts_total",
		Help: "Number of bind attempts rejected by a conflicting winner",
	},
)

// PeerUpdates counts free-CPU gossip messages applied to the local peer
// view.
var PeerUpdates = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "peer_updates_total",
		Help: "Peer gossip update messages processed",
	},
)

// All returns every collector this package owns, for registration
// against a prometheus.Registerer.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		RestoreLatency,
		BindConflicts,
		PeerUpdates,
	}
}
