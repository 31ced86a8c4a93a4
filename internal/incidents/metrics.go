package incidents

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sentinel"

var (
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "mutations_total",
			Help:      "Total collection mutations by operation and result",
		},
		[]string{"op", "result"},
	)

	persistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "persist_failures_total",
			Help:      "Total failed persistence attempts (session continues in-memory)",
		},
	)

	seedFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "seed_fallbacks_total",
			Help:      "Times the seed collection was substituted for stored data",
		},
		[]string{"reason"},
	)

	collectionSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "collection_size",
			Help:      "Current number of incidents in the collection",
		},
	)
)

// recordMutation records a mutation attempt.
func recordMutation(op, result string) {
	mutationsTotal.WithLabelValues(op, result).Inc()
}
