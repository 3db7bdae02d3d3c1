package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linkstash",
			Name:      "mutations_total",
			Help:      "Local mutations by operation and outcome.",
		},
		[]string{"op", "result"},
	)

	feedEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linkstash",
			Name:      "feed_events_total",
			Help:      "Change feed events by kind and how they were reconciled.",
		},
		[]string{"kind", "outcome"},
	)

	resubscribesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "linkstash",
			Name:      "feed_resubscribes_total",
			Help:      "Change feed subscriptions lost and retried.",
		},
	)

	refetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linkstash",
			Name:      "refetches_total",
			Help:      "Full listings fetched from the remote store.",
		},
		[]string{"reason", "result"},
	)

	degradedSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "linkstash",
			Name:      "degraded_sessions",
			Help:      "Sessions currently relying on periodic refetch.",
		},
	)
)
