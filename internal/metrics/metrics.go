package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the feeding pipeline, exposed on /metrics.
var (
	FeedingsRequested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feeder_feedings_requested_total",
		Help: "Number of feedings accepted into the ledger.",
	})

	FeedingsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feeder_feedings_completed_total",
		Help: "Number of feedings whose actuation completed.",
	})

	ActuationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feeder_actuation_failures_total",
		Help: "Number of feedings whose actuation failed. Failed feedings stay in the ledger without a fed timestamp.",
	})

	TriggerFires = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feeder_trigger_fires_total",
		Help: "Number of scheduled trigger fires delivered.",
	})

	TriggerFiresSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feeder_trigger_fires_suppressed_total",
		Help: "Number of scheduled fires dropped due to overlap or the misfire grace window.",
	})
)
