package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansProcessed counts classified scan outcomes (counter)
	ScansProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "scans_total",
			Help:      "The total number of processed scans by outcome",
		},
		[]string{"outcome"},
	)

	// TokenRefreshes counts QR token refresh attempts by result (counter)
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "token_refreshes_total",
			Help:      "The total number of QR token refresh attempts",
		},
		[]string{"result"},
	)

	// ReachabilityProbes counts reachability probe results (counter)
	ReachabilityProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "reachability_probes_total",
			Help:      "The total number of reachability probes by status",
		},
		[]string{"status"},
	)

	// MessagesProcessed The total number of processed bus messages (counter)
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messages",
			Name:      "processed_total",
			Help:      "The total number of processed messages",
		},
		[]string{"topic", "handler"},
	)

	// MessagesProcessingFailed total number of message processing failures (counter)
	MessagesProcessingFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messages",
			Name:      "processing_failed_total",
			Help:      "The total number of message processing failures",
		},
		[]string{"topic", "handler"},
	)

	// MessagesProcessingDuration The total time spent processing messages (summary with quantiles 0.5, 0.9, and 0.99)
	MessagesProcessingDuration = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace:  "messages",
			Name:       "processing_duration_seconds",
			Help:       "The total time spent processing messages",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"topic", "handler"},
	)
)
