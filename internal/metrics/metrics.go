package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion, reconciliation and payload counters.

var (
	// Ingestion
	LogsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Name:      "logs_processed_total",
		Help:      "Total logs processed by the parser, by outcome",
	}, []string{"chain_id", "event", "status"})

	CursorBlock = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "indexer",
		Name:      "cursor_block",
		Help:      "Last block indexed per contract event",
	}, []string{"chain_id", "contract", "event"})

	WindowErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Name:      "window_errors_total",
		Help:      "Total ingestion passes that ended with an error",
	}, []string{"chain_id", "event"})

	WindowLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indexer",
		Name:      "window_duration_seconds",
		Help:      "Duration of one ingestion window",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"chain_id", "event"})

	// Reconciler
	AllowListsReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Name:      "allowlist_reconciled_total",
		Help:      "Allow lists handled by the reconciler, by outcome",
	}, []string{"outcome"})

	// Payload
	PayloadFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Name:      "payload_fetch_total",
		Help:      "Payload fetch attempts, by source and outcome",
	}, []string{"source", "outcome"})

	// Queue
	QueueWaiting = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "queue",
		Name:      "waiting_tasks",
		Help:      "Tasks waiting in the request queue",
	})
)

// MetadataSynced counts claim metadata documents handled, by outcome.
var MetadataSynced = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "indexer",
	Name:      "metadata_synced_total",
	Help:      "Claim metadata documents handled by the fetcher, by outcome",
}, []string{"outcome"})
