package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the indexer.
type Metrics struct {
	// --- Event application ---
	EventsApplied  *prometheus.CounterVec
	EventsRejected *prometheus.CounterVec
	EventDuration  *prometheus.HistogramVec
	BatchHeight    prometheus.Gauge
	BatchSize      prometheus.Histogram

	// --- Reorg handling ---
	Rollbacks       prometheus.Counter
	RollbackDepth   prometheus.Histogram
	HistoricalGames prometheus.Counter

	// --- Persistence ---
	PersistWrites   *prometheus.CounterVec
	PersistErrors   *prometheus.CounterVec
	PersistDuration *prometheus.HistogramVec

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec

	// --- Ingestion ---
	SourceBatches     prometheus.Counter
	SourcePullLatency prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	applyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	writeBuckets := []float64{
		0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25,
	}

	return &Metrics{
		EventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "strapped_events_applied_total",
			Help: "Events successfully applied to the snapshot state",
		}, []string{"event_type"}),

		EventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "strapped_events_rejected_total",
			Help: "Events that failed to decode or apply",
		}, []string{"event_type", "reason"}),

		EventDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "strapped_event_apply_duration_seconds",
			Help:    "Time to apply a single event",
			Buckets: applyBuckets,
		}, []string{"event_type"}),

		BatchHeight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "strapped_batch_height",
			Help: "Block height of the last applied event batch",
		}),

		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "strapped_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),

		Rollbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "strapped_rollbacks_total",
			Help: "Chain reorganizations handled",
		}),

		RollbackDepth: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "strapped_rollback_depth_blocks",
			Help:    "Blocks discarded per rollback",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 500},
		}),

		HistoricalGames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "strapped_historical_games_total",
			Help: "Completed games archived",
		}),

		PersistWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "strapped_persist_writes_total",
			Help: "Records written to snapshot storage",
		}, []string{"record"}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "strapped_persist_errors_total",
			Help: "Snapshot storage failures",
		}, []string{"record"}),

		PersistDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "strapped_persist_duration_seconds",
			Help:    "Snapshot storage write latency",
			Buckets: writeBuckets,
		}, []string{"record"}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "strapped_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "strapped_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "strapped_query_errors_total",
			Help: "Query errors",
		}, []string{"endpoint", "code"}),

		SourceBatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "strapped_source_batches_total",
			Help: "Event batches received from the source",
		}),

		SourcePullLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "strapped_source_pull_latency_seconds",
			Help:    "Latency of one source fetch",
			Buckets: writeBuckets,
		}),
	}
}
