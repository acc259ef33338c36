package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace defines the global prefix for all metrics (e.g., bifrost_...).
const namespace = "bifrost"

// lowLatencyBuckets covers in-process operations (1ms to 500ms).
var lowLatencyBuckets = []float64{.001, .002, .005, .010, .015, .020, .025, .030, .050, .100, .500}

var (
	// -------------------------------------------------------------------------
	// DECISIONS
	// -------------------------------------------------------------------------

	// DecisionsTotal counts decisions by the source that produced them.
	// Metric: bifrost_decision_decisions_total
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "decision",
		Name:      "decisions_total",
		Help:      "Total decisions by source (experiment, feature-test, rollout, none)",
	}, []string{"source"})

	// AudienceEvaluationsTotal counts targeting evaluations by three-valued result.
	AudienceEvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "decision",
		Name:      "audience_evaluations_total",
		Help:      "Total audience targeting evaluations by result",
	}, []string{"result"}) // TRUE, FALSE, UNKNOWN

	// ProfileStoreErrorsTotal counts swallowed sticky bucketing failures.
	ProfileStoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "decision",
		Name:      "profile_store_errors_total",
		Help:      "Total user profile store failures (decisions continue without sticky bucketing)",
	}, []string{"operation"}) // lookup, save

	// -------------------------------------------------------------------------
	// EVENTS
	// -------------------------------------------------------------------------

	EventsEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "enqueued_total",
		Help:      "Total event records accepted by the processor",
	}, []string{"kind"}) // impression, conversion

	EventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "dropped_total",
		Help:      "Total event records dropped because the processor was closed",
	})

	// EventBatchesTotal counts dispatched batches by trigger and outcome.
	// Metric: bifrost_events_batches_total
	EventBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "batches_total",
		Help:      "Total event batches handed to the transport",
	}, []string{"trigger", "status"}) // size|interval|close, success|fail

	EventDispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "dispatch_duration_seconds",
		Help:      "Time taken by the transport to deliver one batch",
		Buckets:   prometheus.DefBuckets,
	})

	EventQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "queue_depth",
		Help:      "Current number of records waiting for the next flush",
	})

	// -------------------------------------------------------------------------
	// PROFILE STORE
	// -------------------------------------------------------------------------

	ProfileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "profile",
		Name:      "memory_hits_total",
		Help:      "Total in-memory profile store hits",
	})

	ProfileCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "profile",
		Name:      "memory_misses_total",
		Help:      "Total in-memory profile store misses",
	})

	// ProfileStoreDuration measures the latency of the shared (Redis) profile store.
	ProfileStoreDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "profile",
		Name:      "redis_duration_seconds",
		Help:      "Latency of Redis profile store operations",
		Buckets:   lowLatencyBuckets,
	}, []string{"operation", "status"})

	// -------------------------------------------------------------------------
	// DATAFILE SYNC
	// -------------------------------------------------------------------------

	DatafileSyncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "syncs_total",
		Help:      "Total datafile sync attempts by outcome",
	}, []string{"status"}) // updated, unchanged, fail

	DatafileSyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "sync_duration_seconds",
		Help:      "Time taken to fetch and build a datafile",
		Buckets:   prometheus.DefBuckets,
	})
)
