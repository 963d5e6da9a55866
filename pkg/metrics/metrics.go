// Package metrics centralizes the Prometheus collectors shared by the
// ingestion fast path, the outbox dispatcher, and the ingestion consumer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// IngestFastPathStageSeconds records the wall-clock duration of each named
// stage of the bulk ingestion fast path (§4.3 Timings).
var IngestFastPathStageSeconds = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ingest_fastpath_stage_seconds",
		Help:    "Duration of each bulk ingestion fast-path stage.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"stage"},
)

// IngestFastPathItemsAccepted counts items accepted (post-dedup) per batch call.
var IngestFastPathItemsAccepted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ingest_fastpath_items_accepted_total",
	Help: "Total items accepted by the bulk ingestion fast path, across all batches.",
})

// OutboxClaimedTotal counts outbox rows claimed by the dispatcher, by event type.
var OutboxClaimedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "outbox_claimed_total",
	Help: "Total outbox events claimed by the dispatcher.",
}, []string{"event_type"})

// OutboxPublishedTotal counts successful publishes/bulk-indexes, by event type.
var OutboxPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "outbox_published_total",
	Help: "Total outbox events successfully published or indexed.",
}, []string{"event_type"})

// OutboxFailedTotal counts publish/index failures, by event type.
var OutboxFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "outbox_failed_total",
	Help: "Total outbox events that failed to publish or index.",
}, []string{"event_type"})

// OutboxDispatchSeconds records the duration of each dispatch call made in a
// tick: one observation per broker publish, and one per audit bulk-index
// request. The claim and status-update phases are not included.
var OutboxDispatchSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "outbox_dispatch_tick_seconds",
	Help:    "Duration of one outbox broker publish or audit bulk-index request.",
	Buckets: prometheus.DefBuckets,
})

// ConsumerProcessedTotal counts broker deliveries processed, by outcome.
var ConsumerProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingest_consumer_processed_total",
	Help: "Total broker deliveries processed by the ingestion consumer.",
}, []string{"outcome"})
