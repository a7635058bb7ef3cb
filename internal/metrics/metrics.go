package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasksync_webhook_events_total",
			Help: "Total number of webhook events ingested, by result and action.",
		},
		[]string{"result", "action"}, // result: success|validation_error|processing_error; action: created|updated|none
	)

	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tasksync_ingest_duration_seconds",
			Help:    "Synchronous webhook processing duration.",
			Buckets: prometheus.DefBuckets,
		},
	)

	SyncAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasksync_sync_attempts_total",
			Help: "Total downstream sync attempts, by outcome.",
		},
		[]string{"outcome"}, // delivered|failed
	)

	SyncRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasksync_sync_retries_total",
			Help: "Total downstream sync retries, by reason.",
		},
		[]string{"reason"}, // e.g. http_5xx, timeout, network, other
	)

	SyncFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tasksync_sync_failures_total",
			Help: "Total dispatches that exhausted all retry attempts.",
		},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasksync_notifications_total",
			Help: "Total outbound notifications, by type and final status.",
		},
		[]string{"type", "status"},
	)

	DispatchQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tasksync_dispatch_queue_depth",
			Help: "Number of sync dispatch jobs waiting in the queue.",
		},
	)
)

// MustRegister registers all collectors on the given registry.
func MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		WebhookEventsTotal,
		IngestDuration,
		SyncAttemptsTotal,
		SyncRetriesTotal,
		SyncFailuresTotal,
		NotificationsTotal,
		DispatchQueueDepth,
	)
}

// RecordWebhookEvent counts one ingestion attempt.
func RecordWebhookEvent(result, action string, elapsed time.Duration) {
	WebhookEventsTotal.WithLabelValues(result, action).Inc()
	IngestDuration.Observe(elapsed.Seconds())
}

// RecordSyncAttempt counts one downstream call.
func RecordSyncAttempt(outcome string) {
	SyncAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordSyncRetry counts one scheduled retry.
func RecordSyncRetry(reason string) {
	SyncRetriesTotal.WithLabelValues(reason).Inc()
}

// RecordSyncFailure counts one dispatch that ran out of attempts.
func RecordSyncFailure() {
	SyncFailuresTotal.Inc()
}

// RecordNotification counts one notification reaching a final status.
func RecordNotification(typ, status string) {
	NotificationsTotal.WithLabelValues(typ, status).Inc()
}

// UpdateQueueDepth sets the dispatch queue depth gauge.
func UpdateQueueDepth(depth float64) {
	DispatchQueueDepth.Set(depth)
}
