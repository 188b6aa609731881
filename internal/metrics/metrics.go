// Package metrics defines the Prometheus collectors shared by the client
// agent and the relay server. The server exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Client side.

	SyncRounds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_rounds_total",
		Help: "Synchronization rounds by result (ok, transport_error, apply_error, skipped)",
	}, []string{"result"})

	RecordsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_records_applied_total",
		Help: "Records merged into local storage by entity kind",
	}, []string{"kind"})

	ApplyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_apply_failures_total",
		Help: "Received records that failed local application and will be retried",
	})

	OutboxBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sync_outbox_backlog",
		Help: "Pending outbox entries awaiting a confirmed round-trip",
	})

	// Server side.

	ItemsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_items_rejected_total",
		Help: "Submitted changes rejected by per-item validation",
	}, []string{"kind"})

	DurableUpserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_durable_upserts_total",
		Help: "Durable rows written by the batch handler",
	}, []string{"kind"})

	PacketsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_packets_enqueued_total",
		Help: "Delivery packets enqueued for the complementary role",
	}, []string{"kind"})

	PacketsAcked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_packets_acked_total",
		Help: "Delivery-packet acknowledgements applied",
	})

	PacketsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_packets_swept_total",
		Help: "Fully delivered or expired packets removed by the retention sweeper",
	})

	BlobsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_blobs_deleted_total",
		Help: "Blobs deleted ahead of their packets, including orphan sweeps",
	})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "relay_sweep_duration_seconds",
		Help: "Time spent in a single retention sweep pass",
	})
)
