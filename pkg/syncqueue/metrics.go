package syncqueue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EnqueuedTotal counts enqueued items by type
	EnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_sync_enqueued_total",
		Help: "Total items added to the sync queue by type",
	}, []string{"type"})

	// ReplayedTotal counts replay outcomes per item
	ReplayedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_sync_replayed_total",
		Help: "Total replayed sync items by result (synced, failed, dropped, skipped)",
	}, []string{"result"})

	// QueueLength is the number of items seen by the last listing
	QueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "edge_sync_queue_length",
		Help: "Number of items in the sync queue at the last listing",
	})

	// StoreErrors counts durable store failures by operation
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_sync_store_errors_total",
		Help: "Total sync queue store errors by operation",
	}, []string{"operation"})
)
