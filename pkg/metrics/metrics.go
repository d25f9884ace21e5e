// Package metrics exposes the Prometheus registry of the edge. Metrics are
// defined in their own packages (cache, router, network, syncqueue, bridge,
// worker, push, connectivity, bgsync, ratelimit) through promauto; this
// package serves them and catalogues them.
package metrics

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package's promauto metrics land in.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// GinHandler adapts Handler for a gin route.
func GinHandler() gin.HandlerFunc {
	return gin.WrapH(Handler())
}

// Metrics Documentation
//
// Cache (pkg/cache):
//   - edge_cache_hits_total{namespace} (Counter)
//   - edge_cache_misses_total{namespace} (Counter)
//   - edge_cache_stored_bytes_total{namespace} (Counter)
//   - edge_cache_errors_total{operation} (Counter): match, put, delete, keys, purge
//   - edge_cache_namespaces_purged_total (Counter): stale namespaces deleted on activation
//   - edge_cache_install_resources_total{result} (Counter): stored, failed
//   - edge_conditional_requests_total (Counter): revalidations with If-None-Match/If-Modified-Since
//   - edge_304_responses_total (Counter)
//
// Routing (pkg/router):
//   - edge_router_requests_total{strategy, source} (Counter)
//   - edge_router_background_refreshes_total{result} (Counter)
//   - edge_router_refreshes_in_flight (Gauge)
//
// Outbound fetches (pkg/network):
//   - edge_fetch_requests_total{purpose, status} (Counter)
//   - edge_fetch_duration_seconds{purpose} (Histogram)
//   - edge_fetch_errors_total{class} (Counter): client, server, network
//
// Sync queue (pkg/syncqueue, pkg/bgsync):
//   - edge_sync_enqueued_total{type} (Counter)
//   - edge_sync_replayed_total{result} (Counter): synced, failed, dropped
//   - edge_sync_queue_length (Gauge)
//   - edge_sync_store_errors_total{operation} (Counter)
//   - edge_bgsync_fires_total{tag, result} (Counter)
//
// Pages (pkg/bridge, pkg/push, pkg/ratelimit):
//   - edge_bridge_clients (Gauge)
//   - edge_bridge_messages_delivered_total{type} (Counter)
//   - edge_bridge_slow_clients_dropped_total (Counter)
//   - edge_bridge_commands_total{type, result} (Counter)
//   - edge_push_notifications_total (Counter)
//   - edge_push_clicks_total{outcome} (Counter)
//   - edge_rate_limit_allowed_total, edge_rate_limit_blocks_total, edge_rate_limit_errors_total (Counter)
//
// Lifecycle (pkg/worker, pkg/connectivity):
//   - edge_worker_state{state} (Gauge): 1 for the current state
//   - edge_worker_activations_total{tone} (Counter)
//   - edge_origin_online (Gauge)
//   - edge_origin_transitions_total{to} (Counter)
//
// Example Prometheus Queries:
//
//   # Offline hit rate (responses served without the origin)
//   sum(rate(edge_router_requests_total{source=~"cache|offline"}[5m])) /
//   sum(rate(edge_router_requests_total[5m]))
//
//   # Pending writes
//   edge_sync_queue_length > 0
//
//   # Replay failure rate
//   rate(edge_sync_replayed_total{result="failed"}[5m])
//
//   # P95 origin latency for page fetches
//   histogram_quantile(0.95, rate(edge_fetch_duration_seconds_bucket{purpose="page"}[5m]))
