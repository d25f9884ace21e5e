package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by namespace
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_cache_hits_total",
			Help: "Total number of cache namespace hits",
		},
		[]string{"namespace"},
	)

	// CacheMisses tracks cache misses by namespace
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_cache_misses_total",
			Help: "Total number of cache namespace misses",
		},
		[]string{"namespace"},
	)

	// CacheStoredBytes tracks bytes written per namespace
	CacheStoredBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_cache_stored_bytes_total",
			Help: "Total bytes written into cache namespaces",
		},
		[]string{"namespace"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "match", "put", "delete", "keys", "purge"
	)

	// NamespacesPurged tracks stale namespaces deleted on activation
	NamespacesPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_cache_namespaces_purged_total",
			Help: "Total number of stale cache namespaces deleted on activation",
		},
	)

	// InstallResources tracks precache outcomes
	InstallResources = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_cache_install_resources_total",
			Help: "Total number of precached resources by result",
		},
		[]string{"result"}, // "stored", "failed"
	)

	// ConditionalRequestsSent tracks revalidations sent with validators
	ConditionalRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_conditional_requests_total",
			Help: "Total number of conditional revalidation requests sent",
		},
	)

	// NotModifiedResponses tracks 304 answers to revalidations
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_304_responses_total",
			Help: "Total number of 304 Not Modified revalidation responses",
		},
	)
)
