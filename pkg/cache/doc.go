// Package cache provides versioned cache namespaces backed by Redis.
//
// A namespace identifier is "{logical-name}-{version}". Three logical names
// exist: the shell namespace (critical HTML, CSS, JS, fonts and the offline
// page), the image namespace (cache-first images) and a reserved API
// namespace. All share one global version string.
//
// # Lifecycle
//
//	manager, _ := cache.NewManager(cache.NewStore(redisClient, ""), fetcher, cfg)
//
//	// Precache the manifest; failing resources are reported, not fatal.
//	report, err := manager.Install(ctx)
//
//	// Drop every namespace that does not carry the running version.
//	purged, err := manager.Activate(ctx)
//
// # Reads and writes
//
//	key, _ := cache.NewRequestKey(http.MethodGet, "https://example.com/index.html")
//	entry, err := manager.Store().Match(ctx, manager.Shell(), key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the network
//	}
//
// Entries are full response snapshots and are only stored for GET 2xx
// responses. Concurrent writes of the same key are last-write-wins; there is
// no transactional ordering between writers.
//
// # Metrics
//
//   - edge_cache_hits_total{namespace}
//   - edge_cache_misses_total{namespace}
//   - edge_cache_stored_bytes_total{namespace}
//   - edge_cache_errors_total{operation}
//   - edge_cache_namespaces_purged_total
//   - edge_cache_install_resources_total{result}
//   - edge_conditional_requests_total
//   - edge_304_responses_total
package cache
