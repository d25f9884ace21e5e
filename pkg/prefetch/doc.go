// Package prefetch provides parallel fetching of resource lists with a
// bounded worker pool.
//
// The cache manager uses it to precache the install manifest and to serve
// on-demand caching requests. Unlike a fail-fast batch, one failing resource
// never stops the others: every URL gets its own Result.
//
// Example usage:
//
//	p := prefetch.New(prefetch.FetcherFunc(storeOne), prefetch.DefaultConfig())
//	results := p.FetchAll(ctx, []string{"/", "/offline.html"})
//	failed := prefetch.Failed(results)
package prefetch
