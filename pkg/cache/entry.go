package cache

import (
	"net/http"
	"time"
)

// CacheEntry is a full response snapshot captured at CachedAt.
// Entries are never partially updated; a refetch overwrites the whole entry.
type CacheEntry struct {
	// URL is the normalized request URL the entry was stored under
	URL string `json:"url"`

	// Data is the response body
	Data []byte `json:"data"`

	// ETag for conditional revalidation (If-None-Match)
	ETag string `json:"etag,omitempty"`

	// LastModified from the origin's Last-Modified header (If-Modified-Since)
	LastModified time.Time `json:"last_modified,omitempty"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Headers are the response headers
	Headers http.Header `json:"headers"`

	// CachedAt is when we captured this response
	CachedAt time.Time `json:"cached_at"`
}

// Age returns how long ago the entry was captured.
func (e *CacheEntry) Age() time.Duration {
	if e.CachedAt.IsZero() {
		return 0
	}
	return time.Since(e.CachedAt)
}
