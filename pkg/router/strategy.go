package router

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/Sternrassler/museum-edge/pkg/cache"
	"github.com/Sternrassler/museum-edge/pkg/network"
)

const offlineBody = "Offline content not available"

// hopHeaders are connection-scoped and never forwarded or replayed from cache.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// serveImage answers from the image namespace when possible and refreshes
// the entry in the background; a miss goes to the network.
func (rt *Router) serveImage(w http.ResponseWriter, r *http.Request, key cache.RequestKey) Source {
	ctx := r.Context()
	store := rt.manager.Store()
	ns := rt.manager.Images()

	entry, err := store.Match(ctx, ns, key)
	if err == nil {
		rt.revalidate(ns, key, entry, r.Header.Clone())
		writeEntry(w, entry, SourceCache)
		return SourceCache
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		rt.logger.Warn().Err(err).Str("namespace", ns).Msg("Image cache read failed")
	}

	fresh, err := rt.forward(ctx, r.Header, key, network.PurposeImage)
	if err != nil {
		w.Header().Set(SourceHeader, string(SourceSynthetic))
		w.WriteHeader(http.StatusServiceUnavailable)
		return SourceSynthetic
	}
	if cache.IsOK(fresh.StatusCode) {
		rt.put(ctx, ns, key, fresh)
	}
	writeEntry(w, fresh, SourceNetwork)
	return SourceNetwork
}

// serveShell fetches from the network first. Failures fall back to the
// shell namespace, then the offline page for navigations.
func (rt *Router) serveShell(w http.ResponseWriter, r *http.Request, key cache.RequestKey) Source {
	ctx := r.Context()
	ns := rt.manager.Shell()

	fresh, err := rt.forward(ctx, r.Header, key, network.PurposePage)
	if err == nil {
		if cache.IsOK(fresh.StatusCode) {
			rt.put(ctx, ns, key, fresh)
			writeEntry(w, fresh, SourceNetwork)
			return SourceNetwork
		}
		if cached := rt.match(ctx, ns, key); cached != nil {
			writeEntry(w, cached, SourceCache)
			return SourceCache
		}
		writeEntry(w, fresh, SourceNetwork)
		return SourceNetwork
	}

	rt.logger.Debug().Err(err).Str("url", key.URL).Msg("Network failed, trying cache")

	if cached := rt.match(ctx, ns, key); cached != nil {
		writeEntry(w, cached, SourceCache)
		return SourceCache
	}

	if IsNavigation(r) {
		if offlineKey, err := rt.manager.OfflineKey(); err == nil {
			if page := rt.match(ctx, ns, offlineKey); page != nil {
				writeEntry(w, page, SourceOffline)
				return SourceOffline
			}
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set(SourceHeader, string(SourceSynthetic))
	w.WriteHeader(http.StatusServiceUnavailable)
	io.WriteString(w, offlineBody)
	return SourceSynthetic
}

// forward fetches key from the network with the client's headers and
// buffers the whole response. A body that cannot be read is a network
// failure.
func (rt *Router) forward(ctx context.Context, header http.Header, key cache.RequestKey, purpose network.Purpose) (*cache.CacheEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key.URL, nil)
	if err != nil {
		return nil, err
	}
	copyRequestHeader(req.Header, header)

	resp, err := rt.fetcher.Do(network.WithPurpose(req, purpose))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	entry, err := cache.ResponseToEntry(key, resp)
	if err != nil {
		return nil, &network.FetchError{URL: key.URL, ErrorClass: network.ErrorClassNetwork, Err: err}
	}
	return entry, nil
}

// revalidate refreshes an image entry without holding up the response.
// The refresh outlives the request and is tracked for Drain.
func (rt *Router) revalidate(ns string, key cache.RequestKey, entry *cache.CacheEntry, header http.Header) {
	rt.refreshes.Add(1)
	RefreshesInFlight.Inc()

	go func() {
		defer rt.refreshes.Done()
		defer RefreshesInFlight.Dec()

		ctx, cancel := context.WithTimeout(context.Background(), rt.config.RefreshTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, key.URL, nil)
		if err != nil {
			BackgroundRefreshes.WithLabelValues("error").Inc()
			return
		}
		copyRequestHeader(req.Header, header)
		if cache.ShouldMakeConditionalRequest(entry) {
			cache.AddConditionalHeaders(req, entry)
			cache.ConditionalRequestsSent.Inc()
		}

		resp, err := rt.fetcher.Do(network.WithPurpose(req, network.PurposeImage))
		if err != nil {
			BackgroundRefreshes.WithLabelValues("network_error").Inc()
			return
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotModified:
			cache.NotModifiedResponses.Inc()
			BackgroundRefreshes.WithLabelValues("not_modified").Inc()
		case cache.IsOK(resp.StatusCode):
			fresh, err := cache.ResponseToEntry(key, resp)
			if err != nil {
				BackgroundRefreshes.WithLabelValues("error").Inc()
				return
			}
			rt.put(ctx, ns, key, fresh)
			BackgroundRefreshes.WithLabelValues("updated").Inc()
		default:
			BackgroundRefreshes.WithLabelValues("skipped").Inc()
		}
	}()
}

// put stores entry best-effort; a failed write never affects the response.
func (rt *Router) put(ctx context.Context, ns string, key cache.RequestKey, entry *cache.CacheEntry) {
	if err := rt.manager.Store().Put(ctx, ns, key, entry); err != nil {
		rt.logger.Warn().Err(err).Str("namespace", ns).Str("url", key.URL).Msg("Cache write failed")
	}
}

// match returns the cached entry or nil. Read errors count as misses.
func (rt *Router) match(ctx context.Context, ns string, key cache.RequestKey) *cache.CacheEntry {
	entry, err := rt.manager.Store().Match(ctx, ns, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			rt.logger.Warn().Err(err).Str("namespace", ns).Msg("Cache read failed")
		}
		return nil
	}
	return entry
}

func writeEntry(w http.ResponseWriter, entry *cache.CacheEntry, source Source) {
	resp := cache.EntryToResponse(entry)
	defer resp.Body.Close()

	h := w.Header()
	for k, vv := range resp.Header {
		h[k] = append([]string(nil), vv...)
	}
	for _, k := range hopHeaders {
		h.Del(k)
	}
	h.Set(SourceHeader, string(source))

	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// copyRequestHeader forwards client headers minus hop-by-hop, conditional
// and encoding headers, so the edge always receives a full decoded body.
func copyRequestHeader(dst, src http.Header) {
	for k, vv := range src {
		dst[k] = append([]string(nil), vv...)
	}
	for _, k := range hopHeaders {
		dst.Del(k)
	}
	dst.Del("Accept-Encoding")
	dst.Del("If-None-Match")
	dst.Del("If-Modified-Since")
	dst.Del("Range")
	dst.Del("If-Range")
}
