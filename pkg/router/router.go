// Package router decides, for every request reaching the edge, whether it is
// answered from a cache namespace, from the origin, or passed through.
//
// Images are served cache-first and revalidated in the background. Shell
// resources are fetched network-first and fall back to the shell namespace,
// then to the offline page for navigations.
package router

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"github.com/Sternrassler/museum-edge/pkg/cache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SourceHeader names the response header that records where a response
// came from.
const SourceHeader = "X-Edge-Source"

// Source identifies where a response came from.
type Source string

const (
	SourceNetwork   Source = "network"
	SourceCache     Source = "cache"
	SourceOffline   Source = "offline"
	SourceSynthetic Source = "synthetic"
)

// Gate reports whether the edge currently controls page traffic. Until it
// does, every request passes through untouched.
type Gate interface {
	Controlling() bool
}

// GateFunc adapts a function to Gate.
type GateFunc func() bool

// Controlling implements Gate.
func (f GateFunc) Controlling() bool { return f() }

// Config holds router settings.
type Config struct {
	// RefreshTimeout bounds a detached background image refresh.
	RefreshTimeout time.Duration
}

// DefaultConfig returns the default router configuration.
func DefaultConfig() Config {
	return Config{RefreshTimeout: 30 * time.Second}
}

// Router is the fetch handler of the edge. It keeps no per-request state
// beyond the WaitGroup of detached refreshes.
type Router struct {
	manager *cache.Manager
	fetcher cache.Fetcher
	gate    Gate
	proxy   *httputil.ReverseProxy
	config  Config
	logger  zerolog.Logger

	refreshes sync.WaitGroup
}

// New creates a router serving from manager's namespaces and fetching with
// fetcher.
func New(manager *cache.Manager, fetcher cache.Fetcher, gate Gate, cfg Config) (*Router, error) {
	if manager == nil {
		return nil, fmt.Errorf("cache manager is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if gate == nil {
		return nil, fmt.Errorf("gate is required")
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = DefaultConfig().RefreshTimeout
	}

	rt := &Router{
		manager: manager,
		fetcher: fetcher,
		gate:    gate,
		config:  cfg,
		logger:  log.With().Str("component", "router").Logger(),
	}
	rt.proxy = rt.newPassThrough(manager.Origin())
	return rt, nil
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !rt.gate.Controlling() {
		rt.passThrough(w, r)
		return
	}

	strategy := Classify(r)
	if strategy == StrategyPassThrough {
		rt.passThrough(w, r)
		return
	}

	key, err := cache.NewRequestKey(http.MethodGet, rt.target(r).String())
	if err != nil {
		rt.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Unroutable request, passing through")
		rt.passThrough(w, r)
		return
	}

	var source Source
	switch strategy {
	case StrategyImage:
		source = rt.serveImage(w, r, key)
	case StrategyShell:
		source = rt.serveShell(w, r, key)
	}

	RequestsTotal.WithLabelValues(string(strategy), string(source)).Inc()
	rt.logger.Debug().
		Str("strategy", string(strategy)).
		Str("source", string(source)).
		Str("url", key.URL).
		Msg("Request routed")
}

// Drain waits for detached background refreshes to finish or ctx to end.
func (rt *Router) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		rt.refreshes.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// target maps r onto the origin, keeping path and query.
func (rt *Router) target(r *http.Request) *url.URL {
	u := rt.manager.Origin()
	u.Path = r.URL.Path
	u.RawPath = r.URL.RawPath
	u.RawQuery = r.URL.RawQuery
	u.Fragment = ""
	return u
}

func (rt *Router) passThrough(w http.ResponseWriter, r *http.Request) {
	RequestsTotal.WithLabelValues(string(StrategyPassThrough), string(SourceNetwork)).Inc()
	rt.proxy.ServeHTTP(w, r)
}

func (rt *Router) newPassThrough(origin *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(origin)
			pr.SetXForwarded()
		},
		ModifyResponse: func(resp *http.Response) error {
			resp.Header.Set(SourceHeader, string(SourceNetwork))
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			rt.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Pass-through failed")
			w.Header().Set(SourceHeader, string(SourceSynthetic))
			w.WriteHeader(http.StatusBadGateway)
		},
	}
}
