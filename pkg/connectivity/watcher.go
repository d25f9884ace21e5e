// Package connectivity watches whether the origin is reachable and tells
// listeners when it comes back.
package connectivity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Sternrassler/museum-edge/pkg/network"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	originOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "edge_origin_online",
		Help: "Whether the last probe reached the origin (1) or not (0)",
	})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_origin_transitions_total",
		Help: "Total origin connectivity transitions by direction",
	}, []string{"to"})
)

// Fetcher sends probe requests.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Watcher.
type Config struct {
	// ProbeURL is requested with HEAD on every tick.
	ProbeURL string

	// Interval between probes.
	Interval time.Duration

	// Timeout bounds a single probe.
	Timeout time.Duration
}

// DefaultConfig returns the default probe settings for probeURL.
func DefaultConfig(probeURL string) Config {
	return Config{
		ProbeURL: probeURL,
		Interval: 15 * time.Second,
		Timeout:  5 * time.Second,
	}
}

// Watcher probes the origin and fires OnOnline listeners on every
// offline to online transition. The state starts offline, so the first
// successful probe fires too.
type Watcher struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger

	mu        sync.RWMutex
	online    bool
	listeners []func(ctx context.Context)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher.
func NewWatcher(fetcher Fetcher, cfg Config) (*Watcher, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.ProbeURL == "" {
		return nil, fmt.Errorf("probe URL is required")
	}
	def := DefaultConfig(cfg.ProbeURL)
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	originOnline.Set(0)
	return &Watcher{
		fetcher: fetcher,
		config:  cfg,
		logger:  log.With().Str("component", "connectivity").Str("probe", cfg.ProbeURL).Logger(),
	}, nil
}

// OnOnline registers fn to run after each transition to online.
func (w *Watcher) OnOnline(fn func(ctx context.Context)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Online reports the result of the last probe.
func (w *Watcher) Online() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.online
}

// Check probes once and returns whether the origin answered. Any HTTP
// response counts as online; only transport failures count as offline.
// Listeners run synchronously before Check returns.
func (w *Watcher) Check(ctx context.Context) bool {
	reachable := w.probe(ctx)

	w.mu.Lock()
	was := w.online
	w.online = reachable
	listeners := append([]func(context.Context){}, w.listeners...)
	w.mu.Unlock()

	if reachable {
		originOnline.Set(1)
	} else {
		originOnline.Set(0)
	}

	switch {
	case reachable && !was:
		transitionsTotal.WithLabelValues("online").Inc()
		w.logger.Info().Msg("Origin reachable")
		for _, fn := range listeners {
			fn(ctx)
		}
	case !reachable && was:
		transitionsTotal.WithLabelValues("offline").Inc()
		w.logger.Warn().Msg("Origin unreachable")
	}
	return reachable
}

// Start probes immediately and then on every interval until Stop.
func (w *Watcher) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.config.Interval)
		defer ticker.Stop()

		w.Check(runCtx)
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				w.Check(runCtx)
			}
		}
	}()
}

// Stop ends probing and waits for an in-flight probe.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, w.config.ProbeURL, nil)
	if err != nil {
		w.logger.Error().Err(err).Msg("Invalid probe request")
		return false
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := w.fetcher.Do(network.WithPurpose(req, network.PurposeProbe))
	if err != nil {
		w.logger.Debug().Err(err).Msg("Probe failed")
		return false
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return true
}
