// Package network provides the outbound HTTP client used by the edge worker
// to reach the site origin and allow-listed external resources.
package network

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for outbound fetches.
var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_fetch_requests_total",
		Help: "Total outbound fetches by purpose and status",
	}, []string{"purpose", "status"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "edge_fetch_duration_seconds",
		Help:    "Outbound fetch duration in seconds by purpose",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"purpose"})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_fetch_errors_total",
		Help: "Total outbound fetch errors by class",
	}, []string{"class"})
)

// Purpose labels an outbound fetch for metrics.
type Purpose string

const (
	PurposePage    Purpose = "page"
	PurposeImage   Purpose = "image"
	PurposeInstall Purpose = "install"
	PurposeReplay  Purpose = "replay"
	PurposeProbe   Purpose = "probe"
)

type purposeKey struct{}

// WithPurpose tags req so metrics attribute it to p.
func WithPurpose(req *http.Request, p Purpose) *http.Request {
	return req.WithContext(contextWithPurpose(req.Context(), p))
}

// Client performs outbound fetches. It never retries: the only retry
// mechanism of the edge is the background sync trigger.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// UserAgent is sent on every request that does not set its own.
	UserAgent string

	// Timeout bounds a single fetch.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
	}
}

// New creates a new outbound client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: log.With().Str("component", "network").Logger(),
	}, nil
}

// Do executes req. Transport failures are returned as *FetchError with
// ErrorClassNetwork; any HTTP response, including 4xx/5xx, is returned as-is
// with a nil error so callers can apply their own fallback rules.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	purpose := purposeFrom(req.Context())
	startTime := time.Now()
	defer func() {
		fetchDuration.WithLabelValues(string(purpose)).Observe(time.Since(startTime).Seconds())
	}()

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		fetchErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		fetchRequestsTotal.WithLabelValues(string(purpose), "network_error").Inc()
		c.logger.Debug().
			Err(err).
			Str("url", req.URL.String()).
			Str("purpose", string(purpose)).
			Msg("Fetch failed")
		return nil, &FetchError{
			URL:        req.URL.String(),
			ErrorClass: ErrorClassNetwork,
			Err:        err,
		}
	}

	if class := ClassifyStatus(resp.StatusCode); class != "" {
		fetchErrorsTotal.WithLabelValues(string(class)).Inc()
	}
	fetchRequestsTotal.WithLabelValues(string(purpose), strconv.Itoa(resp.StatusCode)).Inc()

	c.logger.Debug().
		Str("url", req.URL.String()).
		Str("purpose", string(purpose)).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(startTime)).
		Msg("Fetch complete")

	return resp, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
