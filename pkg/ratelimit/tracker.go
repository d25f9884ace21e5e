package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limiting.
var (
	rateLimitAllowedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edge_rate_limit_allowed_total",
		Help: "Total number of commands admitted by the rate limiter",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edge_rate_limit_blocks_total",
		Help: "Total number of commands rejected with 429",
	})

	rateLimitErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edge_rate_limit_errors_total",
		Help: "Total number of limiter store failures (requests admitted)",
	})
)

// Config configures a Tracker.
type Config struct {
	Window  time.Duration
	Max     int64
	Message string
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{Window: DefaultWindow, Max: DefaultMax, Message: DefaultMessage}
}

// Tracker counts requests per client in fixed windows.
type Tracker struct {
	redis  *redis.Client
	config Config
	logger zerolog.Logger
}

// NewTracker creates a new rate limit tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger, cfg Config) *Tracker {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Max <= 0 {
		cfg.Max = def.Max
	}
	if cfg.Message == "" {
		cfg.Message = def.Message
	}
	return &Tracker{
		redis:  redisClient,
		config: cfg,
		logger: logger,
	}
}

// Hit counts one request for clientKey and returns the resulting window.
func (t *Tracker) Hit(ctx context.Context, clientKey string) (*WindowState, error) {
	key := RedisKeyPrefix + clientKey

	count, err := t.redis.Incr(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("increment window: %w", err)
	}

	ttl, err := t.redis.PTTL(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("get window ttl: %w", err)
	}
	// A fresh counter, or one left without expiry by a crash between the
	// two calls, starts a new window.
	if count == 1 || ttl < 0 {
		if err := t.redis.PExpire(ctx, key, t.config.Window).Err(); err != nil {
			return nil, fmt.Errorf("set window expiry: %w", err)
		}
		ttl = t.config.Window
	}

	return &WindowState{
		Count:   count,
		Limit:   t.config.Max,
		ResetAt: time.Now().Add(ttl),
	}, nil
}

// Middleware rejects clients over the limit with 429 and a retryAfter hint.
// Store failures admit the request.
func (t *Tracker) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := t.Hit(c.Request.Context(), c.ClientIP())
		if err != nil {
			rateLimitErrorsTotal.Inc()
			t.logger.Error().Err(err).Msg("Rate limit check failed, admitting request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(state.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(state.Remaining(), 10))
		c.Header("X-RateLimit-Reset", state.ResetAt.UTC().Format(time.RFC3339))

		if state.Exceeded() {
			rateLimitBlocksTotal.Inc()
			retryAfter := state.RetryAfterSeconds()
			t.logger.Warn().
				Str("client", c.ClientIP()).
				Int64("count", state.Count).
				Int("retry_after", retryAfter).
				Msg("Rate limit exceeded - rejecting command")

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":    false,
				"error":      t.config.Message,
				"retryAfter": retryAfter,
			})
			return
		}

		rateLimitAllowedTotal.Inc()
		c.Next()
	}
}
