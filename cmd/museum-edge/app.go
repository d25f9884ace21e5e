package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/museum-edge/internal/config"
	"github.com/Sternrassler/museum-edge/pkg/bgsync"
	"github.com/Sternrassler/museum-edge/pkg/bridge"
	"github.com/Sternrassler/museum-edge/pkg/cache"
	"github.com/Sternrassler/museum-edge/pkg/connectivity"
	"github.com/Sternrassler/museum-edge/pkg/logging"
	"github.com/Sternrassler/museum-edge/pkg/metrics"
	"github.com/Sternrassler/museum-edge/pkg/network"
	"github.com/Sternrassler/museum-edge/pkg/push"
	"github.com/Sternrassler/museum-edge/pkg/ratelimit"
	"github.com/Sternrassler/museum-edge/pkg/router"
	"github.com/Sternrassler/museum-edge/pkg/syncqueue"
	"github.com/Sternrassler/museum-edge/pkg/worker"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// app holds every wired component of one edge instance.
type app struct {
	cfg    *config.Config
	redis  *redis.Client
	logger zerolog.Logger

	fetcher   *network.Client
	manager   *cache.Manager
	broker    *bridge.Broker
	relay     *bridge.Relay
	queue     *syncqueue.Queue
	store     syncqueue.Store
	scheduler *bgsync.Scheduler
	watcher   *connectivity.Watcher
	worker    *worker.Worker
	router    *router.Router
	cron      *cron.Cron

	handler http.Handler
}

// newApp wires the components. Nothing runs until start.
func newApp(cfg *config.Config, redisClient *redis.Client) (*app, error) {
	a := &app{
		cfg:    cfg,
		redis:  redisClient,
		logger: logging.NewLogger("edge"),
	}

	fetcher, err := network.New(network.Config{UserAgent: cfg.Origin.UserAgent, Timeout: cfg.Origin.Timeout})
	if err != nil {
		return nil, fmt.Errorf("network client: %w", err)
	}
	a.fetcher = fetcher

	a.manager, err = cache.NewManager(cache.NewStore(redisClient, ""), fetcher, cfg.CacheManagerConfig())
	if err != nil {
		return nil, fmt.Errorf("cache manager: %w", err)
	}

	a.broker = bridge.NewBroker(bridge.DefaultBrokerConfig())
	a.relay = bridge.NewRelay(redisClient, "", a.broker)
	notifier := bridge.NewNotifier(a.relay)

	a.watcher, err = connectivity.NewWatcher(fetcher, connectivity.Config{
		ProbeURL: cfg.ProbeURL(),
		Interval: cfg.Probe.Interval,
		Timeout:  cfg.Probe.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connectivity watcher: %w", err)
	}
	a.scheduler = bgsync.New(redisClient, "", a.watcher)

	a.store, err = openQueueStore(cfg, redisClient)
	if err != nil {
		return nil, err
	}
	a.queue, err = syncqueue.New(a.store, fetcher, syncqueue.Config{
		Origin:           cfg.OriginURL(),
		AllowedEndpoints: cfg.Sync.AllowedEndpoints,
	}, a.scheduler, notifier)
	if err != nil {
		a.store.Close()
		return nil, fmt.Errorf("sync queue: %w", err)
	}
	a.scheduler.Bind(a.queue)
	a.watcher.OnOnline(a.scheduler.OnOnline)

	a.worker, err = worker.New(a.manager, worker.NewController(redisClient, ""), notifier, a.broker, worker.Config{
		SkipWaiting:          cfg.Worker.SkipWaiting,
		ControlCheckInterval: cfg.Worker.ControlCheckInterval,
	})
	if err != nil {
		a.store.Close()
		return nil, fmt.Errorf("worker: %w", err)
	}
	a.broker.OnIdle(a.worker.ClientsIdle)
	a.relay.OnMessage(func(msg bridge.Message) {
		if msg.Type == bridge.TypeActivated {
			a.worker.Superseded(msg.Version)
		}
	})

	a.router, err = router.New(a.manager, fetcher, a.worker, router.DefaultConfig())
	if err != nil {
		a.store.Close()
		return nil, fmt.Errorf("router: %w", err)
	}

	a.cron = cron.New()
	if cfg.Cache.RefreshCron != "" {
		if _, err := a.cron.AddFunc(cfg.Cache.RefreshCron, a.refreshShell); err != nil {
			a.store.Close()
			return nil, fmt.Errorf("cache.refresh_cron %q: %w", cfg.Cache.RefreshCron, err)
		}
	}

	a.handler = a.routes()
	return a, nil
}

func openQueueStore(cfg *config.Config, redisClient *redis.Client) (syncqueue.Store, error) {
	if cfg.Sync.Engine == config.EngineSQLite {
		store, err := syncqueue.OpenSQLite(cfg.Sync.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sync queue store: %w", err)
		}
		return store, nil
	}
	return syncqueue.NewRedisStore(redisClient, ""), nil
}

func (a *app) routes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	limiter := ratelimit.NewTracker(a.redis, logging.NewLogger("ratelimit"), ratelimit.Config{
		Window: a.cfg.RateLimit.Window,
		Max:    a.cfg.RateLimit.Max,
	})
	dispatcher := bridge.NewDispatcher(a.worker, a.manager, a.queue)
	notifications := push.New(a.relay, a.broker)

	sw := engine.Group("/sw", logging.GinMiddleware(logging.NewLogger("http")))
	sw.GET("/events", bridge.StreamHandler(a.broker))
	sw.POST("/messages", limiter.Middleware(), dispatcher.Handler())
	sw.POST("/push", notifications.PushHandler())
	sw.POST("/notificationclick", notifications.ClickHandler())
	sw.POST("/sync", a.scheduler.Handler())

	engine.GET("/health", a.health)
	engine.GET("/ready", a.ready)
	engine.GET("/metrics", metrics.GinHandler())

	engine.NoRoute(func(c *gin.Context) {
		// gin presets 404 for NoRoute; the router sets the real status.
		c.Status(http.StatusOK)
		a.router.ServeHTTP(c.Writer, c.Request)
	})
	return engine
}

func (a *app) health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (a *app) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{
		"version":     a.manager.Version(),
		"state":       string(a.worker.State()),
		"controlling": a.worker.Controlling(),
		"online":      a.watcher.Online(),
		"clients":     a.broker.ClientCount(),
	}
	if err := a.redis.Ping(ctx).Err(); err != nil {
		status["redis"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	status["redis"] = "ok"
	c.JSON(http.StatusOK, status)
}

// refreshShell re-precaches the manifest into the current shell namespace.
func (a *app) refreshShell() {
	if !a.worker.Controlling() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := a.manager.Refresh(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("Periodic cache refresh failed")
		return
	}
	a.logger.Info().Int("stored", len(report.Stored)).Int("failed", len(report.Failed)).Msg("Periodic cache refresh complete")
}

// start launches the background components and the install. It returns
// once the broker and relay are accepting notifications.
func (a *app) start(ctx context.Context) error {
	if err := a.broker.Start(ctx); err != nil {
		return fmt.Errorf("start broker: %w", err)
	}
	if err := a.relay.Start(ctx); err != nil {
		a.broker.Stop()
		return fmt.Errorf("start relay: %w", err)
	}
	a.watcher.Start(ctx)
	a.cron.Start()

	go func() {
		if err := a.worker.Install(ctx); err != nil {
			a.logger.Error().Err(err).Msg("Install failed; pages pass through to the origin")
		}
	}()
	return nil
}

// stop shuts components down in dependency order.
func (a *app) stop(ctx context.Context) {
	<-a.cron.Stop().Done()
	a.watcher.Stop()
	if err := a.broker.Stop(); err != nil {
		a.logger.Warn().Err(err).Msg("Broker shutdown incomplete")
	}
	if err := a.router.Drain(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Background refreshes still running at shutdown")
	}
	if err := a.scheduler.Drain(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Background syncs still running at shutdown")
	}
	a.relay.Stop()
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close sync queue store")
	}
}
