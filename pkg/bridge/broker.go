package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Default broker settings.
const (
	DefaultEventBufferSize   = 256
	DefaultClientBufferSize  = 32
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultShutdownTimeout   = 5 * time.Second
	DefaultMaxClients        = 1000
)

var (
	// ErrTooManyClients is returned by Subscribe when MaxClients is reached
	ErrTooManyClients = errors.New("too many page clients")

	// ErrBufferFull is returned by Broadcast when the publish buffer is full
	ErrBufferFull = errors.New("broadcast buffer full")
)

// Broadcaster delivers a notification to every page client.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg Message) error
}

// ClientInfo describes a connected page client.
type ClientInfo struct {
	ID  string
	URL string
}

// Subscription is one page client's event stream. Events is closed when
// the client is removed or the broker stops.
type Subscription struct {
	ID     string
	URL    string
	Events <-chan Message
}

// BrokerConfig holds broker settings.
type BrokerConfig struct {
	EventBufferSize   int
	ClientBufferSize  int
	HeartbeatInterval time.Duration
	ShutdownTimeout   time.Duration
	// MaxClients caps concurrent streams; 0 means unlimited.
	MaxClients int
}

// DefaultBrokerConfig returns the default broker settings.
func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		EventBufferSize:   DefaultEventBufferSize,
		ClientBufferSize:  DefaultClientBufferSize,
		HeartbeatInterval: DefaultHeartbeatInterval,
		ShutdownTimeout:   DefaultShutdownTimeout,
		MaxClients:        DefaultMaxClients,
	}
}

type client struct {
	id     string
	url    string
	events chan Message
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
	mu     sync.Mutex
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return
	}
	c.closed.Store(true)
	c.cancel()
	close(c.events)
}

// send queues msg without blocking. Returns false when the buffer is full.
func (c *client) send(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return true
	}
	select {
	case c.events <- msg:
		return true
	default:
		return false
	}
}

// Broker fans notifications out to the page clients of this instance.
type Broker struct {
	config BrokerConfig
	logger zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*client
	onIdle  []func()

	publish chan Message
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewBroker creates a broker. Zero config fields take defaults.
func NewBroker(cfg BrokerConfig) *Broker {
	def := DefaultBrokerConfig()
	if cfg.EventBufferSize <= 0 {
		cfg.EventBufferSize = def.EventBufferSize
	}
	if cfg.ClientBufferSize <= 0 {
		cfg.ClientBufferSize = def.ClientBufferSize
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	return &Broker{
		config:  cfg,
		logger:  log.With().Str("component", "bridge-broker").Logger(),
		clients: make(map[string]*client),
		publish: make(chan Message, cfg.EventBufferSize),
	}
}

// Start begins distributing messages. It does not block.
func (b *Broker) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	b.wg.Add(1)
	go b.broadcastLoop()

	b.logger.Info().
		Int("event_buffer_size", b.config.EventBufferSize).
		Int("client_buffer_size", b.config.ClientBufferSize).
		Int("max_clients", b.config.MaxClients).
		Msg("Notification broker started")
	return nil
}

// Stop disconnects every client and waits for the broker goroutines.
func (b *Broker) Stop() error {
	if b.cancel != nil {
		b.cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info().Msg("Notification broker stopped")
		return nil
	case <-time.After(b.config.ShutdownTimeout):
		return fmt.Errorf("broker shutdown timed out after %s", b.config.ShutdownTimeout)
	}
}

// Broadcast queues msg for delivery to local clients.
func (b *Broker) Broadcast(ctx context.Context, msg Message) error {
	select {
	case b.publish <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("broadcast cancelled: %w", ctx.Err())
	default:
		return fmt.Errorf("%w (dropped %s)", ErrBufferFull, msg.Type)
	}
}

// Subscribe registers a page client showing pageURL. The subscription ends
// when ctx is done or cleanup is called.
func (b *Broker) Subscribe(ctx context.Context, pageURL string) (*Subscription, func(), error) {
	clientCtx, cancel := context.WithCancel(ctx)
	c := &client{
		id:     uuid.NewString(),
		url:    pageURL,
		events: make(chan Message, b.config.ClientBufferSize),
		ctx:    clientCtx,
		cancel: cancel,
	}

	b.mu.Lock()
	if b.config.MaxClients > 0 && len(b.clients) >= b.config.MaxClients {
		b.mu.Unlock()
		cancel()
		b.logger.Warn().Int("max_clients", b.config.MaxClients).Msg("Max page clients reached, rejecting stream")
		return nil, nil, ErrTooManyClients
	}
	b.clients[c.id] = c
	count := len(b.clients)
	b.mu.Unlock()

	ConnectedClients.Inc()
	b.logger.Debug().Str("client_id", c.id).Str("url", pageURL).Int("total_clients", count).Msg("Page client subscribed")

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		<-c.ctx.Done()
		b.removeClient(c.id)
	}()

	sub := &Subscription{ID: c.id, URL: pageURL, Events: c.events}
	return sub, func() { b.removeClient(c.id) }, nil
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Clients lists the connected clients.
func (b *Broker) Clients() []ClientInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]ClientInfo, 0, len(b.clients))
	for _, c := range b.clients {
		out = append(out, ClientInfo{ID: c.id, URL: c.url})
	}
	return out
}

// OnIdle registers fn to run whenever the last client disconnects.
func (b *Broker) OnIdle(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onIdle = append(b.onIdle, fn)
}

// HeartbeatInterval returns the configured keep-alive interval.
func (b *Broker) HeartbeatInterval() time.Duration {
	return b.config.HeartbeatInterval
}

func (b *Broker) broadcastLoop() {
	defer b.wg.Done()
	for {
		select {
		case msg := <-b.publish:
			b.deliver(msg)
		case <-b.ctx.Done():
			b.disconnectAll()
			return
		}
	}
}

func (b *Broker) deliver(msg Message) {
	b.mu.RLock()
	targets := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		if msg.Target == "" || msg.Target == c.id {
			targets = append(targets, c)
		}
	}
	b.mu.RUnlock()

	var slow []string
	for _, c := range targets {
		if c.send(msg) {
			MessagesDelivered.WithLabelValues(msg.Type).Inc()
			continue
		}
		slow = append(slow, c.id)
	}

	for _, id := range slow {
		b.logger.Warn().Str("client_id", id).Str("type", msg.Type).Msg("Client buffer full, closing slow stream")
		SlowClientsDropped.Inc()
		b.removeClient(id)
	}
}

func (b *Broker) removeClient(id string) {
	b.mu.Lock()
	c, exists := b.clients[id]
	if exists {
		delete(b.clients, id)
	}
	idle := exists && len(b.clients) == 0
	hooks := append([]func(){}, b.onIdle...)
	b.mu.Unlock()

	if !exists {
		return
	}
	c.close()
	ConnectedClients.Dec()
	b.logger.Debug().Str("client_id", id).Msg("Page client disconnected")

	if idle {
		for _, fn := range hooks {
			fn()
		}
	}
}

func (b *Broker) disconnectAll() {
	b.mu.Lock()
	clients := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.clients = make(map[string]*client)
	b.mu.Unlock()

	for _, c := range clients {
		c.close()
		ConnectedClients.Dec()
	}
	if len(clients) > 0 {
		b.logger.Info().Int("count", len(clients)).Msg("All page clients disconnected")
	}
}
