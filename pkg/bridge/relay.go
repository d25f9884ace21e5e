package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultChannel is the Redis pub/sub channel notifications travel on.
const DefaultChannel = "edge:notifications"

// Relay fans notifications out across edge instances. Broadcast publishes
// to Redis; every running relay forwards what it receives to its local
// broker.
type Relay struct {
	redis   *redis.Client
	channel string
	local   *Broker
	logger  zerolog.Logger

	mu       sync.Mutex
	handlers []func(Message)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRelay creates a relay delivering into local.
func NewRelay(client *redis.Client, channel string, local *Broker) *Relay {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &Relay{
		redis:   client,
		channel: channel,
		local:   local,
		logger:  log.With().Str("component", "bridge-relay").Str("channel", channel).Logger(),
	}
}

// Start subscribes to the channel and returns once the subscription is
// confirmed, so nothing published afterwards is missed.
func (r *Relay) Start(ctx context.Context) error {
	pubsub := r.redis.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer pubsub.Close()
		r.forward(runCtx, pubsub.Channel())
	}()

	r.logger.Info().Msg("Notification relay started")
	return nil
}

// OnMessage registers fn to see every notification received from any
// instance, before it is delivered to local clients.
func (r *Relay) OnMessage(fn func(Message)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, fn)
}

// Stop ends the subscription and waits for the forwarder.
func (r *Relay) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Broadcast publishes msg to every instance, this one included.
func (r *Relay) Broadcast(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := r.redis.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (r *Relay) forward(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				r.logger.Warn().Err(err).Msg("Dropping malformed notification")
				continue
			}
			r.mu.Lock()
			handlers := append([](func(Message))(nil), r.handlers...)
			r.mu.Unlock()
			for _, fn := range handlers {
				fn(msg)
			}
			if err := r.local.Broadcast(ctx, msg); err != nil {
				r.logger.Warn().Err(err).Str("type", msg.Type).Msg("Local delivery failed")
			}
		}
	}
}
