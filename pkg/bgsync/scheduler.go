// Package bgsync keeps the durable registry of background sync tags and
// fires them when the origin is reachable.
package bgsync

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Sternrassler/museum-edge/pkg/syncqueue"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultKey is the Redis set holding registered tags.
const DefaultKey = "edge:sync:tags"

var firesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "edge_bgsync_fires_total",
	Help: "Total background sync firings by tag and result",
}, []string{"tag", "result"})

// Replayer runs the sync handler for a tag.
type Replayer interface {
	Replay(ctx context.Context, tag string) (*syncqueue.ReplayReport, error)
}

// Connectivity reports whether the origin is reachable.
type Connectivity interface {
	Online() bool
}

// Scheduler registers tags and fires them. A registered tag stays in Redis
// until a replay for it completes, so registrations survive restarts.
type Scheduler struct {
	redis    *redis.Client
	key      string
	conn     Connectivity
	replayer Replayer
	logger   zerolog.Logger

	wg sync.WaitGroup
}

// New creates a scheduler. conn may be nil, in which case the origin is
// assumed reachable.
func New(client *redis.Client, key string, conn Connectivity) *Scheduler {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if key == "" {
		key = DefaultKey
	}
	return &Scheduler{
		redis:  client,
		key:    key,
		conn:   conn,
		logger: log.With().Str("component", "bgsync").Logger(),
	}
}

// Bind sets the replayer. The queue and the scheduler refer to each other,
// so it is set after both exist.
func (s *Scheduler) Bind(r Replayer) {
	s.replayer = r
}

// Register records tag and fires it in the background when the origin is
// reachable. It implements syncqueue.Registrar.
func (s *Scheduler) Register(ctx context.Context, tag string) error {
	if err := s.redis.SAdd(ctx, s.key, tag).Err(); err != nil {
		return fmt.Errorf("register sync tag %s: %w", tag, err)
	}
	s.logger.Debug().Str("tag", tag).Msg("Sync tag registered")

	if s.conn == nil || s.conn.Online() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.Fire(context.WithoutCancel(ctx), tag)
		}()
	}
	return nil
}

// Pending lists registered tags that have not completed yet.
func (s *Scheduler) Pending(ctx context.Context) ([]string, error) {
	tags, err := s.redis.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("list sync tags: %w", err)
	}
	sort.Strings(tags)
	return tags, nil
}

// Fire runs the replay for tag and clears its registration once the run
// completes.
func (s *Scheduler) Fire(ctx context.Context, tag string) (*syncqueue.ReplayReport, error) {
	if s.replayer == nil {
		return nil, fmt.Errorf("scheduler has no replayer")
	}

	report, err := s.replayer.Replay(ctx, tag)
	if err != nil {
		firesTotal.WithLabelValues(tag, "error").Inc()
		s.logger.Error().Err(err).Str("tag", tag).Msg("Background sync failed")
		return report, fmt.Errorf("fire %s: %w", tag, err)
	}
	firesTotal.WithLabelValues(tag, "complete").Inc()

	if err := s.redis.SRem(ctx, s.key, tag).Err(); err != nil {
		s.logger.Warn().Err(err).Str("tag", tag).Msg("Failed to clear sync tag")
	}
	return report, nil
}

// OnOnline fires sync-all and every pending tag. It is the connectivity
// watcher's online listener.
func (s *Scheduler) OnOnline(ctx context.Context) {
	tags, err := s.Pending(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read pending sync tags")
	}

	s.Fire(ctx, syncqueue.TagAll)
	for _, tag := range tags {
		if tag == syncqueue.TagAll {
			continue
		}
		s.Fire(ctx, tag)
	}
}

// Drain waits for background firings started by Register.
func (s *Scheduler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
