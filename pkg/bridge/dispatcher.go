package bridge

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/Sternrassler/museum-edge/pkg/syncqueue"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxCommandBytes bounds a command body.
const maxCommandBytes = 1 << 20

// Activator forces a waiting worker to activate.
type Activator interface {
	SkipWaiting(ctx context.Context) error
}

// URLCacher adds URLs to the shell namespace.
type URLCacher interface {
	AddAll(ctx context.Context, urls []string) error
}

// Queue is the part of the sync queue commands reach.
type Queue interface {
	Enqueue(ctx context.Context, item syncqueue.Item) (string, error)
	List(ctx context.Context) ([]syncqueue.Item, error)
}

// Dispatcher executes page commands.
type Dispatcher struct {
	activator Activator
	cacher    URLCacher
	queue     Queue
	logger    zerolog.Logger
}

// NewDispatcher creates a command dispatcher.
func NewDispatcher(activator Activator, cacher URLCacher, queue Queue) *Dispatcher {
	return &Dispatcher{
		activator: activator,
		cacher:    cacher,
		queue:     queue,
		logger:    log.With().Str("component", "bridge-dispatcher").Logger(),
	}
}

// Dispatch runs cmd and returns its reply. Failures are reported in the
// reply, never as a panic or a dropped request.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) Reply {
	reply := d.dispatch(ctx, cmd)

	result := "success"
	if !reply.Success {
		result = "failure"
		d.logger.Warn().Str("type", cmd.CommandType()).Str("error", reply.Error).Msg("Command failed")
	}
	CommandsTotal.WithLabelValues(cmd.CommandType(), result).Inc()
	return reply
}

func (d *Dispatcher) dispatch(ctx context.Context, cmd Command) Reply {
	switch c := cmd.(type) {
	case SkipWaiting:
		if err := d.activator.SkipWaiting(ctx); err != nil {
			return failure(err)
		}
		return Reply{Success: true}

	case CacheURLs:
		if err := d.cacher.AddAll(ctx, c.URLs); err != nil {
			return failure(err)
		}
		return Reply{Success: true}

	case AddToSyncQueue:
		id, err := d.queue.Enqueue(ctx, c.Item)
		if err != nil {
			return failure(err)
		}
		return Reply{Success: true, ID: id}

	case GetSyncQueue:
		items, err := d.queue.List(ctx)
		if err != nil {
			return failure(err)
		}
		if items == nil {
			items = []syncqueue.Item{}
		}
		return Reply{Success: true, Queue: items}

	default:
		return failure(ErrUnknownCommand)
	}
}

// Handler serves the reply channel: one JSON command in, one Reply out.
func (d *Dispatcher) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCommandBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, failure(err))
			return
		}

		cmd, err := DecodeCommand(body)
		if err != nil {
			CommandsTotal.WithLabelValues("invalid", "failure").Inc()
			status := http.StatusBadRequest
			if errors.Is(err, ErrUnknownCommand) {
				status = http.StatusUnprocessableEntity
			}
			c.JSON(status, failure(err))
			return
		}

		c.JSON(http.StatusOK, d.Dispatch(c.Request.Context(), cmd))
	}
}
