package bridge

import (
	"context"

	"github.com/Sternrassler/museum-edge/pkg/syncqueue"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Notifier turns edge events into broadcasts. Delivery failures are logged;
// a lost notification never fails the operation that produced it.
type Notifier struct {
	out    Broadcaster
	logger zerolog.Logger
}

// NewNotifier creates a notifier publishing through out.
func NewNotifier(out Broadcaster) *Notifier {
	return &Notifier{
		out:    out,
		logger: log.With().Str("component", "bridge-notifier").Logger(),
	}
}

// OfflineReady announces a completed install.
func (n *Notifier) OfflineReady(ctx context.Context, version string) {
	n.send(ctx, NewOfflineReady(version))
}

// Activated announces that version controls pages.
func (n *Notifier) Activated(ctx context.Context, version, tone string) {
	n.send(ctx, NewActivated(version, tone))
}

// SyncSucceeded implements syncqueue.Notifier.
func (n *Notifier) SyncSucceeded(ctx context.Context, item syncqueue.Item) {
	n.send(ctx, NewSyncSuccess(item.ID, item))
}

// SyncFailed implements syncqueue.Notifier.
func (n *Notifier) SyncFailed(ctx context.Context, item syncqueue.Item, reason string) {
	n.send(ctx, NewSyncError(item.ID, item.URL, reason))
}

// Send broadcasts an arbitrary message.
func (n *Notifier) Send(ctx context.Context, msg Message) {
	n.send(ctx, msg)
}

func (n *Notifier) send(ctx context.Context, msg Message) {
	if err := n.out.Broadcast(ctx, msg); err != nil {
		n.logger.Warn().Err(err).Str("type", msg.Type).Msg("Notification not delivered")
	}
}
