package syncqueue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/museum-edge/pkg/network"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Background sync tags
const (
	TagForms = "sync-forms"
	TagAll   = "sync-all"
)

// Fetcher sends replayed requests.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// Registrar schedules a background sync trigger for a tag.
type Registrar interface {
	Register(ctx context.Context, tag string) error
}

// Notifier is told about the outcome of every allowed replay.
type Notifier interface {
	SyncSucceeded(ctx context.Context, item Item)
	SyncFailed(ctx context.Context, item Item, reason string)
}

// ReplayReport summarizes one replay run.
type ReplayReport struct {
	Synced  []string
	Failed  []string
	Dropped []string

	// Skipped lists items another replay held the lease on.
	Skipped []string
}

// DefaultLeaseTTL bounds how long one replay holds an item.
const DefaultLeaseTTL = time.Minute

// Queue is the durable queue of pending writes.
type Queue struct {
	store     Store
	fetcher   Fetcher
	allow     AllowList
	registrar Registrar
	notifier  Notifier
	leaseTTL  time.Duration
	logger    zerolog.Logger

	replayMu sync.Mutex
}

// Config configures a Queue.
type Config struct {
	// Origin resolves relative item URLs; replay targets must be on it.
	Origin *url.URL

	// AllowedEndpoints lists the paths replay may send to.
	AllowedEndpoints []string

	// LeaseTTL is how long a replay may hold an item; DefaultLeaseTTL if zero.
	LeaseTTL time.Duration
}

// New creates a queue. registrar and notifier may be nil.
func New(store Store, fetcher Fetcher, cfg Config, registrar Registrar, notifier Notifier) (*Queue, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Origin == nil || cfg.Origin.Scheme == "" || cfg.Origin.Host == "" {
		return nil, fmt.Errorf("origin must be an absolute URL")
	}

	leaseTTL := cfg.LeaseTTL
	if leaseTTL <= 0 {
		leaseTTL = DefaultLeaseTTL
	}

	return &Queue{
		store:     store,
		leaseTTL:  leaseTTL,
		fetcher:   fetcher,
		allow:     NewAllowList(cfg.Origin, cfg.AllowedEndpoints),
		registrar: registrar,
		notifier:  notifier,
		logger:    log.With().Str("component", "syncqueue").Logger(),
	}, nil
}

// Enqueue assigns an id when absent, stamps the enqueue time and persists
// item. Form items additionally request a sync-forms trigger; failing to
// register it is not an error.
func (q *Queue) Enqueue(ctx context.Context, item Item) (string, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.EnqueuedAt = time.Now().UTC()

	if err := q.store.Add(ctx, item); err != nil {
		StoreErrors.WithLabelValues("add").Inc()
		return "", fmt.Errorf("enqueue %s: %w", item.ID, err)
	}
	EnqueuedTotal.WithLabelValues(item.Type).Inc()

	q.logger.Info().
		Str("id", item.ID).
		Str("type", item.Type).
		Str("url", item.URL).
		Msg("Sync item queued")

	if item.Type == TypeForm && q.registrar != nil {
		if err := q.registrar.Register(ctx, TagForms); err != nil {
			q.logger.Warn().Err(err).Str("tag", TagForms).Msg("Background sync registration failed")
		}
	}
	return item.ID, nil
}

// Dequeue removes the item with id.
func (q *Queue) Dequeue(ctx context.Context, id string) error {
	if err := q.store.Delete(ctx, id); err != nil {
		if !errors.Is(err, ErrNotFound) {
			StoreErrors.WithLabelValues("delete").Inc()
		}
		return fmt.Errorf("dequeue %s: %w", id, err)
	}
	return nil
}

// List returns all queued items in enumeration order.
func (q *Queue) List(ctx context.Context) ([]Item, error) {
	items, err := q.store.List(ctx)
	if err != nil {
		StoreErrors.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("list sync queue: %w", err)
	}
	QueueLength.Set(float64(len(items)))
	return items, nil
}

// Replay sends every queued form item for tag. Items whose target is not
// allow-listed are deleted without a request and without notification.
// Each item is sent only under its store lease; items leased by a
// concurrent replay, here or in another instance, are skipped.
// Each item is handled independently; only a failure to read the store is
// returned as an error.
func (q *Queue) Replay(ctx context.Context, tag string) (*ReplayReport, error) {
	if tag != TagForms && tag != TagAll {
		q.logger.Debug().Str("tag", tag).Msg("Ignoring unknown sync tag")
		return &ReplayReport{}, nil
	}

	q.replayMu.Lock()
	defer q.replayMu.Unlock()

	items, err := q.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReplayReport{}
	for _, item := range items {
		if item.Type != TypeForm {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		q.claimAndReplay(ctx, item, report)
	}

	q.logger.Info().
		Str("tag", tag).
		Int("synced", len(report.Synced)).
		Int("failed", len(report.Failed)).
		Int("dropped", len(report.Dropped)).
		Int("skipped", len(report.Skipped)).
		Msg("Sync replay complete")
	return report, nil
}

func (q *Queue) claimAndReplay(ctx context.Context, item Item, report *ReplayReport) {
	claimed, err := q.store.Claim(ctx, item.ID, q.leaseTTL)
	if err != nil {
		StoreErrors.WithLabelValues("claim").Inc()
		q.logger.Error().Err(err).Str("id", item.ID).Msg("Failed to claim sync item")
		report.Skipped = append(report.Skipped, item.ID)
		return
	}
	if !claimed {
		q.logger.Debug().Str("id", item.ID).Msg("Sync item held by another replay")
		ReplayedTotal.WithLabelValues("skipped").Inc()
		report.Skipped = append(report.Skipped, item.ID)
		return
	}
	defer func() {
		if err := q.store.Release(context.WithoutCancel(ctx), item.ID); err != nil {
			StoreErrors.WithLabelValues("release").Inc()
			q.logger.Warn().Err(err).Str("id", item.ID).Msg("Failed to release sync item")
		}
	}()

	// a replay that finished while this one listed may have delivered it
	if _, err := q.store.Get(ctx, item.ID); errors.Is(err, ErrNotFound) {
		report.Skipped = append(report.Skipped, item.ID)
		return
	}
	q.replayItem(ctx, item, report)
}

func (q *Queue) replayItem(ctx context.Context, item Item, report *ReplayReport) {
	target, ok := q.allow.Resolve(item.URL)
	if !ok {
		q.logger.Warn().Str("id", item.ID).Str("url", item.URL).Msg("Unauthorized sync endpoint blocked")
		if err := q.store.Delete(ctx, item.ID); err != nil && !errors.Is(err, ErrNotFound) {
			StoreErrors.WithLabelValues("delete").Inc()
			q.logger.Error().Err(err).Str("id", item.ID).Msg("Failed to drop blocked sync item")
		}
		ReplayedTotal.WithLabelValues("dropped").Inc()
		report.Dropped = append(report.Dropped, item.ID)
		return
	}

	if reason := q.send(ctx, item, target); reason != "" {
		q.logger.Warn().Str("id", item.ID).Str("reason", reason).Msg("Form sync failed")
		ReplayedTotal.WithLabelValues("failed").Inc()
		report.Failed = append(report.Failed, item.ID)
		if q.notifier != nil {
			q.notifier.SyncFailed(ctx, item, reason)
		}
		return
	}

	if err := q.store.Delete(ctx, item.ID); err != nil && !errors.Is(err, ErrNotFound) {
		StoreErrors.WithLabelValues("delete").Inc()
		q.logger.Error().Err(err).Str("id", item.ID).Msg("Delivered sync item could not be dequeued")
	}
	q.logger.Info().Str("id", item.ID).Msg("Form synced successfully")
	ReplayedTotal.WithLabelValues("synced").Inc()
	report.Synced = append(report.Synced, item.ID)
	if q.notifier != nil {
		q.notifier.SyncSucceeded(ctx, item)
	}
}

// send issues the stored request and returns a failure reason, or "" on a
// 2xx response.
func (q *Queue) send(ctx context.Context, item Item, target *url.URL) string {
	method := strings.ToUpper(item.Method)
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if method != http.MethodGet && method != http.MethodHead && len(item.Payload) > 0 {
		body = bytes.NewReader(item.Payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return err.Error()
	}
	if len(item.Headers) == 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range item.Headers {
		req.Header.Set(k, v)
	}

	resp, err := q.fetcher.Do(network.WithPurpose(req, network.PurposeReplay))
	if err != nil {
		var fe *network.FetchError
		if errors.As(err, &fe) && fe.Err != nil {
			return fe.Err.Error()
		}
		return err.Error()
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Sprintf("Form sync failed: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return ""
}
