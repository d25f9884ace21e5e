// Package push turns push payloads into page notifications and resolves
// notification clicks to a focused or newly opened page.
package push

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/museum-edge/pkg/bridge"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Notification defaults.
const (
	DefaultTitle = "Museum of Moments"
	DefaultBody  = "New content available!"
	DefaultURL   = "/"
	DefaultIcon  = "/favicon/android-icon-192x192.png"
	DefaultBadge = "/favicon/android-icon-96x96.png"
)

// Click actions.
const (
	ActionView  = "view"
	ActionClose = "close"
)

// Click outcomes.
const (
	OutcomeFocus = "focus"
	OutcomeOpen  = "open"
	OutcomeNone  = "none"
)

// DefaultVibrate is the vibration pattern in milliseconds.
var DefaultVibrate = []int{200, 100, 200}

// Payload is the body of a push message. Every field is optional.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// Action is a button on a notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

// Data travels with a notification and comes back on click.
type Data struct {
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// Notification is what pages display.
type Notification struct {
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Icon    string   `json:"icon"`
	Badge   string   `json:"badge"`
	Vibrate []int    `json:"vibrate"`
	Data    Data     `json:"data"`
	Actions []Action `json:"actions"`
}

// ClickResult tells the caller what a click resolved to.
type ClickResult struct {
	Outcome  string `json:"action"`
	URL      string `json:"url,omitempty"`
	ClientID string `json:"clientId,omitempty"`
}

// Clients lists the page clients connected to this instance.
type Clients interface {
	Clients() []bridge.ClientInfo
}

// Service shows notifications and handles clicks.
type Service struct {
	out     bridge.Broadcaster
	clients Clients
	now     func() time.Time
	logger  zerolog.Logger
}

// New creates a push service broadcasting on out.
func New(out bridge.Broadcaster, clients Clients) *Service {
	return &Service{
		out:     out,
		clients: clients,
		now:     time.Now,
		logger:  log.With().Str("component", "push").Logger(),
	}
}

// Build fills the defaults into p.
func (s *Service) Build(p Payload) Notification {
	n := Notification{
		Title:   p.Title,
		Body:    p.Body,
		Icon:    DefaultIcon,
		Badge:   DefaultBadge,
		Vibrate: DefaultVibrate,
		Data:    Data{URL: p.URL, Timestamp: s.now().UnixMilli()},
		Actions: []Action{
			{Action: ActionView, Title: "View", Icon: DefaultBadge},
			{Action: ActionClose, Title: "Close"},
		},
	}
	if n.Title == "" {
		n.Title = DefaultTitle
	}
	if n.Body == "" {
		n.Body = DefaultBody
	}
	if n.Data.URL == "" {
		n.Data.URL = DefaultURL
	}
	return n
}

// Show broadcasts a NOTIFICATION built from p.
func (s *Service) Show(ctx context.Context, p Payload) (Notification, error) {
	n := s.Build(p)
	if err := s.out.Broadcast(ctx, bridge.NewNotification(n)); err != nil {
		return n, fmt.Errorf("broadcast notification: %w", err)
	}
	NotificationsShown.Inc()
	s.logger.Info().Str("title", n.Title).Str("url", n.Data.URL).Msg("Push notification shown")
	return n, nil
}

// Click resolves a notification action. View (or no action) focuses a
// client already showing url, or asks the caller to open it. Any other
// action does nothing.
func (s *Service) Click(ctx context.Context, action, url string) (ClickResult, error) {
	if action != "" && action != ActionView {
		Clicks.WithLabelValues(OutcomeNone).Inc()
		return ClickResult{Outcome: OutcomeNone}, nil
	}
	if url == "" {
		url = DefaultURL
	}

	if s.clients != nil {
		for _, c := range s.clients.Clients() {
			if c.URL != url {
				continue
			}
			if err := s.out.Broadcast(ctx, bridge.NewFocus(c.ID, url)); err != nil {
				return ClickResult{}, fmt.Errorf("focus client: %w", err)
			}
			Clicks.WithLabelValues(OutcomeFocus).Inc()
			s.logger.Debug().Str("client_id", c.ID).Str("url", url).Msg("Focusing open page")
			return ClickResult{Outcome: OutcomeFocus, URL: url, ClientID: c.ID}, nil
		}
	}

	Clicks.WithLabelValues(OutcomeOpen).Inc()
	return ClickResult{Outcome: OutcomeOpen, URL: url}, nil
}
