package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/museum-edge/pkg/cache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Caches is the cache lifecycle the worker drives.
type Caches interface {
	Version() string
	Install(ctx context.Context) (*cache.InstallReport, error)
	Activate(ctx context.Context) ([]string, error)
}

// Announcer broadcasts lifecycle notifications to pages.
type Announcer interface {
	OfflineReady(ctx context.Context, version string)
	Activated(ctx context.Context, version, tone string)
}

// Clients reports how many page clients are connected.
type Clients interface {
	ClientCount() int
}

// Config configures the worker.
type Config struct {
	// SkipWaiting activates right after install instead of waiting for
	// SKIP_WAITING or for every page client to disconnect.
	SkipWaiting bool

	// ActivateTimeout bounds an activation started by the idle hook.
	ActivateTimeout time.Duration

	// ControlCheckInterval is how long an activated worker trusts its own
	// state before re-reading the controller record.
	ControlCheckInterval time.Duration
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		SkipWaiting:          true,
		ActivateTimeout:      30 * time.Second,
		ControlCheckInterval: time.Second,
	}
}

const controlCheckTimeout = 500 * time.Millisecond

// Worker is one edge instance's lifecycle state machine.
type Worker struct {
	caches     Caches
	controller *Controller
	announcer  Announcer
	clients    Clients
	config     Config
	logger     zerolog.Logger

	mu          sync.Mutex
	state       State
	skipPending bool
	checkedAt   time.Time
}

// New creates a worker in StateParsed.
func New(caches Caches, controller *Controller, announcer Announcer, clients Clients, cfg Config) (*Worker, error) {
	if caches == nil {
		return nil, fmt.Errorf("caches are required")
	}
	if controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if announcer == nil {
		return nil, fmt.Errorf("announcer is required")
	}
	if cfg.ActivateTimeout <= 0 {
		cfg.ActivateTimeout = DefaultConfig().ActivateTimeout
	}
	if cfg.ControlCheckInterval <= 0 {
		cfg.ControlCheckInterval = DefaultConfig().ControlCheckInterval
	}

	recordState(StateParsed)
	return &Worker{
		caches:     caches,
		controller: controller,
		announcer:  announcer,
		clients:    clients,
		config:     cfg,
		state:      StateParsed,
		logger:     log.With().Str("component", "worker").Str("version", caches.Version()).Logger(),
	}, nil
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Controlling reports whether the worker is activated and serves traffic.
// An activated worker re-reads the shared controller record at most once
// per ControlCheckInterval and steps down when another version holds it.
func (w *Worker) Controlling() bool {
	w.mu.Lock()
	if w.state != StateActivated {
		w.mu.Unlock()
		return false
	}
	if time.Since(w.checkedAt) < w.config.ControlCheckInterval {
		w.mu.Unlock()
		return true
	}
	w.checkedAt = time.Now()
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), controlCheckTimeout)
	defer cancel()
	current, err := w.controller.Current(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("Failed to read controlling version")
	} else {
		w.Superseded(current)
	}
	return w.State() == StateActivated
}

// Superseded tells the worker that version now controls pages. An activated
// worker of a different version becomes redundant. An empty version or the
// worker's own version is ignored.
func (w *Worker) Superseded(version string) {
	if version == "" || version == w.caches.Version() {
		return
	}
	if err := w.transition(StateActivated, StateRedundant); err != nil {
		return
	}
	w.logger.Warn().Str("controller", version).Msg("Another version took control, passing traffic through")
}

// Install populates the caches. On success it announces OFFLINE_READY and,
// when skip-waiting is configured or requested, activates immediately. A
// failed install leaves the worker waiting.
func (w *Worker) Install(ctx context.Context) error {
	if err := w.transition(StateParsed, StateInstalling); err != nil {
		return err
	}
	w.logger.Info().Msg("Installing")

	_, err := w.caches.Install(ctx)

	w.mu.Lock()
	w.setState(StateInstalled)
	skip := err == nil && (w.config.SkipWaiting || w.skipPending)
	w.mu.Unlock()

	if err != nil {
		w.logger.Error().Err(err).Msg("Installation failed")
		return fmt.Errorf("install: %w", err)
	}

	w.logger.Info().Msg("Installed successfully")
	w.announcer.OfflineReady(ctx, w.caches.Version())

	if skip || w.idle() {
		return w.activate(ctx)
	}
	w.logger.Info().Msg("Waiting for SKIP_WAITING or for page clients to close")
	return nil
}

// SkipWaiting activates a waiting worker now. Called before install
// finishes, it makes the install activate immediately. Once activating or
// activated it is a no-op.
func (w *Worker) SkipWaiting(ctx context.Context) error {
	w.mu.Lock()
	switch w.state {
	case StateParsed, StateInstalling:
		w.skipPending = true
		w.mu.Unlock()
		return nil
	case StateInstalled:
		w.mu.Unlock()
		return w.activate(ctx)
	default:
		w.mu.Unlock()
		return nil
	}
}

// ClientsIdle is the hook for "every page client closed". A waiting worker
// activates.
func (w *Worker) ClientsIdle() {
	if w.State() != StateInstalled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.config.ActivateTimeout)
	defer cancel()
	if err := w.activate(ctx); err != nil {
		w.logger.Debug().Err(err).Msg("Idle activation skipped")
	}
}

// activate purges stale namespaces, claims control and announces the
// activation. Purge failures are logged; the worker still takes control.
func (w *Worker) activate(ctx context.Context) error {
	if err := w.transition(StateInstalled, StateActivating); err != nil {
		return err
	}
	version := w.caches.Version()
	w.logger.Info().Msg("Activating")

	if purged, err := w.caches.Activate(ctx); err != nil {
		w.logger.Error().Err(err).Strs("purged", purged).Msg("Failed to delete some stale caches")
	}

	tone := ToneInfo
	prev, err := w.controller.Claim(ctx, version)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to record controlling version")
	} else if prev != "" && prev != version {
		tone = ToneUpdate
	}

	w.mu.Lock()
	if w.state != StateActivating {
		w.mu.Unlock()
		return transitionError(w.state, StateActivated)
	}
	w.setState(StateActivated)
	w.checkedAt = time.Now()
	w.mu.Unlock()

	Activations.WithLabelValues(tone).Inc()
	w.logger.Info().Str("previous", prev).Str("tone", tone).Msg("Activated successfully")

	w.announcer.Activated(ctx, version, tone)
	return nil
}

// Activation tones.
const (
	ToneInfo   = "info"
	ToneUpdate = "update"
)

func (w *Worker) idle() bool {
	return w.clients != nil && w.clients.ClientCount() == 0
}

func (w *Worker) transition(from, to State) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != from || !CanTransition(from, to) {
		return transitionError(w.state, to)
	}
	w.setState(to)
	return nil
}

// setState must be called with mu held.
func (w *Worker) setState(s State) {
	w.state = s
	recordState(s)
}
