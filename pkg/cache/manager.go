package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/Sternrassler/museum-edge/pkg/network"
	"github.com/Sternrassler/museum-edge/pkg/prefetch"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrURLNotAllowed is returned for a URL that is neither on the origin nor a
// configured external resource.
var ErrURLNotAllowed = errors.New("url not allowed")

// Fetcher performs a network fetch. *network.Client and *http.Client both
// satisfy it.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config describes the versioned namespaces and the install manifest.
type Config struct {
	// Version is the single global cache version shared by all namespaces.
	Version string

	// Logical namespace names
	ShellName string
	ImageName string
	APIName   string

	// Origin is the base URL relative manifest paths resolve against.
	Origin string

	// OfflinePage is the path of the offline fallback page; it is always
	// part of the install manifest.
	OfflinePage string

	// Manifest lists the critical same-origin paths precached on install.
	Manifest []string

	// ExternalResources lists absolute cross-origin URLs precached on install.
	ExternalResources []string

	// Concurrency bounds parallel precache fetches.
	Concurrency int
}

// DefaultManifest is the critical resource list precached on install.
var DefaultManifest = []string{
	"/",
	"/index.html",
	"/gallery/index.html",
	"/know-me/about.html",
	"/archive/archive.html",
	"/image-upload/upload.html",
	"/offline.html",
	"/assets/styles/galaxy.css",
	"/assets/styles/icons.css",
	"/assets/scripts/script.js",
	"/assets/scripts/tooltips.js",
	"/archive/archive.js",
	"/know-me/about.js",
	"/manifest.json",
	"/favicon.ico",
	"/assets/images/gallery-data.json",
	"/assets/videos/videos-data.json",
	"/assets/fonts/fonts.css",
	"/assets/fonts/montserrat-400-latin.woff2",
	"/assets/fonts/montserrat-600-latin.woff2",
	"/assets/fonts/playfair-400-latin.woff2",
	"/assets/fonts/playfair-600-latin.woff2",
}

// DefaultExternalResources are the allowed cross-origin textures.
var DefaultExternalResources = []string{
	"https://www.transparenttextures.com/patterns/stardust.png",
}

// DefaultConfig returns the museum site configuration for origin.
func DefaultConfig(origin string) Config {
	return Config{
		Version:           "v1.0.2",
		ShellName:         DefaultShellName,
		ImageName:         DefaultImageName,
		APIName:           DefaultAPIName,
		Origin:            origin,
		OfflinePage:       "/offline.html",
		Manifest:          append([]string(nil), DefaultManifest...),
		ExternalResources: append([]string(nil), DefaultExternalResources...),
		Concurrency:       6,
	}
}

// InstallReport summarizes a precache run.
type InstallReport struct {
	Namespace string
	Stored    []string
	Failed    []prefetch.Result
}

// Manager owns the versioned namespaces and their install/activate
// lifecycle. It holds no per-request state.
type Manager struct {
	store   *Store
	fetcher Fetcher
	config  Config
	origin  *url.URL
	logger  zerolog.Logger
}

// NewManager creates a cache manager.
func NewManager(store *Store, fetcher Fetcher, cfg Config) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("cache version is required")
	}
	if cfg.ShellName == "" || cfg.ImageName == "" || cfg.APIName == "" {
		return nil, fmt.Errorf("logical namespace names are required")
	}
	origin, err := url.Parse(cfg.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("origin must be an absolute URL (got %q)", cfg.Origin)
	}
	if cfg.OfflinePage == "" {
		return nil, fmt.Errorf("offline page is required")
	}

	return &Manager{
		store:   store,
		fetcher: fetcher,
		config:  cfg,
		origin:  origin,
		logger:  log.With().Str("component", "cache-manager").Str("version", cfg.Version).Logger(),
	}, nil
}

// Version returns the running cache version.
func (m *Manager) Version() string { return m.config.Version }

// Store returns the underlying namespace store.
func (m *Manager) Store() *Store { return m.store }

// Shell returns the current shell namespace identifier.
func (m *Manager) Shell() string {
	return Namespace{Logical: m.config.ShellName, Version: m.config.Version}.String()
}

// Images returns the current image namespace identifier.
func (m *Manager) Images() string {
	return Namespace{Logical: m.config.ImageName, Version: m.config.Version}.String()
}

// API returns the current (reserved) API namespace identifier.
func (m *Manager) API() string {
	return Namespace{Logical: m.config.APIName, Version: m.config.Version}.String()
}

// Origin returns the origin base URL.
func (m *Manager) Origin() *url.URL {
	u := *m.origin
	return &u
}

// Resolve resolves ref against the origin.
func (m *Manager) Resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", ref, err)
	}
	return m.origin.ResolveReference(u).String(), nil
}

// allowed reports whether the resolved URL is on the origin or is one of the
// configured external resources.
func (m *Manager) allowed(resolved string) bool {
	u, err := url.Parse(resolved)
	if err != nil {
		return false
	}
	if u.Scheme == m.origin.Scheme && u.Host == m.origin.Host && u.User == nil {
		return true
	}
	for _, ext := range m.config.ExternalResources {
		if r, err := m.Resolve(ext); err == nil && r == resolved {
			return true
		}
	}
	return false
}

// OfflineKey returns the key the offline fallback page is stored under.
func (m *Manager) OfflineKey() (RequestKey, error) {
	u, err := m.Resolve(m.config.OfflinePage)
	if err != nil {
		return RequestKey{}, err
	}
	return NewRequestKey(http.MethodGet, u)
}

// precacheList returns the manifest plus offline page plus external
// resources, resolved and de-duplicated, in declaration order.
func (m *Manager) precacheList() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(ref string) {
		u, err := m.Resolve(ref)
		if err != nil {
			m.logger.Warn().Err(err).Str("resource", ref).Msg("Skipping unparsable manifest entry")
			return
		}
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	for _, p := range m.config.Manifest {
		add(p)
	}
	add(m.config.OfflinePage)
	for _, u := range m.config.ExternalResources {
		add(u)
	}
	return out
}

// Install opens every current namespace and precaches the manifest into
// the shell namespace. Individual resource failures are logged and reported
// but never fail the install; only an unusable store does.
func (m *Manager) Install(ctx context.Context) (*InstallReport, error) {
	m.logger.Info().Msg("Installing cache namespaces")

	for _, ns := range []string{m.Shell(), m.Images(), m.API()} {
		if err := m.store.Open(ctx, ns); err != nil {
			return nil, fmt.Errorf("open namespace %s: %w", ns, err)
		}
	}

	report := m.precache(ctx, m.precacheList())

	m.logger.Info().
		Int("stored", len(report.Stored)).
		Int("failed", len(report.Failed)).
		Msg("Cache install complete")
	return report, nil
}

// Refresh re-runs the manifest precache into the current shell namespace.
func (m *Manager) Refresh(ctx context.Context) (*InstallReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report := m.precache(ctx, m.precacheList())
	m.logger.Info().
		Int("stored", len(report.Stored)).
		Int("failed", len(report.Failed)).
		Msg("Shell cache refreshed")
	return report, nil
}

func (m *Manager) precache(ctx context.Context, urls []string) *InstallReport {
	shell := m.Shell()
	fetcher := prefetch.FetcherFunc(func(ctx context.Context, rawURL string) error {
		key, entry, err := m.fetchEntry(ctx, rawURL, network.PurposeInstall)
		if err != nil {
			return err
		}
		if err := m.store.Put(ctx, shell, key, entry); err != nil {
			return fmt.Errorf("store %s: %w", rawURL, err)
		}
		return nil
	})

	results := prefetch.New(fetcher, prefetch.Config{MaxConcurrency: m.config.Concurrency}).FetchAll(ctx, urls)

	report := &InstallReport{Namespace: shell}
	for _, r := range results {
		if r.Err != nil {
			InstallResources.WithLabelValues("failed").Inc()
			m.logger.Warn().Err(r.Err).Str("url", r.URL).Msg("Failed to precache resource")
			report.Failed = append(report.Failed, r)
			continue
		}
		InstallResources.WithLabelValues("stored").Inc()
		report.Stored = append(report.Stored, r.URL)
	}
	return report
}

// fetchEntry fetches rawURL bypassing intermediate caches and converts a 2xx
// response into an entry. Non-2xx responses are errors.
func (m *Manager) fetchEntry(ctx context.Context, rawURL string, purpose network.Purpose) (RequestKey, *CacheEntry, error) {
	key, err := NewRequestKey(http.MethodGet, rawURL)
	if err != nil {
		return RequestKey{}, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key.URL, nil)
	if err != nil {
		return RequestKey{}, nil, fmt.Errorf("create request: %w", err)
	}
	AddRevalidateHeaders(req)

	resp, err := m.fetcher.Do(network.WithPurpose(req, purpose))
	if err != nil {
		return RequestKey{}, nil, err
	}
	defer resp.Body.Close()

	if !IsOK(resp.StatusCode) {
		return RequestKey{}, nil, &network.FetchError{
			URL:        key.URL,
			StatusCode: resp.StatusCode,
			ErrorClass: network.ClassifyStatus(resp.StatusCode),
		}
	}

	entry, err := ResponseToEntry(key, resp)
	if err != nil {
		return RequestKey{}, nil, err
	}
	return key, entry, nil
}

// Activate deletes every namespace whose identifier does not carry the
// current version, regardless of logical name, and returns the purged
// identifiers. After it returns, only current-version namespaces remain.
func (m *Manager) Activate(ctx context.Context) ([]string, error) {
	m.logger.Info().Msg("Activating cache version")

	names, err := m.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}

	var purged []string
	var errs []error
	for _, name := range names {
		if BelongsToVersion(name, m.config.Version) {
			continue
		}
		if _, err := m.store.DeleteNamespace(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", name, err))
			continue
		}
		NamespacesPurged.Inc()
		purged = append(purged, name)
		m.logger.Info().Str("namespace", name).Msg("Deleted stale cache namespace")
	}

	if len(errs) > 0 {
		return purged, errors.Join(errs...)
	}
	return purged, nil
}

// AddAll fetches every URL and stores them into the shell namespace only if
// all of them succeeded. Repeating the call with the same list yields the
// same set of entries.
func (m *Manager) AddAll(ctx context.Context, urls []string) error {
	resolved := make([]string, 0, len(urls))
	for _, u := range urls {
		r, err := m.Resolve(u)
		if err != nil {
			return err
		}
		if !m.allowed(r) {
			return fmt.Errorf("cache urls: %s: %w", r, ErrURLNotAllowed)
		}
		resolved = append(resolved, r)
	}

	type fetched struct {
		key   RequestKey
		entry *CacheEntry
	}
	var mu sync.Mutex
	entries := make(map[string]fetched, len(resolved))

	fetcher := prefetch.FetcherFunc(func(ctx context.Context, rawURL string) error {
		key, entry, err := m.fetchEntry(ctx, rawURL, network.PurposeInstall)
		if err != nil {
			return err
		}
		mu.Lock()
		entries[rawURL] = fetched{key: key, entry: entry}
		mu.Unlock()
		return nil
	})

	results := prefetch.New(fetcher, prefetch.Config{MaxConcurrency: m.config.Concurrency}).FetchAll(ctx, resolved)
	if failed := prefetch.Failed(results); len(failed) > 0 {
		errs := make([]error, 0, len(failed))
		for _, f := range failed {
			errs = append(errs, f.Err)
		}
		return fmt.Errorf("cache urls: %w", errors.Join(errs...))
	}

	shell := m.Shell()
	for _, u := range resolved {
		f := entries[u]
		if err := m.store.Put(ctx, shell, f.key, f.entry); err != nil {
			return fmt.Errorf("cache urls: %w", err)
		}
	}
	return nil
}
