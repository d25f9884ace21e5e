// Package logging configures the process-wide zerolog logger for the edge.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer

	// Service and Version are attached to every entry when set.
	Service string
	Version string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Pretty:  false,
		Output:  os.Stderr,
		Service: "museum-edge",
	}
}

// Setup configures the global zerolog logger. Packages that captured
// log.Logger before Setup keep the old writer, so call it first.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	if cfg.Version != "" {
		ctx = ctx.Str("cache_version", cfg.Version)
	}
	logger := ctx.Logger()

	log.Logger = logger
	return logger
}

// ParseLevel converts a level name to a zerolog.Level. Unknown names map
// to info.
func ParseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: routing and cache detail
//   - cache hit/miss per request key
//   - background image refresh outcomes
//   - probe failures, SSE client subscribe/disconnect
//
// Info: lifecycle and delivery
//   - install, activation and purged namespaces
//   - sync items queued and delivered
//   - origin reachable again
//   - server startup/shutdown
//
// Warn: degraded but serving
//   - cache writes that failed (response still served)
//   - install resources that failed to precache
//   - blocked sync targets, failed replays, rate-limited commands
//
// Error: needs attention
//   - store failures (Redis, SQLite)
//   - failed installs, configuration errors
//
// Context Fields:
//   - component: emitting package
//   - key / namespace: request key and cache namespace
//   - id / tag: sync item id and background sync tag
//   - strategy / source: routing decision and response source
//   - client_id: SSE page client
