// Package logging provides structured logging configuration using zerolog.
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
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// levels is the single table of accepted level names.
var levels = map[string]LogLevel{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// ParseLevel converts a configured level name. Unknown names map to info.
func ParseLevel(name string) LogLevel {
	if level, ok := levels[strings.ToLower(strings.TrimSpace(name))]; ok {
		return level
	}
	return LevelInfo
}

// Zerolog returns the matching zerolog level.
func (l LogLevel) Zerolog() zerolog.Level {
	switch ParseLevel(string(l)) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.Level.Zerolog())

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger
}

// NewLogger returns a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithRequestID returns a child of logger tagged with the request ID.
func WithRequestID(logger zerolog.Logger, requestID string) zerolog.Logger {
	if requestID == "" {
		return logger
	}
	return logger.With().Str(FieldRequestID, requestID).Logger()
}

// Field names shared by all components.
const (
	FieldRegion     = "region"
	FieldPage       = "page"
	FieldIdentifier = "identifier"
	FieldRankInput  = "rank_input"
	FieldClient     = "client"
	FieldCacheHit   = "cache_hit"
	FieldDuration   = "duration"
	FieldRequestID  = "request_id"
)

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, key)
//   - Per-page and per-player task flow
//   - Sweeper runs
//
// Info: Normal operation events
//   - Completed lookups (counts, duration)
//   - Server startup/shutdown, cache statistics
//
// Warn: Degraded operation
//   - Redis failures (fallback to in-process limiter, cache miss)
//   - Data source failures and retry attempts
//   - Clients blocked by the rate limiter
//
// Error: Conditions requiring attention
//   - Recovered panics
//   - Internal errors returned as 500
//   - Configuration errors
