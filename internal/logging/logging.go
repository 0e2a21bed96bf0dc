// Package logging builds the structured loggers used across veritas.
//
// Every component receives a *slog.Logger tagged with its subsystem so a
// single round can be followed across collector, cross-check, scoring and
// aggregation by filtering on round_id.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Subsystem names used as the "subsystem" attribute
const (
	SubsystemCollector  = "collector"
	SubsystemCrossCheck = "crosscheck"
	SubsystemScore      = "score"
	SubsystemWeights    = "weights"
	SubsystemPipeline   = "pipeline"
	SubsystemStore      = "store"
	SubsystemServer     = "server"
	SubsystemMiner      = "miner"
	SubsystemEmit       = "emit"
	SubsystemTransport  = "transport"
)

// Config configures a logger
type Config struct {
	Level  string    // debug, info, warn, error
	Format string    // text or json
	Output io.Writer // defaults to stderr
}

// New creates a logger from the configuration
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a level name to a slog level; unknown names map to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Subsystem tags a logger with a component name. A nil logger yields a
// discarding logger so components never need nil checks.
func Subsystem(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = Discard()
	}
	return logger.With("subsystem", name)
}

// Discard returns a logger that drops everything
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(100)}))
}
