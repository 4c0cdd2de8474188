// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. Components default to NoOpLogger when none is supplied.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger defines the minimal logging interface used across boardflow.
// Arguments follow slog's alternating key/value convention.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// Config configures construction of a structured logger.
type Config struct {
	Level     slog.Level
	Format    string // "json" or "text"
	Output    io.Writer
	AddSource bool
}

// DefaultConfig returns a baseline JSON info-level configuration on stdout.
func DefaultConfig() *Config {
	return &Config{Level: slog.LevelInfo, Format: "json", Output: os.Stdout}
}

// New builds a Logger from a config (or defaults if nil).
func New(cfg *Config) Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return NewSlogAdapter(slog.New(handler))
}

// WithSession returns a logger that attaches session identifiers to every
// entry, for per-session orchestrator logging.
func WithSession(l Logger, sessionID, flowID string) Logger {
	if sa, ok := l.(*SlogAdapter); ok {
		return NewSlogAdapter(sa.Logger.With("session_id", sessionID, "flow_id", flowID))
	}
	return l
}

// NoOpLogger discards all log messages. Useful for testing or when logging is
// disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
