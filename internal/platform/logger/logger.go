// Package logger provides structured logging for the hint server.
// Every dropped contribution or faulty element should be traceable through this.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Options selects the output format and verbosity.
type Options struct {
	Level slog.Level
	JSON  bool
	// NoColor disables ANSI colors in the console handler.
	NoColor bool
}

// Logger provides structured logging with context.
type Logger struct {
	sl *slog.Logger
}

// NewLogger creates a console logger writing to stderr.
func NewLogger() *Logger {
	return New(os.Stderr, Options{Level: slog.LevelInfo})
}

// New creates a logger writing to w.
func New(w io.Writer, opts Options) *Logger {
	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level})
	} else {
		h = tint.NewHandler(w, &tint.Options{
			Level:      opts.Level,
			TimeFormat: time.TimeOnly,
			NoColor:    opts.NoColor,
		})
	}
	return &Logger{sl: slog.New(h)}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return &Logger{sl: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// With returns a logger that always includes the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{sl: l.sl.With(args...)}
}

// Debug logs diagnostic messages.
func (l *Logger) Debug(msg string, args ...any) {
	l.sl.Debug(msg, args...)
}

// Info logs informational messages.
func (l *Logger) Info(msg string, args ...any) {
	l.sl.Info(msg, args...)
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string, args ...any) {
	l.sl.Warn(msg, args...)
}

// Error logs error messages.
func (l *Logger) Error(msg string, args ...any) {
	l.sl.Error(msg, args...)
}

// Event logs a specific hint event for later inspection.
func (l *Logger) Event(eventType string, actorID string, details string) {
	l.sl.Info(details, "event", eventType, "actor", actorID)
}

// Slog exposes the underlying slog logger.
func (l *Logger) Slog() *slog.Logger {
	return l.sl
}
