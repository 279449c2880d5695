// Package logger provides the structured logger shared by the normalizer and the
// HTTP server.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ErrUnknownLevel is returned by ParseLevel for unrecognized names.
var ErrUnknownLevel = errors.New("unknown log level")

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	// WithContext returns a logger carrying request attributes found in ctx.
	WithContext(ctx context.Context) Logger
	// Slog exposes the underlying *slog.Logger for libraries that take one.
	Slog() *slog.Logger
}

// Level represents the log level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the lower-case name of the level, as accepted by ParseLevel.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel converts a name such as "debug" or "WARN" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// Slog returns the equivalent slog level.
func (l Level) Slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger writing to handler, or to the slog default handler when nil.
func New(handler slog.Handler) Logger {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &slogLogger{
		logger: slog.New(handler),
	}
}

// NewJSON creates a logger with JSON output at the given minimum level.
func NewJSON(writer io.Writer, level Level) Logger {
	if writer == nil {
		writer = os.Stderr
	}
	return New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level.Slog()}))
}

// NewText creates a logger with text output instead of JSON.
func NewText(writer io.Writer, level Level) Logger {
	if writer == nil {
		writer = os.Stderr
	}
	return New(slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level.Slog()}))
}

// Default returns a default logger (Info level, JSON output to stderr).
func Default() Logger {
	return NewJSON(os.Stderr, LevelInfo)
}

// Noop returns a no-op logger that discards all log messages.
func Noop() Logger {
	return noop
}
