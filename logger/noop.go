package logger

import (
	"context"
	"log/slog"
)

var noop = &noopLogger{logger: slog.New(slog.DiscardHandler)}

// noopLogger is a logger that discards all log messages.
type noopLogger struct {
	logger *slog.Logger
}

func (n *noopLogger) Debug(msg string, args ...any) {}

func (n *noopLogger) Info(msg string, args ...any) {}

func (n *noopLogger) Warn(msg string, args ...any) {}

func (n *noopLogger) Error(msg string, args ...any) {}

func (n *noopLogger) With(args ...any) Logger {
	return n
}

func (n *noopLogger) WithContext(ctx context.Context) Logger {
	return n
}

// Slog returns a slog.Logger backed by slog.DiscardHandler.
func (n *noopLogger) Slog() *slog.Logger {
	return n.logger
}
