package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("failed to unmarshal log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestSlogLogger(t *testing.T) {
	t.Run("respects log level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewJSON(&buf, LevelWarn)

		logger.Debug("debug message")
		logger.Info("info message")
		logger.Warn("warn message")
		logger.Error("error message")

		entries := decodeLines(t, &buf)
		if len(entries) != 2 {
			t.Fatalf("expected 2 log lines, got %d", len(entries))
		}
		if entries[0]["msg"] != "warn message" || entries[1]["msg"] != "error message" {
			t.Errorf("unexpected messages: %v", entries)
		}
	})

	t.Run("logs with key-value pairs", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewJSON(&buf, LevelInfo)

		logger.Info("normalized", "pipeline", "title", "cached", true)

		entries := decodeLines(t, &buf)
		if len(entries) != 1 {
			t.Fatalf("expected 1 log line, got %d", len(entries))
		}
		if entries[0]["pipeline"] != "title" {
			t.Errorf("pipeline = %v, want title", entries[0]["pipeline"])
		}
		if entries[0]["cached"] != true {
			t.Errorf("cached = %v, want true", entries[0]["cached"])
		}
	})

	t.Run("With adds attributes to all logs", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewJSON(&buf, LevelInfo).With("component", "normalizer")

		logger.Info("first")
		logger.Info("second")

		for i, entry := range decodeLines(t, &buf) {
			if entry["component"] != "normalizer" {
				t.Errorf("line %d: component = %v, want normalizer", i, entry["component"])
			}
		}
	})

	t.Run("WithContext adds the request id", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewJSON(&buf, LevelInfo)

		ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
		logger.WithContext(ctx).Info("with id")
		logger.WithContext(context.Background()).Info("without id")

		entries := decodeLines(t, &buf)
		if len(entries) != 2 {
			t.Fatalf("expected 2 log lines, got %d", len(entries))
		}
		if entries[0]["request_id"] != "req-42" {
			t.Errorf("request_id = %v, want req-42", entries[0]["request_id"])
		}
		if _, ok := entries[1]["request_id"]; ok {
			t.Error("request_id should be absent without one in the context")
		}
	})

	t.Run("Slog shares the handler", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewJSON(&buf, LevelInfo).With("component", "server")

		logger.Slog().Info("from slog")

		entries := decodeLines(t, &buf)
		if len(entries) != 1 || entries[0]["component"] != "server" {
			t.Errorf("unexpected entries: %v", entries)
		}
	})
}

func TestNoopLogger(t *testing.T) {
	logger := Noop()

	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message", "key", "value")
	logger.Error("error message", "key", "value")

	if logger.With("key", "value") != logger {
		t.Error("With should return same noop logger instance")
	}
	if logger.WithContext(context.Background()) != logger {
		t.Error("WithContext should return same noop logger instance")
	}
	if logger.Slog() == nil {
		t.Fatal("Slog should not be nil")
	}
	if logger.Slog().Enabled(context.Background(), slog.LevelError) {
		t.Error("noop slog logger should be disabled")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"", LevelInfo},
		{" warn ", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if err != nil {
				t.Fatalf("ParseLevel(%q) error = %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}

	level, err := ParseLevel("verbose")
	if !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("ParseLevel(verbose) error = %v, want ErrUnknownLevel", err)
	}
	if level != LevelInfo {
		t.Errorf("ParseLevel(verbose) = %v, want info fallback", level)
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		level    Level
		name     string
		expected slog.Level
	}{
		{LevelDebug, "debug", slog.LevelDebug},
		{LevelInfo, "info", slog.LevelInfo},
		{LevelWarn, "warn", slog.LevelWarn},
		{LevelError, "error", slog.LevelError},
		{Level(999), "unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.String(); got != tt.name {
				t.Errorf("String() = %v, want %v", got, tt.name)
			}
			if got := tt.level.Slog(); got != tt.expected {
				t.Errorf("Slog() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewText(&buf, LevelInfo)

	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Error("output should contain message")
	}
	if !strings.Contains(output, "key=value") {
		t.Error("output should contain key=value pair")
	}
}

func TestConstructors(t *testing.T) {
	for name, logger := range map[string]Logger{
		"New(nil)":     New(nil),
		"NewJSON(nil)": NewJSON(nil, LevelInfo),
		"NewText(nil)": NewText(nil, LevelInfo),
		"Default":      Default(),
	} {
		if logger == nil {
			t.Fatalf("%s should return a logger", name)
		}
		if logger.Slog() == nil {
			t.Errorf("%s: Slog should not be nil", name)
		}
	}
}
