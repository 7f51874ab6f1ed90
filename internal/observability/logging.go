package observability

import (
	"log/slog"
	"os"
	"strings"
)

var level = new(slog.LevelVar)

// SetLevel adjusts the level of every logger created by NewLogger.
// Unknown names leave the level unchanged.
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info", "":
		level.Set(slog.LevelInfo)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}
}

// NewLogger returns a JSON logger with a component field attached.
func NewLogger(component string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(handler)
	if component != "" {
		logger = logger.With("component", component)
	}
	return logger
}

func WithKind(logger *slog.Logger, kind string) *slog.Logger {
	if logger == nil || kind == "" {
		return logger
	}
	return logger.With("kind", kind)
}

func WithVersion(logger *slog.Logger, version string) *slog.Logger {
	if logger == nil || version == "" {
		return logger
	}
	return logger.With("version", version)
}

func WithContainer(logger *slog.Logger, containerID string) *slog.Logger {
	if logger == nil || containerID == "" {
		return logger
	}
	return logger.With("container_id", shortID(containerID))
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
