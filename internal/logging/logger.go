package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the JSON logger every binary shares. Each process
// attaches its own "service" attribute so interleaved logs from the API,
// reconciler and location consumer stay attributable.
func NewLogger(level, service string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     levelFromString(level),
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler).With("service", service)
}

func levelFromString(level string) slog.Leveler {
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
