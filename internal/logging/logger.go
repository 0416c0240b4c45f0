package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

func New(logLevel string, json bool) *slog.Logger {
	return NewWithWriter(os.Stdout, logLevel, json)
}

// NewWithWriter builds the service logger on top of w. Unknown levels fall back to info.
func NewWithWriter(w io.Writer, logLevel string, json bool) *slog.Logger {
	level, _ := ParseLevel(logLevel)
	opts := &slog.HandlerOptions{Level: level, AddSource: true}
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps debug|info|warn|error to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
