// Package internal carries the CLI-side plumbing of the voucher tool:
// configuration binding, logging setup, the on-disk voucher cache, and key
// inspection/formatting.
package internal

import (
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
)

// ParseLogLevel converts a string log level name to a slog.Level.
// Recognized values: "debug", "info", "warning"/"warn", "error".
// Defaults to slog.LevelInfo for unrecognized values.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warning", "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("unknown log level, defaulting to info", "level", level)
		return slog.LevelInfo
	}
}

// SetupLogger configures the default slog logger with the given level
// string. Interactive terminals get the text handler; anything else (CI,
// pipes, log shippers) gets JSON.
func SetupLogger(level string) {
	opts := &slog.HandlerOptions{Level: ParseLogLevel(level)}
	var handler slog.Handler
	if isatty.IsTerminal(os.Stderr.Fd()) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
