package app

import (
	"io"
	"log/slog"
	"strings"
)

// newLogger builds the application's logger from cfg. It does not touch the
// global logger, so tests can run isolated App instances side by side.
// Every record carries the service name so mission logs can be told apart
// from tool output written to the same stream.
func newLogger(cfg *Config, outW io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(outW, opts)
	} else {
		handler = slog.NewTextHandler(outW, opts)
	}
	return slog.New(handler).With("service", serviceName)
}

// parseLevel maps a level name to a slog.Level. Unknown names fall back to
// info.
func parseLevel(s string) slog.Level {
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
