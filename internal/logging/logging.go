// Package logging builds the supervisor's own ambient diagnostics logger
// (daemon lifecycle, dispatch errors, restart decisions) — distinct from
// internal/logs, which captures managed-process stdout/stderr under the
// exact rotation contract fixed by the spec. This package follows the
// teacher's logger package: slog fronting either the terminal or a rotated
// file via lumberjack.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how the ambient log is written.
type Config struct {
	// Path, if set, writes JSON-formatted records through lumberjack
	// instead of to stderr.
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      string // debug|info|warn|error
}

func (c Config) withDefaults() Config {
	out := c
	if out.MaxSizeMB <= 0 {
		out.MaxSizeMB = 10
	}
	if out.MaxBackups <= 0 {
		out.MaxBackups = 3
	}
	if out.MaxAgeDays <= 0 {
		out.MaxAgeDays = 7
	}
	if out.Level == "" {
		out.Level = "info"
	}
	return out
}

func levelFor(name string) slog.Level {
	switch strings.ToLower(name) {
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

// New builds the ambient logger. With no Path, it writes human-readable text
// to stderr; with a Path it writes JSON lines through a rotating
// lumberjack.Logger.
func New(cfg Config) *slog.Logger {
	cfg = cfg.withDefaults()
	opts := &slog.HandlerOptions{Level: levelFor(cfg.Level)}

	var out io.Writer = os.Stderr
	var handler slog.Handler
	if cfg.Path != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = newColorTextHandler(out, opts)
	}
	return slog.New(handler)
}
