// Package logger builds the structured root logger of a Bifrost process.
// It wraps "log/slog" so every binary formats output the same way (JSON in
// production, text in development) and stamps the same identity attributes.
package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/rafaeljc/bifrost/internal/config"
)

// New returns a logger configured from cfg that writes to os.Stdout.
func New(cfg *config.AppConfig) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter returns a logger configured from cfg that writes to w.
func NewWithWriter(cfg *config.AppConfig, w io.Writer) *slog.Logger {
	if cfg == nil {
		panic("logger: config cannot be nil")
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
		// file:line is expensive, keep it out of production
		AddSource: cfg.Environment != config.EnvironmentProduction,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("service", cfg.Name),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Environment),
	)
}

// Component returns a child of base tagged with the component name.
// A nil base falls back to slog.Default().
func Component(base *slog.Logger, name string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With(slog.String("component", name))
}

// parseLevel converts a string to slog.Level. Defaults to INFO.
func parseLevel(s string) slog.Level {
	var level slog.Level
	// UnmarshalText is case insensitive
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
