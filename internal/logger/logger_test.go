package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/bifrost/internal/config"
)

func TestNewWithWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       config.AppConfig
		logDebug  bool
		wantJSON  bool
		wantEmpty bool
	}{
		{
			name:     "Should emit JSON when format is json",
			cfg:      config.AppConfig{Name: "bifrost", Version: "1.0.0", Environment: "production", LogLevel: "info", LogFormat: "json"},
			wantJSON: true,
		},
		{
			name: "Should emit text when format is text",
			cfg:  config.AppConfig{Name: "bifrost", Version: "1.0.0", Environment: "development", LogLevel: "info", LogFormat: "text"},
		},
		{
			name:     "Should default to JSON on unknown format",
			cfg:      config.AppConfig{Name: "bifrost", Version: "1.0.0", Environment: "development", LogLevel: "info", LogFormat: "xml"},
			wantJSON: true,
		},
		{
			name:      "Should drop debug lines at info level",
			cfg:       config.AppConfig{Name: "bifrost", Version: "1.0.0", Environment: "development", LogLevel: "info", LogFormat: "text"},
			logDebug:  true,
			wantEmpty: true,
		},
		{
			name:     "Should keep debug lines at debug level",
			cfg:      config.AppConfig{Name: "bifrost", Version: "1.0.0", Environment: "development", LogLevel: "DEBUG", LogFormat: "text"},
			logDebug: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			log := NewWithWriter(&tt.cfg, &buf)

			if tt.logDebug {
				log.Debug("hello")
			} else {
				log.Info("hello")
			}

			if tt.wantEmpty {
				assert.Empty(t, buf.String())
				return
			}

			out := buf.String()
			assert.Contains(t, out, "hello")
			if tt.wantJSON {
				var entry map[string]any
				require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
				assert.Equal(t, "bifrost", entry["service"])
				assert.Equal(t, "1.0.0", entry["version"])
				assert.Equal(t, tt.cfg.Environment, entry["env"])
			} else {
				assert.Contains(t, out, "service=bifrost")
			}
		})
	}
}

func TestNewWithWriter_PanicsOnNilConfig(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { NewWithWriter(nil, &bytes.Buffer{}) })
}

func TestComponent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	Component(base, "syncer").Info("tick")

	assert.Contains(t, buf.String(), "component=syncer")
	assert.NotNil(t, Component(nil, "x"))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}
