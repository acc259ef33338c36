package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/bifrost/internal/config"
	"github.com/rafaeljc/bifrost/internal/observability"
)

type stubChecker struct {
	name string
	err  error
}

func (c stubChecker) Name() string                { return c.name }
func (c stubChecker) Check(context.Context) error { return c.err }

func testConfig() *config.ObservabilityConfig {
	return &config.ObservabilityConfig{
		Enabled:       true,
		Port:          "0",
		Timeout:       time.Second,
		LivenessPath:  "/alive",
		ReadinessPath: "/check-deps",
		MetricsPath:   "/telemetry",
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNewServer_PanicsWithoutConfig(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { observability.NewServer(quietLogger(), nil) })
}

func TestServer_Probes(t *testing.T) {
	t.Parallel()

	t.Run("Should answer liveness on the configured path", func(t *testing.T) {
		t.Parallel()
		s := observability.NewServer(quietLogger(), testConfig())

		rec := get(t, s.Handler(), "/alive")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
		assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/healthz").Code)
	})

	t.Run("Should be ready when every checker passes", func(t *testing.T) {
		t.Parallel()
		s := observability.NewServer(quietLogger(), testConfig(),
			stubChecker{name: "redis"},
			stubChecker{name: "datafile"},
		)

		rec := get(t, s.Handler(), "/check-deps")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		var body observability.ReadinessResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, map[string]string{"redis": "up", "datafile": "up"}, body.Status)
	})

	t.Run("Should be ready without checkers", func(t *testing.T) {
		t.Parallel()
		s := observability.NewServer(quietLogger(), testConfig())

		assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/check-deps").Code)
	})

	t.Run("Should report failing checkers with 503", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		s := observability.NewServer(logger, testConfig(),
			stubChecker{name: "postgres"},
			stubChecker{name: "datafile", err: errors.New("datafile not loaded yet")},
		)

		rec := get(t, s.Handler(), "/check-deps")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body observability.ReadinessResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "up", body.Status["postgres"])
		assert.Equal(t, "down: datafile not loaded yet", body.Status["datafile"])
		assert.Contains(t, buf.String(), "health probe failed")
		assert.Contains(t, buf.String(), "status=503")
	})

	t.Run("Should expose bifrost metrics", func(t *testing.T) {
		t.Parallel()
		s := observability.NewServer(quietLogger(), testConfig())

		rec := get(t, s.Handler(), "/telemetry")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "go_goroutines")
		assert.Contains(t, rec.Body.String(), "bifrost_events_dropped_total")
	})
}

func TestServer_ShutdownWithoutStart(t *testing.T) {
	t.Parallel()
	s := observability.NewServer(quietLogger(), testConfig())

	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestPingChecker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ping    observability.PingFunc
		wantErr string
	}{
		{
			name: "Should pass when the ping succeeds",
			ping: func(context.Context) error { return nil },
		},
		{
			name:    "Should fail without a connection",
			ping:    nil,
			wantErr: "redis connection is nil",
		},
		{
			name:    "Should report ping errors",
			ping:    func(context.Context) error { return errors.New("connection refused") },
			wantErr: "connection refused",
		},
		{
			name: "Should bound the ping with its own timeout",
			ping: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
			wantErr: context.DeadlineExceeded.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			checker := observability.NewPingChecker("redis", 20*time.Millisecond, tt.ping)

			err := checker.Check(context.Background())

			assert.Equal(t, "redis", checker.Name())
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
