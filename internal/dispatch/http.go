// Package dispatch provides the event.Transport implementations: HTTP, SQS,
// PostgreSQL and a log-only sink.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/rafaeljc/bifrost/internal/event"
)

// maxErrorBody bounds how much of a failed response ends up in the error.
const maxErrorBody = 512

// HTTPTransport posts each batch as JSON to an event collector endpoint.
type HTTPTransport struct {
	client   *http.Client
	endpoint string
	logger   *slog.Logger
}

// HTTPOption customizes an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		if c != nil {
			t.client = c
		}
	}
}

func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(t *HTTPTransport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func NewHTTPTransport(endpoint string, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		client:   cleanhttp.DefaultPooledClient(),
		endpoint: endpoint,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Dispatch sends the batch. Any status outside 2xx is an error; the call is not retried.
func (t *HTTPTransport) Dispatch(ctx context.Context, batch *event.Batch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("event endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	t.logger.Debug("batch posted",
		slog.String("endpoint", t.endpoint),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(payload)),
	)
	return nil
}
