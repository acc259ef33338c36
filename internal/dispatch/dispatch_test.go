package dispatch_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/bifrost/internal/config"
	"github.com/rafaeljc/bifrost/internal/dispatch"
	"github.com/rafaeljc/bifrost/internal/event"
	"github.com/rafaeljc/bifrost/internal/store"
)

func sampleBatch() *event.Batch {
	return &event.Batch{
		AccountID:       "12001",
		ProjectID:       "111001",
		Revision:        "42",
		ClientName:      "bifrost-go",
		ClientVersion:   "1.0.0",
		EnrichDecisions: true,
		Visitors: []event.Visitor{{
			VisitorID:  "u1",
			Attributes: []event.VisitorAttribute{},
			Snapshots: []event.Snapshot{{
				Events: []event.SnapshotEvent{{EntityID: "50001", Key: "purchase", Timestamp: 1700000000000, UUID: "e1"}},
			}},
		}},
	}
}

func TestHTTPTransport(t *testing.T) {
	t.Parallel()

	t.Run("Should post the batch as JSON", func(t *testing.T) {
		t.Parallel()

		var got event.Batch
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		transport := dispatch.NewHTTPTransport(srv.URL, dispatch.WithHTTPClient(srv.Client()))
		require.NoError(t, transport.Dispatch(context.Background(), sampleBatch()))
		assert.Equal(t, *sampleBatch(), got)
	})

	t.Run("Should fail on non 2xx responses", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		transport := dispatch.NewHTTPTransport(srv.URL)
		err := transport.Dispatch(context.Background(), sampleBatch())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
		assert.Contains(t, err.Error(), "quota exceeded")
	})

	t.Run("Should honour context cancellation", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		transport := dispatch.NewHTTPTransport(srv.URL)
		assert.ErrorIs(t, transport.Dispatch(ctx, sampleBatch()), context.Canceled)
	})
}

type fakeSQS struct {
	mu    sync.Mutex
	input []*sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.input = append(f.input, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSTransport(t *testing.T) {
	t.Parallel()

	t.Run("Should send one message per batch", func(t *testing.T) {
		t.Parallel()

		client := &fakeSQS{}
		transport := dispatch.NewSQSTransport(client, "https://sqs.us-east-1.amazonaws.com/123/events")

		require.NoError(t, transport.Dispatch(context.Background(), sampleBatch()))

		require.Len(t, client.input, 1)
		in := client.input[0]
		assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123/events", *in.QueueUrl)
		assert.Equal(t, "42", *in.MessageAttributes["revision"].StringValue)
		assert.Equal(t, "1", *in.MessageAttributes["record_count"].StringValue)
		assert.Equal(t, "Number", *in.MessageAttributes["record_count"].DataType)

		var decoded event.Batch
		require.NoError(t, json.Unmarshal([]byte(*in.MessageBody), &decoded))
		assert.Equal(t, *sampleBatch(), decoded)
	})

	t.Run("Should wrap client errors", func(t *testing.T) {
		t.Parallel()

		client := &fakeSQS{err: errors.New("AccessDenied")}
		transport := dispatch.NewSQSTransport(client, "queue")

		assert.ErrorContains(t, transport.Dispatch(context.Background(), sampleBatch()), "AccessDenied")
	})

	t.Run("Should refuse batches above the message limit", func(t *testing.T) {
		t.Parallel()

		client := &fakeSQS{}
		transport := dispatch.NewSQSTransport(client, "queue")
		batch := sampleBatch()
		batch.Visitors[0].VisitorID = strings.Repeat("x", dispatch.MaxSQSMessageSize)

		assert.ErrorContains(t, transport.Dispatch(context.Background(), batch), "exceeds the sqs message limit")
		assert.Empty(t, client.input)
	})

	t.Run("Should panic without client", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { dispatch.NewSQSTransport(nil, "queue") })
	})
}

type fakeRepo struct {
	inserted []*event.Batch
	err      error
}

func (f *fakeRepo) InsertBatch(_ context.Context, batch *event.Batch) (*store.StoredBatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inserted = append(f.inserted, batch)
	return &store.StoredBatch{ID: int64(len(f.inserted)), RecordCount: batch.Size()}, nil
}

func (f *fakeRepo) ListBatches(context.Context, int, int) ([]*store.StoredBatch, int64, error) {
	return nil, 0, nil
}

func TestPostgresTransport(t *testing.T) {
	t.Parallel()

	t.Run("Should insert the batch", func(t *testing.T) {
		t.Parallel()
		repo := &fakeRepo{}
		transport := dispatch.NewPostgresTransport(repo, nil)

		require.NoError(t, transport.Dispatch(context.Background(), sampleBatch()))
		assert.Len(t, repo.inserted, 1)
	})

	t.Run("Should return repository errors", func(t *testing.T) {
		t.Parallel()
		repo := &fakeRepo{err: errors.New("connection reset")}
		transport := dispatch.NewPostgresTransport(repo, nil)

		assert.ErrorContains(t, transport.Dispatch(context.Background(), sampleBatch()), "connection reset")
	})
}

func TestLogTransport(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	transport := dispatch.NewLogTransport(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, transport.Dispatch(context.Background(), sampleBatch()))
	assert.Contains(t, buf.String(), "event batch")
	assert.Contains(t, buf.String(), "revision=42")
	assert.Contains(t, buf.String(), "records=1")
}

func TestOpen(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Should build the log transport", func(t *testing.T) {
		t.Parallel()
		sink, err := dispatch.Open(context.Background(), &config.Config{Events: config.EventsConfig{Transport: config.TransportLog}}, logger)
		require.NoError(t, err)
		defer sink.Close()
		assert.IsType(t, &dispatch.LogTransport{}, sink.Transport)
		assert.Nil(t, sink.Checker)
	})

	t.Run("Should build the http transport", func(t *testing.T) {
		t.Parallel()
		sink, err := dispatch.Open(context.Background(), &config.Config{Events: config.EventsConfig{Transport: config.TransportHTTP, Endpoint: "http://collector.local/v1/events"}}, logger)
		require.NoError(t, err)
		assert.IsType(t, &dispatch.HTTPTransport{}, sink.Transport)
	})

	t.Run("Should reject unknown transports", func(t *testing.T) {
		t.Parallel()
		_, err := dispatch.Open(context.Background(), &config.Config{Events: config.EventsConfig{Transport: "kafka"}}, logger)
		assert.Error(t, err)
	})
}
