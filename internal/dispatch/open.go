package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rafaeljc/bifrost/internal/config"
	"github.com/rafaeljc/bifrost/internal/database"
	"github.com/rafaeljc/bifrost/internal/event"
	"github.com/rafaeljc/bifrost/internal/store"
)

// Sink is a transport plus the resources it owns.
type Sink struct {
	Transport event.Transport
	// Checker reports the health of the backing service; nil when there is none.
	Checker interface {
		Name() string
		Check(ctx context.Context) error
	}
	close func()
}

// Close releases the resources of the sink.
func (s *Sink) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open builds the transport selected by cfg.Transport.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Events.Transport {
	case config.TransportLog, "":
		return &Sink{Transport: NewLogTransport(logger)}, nil

	case config.TransportHTTP:
		return &Sink{Transport: NewHTTPTransport(cfg.Events.Endpoint, WithHTTPLogger(logger))}, nil

	case config.TransportSQS:
		client, err := NewSQSClient(ctx, cfg.Events.SQSRegion)
		if err != nil {
			return nil, err
		}
		return &Sink{Transport: NewSQSTransport(client, cfg.Events.SQSQueueURL)}, nil

	case config.TransportPostgres:
		pool, err := database.NewPostgresPool(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		return &Sink{
			Transport: NewPostgresTransport(store.NewPostgresStore(pool), logger),
			Checker:   database.NewHealthChecker(pool),
			close:     pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown event transport %q", cfg.Events.Transport)
	}
}
