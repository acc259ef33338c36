package dispatch

import (
	"context"
	"log/slog"

	"github.com/rafaeljc/bifrost/internal/event"
	"github.com/rafaeljc/bifrost/internal/store"
	"github.com/rafaeljc/bifrost/internal/validation"
)

// PostgresTransport stores every batch in the event_batches table.
type PostgresTransport struct {
	repo   store.EventRepository
	logger *slog.Logger
}

// NewPostgresTransport panics if repo is nil.
func NewPostgresTransport(repo store.EventRepository, logger *slog.Logger) *PostgresTransport {
	validation.AssertPresent(repo, "event repository")
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTransport{repo: repo, logger: logger}
}

func (t *PostgresTransport) Dispatch(ctx context.Context, batch *event.Batch) error {
	stored, err := t.repo.InsertBatch(ctx, batch)
	if err != nil {
		return err
	}
	t.logger.Debug("batch stored", slog.Int64("batch_id", stored.ID), slog.Int("records", stored.RecordCount))
	return nil
}
