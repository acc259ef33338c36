package dispatch

import (
	"context"
	"log/slog"

	"github.com/rafaeljc/bifrost/internal/event"
)

// LogTransport writes a summary of every batch to the logger and delivers nothing.
// Useful for local runs and dry runs.
type LogTransport struct {
	logger *slog.Logger
}

func NewLogTransport(logger *slog.Logger) *LogTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Dispatch(ctx context.Context, batch *event.Batch) error {
	t.logger.InfoContext(ctx, "event batch",
		slog.String("account_id", batch.AccountID),
		slog.String("project_id", batch.ProjectID),
		slog.String("revision", batch.Revision),
		slog.Int("visitors", len(batch.Visitors)),
		slog.Int("records", batch.Size()),
	)
	return nil
}
