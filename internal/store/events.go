// Package store provides the PostgreSQL repository behind the durable event sink.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/bifrost/internal/event"
	"github.com/rafaeljc/bifrost/internal/validation"
)

var _ EventRepository = (*PostgresStore)(nil)

// StoredBatch mirrors the event_batches table.
type StoredBatch struct {
	ID           int64     `db:"id"`
	AccountID    string    `db:"account_id"`
	ProjectID    string    `db:"project_id"`
	Revision     string    `db:"revision"`
	VisitorCount int       `db:"visitor_count"`
	RecordCount  int       `db:"record_count"`
	Payload      []byte    `db:"payload"`
	CreatedAt    time.Time `db:"created_at"`
}

// Decode unmarshals the stored payload.
func (b *StoredBatch) Decode() (*event.Batch, error) {
	var batch event.Batch
	if err := json.Unmarshal(b.Payload, &batch); err != nil {
		return nil, fmt.Errorf("failed to decode stored batch %d: %w", b.ID, err)
	}
	return &batch, nil
}

// EventRepository persists dispatched event batches.
type EventRepository interface {
	// InsertBatch stores one batch and returns the stored row.
	InsertBatch(ctx context.Context, batch *event.Batch) (*StoredBatch, error)

	// ListBatches returns a page of batches, newest first, and the total count.
	ListBatches(ctx context.Context, limit, offset int) ([]*StoredBatch, int64, error)
}

// PostgresStore is the EventRepository backed by PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a repository on the given pool. It panics if db is nil.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	validation.AssertNotNil(db, "database pool")
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InsertBatch(ctx context.Context, batch *event.Batch) (*StoredBatch, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}

	row := &StoredBatch{
		AccountID:    batch.AccountID,
		ProjectID:    batch.ProjectID,
		Revision:     batch.Revision,
		VisitorCount: len(batch.Visitors),
		RecordCount:  batch.Size(),
		Payload:      payload,
	}

	query := `
		INSERT INTO event_batches (account_id, project_id, revision, visitor_count, record_count, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err = s.db.QueryRow(ctx, query,
		row.AccountID,
		row.ProjectID,
		row.Revision,
		row.VisitorCount,
		row.RecordCount,
		row.Payload,
	).Scan(&row.ID, &row.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
			return nil, fmt.Errorf("event_batches table is missing, run the migrations: %w", err)
		}
		return nil, fmt.Errorf("failed to insert event batch: %w", err)
	}
	return row, nil
}

func (s *PostgresStore) ListBatches(ctx context.Context, limit, offset int) ([]*StoredBatch, int64, error) {
	var total int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM event_batches`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count event batches: %w", err)
	}
	if total == 0 {
		return []*StoredBatch{}, 0, nil
	}

	query := `
		SELECT id, account_id, project_id, revision, visitor_count, record_count, payload, created_at
		FROM event_batches
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list event batches: %w", err)
	}
	defer rows.Close()

	batches := make([]*StoredBatch, 0, limit)
	for rows.Next() {
		var b StoredBatch
		if err := rows.Scan(
			&b.ID,
			&b.AccountID,
			&b.ProjectID,
			&b.Revision,
			&b.VisitorCount,
			&b.RecordCount,
			&b.Payload,
			&b.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan event batch row: %w", err)
		}
		batches = append(batches, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return batches, total, nil
}
