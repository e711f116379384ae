package storage

import (
	"context"
	"fmt"

	"credgate/internal/models"
)

// RequestLogRepository appends audit rows to the request log table.
// Rows are immutable once written; pruning is external.
type RequestLogRepository struct {
	db *DB
}

// NewRequestLogRepository creates a new request log repository
func NewRequestLogRepository(db *DB) *RequestLogRepository {
	return &RequestLogRepository{db: db}
}

// InsertBatch writes a batch of log entries in one transaction.
func (r *RequestLogRepository) InsertBatch(ctx context.Context, entries []models.RequestLog) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin log transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO api_requests_log
			(api_key_id, endpoint, method, status_code, response_time_ms,
			 ip_address, user_agent, timestamp)
		VALUES
			(:api_key_id, :endpoint, :method, :status_code, :response_time_ms,
			 :ip_address, :user_agent, :timestamp)`

	if _, err := tx.NamedExecContext(ctx, query, entries); err != nil {
		return fmt.Errorf("failed to insert request logs: %w", err)
	}

	return tx.Commit()
}
