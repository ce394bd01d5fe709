package database

import (
	"context"

	"github.com/billsync/billsync/internal/apperror"
)

// RecordProcessingOutcome upserts the audit row for one source message.
// Re-processing the same message overwrites the previous outcome, so the
// log always reflects the latest attempt.
func (d Datasource) RecordProcessingOutcome(ctx context.Context, sourceType, sourceID, status, message string) error {
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO processing_logs(source_type, source_id, status, message, processed_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(source_type, source_id) DO UPDATE SET
			status = excluded.status,
			message = excluded.message,
			processed_at = excluded.processed_at
	`, sourceType, sourceID, status, nullString(message))
	if err != nil {
		return apperror.New(apperror.ErrInternal, "Failed to record processing outcome", err)
	}
	return nil
}

// CountProcessingOutcomes returns the outcome counts per status for one
// source type, e.g. {"saved": 40, "duplicate": 12, "parse_error": 3}.
func (d Datasource) CountProcessingOutcomes(ctx context.Context, sourceType string) (map[string]int64, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM processing_logs WHERE source_type = ? GROUP BY status
	`, sourceType)
	if err != nil {
		return nil, apperror.New(apperror.ErrInternal, "Failed to count processing outcomes", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, apperror.New(apperror.ErrInternal, "Failed to scan processing outcome count", err)
		}
		counts[status] = count
	}
	if err = rows.Err(); err != nil {
		return nil, apperror.New(apperror.ErrInternal, "Error occurred while iterating over processing outcomes", err)
	}
	return counts, nil
}
