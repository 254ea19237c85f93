package postgres

import (
	"context"
	"time"

	"exposurewatch/internal/domain"
	"exposurewatch/internal/ports"
)

var _ ports.ResolutionStore = (*DB)(nil)

// RecordBelongsTo checks the record was found for one of the subscriber's
// provider identifiers.
func (db *DB) RecordBelongsTo(ctx context.Context, subscriberID int64, provider domain.Provider, recordID string) (bool, error) {
	var ok bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM scan_records r
			JOIN subscribers s ON s.id = $1
			WHERE r.provider = $2 AND r.remote_record_id = $3
			  AND (
			    (r.provider = 'legacyscan' AND r.provider_key = s.legacy_profile_id::text) OR
			    (r.provider = 'brokerscan' AND r.provider_key = s.broker_customer_id)
			  )
		)
	`, subscriberID, provider, recordID).Scan(&ok)
	return ok, err
}

// MarkRecordResolved is idempotent; the first resolution time is kept.
func (db *DB) MarkRecordResolved(ctx context.Context, provider domain.Provider, recordID string, at time.Time) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO scan_record_resolutions (provider, remote_record_id, resolved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider, remote_record_id) DO NOTHING
	`, provider, recordID, at.UTC())
	return err
}
