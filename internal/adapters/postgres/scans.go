package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"

	"exposurewatch/internal/domain"
	"exposurewatch/internal/ports"
	"exposurewatch/internal/tracing"
)

var _ ports.ScanStore = (*DB)(nil)

// UpsertScan inserts the scan or merges its mutable fields. created_at,
// reason and scan_type are only written on insert. Rows that would not
// change are left untouched.
func (db *DB) UpsertScan(ctx context.Context, s domain.Scan) (bool, error) {
	changed := false
	err := tracing.ExecuteAndTrace(ctx, db.tracer, "postgres.upsert_scan", []attribute.KeyValue{
		attribute.String("provider", string(s.Provider)),
		attribute.String("remote_scan_id", s.RemoteID),
	}, func(ctx context.Context) error {
		var id int64
		err := db.Pool.QueryRow(ctx, `
			INSERT INTO scans (provider, provider_key, remote_scan_id, status, reason, scan_type, broker_count, created_at, modified_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (provider, remote_scan_id) DO UPDATE
			SET status = EXCLUDED.status,
			    broker_count = EXCLUDED.broker_count,
			    modified_at = EXCLUDED.modified_at
			WHERE (scans.status, scans.broker_count, scans.modified_at)
			      IS DISTINCT FROM (EXCLUDED.status, EXCLUDED.broker_count, EXCLUDED.modified_at)
			RETURNING id
		`, s.Provider, s.ProviderKey, s.RemoteID, s.Status, s.Reason, s.ScanType, s.BrokerCount,
			s.CreatedAt.UTC(), s.ModifiedAt.UTC()).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}

const upsertRecordSQL = `
	INSERT INTO scan_records (
		provider, provider_key, remote_record_id, remote_scan_id, broker_id, broker_name, score, status,
		created_at, submitted_at, confirmed_at, verified_at, modified_at,
		full_name, age, addresses, relatives, email_addresses, phone_numbers, record_url
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	ON CONFLICT (provider, remote_record_id) DO UPDATE
	SET provider_key = EXCLUDED.provider_key,
	    remote_scan_id = EXCLUDED.remote_scan_id,
	    broker_id = EXCLUDED.broker_id,
	    broker_name = EXCLUDED.broker_name,
	    score = EXCLUDED.score,
	    status = EXCLUDED.status,
	    created_at = EXCLUDED.created_at,
	    submitted_at = EXCLUDED.submitted_at,
	    confirmed_at = EXCLUDED.confirmed_at,
	    verified_at = EXCLUDED.verified_at,
	    modified_at = EXCLUDED.modified_at,
	    full_name = EXCLUDED.full_name,
	    age = EXCLUDED.age,
	    addresses = EXCLUDED.addresses,
	    relatives = EXCLUDED.relatives,
	    email_addresses = EXCLUDED.email_addresses,
	    phone_numbers = EXCLUDED.phone_numbers,
	    record_url = EXCLUDED.record_url
	WHERE (scan_records.provider_key, scan_records.remote_scan_id, scan_records.broker_id, scan_records.broker_name,
	       scan_records.score, scan_records.status, scan_records.created_at, scan_records.submitted_at,
	       scan_records.confirmed_at, scan_records.verified_at, scan_records.modified_at, scan_records.full_name,
	       scan_records.age, scan_records.addresses, scan_records.relatives, scan_records.email_addresses,
	       scan_records.phone_numbers, scan_records.record_url)
	      IS DISTINCT FROM
	      (EXCLUDED.provider_key, EXCLUDED.remote_scan_id, EXCLUDED.broker_id, EXCLUDED.broker_name,
	       EXCLUDED.score, EXCLUDED.status, EXCLUDED.created_at, EXCLUDED.submitted_at,
	       EXCLUDED.confirmed_at, EXCLUDED.verified_at, EXCLUDED.modified_at, EXCLUDED.full_name,
	       EXCLUDED.age, EXCLUDED.addresses, EXCLUDED.relatives, EXCLUDED.email_addresses,
	       EXCLUDED.phone_numbers, EXCLUDED.record_url)`

// UpsertRecords merges records in one transaction keyed by (provider,
// remote_record_id). Every mutable field is overwritten on conflict.
func (db *DB) UpsertRecords(ctx context.Context, records []domain.ScanRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	written := 0
	err := tracing.ExecuteAndTrace(ctx, db.tracer, "postgres.upsert_records", []attribute.KeyValue{
		attribute.Int("records", len(records)),
	}, func(ctx context.Context) (err error) {
		tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback(ctx)
			} else {
				err = tx.Commit(ctx)
			}
		}()

		batch := &pgx.Batch{}
		for _, r := range records {
			batch.Queue(upsertRecordSQL,
				r.Provider, r.ProviderKey, r.RemoteID, r.ScanID, r.BrokerID, r.BrokerName, r.Score, r.Status,
				r.CreatedAt.UTC(), utcPtr(r.SubmittedAt), utcPtr(r.ConfirmedAt), utcPtr(r.VerifiedAt), r.ModifiedAt.UTC(),
				r.FullName, r.Age, orEmpty(r.Addresses), orEmpty(r.Relatives), orEmpty(r.EmailAddresses),
				orEmpty(r.PhoneNumbers), r.RecordURL,
			)
		}
		results := tx.SendBatch(ctx, batch)
		for range records {
			tag, execErr := results.Exec()
			if execErr != nil {
				_ = results.Close()
				return execErr
			}
			written += int(tag.RowsAffected())
		}
		return results.Close()
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

const scanColumns = `provider, provider_key, remote_scan_id, status, reason, scan_type, broker_count, created_at, modified_at`

func scanScan(row pgx.Row) (domain.Scan, error) {
	var s domain.Scan
	err := row.Scan(&s.Provider, &s.ProviderKey, &s.RemoteID, &s.Status, &s.Reason, &s.ScanType,
		&s.BrokerCount, &s.CreatedAt, &s.ModifiedAt)
	s.CreatedAt = s.CreatedAt.UTC()
	s.ModifiedAt = s.ModifiedAt.UTC()
	return s, err
}

// ScansFor lists the key's scans, newest first.
func (db *DB) ScansFor(ctx context.Context, key domain.ProviderKey) ([]domain.Scan, error) {
	var scans []domain.Scan
	err := tracing.ExecuteAndTrace(ctx, db.tracer, "postgres.scans_for", keyAttrs(key), func(ctx context.Context) error {
		rows, err := db.Pool.Query(ctx, `
			SELECT `+scanColumns+`
			FROM scans
			WHERE provider = $1 AND provider_key = $2
			ORDER BY created_at DESC, id DESC
		`, key.Provider, key.Value)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			s, err := scanScan(rows)
			if err != nil {
				return err
			}
			scans = append(scans, s)
		}
		return rows.Err()
	})
	return scans, err
}

func (db *DB) LatestScan(ctx context.Context, key domain.ProviderKey) (domain.Scan, bool, error) {
	var (
		scan  domain.Scan
		found bool
	)
	err := tracing.ExecuteAndTrace(ctx, db.tracer, "postgres.latest_scan", keyAttrs(key), func(ctx context.Context) error {
		s, err := scanScan(db.Pool.QueryRow(ctx, `
			SELECT `+scanColumns+`
			FROM scans
			WHERE provider = $1 AND provider_key = $2
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		`, key.Provider, key.Value))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		scan, found = s, true
		return nil
	})
	return scan, found, err
}

// RecordsFor lists the key's records with manual resolutions and broker
// URLs joined in.
func (db *DB) RecordsFor(ctx context.Context, key domain.ProviderKey) ([]domain.ScanRecord, error) {
	var records []domain.ScanRecord
	err := tracing.ExecuteAndTrace(ctx, db.tracer, "postgres.records_for", keyAttrs(key), func(ctx context.Context) error {
		rows, err := db.Pool.Query(ctx, `
			SELECT r.provider, r.provider_key, r.remote_record_id, r.remote_scan_id, r.broker_id, r.broker_name,
			       r.score, r.status, r.created_at, r.submitted_at, r.confirmed_at, r.verified_at, r.modified_at,
			       r.full_name, r.age, r.addresses, r.relatives, r.email_addresses, r.phone_numbers, r.record_url,
			       res.resolved_at IS NOT NULL, COALESCE(b.url, '')
			FROM scan_records r
			LEFT JOIN scan_record_resolutions res
			       ON res.provider = r.provider AND res.remote_record_id = r.remote_record_id
			LEFT JOIN brokers b
			       ON b.provider = r.provider AND b.broker_id = r.broker_id
			WHERE r.provider = $1 AND r.provider_key = $2
			ORDER BY r.created_at DESC, r.id DESC
		`, key.Provider, key.Value)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r domain.ScanRecord
			if err := rows.Scan(&r.Provider, &r.ProviderKey, &r.RemoteID, &r.ScanID, &r.BrokerID, &r.BrokerName,
				&r.Score, &r.Status, &r.CreatedAt, &r.SubmittedAt, &r.ConfirmedAt, &r.VerifiedAt, &r.ModifiedAt,
				&r.FullName, &r.Age, &r.Addresses, &r.Relatives, &r.EmailAddresses, &r.PhoneNumbers, &r.RecordURL,
				&r.ManuallyResolved, &r.BrokerURL); err != nil {
				return err
			}
			r.CreatedAt = r.CreatedAt.UTC()
			r.ModifiedAt = r.ModifiedAt.UTC()
			r.SubmittedAt = utcPtr(r.SubmittedAt)
			r.ConfirmedAt = utcPtr(r.ConfirmedAt)
			r.VerifiedAt = utcPtr(r.VerifiedAt)
			records = append(records, r)
		}
		return rows.Err()
	})
	return records, err
}

// CountAllScans counts scans across all subscribers and providers.
func (db *DB) CountAllScans(ctx context.Context) (int, error) {
	var n int
	err := tracing.ExecuteAndTrace(ctx, db.tracer, "postgres.count_all_scans", nil, func(ctx context.Context) error {
		return db.Pool.QueryRow(ctx, `SELECT count(*) FROM scans`).Scan(&n)
	})
	return n, err
}

// MarkSynced records the end of a sync cycle. syncErr may be nil.
func (db *DB) MarkSynced(ctx context.Context, key domain.ProviderKey, at time.Time, syncErr error) error {
	lastErr := ""
	if syncErr != nil {
		lastErr = syncErr.Error()
	}
	return tracing.ExecuteAndTrace(ctx, db.tracer, "postgres.mark_synced", keyAttrs(key), func(ctx context.Context) error {
		_, err := db.Pool.Exec(ctx, `
			INSERT INTO provider_sync_state (provider, provider_key, last_synced_at, last_error)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (provider, provider_key) DO UPDATE
			SET last_synced_at = EXCLUDED.last_synced_at, last_error = EXCLUDED.last_error
		`, key.Provider, key.Value, at.UTC(), lastErr)
		return err
	})
}

// SyncState returns when the key was last synced and the error that cycle
// ended with, if any.
func (db *DB) SyncState(ctx context.Context, key domain.ProviderKey) (time.Time, string, error) {
	var (
		at      time.Time
		lastErr string
	)
	err := db.Pool.QueryRow(ctx, `
		SELECT last_synced_at, last_error FROM provider_sync_state WHERE provider = $1 AND provider_key = $2
	`, key.Provider, key.Value).Scan(&at, &lastErr)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, "", domain.ErrNotFound
	}
	return at.UTC(), lastErr, err
}

func keyAttrs(key domain.ProviderKey) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("provider", string(key.Provider)),
		attribute.String("provider_key", key.Value),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
