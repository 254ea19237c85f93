package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"exposurewatch/internal/domain"
	"exposurewatch/internal/ports"
)

var _ ports.JobRepository = (*DB)(nil)

// Enqueue queues a sync for the key. At most one job per key is queued at
// a time; enqueueing again returns the id of the job already waiting.
func (db *DB) Enqueue(ctx context.Context, key domain.ProviderKey) (string, error) {
	var id string
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO sync_jobs (id, provider, provider_key)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider, provider_key) WHERE status = 'queued'
		DO UPDATE SET queued_at = sync_jobs.queued_at
		RETURNING id::text
	`, uuid.NewString(), key.Provider, key.Value).Scan(&id)
	return id, err
}

// ClaimNext selects the oldest queued job using SKIP LOCKED and marks it running.
func (db *DB) ClaimNext(ctx context.Context) (job ports.SyncJob, found bool, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
		SELECT id::text, provider, provider_key FROM sync_jobs
		WHERE status = 'queued'
		ORDER BY queued_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`).Scan(&job.ID, &job.Key.Provider, &job.Key.Value)
	if errors.Is(err, pgx.ErrNoRows) {
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}

	if _, err = tx.Exec(ctx, `
		UPDATE sync_jobs SET status = 'running', started_at = now(), attempts = attempts + 1 WHERE id = $1
	`, job.ID); err != nil {
		return job, false, err
	}
	return job, true, nil
}

func (db *DB) MarkCompleted(ctx context.Context, jobID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
		UPDATE sync_jobs SET status = 'completed', finished_at = now(), last_error = '' WHERE id = $1
	`, jobID)
	return err
}

func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
		UPDATE sync_jobs SET status = 'failed', finished_at = now(), last_error = $2 WHERE id = $1
	`, jobID, reason)
	return err
}

// QueuedJobs counts jobs waiting to be claimed.
func (db *DB) QueuedJobs(ctx context.Context) (int, error) {
	var n int
	err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM sync_jobs WHERE status = 'queued'`).Scan(&n)
	return n, err
}
