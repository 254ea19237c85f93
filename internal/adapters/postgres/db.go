package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"exposurewatch/internal/tracing"
)

// DB is the Local Store: scans, scan records, resolutions, broker catalog,
// the sync job queue and the read-only breach tables all live behind it.
type DB struct {
	Pool   *pgxpool.Pool
	tracer trace.Tracer
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, tracer trace.Tracer) *DB {
	if tracer == nil {
		tracer = tracing.NoOp()
	}
	return &DB{Pool: pool, tracer: tracer}
}

func Connect(ctx context.Context, url string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return New(pool, tracing.Tracer("postgres")), nil
}

// ConnectWithRetry retries Connect with exponential backoff for up to
// maxElapsed, so the service can start before the database is reachable.
func ConnectWithRetry(ctx context.Context, url string, maxElapsed time.Duration, log zerolog.Logger) (*DB, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = maxElapsed
	expBackoff.InitialInterval = time.Second

	var db *DB
	attempt := 0
	operation := func() error {
		attempt++
		var err error
		db, err = Connect(ctx, url)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("database not ready")
		}
		return err
	}
	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		return nil, fmt.Errorf("connect to database after %d attempts: %w", attempt, err)
	}
	return db, nil
}

func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func (db *DB) Close() { db.Pool.Close() }
