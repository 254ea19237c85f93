package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"

	"exposurewatch/internal/domain"
	"exposurewatch/internal/ports"
	"exposurewatch/internal/tracing"
)

var _ ports.BrokerStore = (*DB)(nil)

func (db *DB) UpsertBrokers(ctx context.Context, brokers []domain.Broker) (int, error) {
	if len(brokers) == 0 {
		return 0, nil
	}
	written := 0
	err := tracing.ExecuteAndTrace(ctx, db.tracer, "postgres.upsert_brokers", []attribute.KeyValue{
		attribute.Int("brokers", len(brokers)),
	}, func(ctx context.Context) error {
		batch := &pgx.Batch{}
		for _, b := range brokers {
			batch.Queue(`
				INSERT INTO brokers (provider, broker_id, name, url, registrable_domain, enabled, estimated_days, broker_type, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
				ON CONFLICT (provider, broker_id) DO UPDATE
				SET name = EXCLUDED.name,
				    url = EXCLUDED.url,
				    registrable_domain = EXCLUDED.registrable_domain,
				    enabled = EXCLUDED.enabled,
				    estimated_days = EXCLUDED.estimated_days,
				    broker_type = EXCLUDED.broker_type,
				    updated_at = now()
				WHERE (brokers.name, brokers.url, brokers.registrable_domain, brokers.enabled, brokers.estimated_days, brokers.broker_type)
				      IS DISTINCT FROM
				      (EXCLUDED.name, EXCLUDED.url, EXCLUDED.registrable_domain, EXCLUDED.enabled, EXCLUDED.estimated_days, EXCLUDED.broker_type)
			`, b.Provider, b.BrokerID, b.Name, b.URL, b.RegistrableDomain, b.Enabled, b.EstimatedDays, b.BrokerType)
		}
		results := db.Pool.SendBatch(ctx, batch)
		for range brokers {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return err
			}
			written += int(tag.RowsAffected())
		}
		return results.Close()
	})
	return written, err
}

func (db *DB) Broker(ctx context.Context, provider domain.Provider, brokerID string) (domain.Broker, error) {
	var b domain.Broker
	err := db.Pool.QueryRow(ctx, `
		SELECT provider, broker_id, name, url, registrable_domain, enabled, estimated_days, broker_type, updated_at
		FROM brokers WHERE provider = $1 AND broker_id = $2
	`, provider, brokerID).Scan(&b.Provider, &b.BrokerID, &b.Name, &b.URL, &b.RegistrableDomain,
		&b.Enabled, &b.EstimatedDays, &b.BrokerType, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return b, domain.ErrNotFound
	}
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, err
}
