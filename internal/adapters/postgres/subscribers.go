package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"

	"exposurewatch/internal/domain"
	"exposurewatch/internal/ports"
	"exposurewatch/internal/tracing"
)

var _ ports.SubscriberRepository = (*DB)(nil)

const subscriberColumns = `id, email, tier, legacy_profile_id, broker_customer_id, created_at`

func scanSubscriber(row pgx.Row) (domain.Subscriber, error) {
	var s domain.Subscriber
	err := row.Scan(&s.ID, &s.Email, &s.Tier, &s.LegacyProfileID, &s.BrokerCustomerID, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, domain.ErrNotFound
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return s, err
}

func (db *DB) Subscriber(ctx context.Context, id int64) (domain.Subscriber, error) {
	return scanSubscriber(db.Pool.QueryRow(ctx, `SELECT `+subscriberColumns+` FROM subscribers WHERE id = $1`, id))
}

func (db *DB) SubscriberByProviderKey(ctx context.Context, key domain.ProviderKey) (domain.Subscriber, error) {
	switch key.Provider {
	case domain.ProviderLegacyScan:
		profileID, err := key.ProfileID()
		if err != nil {
			return domain.Subscriber{}, err
		}
		return scanSubscriber(db.Pool.QueryRow(ctx,
			`SELECT `+subscriberColumns+` FROM subscribers WHERE legacy_profile_id = $1`, profileID))
	case domain.ProviderBrokerScan:
		return scanSubscriber(db.Pool.QueryRow(ctx,
			`SELECT `+subscriberColumns+` FROM subscribers WHERE broker_customer_id = $1`, key.Value))
	default:
		return domain.Subscriber{}, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, key.Provider)
	}
}

// AssignBrokerCustomerID sets the subscriber's customer id if none is set
// yet and returns the id the subscriber ends up with. A concurrent
// enrollment that lost the race gets the winner's id back.
func (db *DB) AssignBrokerCustomerID(ctx context.Context, subscriberID int64, customerID string) (string, error) {
	var assigned string
	err := tracing.ExecuteAndTrace(ctx, db.tracer, "postgres.assign_customer_id", []attribute.KeyValue{
		attribute.Int64("subscriber_id", subscriberID),
	}, func(ctx context.Context) error {
		err := db.Pool.QueryRow(ctx, `
			UPDATE subscribers SET broker_customer_id = $2
			WHERE id = $1 AND broker_customer_id IS NULL
			RETURNING broker_customer_id
		`, subscriberID, customerID).Scan(&assigned)
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		var existing *string
		err = db.Pool.QueryRow(ctx, `SELECT broker_customer_id FROM subscribers WHERE id = $1`, subscriberID).Scan(&existing)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("subscriber %d: customer id not assigned", subscriberID)
		}
		assigned = *existing
		return nil
	})
	return assigned, err
}

func (db *DB) SubscriberIDs(ctx context.Context) ([]int64, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id FROM subscribers
		WHERE legacy_profile_id IS NOT NULL OR broker_customer_id IS NOT NULL
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// CreateSubscriber inserts a subscriber. Used by tooling and tests; the
// subscriber table is otherwise owned by the account service.
func (db *DB) CreateSubscriber(ctx context.Context, s domain.Subscriber) (int64, error) {
	tier := s.Tier
	if tier == "" {
		tier = domain.TierFree
	}
	var id int64
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO subscribers (email, tier, legacy_profile_id, broker_customer_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, s.Email, tier, s.LegacyProfileID, s.BrokerCustomerID).Scan(&id)
	return id, err
}
