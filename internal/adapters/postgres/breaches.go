package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"exposurewatch/internal/domain"
	"exposurewatch/internal/ports"
)

var _ ports.BreachSource = (*DB)(nil)

// BreachesFor reads the subscriber's breaches. The breach tables are
// populated elsewhere; this service only reads them.
func (db *DB) BreachesFor(ctx context.Context, subscriberID int64) ([]domain.BreachRecord, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT b.id, b.name, b.domain, b.added_date, sb.resolved, sb.resolution_reason, b.data_classes
		FROM subscriber_breaches sb
		JOIN breaches b ON b.id = sb.breach_id
		WHERE sb.subscriber_id = $1
		ORDER BY b.added_date DESC, b.id
	`, subscriberID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.BreachRecord, error) {
		var (
			b       domain.BreachRecord
			reason  string
			classes []string
		)
		if err := row.Scan(&b.ID, &b.Name, &b.Domain, &b.AddedDate, &b.Resolved, &reason, &classes); err != nil {
			return b, err
		}
		b.AddedDate = b.AddedDate.UTC()
		b.ResolutionReason = domain.ResolutionReason(reason)
		b.DataClasses = make([]domain.DataClass, len(classes))
		for i, c := range classes {
			b.DataClasses[i] = domain.DataClass(c)
		}
		return b, nil
	})
}

// AddBreach inserts a breach and links it to the subscriber. Used by
// tooling and tests.
func (db *DB) AddBreach(ctx context.Context, subscriberID int64, b domain.BreachRecord) error {
	classes := make([]string, len(b.DataClasses))
	for i, c := range b.DataClasses {
		classes[i] = string(c)
	}
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO breaches (id, name, domain, added_date, data_classes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, b.ID, b.Name, b.Domain, b.AddedDate.UTC(), classes)
	batch.Queue(`
		INSERT INTO subscriber_breaches (subscriber_id, breach_id, resolved, resolution_reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subscriber_id, breach_id) DO UPDATE
		SET resolved = EXCLUDED.resolved, resolution_reason = EXCLUDED.resolution_reason
	`, subscriberID, b.ID, b.Resolved, string(b.ResolutionReason))
	return db.Pool.SendBatch(ctx, batch).Close()
}
