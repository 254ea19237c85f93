package ports

import (
	"context"
	"time"

	"exposurewatch/internal/domain"
)

// ScanStore is the Local Store for mirrored provider scans and records.
// Upserts are atomic per row (insert, on conflict merge) so concurrent
// syncs for the same subscriber cannot insert duplicates.
type ScanStore interface {
	// UpsertScan reports whether the row was inserted or changed.
	UpsertScan(ctx context.Context, scan domain.Scan) (changed bool, err error)
	// UpsertRecords returns the number of rows inserted or changed.
	UpsertRecords(ctx context.Context, records []domain.ScanRecord) (int, error)
	ScansFor(ctx context.Context, key domain.ProviderKey) ([]domain.Scan, error)
	RecordsFor(ctx context.Context, key domain.ProviderKey) ([]domain.ScanRecord, error)
	LatestScan(ctx context.Context, key domain.ProviderKey) (scan domain.Scan, found bool, err error)
	CountAllScans(ctx context.Context) (int, error)
	MarkSynced(ctx context.Context, key domain.ProviderKey, at time.Time, syncErr error) error
}

// SubscriberRepository reads subscribers and writes their provider
// identifiers. Identifiers are written once and never reassigned.
type SubscriberRepository interface {
	Subscriber(ctx context.Context, id int64) (domain.Subscriber, error)
	SubscriberByProviderKey(ctx context.Context, key domain.ProviderKey) (domain.Subscriber, error)
	AssignBrokerCustomerID(ctx context.Context, subscriberID int64, customerID string) (assigned string, err error)
	SubscriberIDs(ctx context.Context) ([]int64, error)
}

// BreachSource is the read-only breach database.
type BreachSource interface {
	BreachesFor(ctx context.Context, subscriberID int64) ([]domain.BreachRecord, error)
}

// ResolutionStore records user-marked resolutions of broker listings.
type ResolutionStore interface {
	RecordBelongsTo(ctx context.Context, subscriberID int64, provider domain.Provider, recordID string) (bool, error)
	MarkRecordResolved(ctx context.Context, provider domain.Provider, recordID string, at time.Time) error
}

// BrokerStore holds provider broker catalogs.
type BrokerStore interface {
	UpsertBrokers(ctx context.Context, brokers []domain.Broker) (int, error)
	Broker(ctx context.Context, provider domain.Provider, brokerID string) (domain.Broker, error)
}
