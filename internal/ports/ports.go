package ports

import (
	"context"

	"exposurewatch/internal/domain"
)

// ExposureSource is a provider client normalized to the shared scan model.
// Each provider gets one adapter; callers never see raw provider payloads.
type ExposureSource interface {
	Provider() domain.Provider
	ListScans(ctx context.Context, key domain.ProviderKey) ([]domain.Scan, error)
	GetScan(ctx context.Context, key domain.ProviderKey, scanID string) (domain.Scan, error)
	// ListRecords returns the full current record set for the key. scanIDs
	// are the scans already known for the key; adapters that can filter by
	// scan use them, others ignore them.
	ListRecords(ctx context.Context, key domain.ProviderKey, scanIDs []string) ([]domain.ScanRecord, error)
}

// ScanCreator is implemented by sources that can start a scan remotely.
type ScanCreator interface {
	CreateScan(ctx context.Context, key domain.ProviderKey, profile domain.ScanProfile) (domain.Scan, error)
}

// BrokerCatalog is implemented by sources that publish their broker list.
type BrokerCatalog interface {
	ListBrokers(ctx context.Context) ([]domain.Broker, error)
}
