package reconcile

import (
	"context"

	"exposurewatch/internal/domain"
)

// Progress is the state of a subscriber's most recent scan.
type Progress struct {
	Key    domain.ProviderKey
	ScanID string
	Status domain.ScanStatus
	// Refreshed is false when the provider could not be reached and
	// Status is the last mirrored value.
	Refreshed bool
}

// RefreshLatest re-reads the most recent locally known scan for the
// subscriber from its provider. Once the provider reports results the
// scan's records are mirrored as well. Returns domain.ErrNotFound when the
// subscriber has no scan yet.
func (s *Service) RefreshLatest(ctx context.Context, subscriberID int64) (Progress, error) {
	sub, err := s.subscribers.Subscriber(ctx, subscriberID)
	if err != nil {
		return Progress{}, err
	}

	var (
		latest domain.Scan
		key    domain.ProviderKey
		found  bool
	)
	for _, k := range sub.ProviderKeys() {
		scan, ok, err := s.scans.LatestScan(ctx, k)
		if err != nil {
			return Progress{}, &StoreError{Key: k, Stage: "latest_scan", Err: err}
		}
		if ok && (!found || scan.CreatedAt.After(latest.CreatedAt)) {
			latest, key, found = scan, k, true
		}
	}
	if !found {
		return Progress{}, domain.ErrNotFound
	}

	p := Progress{Key: key, ScanID: latest.RemoteID, Status: latest.Status}
	src, ok := s.sources[key.Provider]
	if !ok {
		return p, nil
	}
	log := s.log.With().Str("provider", string(key.Provider)).Str("provider_key", key.Value).Str("scan_id", latest.RemoteID).Logger()

	scan, err := src.GetScan(ctx, key, latest.RemoteID)
	if err != nil {
		log.Warn().Err(err).Str("stage", string(StageGetScan)).Msg("scan refresh failed, keeping local status")
		return p, nil
	}
	changed, err := s.scans.UpsertScan(ctx, scan)
	if err != nil {
		return p, &StoreError{Key: key, Stage: StageUpsertScans, Err: err}
	}
	if changed {
		s.metrics.AddScansUpserted(string(key.Provider), 1)
		log.Info().Str("event", "scan_created_or_updated").Str("status", string(scan.Status)).Msg("scan mirrored")
	}
	p.Status = scan.Status

	if scan.Status.HasResults() {
		records, err := src.ListRecords(ctx, key, []string{scan.RemoteID})
		if err != nil {
			log.Warn().Err(err).Str("stage", string(StageListRecords)).Msg("record refresh failed, keeping local records")
			return p, nil
		}
		n, err := s.scans.UpsertRecords(ctx, records)
		if err != nil {
			return p, &StoreError{Key: key, Stage: StageUpsertRecs, Err: err}
		}
		s.metrics.AddRecordsUpserted(string(key.Provider), n)
		log.Info().Str("event", "scan_records_synced").Int("records", len(records)).Int("changed", n).Msg("scan records mirrored")
	}
	p.Refreshed = true
	return p, nil
}
