// Package reconcile mirrors provider scan state into the local store. It is
// the only writer of scan and scan record rows.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"exposurewatch/internal/domain"
	"exposurewatch/internal/metrics"
	"exposurewatch/internal/ports"
)

// Stage names the step a sync cycle was in when it failed.
type Stage string

const (
	StageListScans   Stage = "list_scans"
	StageUpsertScans Stage = "upsert_scans"
	StageListRecords Stage = "list_records"
	StageUpsertRecs  Stage = "upsert_records"
	StageGetScan     Stage = "get_scan"
)

// StoreError is a persistence failure. Sync returns these to the caller;
// provider failures are logged and swallowed instead.
type StoreError struct {
	Key   domain.ProviderKey
	Stage Stage
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("sync %s: %s: %v", e.Key, e.Stage, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Result describes one sync cycle for one provider key.
type Result struct {
	Key            domain.ProviderKey
	Skipped        bool
	ScansSeen      int
	ScansChanged   int
	RecordsSeen    int
	RecordsChanged int
	// SourceErr is set when the provider failed; the local view is left
	// as it was and the error is not returned.
	SourceErr   error
	SourceStage Stage
}

// Stale reports whether the cycle ended before the provider's view was
// fully mirrored.
func (r Result) Stale() bool { return r.SourceErr != nil }

type Service struct {
	sources     map[domain.Provider]ports.ExposureSource
	creator     ports.ScanCreator
	catalog     ports.BrokerCatalog
	scans       ports.ScanStore
	subscribers ports.SubscriberRepository
	brokers     ports.BrokerStore
	metrics     metrics.SyncMetrics
	log         zerolog.Logger
	now         func() time.Time
	newID       func() string
}

type Options struct {
	// Sources are the configured provider adapters. A provider without a
	// source is skipped.
	Sources     []ports.ExposureSource
	Scans       ports.ScanStore
	Subscribers ports.SubscriberRepository
	Brokers     ports.BrokerStore
	Metrics     metrics.SyncMetrics
	Logger      zerolog.Logger
	// Now and NewCustomerID default to time.Now and uuid.NewString.
	Now           func() time.Time
	NewCustomerID func() string
}

func New(opts Options) *Service {
	s := &Service{
		sources:     make(map[domain.Provider]ports.ExposureSource, len(opts.Sources)),
		scans:       opts.Scans,
		subscribers: opts.Subscribers,
		brokers:     opts.Brokers,
		metrics:     opts.Metrics,
		log:         opts.Logger.With().Str("component", "reconcile").Logger(),
		now:         opts.Now,
		newID:       opts.NewCustomerID,
	}
	for _, src := range opts.Sources {
		s.sources[src.Provider()] = src
		if c, ok := src.(ports.ScanCreator); ok && s.creator == nil {
			s.creator = c
		}
		if c, ok := src.(ports.BrokerCatalog); ok && s.catalog == nil {
			s.catalog = c
		}
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = newCustomerID
	}
	return s
}

// Sync runs one reconciliation cycle for key: the scan list is merged
// first, then the provider's full record set. Rows the provider no longer
// reports are left alone. A zero key is a no-op.
func (s *Service) Sync(ctx context.Context, key domain.ProviderKey) (Result, error) {
	res := Result{Key: key}
	if key.IsZero() {
		res.Skipped = true
		return res, nil
	}
	src, ok := s.sources[key.Provider]
	if !ok {
		if !key.Provider.Valid() {
			return res, fmt.Errorf("sync %s: %w", key, domain.ErrUnknownProvider)
		}
		s.log.Debug().Str("provider", string(key.Provider)).Msg("provider not configured, skipping sync")
		res.Skipped = true
		s.metrics.ObserveSync(string(key.Provider), metrics.OutcomeSkipped, 0)
		return res, nil
	}

	start := s.now()
	log := s.log.With().Str("provider", string(key.Provider)).Str("provider_key", key.Value).Logger()
	err := s.sync(ctx, src, key, &res, log)
	elapsed := s.now().Sub(start)

	var outcome string
	switch {
	case err != nil:
		outcome = metrics.OutcomeStoreError
	case res.SourceErr != nil:
		outcome = metrics.OutcomeSourceError
	default:
		outcome = metrics.OutcomeOK
	}
	s.metrics.ObserveSync(string(key.Provider), outcome, elapsed)
	s.metrics.AddScansUpserted(string(key.Provider), res.ScansChanged)
	s.metrics.AddRecordsUpserted(string(key.Provider), res.RecordsChanged)
	if err != nil {
		return res, err
	}

	if err := s.scans.MarkSynced(ctx, key, s.now(), res.SourceErr); err != nil {
		return res, &StoreError{Key: key, Stage: "mark_synced", Err: err}
	}
	return res, nil
}

func (s *Service) sync(ctx context.Context, src ports.ExposureSource, key domain.ProviderKey, res *Result, log zerolog.Logger) error {
	scans, err := src.ListScans(ctx, key)
	if err != nil {
		s.sourceFailed(log, res, StageListScans, err)
		return nil
	}
	res.ScansSeen = len(scans)

	scanIDs := make([]string, 0, len(scans))
	for _, scan := range scans {
		changed, err := s.scans.UpsertScan(ctx, scan)
		if err != nil {
			return &StoreError{Key: key, Stage: StageUpsertScans, Err: err}
		}
		scanIDs = append(scanIDs, scan.RemoteID)
		if changed {
			res.ScansChanged++
			log.Info().
				Str("event", "scan_created_or_updated").
				Str("scan_id", scan.RemoteID).
				Str("status", string(scan.Status)).
				Str("reason", string(scan.Reason)).
				Msg("scan mirrored")
		}
	}
	if len(scans) == 0 {
		log.Debug().Msg("provider reports no scans")
		return nil
	}

	records, err := src.ListRecords(ctx, key, scanIDs)
	if err != nil {
		s.sourceFailed(log, res, StageListRecords, err)
		return nil
	}
	res.RecordsSeen = len(records)
	n, err := s.scans.UpsertRecords(ctx, records)
	if err != nil {
		return &StoreError{Key: key, Stage: StageUpsertRecs, Err: err}
	}
	res.RecordsChanged = n
	log.Info().
		Str("event", "scan_records_synced").
		Int("records", len(records)).
		Int("changed", n).
		Msg("scan records mirrored")
	return nil
}

func (s *Service) sourceFailed(log zerolog.Logger, res *Result, stage Stage, err error) {
	res.SourceErr = err
	res.SourceStage = stage
	log.Warn().Err(err).Str("stage", string(stage)).Msg("provider sync failed, keeping local view")
}

// SyncSubscriber syncs every provider identifier the subscriber holds. A
// subscriber without identifiers yields no results.
func (s *Service) SyncSubscriber(ctx context.Context, subscriberID int64) ([]Result, error) {
	sub, err := s.subscribers.Subscriber(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	keys := sub.ProviderKeys()
	results := make([]Result, 0, len(keys))
	for _, key := range keys {
		res, err := s.Sync(ctx, key)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// AllStats summarizes a SyncAll run.
type AllStats struct {
	Subscribers int
	Stale       int
	Failed      int
}

// SyncAll syncs every subscriber holding a provider identifier with at most
// concurrency cycles in flight. Persistence failures are counted and the
// first one is returned after all subscribers were attempted.
func (s *Service) SyncAll(ctx context.Context, concurrency int) (AllStats, error) {
	ids, err := s.subscribers.SubscriberIDs(ctx)
	if err != nil {
		return AllStats{}, err
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	type outcome struct {
		stale bool
		err   error
	}
	outcomes := make([]outcome, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, id := range ids {
		g.Go(func() error {
			results, err := s.SyncSubscriber(gctx, id)
			for _, r := range results {
				if r.Stale() {
					outcomes[i].stale = true
				}
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error().Err(err).Int64("subscriber_id", id).Msg("subscriber sync failed")
			}
			outcomes[i].err = err
			return nil
		})
	}
	_ = g.Wait()

	stats := AllStats{Subscribers: len(ids)}
	var first error
	for _, o := range outcomes {
		if o.stale {
			stats.Stale++
		}
		if o.err != nil {
			stats.Failed++
			if first == nil {
				first = o.err
			}
		}
	}
	return stats, first
}
