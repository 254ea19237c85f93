package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"exposurewatch/internal/domain"
)

// snapshot is everything read from the store for one request.
type snapshot struct {
	breaches   []domain.BreachRecord
	records    []domain.ScanRecord
	latest     *domain.Scan
	totalScans int
}

// load reads breaches, records and scan state concurrently. The global scan
// count only tunes the free-scan offer, so failing to read it is logged and
// reported as unknown.
func (s *Service) load(ctx context.Context, sub domain.Subscriber) (snapshot, error) {
	var (
		snap = snapshot{totalScans: -1}
		mu   sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		breaches, err := s.breaches.BreachesFor(gctx, sub.ID)
		if err != nil {
			return fmt.Errorf("breaches: %w", err)
		}
		snap.breaches = breaches
		return nil
	})
	for _, key := range sub.ProviderKeys() {
		g.Go(func() error {
			records, err := s.scans.RecordsFor(gctx, key)
			if err != nil {
				return fmt.Errorf("records for %s: %w", key, err)
			}
			records = s.withBrokerDetails(gctx, records)
			mu.Lock()
			snap.records = append(snap.records, records...)
			mu.Unlock()
			return nil
		})
		g.Go(func() error {
			scan, found, err := s.scans.LatestScan(gctx, key)
			if err != nil {
				return fmt.Errorf("latest scan for %s: %w", key, err)
			}
			if !found {
				return nil
			}
			mu.Lock()
			if snap.latest == nil || scan.CreatedAt.After(snap.latest.CreatedAt) {
				snap.latest = &scan
			}
			mu.Unlock()
			return nil
		})
	}
	g.Go(func() error {
		n, err := s.scans.CountAllScans(gctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.log.Warn().Err(err).Msg("count scans failed, treating as unknown")
			}
			return nil
		}
		mu.Lock()
		snap.totalScans = n
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

// withBrokerDetails fills in broker name and URL from the catalog where the
// provider left them out.
func (s *Service) withBrokerDetails(ctx context.Context, records []domain.ScanRecord) []domain.ScanRecord {
	if s.brokers == nil {
		return records
	}
	for i, r := range records {
		if r.BrokerName != "" && r.BrokerURL != "" {
			continue
		}
		b, ok := s.broker(ctx, r.Provider, r.BrokerID)
		if !ok {
			continue
		}
		if records[i].BrokerName == "" {
			records[i].BrokerName = b.Name
		}
		if records[i].BrokerURL == "" {
			records[i].BrokerURL = b.URL
		}
	}
	return records
}

func (s *Service) broker(ctx context.Context, provider domain.Provider, id string) (domain.Broker, bool) {
	key := brokerKey{provider: provider, id: id}
	if b, ok := s.brokerCache.Get(key); ok {
		return b, true
	}
	b, err := s.brokers.Broker(ctx, provider, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Warn().Err(err).Str("broker_id", id).Msg("broker lookup failed")
		}
		return domain.Broker{}, false
	}
	s.brokerCache.Add(key, b)
	return b, true
}
