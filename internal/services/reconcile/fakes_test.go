package reconcile

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"time"

	"exposurewatch/internal/domain"
)

type fakeSource struct {
	provider domain.Provider

	mu        sync.Mutex
	scans     []domain.Scan
	records   []domain.ScanRecord
	scanErr   error
	recordErr error
	getErr    error
	created   []domain.ScanProfile
	brokers   []domain.Broker

	recordCalls [][]string
}

func (f *fakeSource) Provider() domain.Provider { return f.provider }

func (f *fakeSource) ListScans(_ context.Context, key domain.ProviderKey) ([]domain.Scan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	var out []domain.Scan
	for _, s := range f.scans {
		if s.ProviderKey == key.Value {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSource) GetScan(_ context.Context, _ domain.ProviderKey, scanID string) (domain.Scan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.Scan{}, f.getErr
	}
	for _, s := range f.scans {
		if s.RemoteID == scanID {
			return s, nil
		}
	}
	return domain.Scan{}, errors.New("404")
}

func (f *fakeSource) ListRecords(_ context.Context, key domain.ProviderKey, scanIDs []string) ([]domain.ScanRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordCalls = append(f.recordCalls, scanIDs)
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	var out []domain.ScanRecord
	for _, r := range f.records {
		if r.ProviderKey == key.Value {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) CreateScan(_ context.Context, key domain.ProviderKey, profile domain.ScanProfile) (domain.Scan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, profile)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := domain.Scan{
		Provider: f.provider, ProviderKey: key.Value, RemoteID: "created-" + key.Value,
		Status: domain.ScanCreated, Reason: domain.ReasonManual, CreatedAt: now, ModifiedAt: now,
	}
	f.scans = append(f.scans, s)
	return s, nil
}

func (f *fakeSource) ListBrokers(context.Context) ([]domain.Broker, error) {
	return f.brokers, nil
}

type syncMark struct {
	at  time.Time
	err string
}

// memStore mirrors the postgres conflict-merge semantics in memory.
type memStore struct {
	mu        sync.Mutex
	scans     map[string]domain.Scan
	records   map[string]domain.ScanRecord
	synced    map[domain.ProviderKey]syncMark
	brokers   map[string]domain.Broker
	failWrite error
}

func newMemStore() *memStore {
	return &memStore{
		scans:   map[string]domain.Scan{},
		records: map[string]domain.ScanRecord{},
		synced:  map[domain.ProviderKey]syncMark{},
		brokers: map[string]domain.Broker{},
	}
}

func (m *memStore) UpsertScan(_ context.Context, s domain.Scan) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return false, m.failWrite
	}
	id := string(s.Provider) + "/" + s.RemoteID
	old, ok := m.scans[id]
	if !ok {
		m.scans[id] = s
		return true, nil
	}
	merged := old
	merged.Status, merged.BrokerCount, merged.ModifiedAt = s.Status, s.BrokerCount, s.ModifiedAt
	if reflect.DeepEqual(merged, old) {
		return false, nil
	}
	m.scans[id] = merged
	return true, nil
}

func (m *memStore) UpsertRecords(_ context.Context, records []domain.ScanRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return 0, m.failWrite
	}
	n := 0
	for _, r := range records {
		id := string(r.Provider) + "/" + r.RemoteID
		if old, ok := m.records[id]; ok && reflect.DeepEqual(old, r) {
			continue
		}
		m.records[id] = r
		n++
	}
	return n, nil
}

func (m *memStore) ScansFor(_ context.Context, key domain.ProviderKey) ([]domain.Scan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Scan
	for _, s := range m.scans {
		if s.Provider == key.Provider && s.ProviderKey == key.Value {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) RecordsFor(_ context.Context, key domain.ProviderKey) ([]domain.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ScanRecord
	for _, r := range m.records {
		if r.Provider == key.Provider && r.ProviderKey == key.Value {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RemoteID < out[j].RemoteID })
	return out, nil
}

func (m *memStore) LatestScan(ctx context.Context, key domain.ProviderKey) (domain.Scan, bool, error) {
	scans, _ := m.ScansFor(ctx, key)
	if len(scans) == 0 {
		return domain.Scan{}, false, nil
	}
	return scans[0], true, nil
}

func (m *memStore) CountAllScans(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scans), nil
}

func (m *memStore) MarkSynced(_ context.Context, key domain.ProviderKey, at time.Time, syncErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mark := syncMark{at: at}
	if syncErr != nil {
		mark.err = syncErr.Error()
	}
	m.synced[key] = mark
	return nil
}

func (m *memStore) UpsertBrokers(_ context.Context, brokers []domain.Broker) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range brokers {
		m.brokers[b.BrokerID] = b
	}
	return len(brokers), nil
}

func (m *memStore) Broker(_ context.Context, _ domain.Provider, id string) (domain.Broker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.brokers[id]
	if !ok {
		return b, domain.ErrNotFound
	}
	return b, nil
}

// snapshot is the store content without sync bookkeeping.
func (m *memStore) snapshot() (map[string]domain.Scan, map[string]domain.ScanRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	scans := make(map[string]domain.Scan, len(m.scans))
	for k, v := range m.scans {
		scans[k] = v
	}
	records := make(map[string]domain.ScanRecord, len(m.records))
	for k, v := range m.records {
		records[k] = v
	}
	return scans, records
}

type fakeSubscribers struct {
	mu   sync.Mutex
	subs map[int64]domain.Subscriber
}

func newFakeSubscribers(subs ...domain.Subscriber) *fakeSubscribers {
	f := &fakeSubscribers{subs: map[int64]domain.Subscriber{}}
	for _, s := range subs {
		f.subs[s.ID] = s
	}
	return f
}

func (f *fakeSubscribers) Subscriber(_ context.Context, id int64) (domain.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return s, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeSubscribers) SubscriberByProviderKey(_ context.Context, key domain.ProviderKey) (domain.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		for _, k := range s.ProviderKeys() {
			if k == key {
				return s, nil
			}
		}
	}
	return domain.Subscriber{}, domain.ErrNotFound
}

func (f *fakeSubscribers) AssignBrokerCustomerID(_ context.Context, id int64, customerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	if s.BrokerCustomerID == nil {
		s.BrokerCustomerID = &customerID
		f.subs[id] = s
	}
	return *s.BrokerCustomerID, nil
}

func (f *fakeSubscribers) SubscriberIDs(context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id, s := range f.subs {
		if len(s.ProviderKeys()) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
