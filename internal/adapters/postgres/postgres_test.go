package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"exposurewatch/internal/domain"
	"exposurewatch/internal/tracing"
)

func setupTestDB(t *testing.T) (context.Context, *DB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:17-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
			return fmt.Sprintf("postgresql://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())
		}),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := New(pool, tracing.NoOp())
	version, err := db.Migrate(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), version)
	return ctx, db
}

func newSubscriber(t *testing.T, ctx context.Context, db *DB, email string, profileID *int64, customerID *string) int64 {
	t.Helper()
	id, err := db.CreateSubscriber(ctx, domain.Subscriber{
		Email:            email,
		Tier:             domain.TierPremium,
		LegacyProfileID:  profileID,
		BrokerCustomerID: customerID,
	})
	require.NoError(t, err)
	return id
}

func ptr[T any](v T) *T { return &v }

func testRecord(key domain.ProviderKey, id string, status domain.RemovalStatus, modified time.Time) domain.ScanRecord {
	return domain.ScanRecord{
		Provider:       key.Provider,
		ProviderKey:    key.Value,
		RemoteID:       id,
		ScanID:         "scan-1",
		BrokerID:       "b-1",
		BrokerName:     "PeopleFinder",
		Score:          80,
		Status:         status,
		CreatedAt:      modified.Add(-time.Hour),
		ModifiedAt:     modified,
		FullName:       "Ada Lovelace",
		Addresses:      []string{"1 Main St, Springfield, IL 62701"},
		EmailAddresses: []string{"ada@example.com"},
	}
}

func TestPostgres(t *testing.T) {
	ctx, db := setupTestDB(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("scan upsert reports changes", func(t *testing.T) {
		scan := domain.Scan{
			Provider:    domain.ProviderBrokerScan,
			ProviderKey: "cust-upsert",
			RemoteID:    "scan-upsert",
			Status:      domain.ScanActive,
			Reason:      domain.ReasonManual,
			BrokerCount: 10,
			CreatedAt:   now,
			ModifiedAt:  now,
		}
		changed, err := db.UpsertScan(ctx, scan)
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = db.UpsertScan(ctx, scan)
		require.NoError(t, err)
		assert.False(t, changed, "identical upsert must not count as a change")

		scan.Status = domain.ScanDone
		scan.ModifiedAt = now.Add(time.Minute)
		scan.Reason = domain.ReasonMonitoring
		changed, err = db.UpsertScan(ctx, scan)
		require.NoError(t, err)
		assert.True(t, changed)

		key := domain.BrokerCustomerKey("cust-upsert")
		scans, err := db.ScansFor(ctx, key)
		require.NoError(t, err)
		require.Len(t, scans, 1)
		assert.Equal(t, domain.ScanDone, scans[0].Status)
		assert.Equal(t, domain.ReasonManual, scans[0].Reason, "reason is fixed at insert")

		latest, found, err := db.LatestScan(ctx, key)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "scan-upsert", latest.RemoteID)

		_, found, err = db.LatestScan(ctx, domain.BrokerCustomerKey("nobody"))
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("record upsert is idempotent and merges", func(t *testing.T) {
		key := domain.BrokerCustomerKey("cust-records")
		records := []domain.ScanRecord{
			testRecord(key, "r-1", domain.RemovalNew, now),
			testRecord(key, "r-2", domain.RemovalRemoved, now),
		}
		n, err := db.UpsertRecords(ctx, records)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = db.UpsertRecords(ctx, records)
		require.NoError(t, err)
		assert.Zero(t, n)

		records[0].Status = domain.RemovalOptOutInProgress
		records[0].SubmittedAt = ptr(now)
		n, err = db.UpsertRecords(ctx, records)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := db.RecordsFor(ctx, key)
		require.NoError(t, err)
		require.Len(t, got, 2)
		byID := map[string]domain.ScanRecord{}
		for _, r := range got {
			byID[r.RemoteID] = r
		}
		assert.Equal(t, domain.RemovalOptOutInProgress, byID["r-1"].Status)
		require.NotNil(t, byID["r-1"].SubmittedAt)
		assert.True(t, now.Equal(*byID["r-1"].SubmittedAt))
		assert.Equal(t, []string{"ada@example.com"}, byID["r-1"].EmailAddresses)
		assert.Empty(t, byID["r-1"].Relatives)
	})

	t.Run("concurrent record upserts do not duplicate", func(t *testing.T) {
		key := domain.BrokerCustomerKey("cust-race")
		records := []domain.ScanRecord{testRecord(key, "race-1", domain.RemovalNew, now)}
		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = db.UpsertRecords(ctx, records)
			}(i)
		}
		wg.Wait()
		require.NoError(t, errors.Join(errs...))

		got, err := db.RecordsFor(ctx, key)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("manual resolution is scoped to the owner", func(t *testing.T) {
		owner := newSubscriber(t, ctx, db, "owner@example.com", nil, ptr("cust-owner"))
		other := newSubscriber(t, ctx, db, "other@example.com", nil, ptr("cust-other"))
		key := domain.BrokerCustomerKey("cust-owner")
		_, err := db.UpsertRecords(ctx, []domain.ScanRecord{testRecord(key, "owned-1", domain.RemovalNew, now)})
		require.NoError(t, err)

		ok, err := db.RecordBelongsTo(ctx, owner, domain.ProviderBrokerScan, "owned-1")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = db.RecordBelongsTo(ctx, other, domain.ProviderBrokerScan, "owned-1")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, db.MarkRecordResolved(ctx, domain.ProviderBrokerScan, "owned-1", now))
		require.NoError(t, db.MarkRecordResolved(ctx, domain.ProviderBrokerScan, "owned-1", now.Add(time.Hour)))

		got, err := db.RecordsFor(ctx, key)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, got[0].ManuallyResolved)
	})

	t.Run("customer id is assigned once", func(t *testing.T) {
		id := newSubscriber(t, ctx, db, "assign@example.com", ptr(int64(4242)), nil)

		assigned, err := db.AssignBrokerCustomerID(ctx, id, "first")
		require.NoError(t, err)
		assert.Equal(t, "first", assigned)

		assigned, err = db.AssignBrokerCustomerID(ctx, id, "second")
		require.NoError(t, err)
		assert.Equal(t, "first", assigned)

		sub, err := db.SubscriberByProviderKey(ctx, domain.BrokerCustomerKey("first"))
		require.NoError(t, err)
		assert.Equal(t, id, sub.ID)
		sub, err = db.SubscriberByProviderKey(ctx, domain.LegacyProfileKey(4242))
		require.NoError(t, err)
		assert.Equal(t, id, sub.ID)

		_, err = db.AssignBrokerCustomerID(ctx, 999999, "x")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = db.Subscriber(ctx, 999999)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("breaches are read with their data classes", func(t *testing.T) {
		id := newSubscriber(t, ctx, db, "breached@example.com", nil, nil)
		require.NoError(t, db.AddBreach(ctx, id, domain.BreachRecord{
			ID:          77,
			Name:        "ExampleCorp",
			Domain:      "example.com",
			AddedDate:   now,
			DataClasses: []domain.DataClass{domain.DataPasswords, domain.DataEmailAddresses},
		}))
		breaches, err := db.BreachesFor(ctx, id)
		require.NoError(t, err)
		require.Len(t, breaches, 1)
		assert.False(t, breaches[0].Resolved)
		assert.Equal(t, []domain.DataClass{domain.DataPasswords, domain.DataEmailAddresses}, breaches[0].DataClasses)
	})

	t.Run("broker catalog upsert", func(t *testing.T) {
		brokers := []domain.Broker{{
			Provider: domain.ProviderBrokerScan, BrokerID: "b-1", Name: "PeopleFinder",
			URL: "https://www.peoplefinder.example.com", RegistrableDomain: "peoplefinder.example.com", Enabled: true,
		}}
		n, err := db.UpsertBrokers(ctx, brokers)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		n, err = db.UpsertBrokers(ctx, brokers)
		require.NoError(t, err)
		assert.Zero(t, n)

		b, err := db.Broker(ctx, domain.ProviderBrokerScan, "b-1")
		require.NoError(t, err)
		assert.Equal(t, "PeopleFinder", b.Name)
		_, err = db.Broker(ctx, domain.ProviderBrokerScan, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("job queue", func(t *testing.T) {
		key := domain.LegacyProfileKey(5150)
		first, err := db.Enqueue(ctx, key)
		require.NoError(t, err)
		again, err := db.Enqueue(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, first, again, "one queued job per key")

		job, found, err := db.ClaimNext(ctx)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, first, job.ID)
		assert.Equal(t, key, job.Key)

		_, found, err = db.ClaimNext(ctx)
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, db.MarkFailed(ctx, job.ID, "boom"))
		queued, err := db.QueuedJobs(ctx)
		require.NoError(t, err)
		assert.Zero(t, queued)
	})

	t.Run("sync state", func(t *testing.T) {
		key := domain.LegacyProfileKey(1)
		require.NoError(t, db.MarkSynced(ctx, key, now, errors.New("upstream 502")))
		at, lastErr, err := db.SyncState(ctx, key)
		require.NoError(t, err)
		assert.True(t, now.Equal(at))
		assert.Equal(t, "upstream 502", lastErr)

		require.NoError(t, db.MarkSynced(ctx, key, now.Add(time.Hour), nil))
		_, lastErr, err = db.SyncState(ctx, key)
		require.NoError(t, err)
		assert.Empty(t, lastErr)
	})
}
