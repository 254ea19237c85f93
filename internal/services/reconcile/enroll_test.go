package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exposurewatch/internal/domain"
)

func validProfile() domain.ScanProfile {
	return domain.ScanProfile{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		City:        "Springfield",
		State:       "IL",
		DateOfBirth: time.Date(1990, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestValidateProfile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*domain.ScanProfile)
		ok     bool
	}{
		{name: "valid", mutate: func(*domain.ScanProfile) {}, ok: true},
		{name: "missing first name", mutate: func(p *domain.ScanProfile) { p.FirstName = "" }},
		{name: "missing city", mutate: func(p *domain.ScanProfile) { p.City = "" }},
		{name: "state too long", mutate: func(p *domain.ScanProfile) { p.State = "ILL" }},
		{name: "missing birth date", mutate: func(p *domain.ScanProfile) { p.DateOfBirth = time.Time{} }},
		{name: "twelve years old", mutate: func(p *domain.ScanProfile) { p.DateOfBirth = t0.AddDate(-12, 0, 0) }},
		{name: "thirteenth birthday", mutate: func(p *domain.ScanProfile) { p.DateOfBirth = t0.AddDate(-13, 0, 0) }, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := validProfile()
			tt.mutate(&p)
			err := ValidateProfile(p, fixedNow)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidProfile)
			}
		})
	}
}

func TestEnroll(t *testing.T) {
	t.Parallel()

	subs := newFakeSubscribers(domain.Subscriber{ID: 1, Tier: domain.TierFree})
	src := &fakeSource{provider: domain.ProviderBrokerScan}
	store := newMemStore()
	svc := newTestService(t, store, subs, src)
	ctx := context.Background()

	_, err := svc.Enroll(ctx, 1, "CA", validProfile())
	assert.ErrorIs(t, err, domain.ErrNotEligible)

	scan, err := svc.Enroll(ctx, 1, "US", validProfile())
	require.NoError(t, err)
	assert.Equal(t, "created-cust-new", scan.RemoteID)
	require.Len(t, src.created, 1)

	sub, err := subs.Subscriber(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, sub.BrokerCustomerID)
	assert.Equal(t, "cust-new", *sub.BrokerCustomerID)

	_, found, err := store.LatestScan(ctx, domain.BrokerCustomerKey("cust-new"))
	require.NoError(t, err)
	assert.True(t, found, "new scan is mirrored by the follow-up sync")

	_, err = svc.Enroll(ctx, 1, "us", validProfile())
	assert.ErrorIs(t, err, domain.ErrNotEligible, "only the first scan is free")
	assert.Len(t, src.created, 1)
}

func TestEnrollKeepsExistingCustomerID(t *testing.T) {
	t.Parallel()

	cust := "existing"
	subs := newFakeSubscribers(domain.Subscriber{ID: 1, BrokerCustomerID: &cust})
	src := &fakeSource{provider: domain.ProviderBrokerScan}
	svc := newTestService(t, newMemStore(), subs, src)

	scan, err := svc.Enroll(context.Background(), 1, "us", validProfile())
	require.NoError(t, err)
	assert.Equal(t, "existing", scan.ProviderKey)
}

func TestRegistrableDomain(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"https://www.spokeo.com/search":   "spokeo.com",
		"people.example.co.uk":            "example.co.uk",
		"HTTP://Sub.Domain.WhitePages.com": "whitepages.com",
		"":                                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, RegistrableDomain(in), in)
	}
}

func TestSyncBrokers(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		provider: domain.ProviderBrokerScan,
		brokers: []domain.Broker{
			{Provider: domain.ProviderBrokerScan, BrokerID: "b-1", Name: "Spokeo", URL: "https://www.spokeo.com"},
		},
	}
	store := newMemStore()
	svc := newTestService(t, store, newFakeSubscribers(), src)

	n, err := svc.SyncBrokers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	b, err := store.Broker(context.Background(), domain.ProviderBrokerScan, "b-1")
	require.NoError(t, err)
	assert.Equal(t, "spokeo.com", b.RegistrableDomain)
}
