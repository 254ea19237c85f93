package exposure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exposurewatch/internal/domain"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func breachAt(id int64, at time.Time, resolved bool, classes ...domain.DataClass) domain.BreachRecord {
	return domain.BreachRecord{ID: id, Name: "breach", AddedDate: at, Resolved: resolved, DataClasses: classes}
}

func recordAt(id string, at time.Time, status domain.RemovalStatus) domain.ScanRecord {
	return domain.ScanRecord{
		Provider:  domain.ProviderBrokerScan,
		RemoteID:  id,
		ScanID:    "scan-1",
		BrokerID:  "broker-1",
		Status:    status,
		CreatedAt: at,
	}
}

func TestMerge_OrdersByDescendingTimestamp(t *testing.T) {
	t.Parallel()

	breaches := []domain.BreachRecord{
		breachAt(1, base.Add(-48*time.Hour), false),
		breachAt(2, base.Add(time.Hour), false),
	}
	records := []domain.ScanRecord{
		recordAt("r1", base, domain.RemovalNew),
		recordAt("r2", base.Add(-time.Hour), domain.RemovalNew),
		// Same instant as breach 2 in a different zone.
		recordAt("r3", base.Add(time.Hour).In(time.FixedZone("PDT", -7*3600)), domain.RemovalNew),
	}

	merged := Merge(breaches, records)
	require.Len(t, merged, 5)

	for i := 1; i < len(merged); i++ {
		assert.False(t, merged[i].Timestamp().After(merged[i-1].Timestamp()),
			"item %d (%s) is newer than item %d (%s)", i, merged[i].Key(), i-1, merged[i-1].Key())
	}

	keys := make([]string, len(merged))
	for i, e := range merged {
		keys[i] = e.Key()
	}
	assert.Equal(t, []string{
		"breach-2",
		"scan-brokerscan-r3",
		"scan-brokerscan-r1",
		"scan-brokerscan-r2",
		"breach-1",
	}, keys)
}

func TestMerge_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Merge(nil, nil))
}

func TestSequence_IsRestartable(t *testing.T) {
	t.Parallel()

	breaches := []domain.BreachRecord{breachAt(1, base, false)}
	records := []domain.ScanRecord{recordAt("r1", base.Add(time.Minute), domain.RemovalNew)}
	seq := Sequence(breaches, records)

	collect := func() []string {
		var out []string
		for e := range seq {
			out = append(out, e.Key())
		}
		return out
	}

	first := collect()
	assert.Equal(t, []string{"scan-brokerscan-r1", "breach-1"}, first)
	assert.Equal(t, first, collect())

	for e := range seq {
		assert.Equal(t, KindScanRecord, e.Kind())
		break
	}
}

func TestExposure_Accessors(t *testing.T) {
	t.Parallel()

	b := FromBreach(breachAt(7, base, true))
	_, ok := b.ScanRecord()
	assert.False(t, ok)
	got, ok := b.Breach()
	require.True(t, ok)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "breach", b.Kind().String())

	r := FromScanRecord(recordAt("x", base, domain.RemovalNew))
	_, ok = r.Breach()
	assert.False(t, ok)
	rec, ok := r.ScanRecord()
	require.True(t, ok)
	assert.Equal(t, "x", rec.RemoteID)
	assert.Equal(t, "scan_record", r.Kind().String())
}
