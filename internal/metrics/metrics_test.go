package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSync("brokerscan", OutcomeOK, 250*time.Millisecond)
	m.ObserveSync("brokerscan", OutcomeSourceError, time.Second)
	m.AddRecordsUpserted("brokerscan", 3)
	m.AddScansUpserted("legacyscan", 2)
	m.ObserveProviderRequest("brokerscan", "list_scans", 200, 10*time.Millisecond)
	m.ObserveProviderRequest("brokerscan", "list_scans", 0, 10*time.Millisecond)
	m.IncJobsProcessed("completed")
	m.IncJobsEnqueued("legacyscan")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncCycles.WithLabelValues("brokerscan", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncCycles.WithLabelValues("brokerscan", OutcomeSourceError)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecordsUpserted.WithLabelValues("brokerscan")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScansUpserted.WithLabelValues("legacyscan")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("brokerscan", "list_scans", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("brokerscan", "list_scans", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsProcessed.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsEnqueued.WithLabelValues("legacyscan")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
