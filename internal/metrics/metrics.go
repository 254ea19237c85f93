package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SyncMetrics is what the reconciliation service records.
type SyncMetrics interface {
	ObserveSync(provider, outcome string, duration time.Duration)
	AddRecordsUpserted(provider string, n int)
	AddScansUpserted(provider string, n int)
}

// ProviderMetrics is what the provider clients record.
type ProviderMetrics interface {
	ObserveProviderRequest(provider, endpoint string, status int, duration time.Duration)
}

// JobMetrics is what the sync job runner records.
type JobMetrics interface {
	IncJobsProcessed(outcome string)
	IncJobsEnqueued(provider string)
}

// Sync outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeSourceError = "source_error"
	OutcomeStoreError  = "store_error"
	OutcomeSkipped     = "skipped"
)

// Metrics implements every metrics interface on one registry.
type Metrics struct {
	SyncCycles      *prometheus.CounterVec   // labels: provider, outcome
	SyncDuration    *prometheus.HistogramVec // labels: provider
	ScansUpserted   *prometheus.CounterVec   // labels: provider
	RecordsUpserted *prometheus.CounterVec   // labels: provider

	ProviderRequests        *prometheus.CounterVec   // labels: provider, endpoint, code
	ProviderRequestDuration *prometheus.HistogramVec // labels: provider, endpoint

	JobsProcessed *prometheus.CounterVec // labels: outcome
	JobsEnqueued  *prometheus.CounterVec // labels: provider
}

const namespace = "exposurewatch"

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SyncCycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_cycles_total",
			Help:      "Sync cycles run, by provider and outcome",
		}, []string{"provider", "outcome"}),
		SyncDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Wall time of one sync cycle",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"provider"}),
		ScansUpserted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_upserted_total",
			Help:      "Scan rows written by sync",
		}, []string{"provider"}),
		RecordsUpserted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_records_upserted_total",
			Help:      "Scan record rows written by sync",
		}, []string{"provider"}),
		ProviderRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Requests sent to scan providers",
		}, []string{"provider", "endpoint", "code"}),
		ProviderRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Latency of scan provider requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "endpoint"}),
		JobsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_jobs_processed_total",
			Help:      "Queued sync jobs settled by workers",
		}, []string{"outcome"}),
		JobsEnqueued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_jobs_enqueued_total",
			Help:      "Sync jobs queued by webhooks",
		}, []string{"provider"}),
	}
}

func (m *Metrics) ObserveSync(provider, outcome string, d time.Duration) {
	m.SyncCycles.WithLabelValues(provider, outcome).Inc()
	m.SyncDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) AddRecordsUpserted(provider string, n int) {
	m.RecordsUpserted.WithLabelValues(provider).Add(float64(n))
}

func (m *Metrics) AddScansUpserted(provider string, n int) {
	m.ScansUpserted.WithLabelValues(provider).Add(float64(n))
}

// ObserveProviderRequest records one provider call. status 0 means the
// request never got a response.
func (m *Metrics) ObserveProviderRequest(provider, endpoint string, status int, d time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.ProviderRequests.WithLabelValues(provider, endpoint, code).Inc()
	m.ProviderRequestDuration.WithLabelValues(provider, endpoint).Observe(d.Seconds())
}

func (m *Metrics) IncJobsProcessed(outcome string) { m.JobsProcessed.WithLabelValues(outcome).Inc() }
func (m *Metrics) IncJobsEnqueued(provider string) { m.JobsEnqueued.WithLabelValues(provider).Inc() }

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveSync(string, string, time.Duration)                 {}
func (Nop) AddRecordsUpserted(string, int)                            {}
func (Nop) AddScansUpserted(string, int)                              {}
func (Nop) ObserveProviderRequest(string, string, int, time.Duration) {}
func (Nop) IncJobsProcessed(string)                                   {}
func (Nop) IncJobsEnqueued(string)                                    {}
