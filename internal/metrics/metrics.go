package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the cache pipeline.
type Metrics struct {
	// Per-provider processing outcomes
	ProcessOutcome *prometheus.CounterVec

	// Events published downstream by type
	EventsPublished *prometheus.CounterVec

	// Batch processing latency
	BatchDuration prometheus.Histogram

	// Full download-to-cache latency
	DownloadDuration prometheus.Histogram

	// Staged rows removed by the retention sweep
	StagingCleared prometheus.Counter

	// Scheduler lock acquisition attempts by outcome
	LockAcquisitions *prometheus.CounterVec
}

// New creates a new Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a new Metrics instance registered on the given registry.
// Tests use a fresh registry to avoid duplicate registration.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ProcessOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ukrlp_cache_process_outcomes_total",
			Help: "Total per-provider processing outcomes",
		}, []string{"outcome"}), // outcome: "created", "updated", "unchanged", "failed"

		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ukrlp_cache_events_published_total",
			Help: "Total change events published downstream by type",
		}, []string{"type"}),

		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ukrlp_cache_batch_duration_seconds",
			Help:    "Duration of processing one staged batch",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		DownloadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ukrlp_cache_download_duration_seconds",
			Help:    "Duration of a full download-to-cache run",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),

		StagingCleared: factory.NewCounter(prometheus.CounterOpts{
			Name: "ukrlp_cache_staging_rows_cleared_total",
			Help: "Total staged rows removed by the retention sweep",
		}),

		LockAcquisitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ukrlp_cache_lock_acquisitions_total",
			Help: "Total scheduler lock acquisition attempts by outcome",
		}, []string{"name", "outcome"}), // outcome: "acquired", "contended", "error"
	}
}

// IncrementOutcome records one per-provider processing outcome.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.ProcessOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncrementEvent records one published change event.
func (m *Metrics) IncrementEvent(eventType string) {
	if m != nil {
		m.EventsPublished.WithLabelValues(eventType).Inc()
	}
}

// ObserveBatchDuration records how long one batch took to process.
func (m *Metrics) ObserveBatchDuration(d time.Duration) {
	if m != nil {
		m.BatchDuration.Observe(d.Seconds())
	}
}

// ObserveDownloadDuration records how long a download run took.
func (m *Metrics) ObserveDownloadDuration(d time.Duration) {
	if m != nil {
		m.DownloadDuration.Observe(d.Seconds())
	}
}

// AddStagingCleared records rows removed by the retention sweep.
func (m *Metrics) AddStagingCleared(n int64) {
	if m != nil {
		m.StagingCleared.Add(float64(n))
	}
}

// IncrementLockAcquisition records one lock acquisition attempt.
func (m *Metrics) IncrementLockAcquisition(name, outcome string) {
	if m != nil {
		m.LockAcquisitions.WithLabelValues(name, outcome).Inc()
	}
}
