package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchAttempts *prometheus.CounterVec
	backoff       prometheus.Histogram
	datasetRows   *prometheus.GaugeVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

var (
	defaultOnce     sync.Once
	defaultRecorder *Recorder
)

// New returns the process-wide Prometheus recorder.
// Collectors register once with the default registry.
func New() *Recorder {
	defaultOnce.Do(func() {
		defaultRecorder = NewWith(prometheus.DefaultRegisterer)
	})
	return defaultRecorder
}

// NewWith registers collectors on reg. Tests pass a fresh registry.
func NewWith(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fetchAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finpull_fetch_attempts_total",
				Help: "Upstream download attempts by outcome",
			},
			[]string{"source", "outcome"},
		),
		backoff: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "finpull_backoff_seconds",
				Help:    "Backoff waits before retrying a rate-limited download",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
			},
		),
		datasetRows: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finpull_dataset_rows",
				Help: "Rows in the most recently built dataset",
			},
			[]string{"dataset"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finpull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetchAttempt counts one upstream attempt.
func (r *Recorder) RecordFetchAttempt(source, outcome string) {
	r.fetchAttempts.WithLabelValues(source, outcome).Inc()
}

// RecordBackoff observes a retry wait.
func (r *Recorder) RecordBackoff(seconds float64) {
	r.backoff.Observe(seconds)
}

// RecordRows sets the row count of a dataset.
func (r *Recorder) RecordRows(dataset string, n int) {
	r.datasetRows.WithLabelValues(dataset).Set(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordFetchAttempt(string, string) {}
func (Nop) RecordBackoff(float64)             {}
func (Nop) RecordRows(string, int)            {}
func (Nop) RecordError(string)                {}
func (Nop) RecordLatency(string, float64)     {}
