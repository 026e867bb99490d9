// Package prometheus implements the journal's metrics interfaces on the
// process registry. Importing it for side effects (as cmd/s3journal does)
// wires the constructor into pkg/metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/s3journal/pkg/journal"
	"github.com/marmos91/s3journal/pkg/metrics"
)

func init() {
	metrics.RegisterJournalMetricsConstructor(NewJournalMetrics)
}

// journalMetrics implements journal.Metrics (and, with the same two
// methods, objectstore.Metrics).
type journalMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
	batchRecords      prometheus.Histogram
	batchBytes        prometheus.Histogram
	droppedTotal      prometheus.Counter
	activeUploads     prometheus.Gauge
	queueDepth        prometheus.Gauge
}

// NewJournalMetrics builds the Prometheus-backed collector set on the
// process registry. Returns nil when metrics are disabled.
func NewJournalMetrics() journal.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &journalMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3journal_operations_total",
				Help: "Total object-store operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "s3journal_operation_duration_milliseconds",
				Help: "Duration of object-store operations in milliseconds",
				Buckets: []float64{
					10,    // fast metadata calls
					50,
					100,
					500,
					1000,  // medium parts
					5000,
					10000, // large parts
					30000,
				},
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3journal_bytes_transferred_total",
				Help: "Total bytes moved by object-store operations",
			},
			[]string{"operation"},
		),
		batchRecords: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "s3journal_batch_records",
				Help:    "Distribution of records per encoded batch",
				Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
			},
		),
		batchBytes: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "s3journal_batch_bytes",
				Help: "Distribution of encoded batch sizes",
				Buckets: []float64{
					1024,      // 1KB
					65536,     // 64KB
					1048576,   // 1MB
					5242880,   // 5MB, the multipart threshold
					10485760,  // 10MB
					52428800,  // 50MB
				},
			},
		),
		droppedTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "s3journal_dropped_records_total",
				Help: "Records dropped because their upload was abandoned",
			},
		),
		activeUploads: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "s3journal_active_uploads",
				Help: "Current number of open multipart uploads",
			},
		),
		queueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "s3journal_queue_depth",
				Help: "Pending tasks in the durable queue",
			},
		),
	}
}

func (m *journalMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds() * 1000)
}

func (m *journalMetrics) RecordBytes(operation string, bytes int64) {
	if bytes <= 0 {
		return
	}
	m.bytesTransferred.WithLabelValues(operation).Add(float64(bytes))
}

func (m *journalMetrics) RecordBatch(records int, bytes int64) {
	m.batchRecords.Observe(float64(records))
	m.batchBytes.Observe(float64(bytes))
}

func (m *journalMetrics) RecordDropped(count int64) {
	m.droppedTotal.Add(float64(count))
}

func (m *journalMetrics) RecordActiveUploads(delta int) {
	m.activeUploads.Add(float64(delta))
}

func (m *journalMetrics) RecordQueueDepth(pending int64) {
	m.queueDepth.Set(float64(pending))
}
