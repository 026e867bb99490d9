package journal

import "time"

// Metrics receives observations from the journal pipeline. A nil Metrics is
// valid and costs nothing.
//
// Implementations live outside this package (see pkg/metrics/prometheus);
// the journal only talks to the interface so the Prometheus dependency stays
// out of the core.
type Metrics interface {
	// ObserveOperation records one object-store call with its outcome.
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes records payload bytes moved by an operation.
	RecordBytes(operation string, bytes int64)

	// RecordBatch records one encoded batch leaving the batcher.
	RecordBatch(records int, bytes int64)

	// RecordDropped records records lost to an abandoned upload.
	RecordDropped(count int64)

	// RecordActiveUploads tracks open multipart uploads.
	RecordActiveUploads(delta int)

	// RecordQueueDepth samples the durable queue depth.
	RecordQueueDepth(pending int64)
}

// nopMetrics guards against nil checks sprinkled through hot paths: the
// journal normalizes a nil Metrics option to this.
type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string, time.Duration, error) {}
func (nopMetrics) RecordBytes(string, int64)                     {}
func (nopMetrics) RecordBatch(int, int64)                        {}
func (nopMetrics) RecordDropped(int64)                           {}
func (nopMetrics) RecordActiveUploads(int)                       {}
func (nopMetrics) RecordQueueDepth(int64)                        {}
