package journal

import "errors"

var (
	// ErrClosed is returned by Put and Flush after Close.
	ErrClosed = errors.New("journal: closed")

	// ErrQueueTooSmall is returned by Open when the tasks recovered from the
	// durable queue hold more records than max_queue_size admits.
	ErrQueueTooSmall = errors.New("journal: queue size too small for recovered workload")
)
