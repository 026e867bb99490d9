package journal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/marmos91/s3journal/internal/logger"
)

// shardIDs are the single-character shard identifiers, in shard order.
const shardIDs = "0123456789abcdefghijklmnopqrstuvwxyz"

// sharded fans Put calls out round-robin across independent journals. Each
// shard owns its slice of the local directory, its own S3 key prefix and an
// equal share of the admission budget. No ordering is promised across
// shards.
type sharded struct {
	journals []*journal
	counter  atomic.Uint64
}

func openSharded(ctx context.Context, opts Options) (*sharded, error) {
	n := opts.Shards

	queueShare := opts.MaxQueueSize / n
	if queueShare < 1 {
		return nil, fmt.Errorf("journal: MaxQueueSize %d cannot be split across %d shards", opts.MaxQueueSize, n)
	}

	s := &sharded{journals: make([]*journal, 0, n)}
	for i := 0; i < n; i++ {
		id := string(shardIDs[i])

		shardOpts := opts
		shardOpts.Shards = 0
		shardOpts.MaxQueueSize = queueShare
		shardOpts.shardPrefix = id + "/"
		if !opts.InMemoryQueue {
			shardOpts.LocalDirectory = filepath.Join(opts.LocalDirectory, id)
		}

		j, err := openJournal(ctx, shardOpts)
		if err != nil {
			for _, open := range s.journals {
				if cerr := open.Close(); cerr != nil {
					logger.Error("Failed to close shard during rollback", "error", cerr)
				}
			}
			return nil, fmt.Errorf("journal: failed to open shard %s: %w", id, err)
		}
		s.journals = append(s.journals, j)
	}

	logger.Info("Sharded journal opened", "shards", n, "queue_per_shard", queueShare)
	return s, nil
}

// Put dispatches the record to the next shard in round-robin order.
func (s *sharded) Put(record any) (bool, error) {
	i := s.counter.Add(1) - 1
	return s.journals[i%uint64(len(s.journals))].Put(record)
}

// Stats merges the shard counters numerically.
func (s *sharded) Stats() Stats {
	var merged Stats
	for _, j := range s.journals {
		st := j.Stats()
		merged.Enqueued += st.Enqueued
		merged.Uploaded += st.Uploaded
		merged.Dropped += st.Dropped
		merged.Queue.Pending += st.Queue.Pending
		merged.Queue.InFlight += st.Queue.InFlight
		merged.Queue.Enqueued += st.Queue.Enqueued
		merged.Queue.Completed += st.Queue.Completed
		merged.Queue.Retried += st.Queue.Retried
	}
	return merged
}

// Flush flushes every shard.
func (s *sharded) Flush() error {
	var errs []error
	for _, j := range s.journals {
		if err := j.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes the shards in sequence.
func (s *sharded) Close() error {
	var errs []error
	for _, j := range s.journals {
		if err := j.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
