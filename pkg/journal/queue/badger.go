package queue

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/s3journal/internal/logger"
)

// Task keys are the prefix followed by a big-endian sequence number, so
// badger's key order is delivery order.
var taskPrefix = []byte("t!")

// BadgerQueue implements Queue on a BadgerDB directory. The directory is
// owned exclusively by one queue instance.
type BadgerQueue struct {
	db *badgerdb.DB

	mu      sync.Mutex
	nextSeq uint64
	leased  map[uint64]struct{}
	pending int64
	closed  bool

	// notify wakes a blocked Take after Put or Retry. Buffered so signaling
	// never blocks the producer.
	notify chan struct{}

	enqueued  int64
	completed int64
	retried   int64
}

// BadgerOptions configures a BadgerQueue.
type BadgerOptions struct {
	// Dir is the queue directory. Ignored when InMemory is set.
	Dir string

	// Fsync syncs every Put to disk before acknowledging it. Turning it off
	// trades the crash-durability of the most recent puts for throughput.
	Fsync bool

	// InMemory runs badger without a directory. Tests only: an in-memory
	// queue does not survive restarts.
	InMemory bool
}

// OpenBadger opens (or creates) the durable queue in its directory and
// recounts the tasks a previous process left pending.
func OpenBadger(opts BadgerOptions) (*BadgerQueue, error) {
	var badgerOpts badgerdb.Options
	if opts.InMemory {
		badgerOpts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Dir == "" {
			return nil, fmt.Errorf("queue directory is required")
		}
		badgerOpts = badgerdb.DefaultOptions(opts.Dir).WithSyncWrites(opts.Fsync)
	}
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badgerdb.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue at %q: %w", opts.Dir, err)
	}

	q := &BadgerQueue{
		db:     db,
		leased: make(map[uint64]struct{}),
		notify: make(chan struct{}, 1),
	}

	if err := q.recount(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if q.pending > 0 {
		logger.Info("Durable queue reopened with pending tasks",
			"dir", opts.Dir, "pending", q.pending)
	}

	return q, nil
}

// recount walks the existing keys to restore pending count and the next
// sequence number after a restart.
func (q *BadgerQueue) recount() error {
	return q.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = taskPrefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			seq := seqFromKey(it.Item().Key())
			if seq >= q.nextSeq {
				q.nextSeq = seq + 1
			}
			q.pending++
		}
		return nil
	})
}

func keyForSeq(seq uint64) []byte {
	key := make([]byte, len(taskPrefix)+8)
	copy(key, taskPrefix)
	binary.BigEndian.PutUint64(key[len(taskPrefix):], seq)
	return key
}

func seqFromKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(taskPrefix):])
}

// Put durably appends a task.
func (q *BadgerQueue) Put(payload []byte) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	seq := q.nextSeq
	q.nextSeq++
	q.mu.Unlock()

	err := q.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(keyForSeq(seq), payload)
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.mu.Lock()
	q.pending++
	q.enqueued++
	q.mu.Unlock()

	q.signal()
	return nil
}

func (q *BadgerQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// tryTake pops the oldest unleased task, or nil when none is available.
func (q *BadgerQueue) tryTake() (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrClosed
	}

	var task *Task
	err := q.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = taskPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			seq := seqFromKey(item.Key())
			if _, taken := q.leased[seq]; taken {
				continue
			}

			payload, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			task = &Task{ID: seq, Payload: payload}
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}

	if task != nil {
		q.leased[task.ID] = struct{}{}
	}
	return task, nil
}

// Take blocks until a task is available or ctx is done.
func (q *BadgerQueue) Take(ctx context.Context) (*Task, error) {
	for {
		task, err := q.tryTake()
		if err != nil {
			return nil, err
		}
		if task != nil {
			return task, nil
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TakeTimeout blocks up to timeout and returns ErrTimeout when the queue
// stayed empty.
func (q *BadgerQueue) TakeTimeout(timeout time.Duration) (*Task, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		task, err := q.tryTake()
		if err != nil {
			return nil, err
		}
		if task != nil {
			return task, nil
		}

		select {
		case <-q.notify:
		case <-deadline.C:
			return nil, ErrTimeout
		}
	}
}

// Complete acknowledges a taken task.
func (q *BadgerQueue) Complete(t *Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if _, taken := q.leased[t.ID]; !taken {
		q.mu.Unlock()
		return ErrNotTaken
	}
	q.mu.Unlock()

	err := q.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(keyForSeq(t.ID))
	})
	if err != nil {
		return fmt.Errorf("failed to complete task %d: %w", t.ID, err)
	}

	q.mu.Lock()
	delete(q.leased, t.ID)
	q.pending--
	q.completed++
	q.mu.Unlock()
	return nil
}

// Retry returns a taken task to the queue. The payload moves to a fresh
// sequence number so re-delivery happens after the tasks already enqueued,
// and the move is atomic so a crash cannot duplicate or lose it.
func (q *BadgerQueue) Retry(t *Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if _, taken := q.leased[t.ID]; !taken {
		q.mu.Unlock()
		return ErrNotTaken
	}
	seq := q.nextSeq
	q.nextSeq++
	q.mu.Unlock()

	err := q.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Delete(keyForSeq(t.ID)); err != nil {
			return err
		}
		return txn.Set(keyForSeq(seq), t.Payload)
	})
	if err != nil {
		return fmt.Errorf("failed to retry task %d: %w", t.ID, err)
	}

	q.mu.Lock()
	delete(q.leased, t.ID)
	q.retried++
	q.mu.Unlock()

	q.signal()
	return nil
}

// Enumerate visits every pending task without consuming it.
func (q *BadgerQueue) Enumerate(fn func(t *Task) error) error {
	return q.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = taskPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			payload, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(&Task{ID: seqFromKey(item.Key()), Payload: payload}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Stats returns queue statistics.
func (q *BadgerQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:   q.pending,
		InFlight:  int64(len(q.leased)),
		Enqueued:  q.enqueued,
		Completed: q.completed,
		Retried:   q.retried,
	}
}

// Close releases the underlying database. Pending tasks stay on disk.
func (q *BadgerQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.signal()
	if err := q.db.Close(); err != nil {
		return fmt.Errorf("failed to close queue: %w", err)
	}
	return nil
}
