// Package journal implements a reliable, high-throughput journal to
// S3-compatible object storage.
//
// Producers submit discrete records with Put. The journal batches them,
// optionally compresses the batches, and streams them to time-partitioned
// objects through S3's multipart upload API. Put returns once a record is in
// the in-memory batcher; the record reaches the durable local queue when its
// batch flushes (at MaxBatchSize records, after MaxBatchLatency, or on Flush
// or Close), and a crash before that flush loses it. From the durable queue
// on, a record survives process crashes and is uploaded exactly once;
// multipart part-size minimums and the parts-per-object cap are respected,
// rolling over to new objects as needed.
//
// The pipeline is: Put -> admission semaphore -> batcher -> encoder ->
// durable queue -> single consumer loop -> multipart state machine ->
// object store.
package journal

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/marmos91/s3journal/internal/logger"
	"github.com/marmos91/s3journal/pkg/journal/objectstore"
	"github.com/marmos91/s3journal/pkg/journal/queue"
)

// Journal accepts records and uploads them to object storage in the
// background.
type Journal interface {
	// Put submits one record. It returns (true, nil) once the record is
	// accepted into the batcher, (false, nil) when the journal is at
	// capacity, and (false, ErrClosed) after Close. Acceptance does not by
	// itself make the record durable: it is written to the local queue when
	// its batch flushes. Upload is eventual and observable through Stats.
	Put(record any) (bool, error)

	// Stats returns the journal's counters.
	Stats() Stats

	// Flush asks the consumer to close every open object.
	Flush() error

	// Close flushes the batcher, drains the upload pipeline and stops the
	// consumer loop. Put fails afterwards.
	Close() error
}

// Stats are the journal's monotonic counters plus a queue snapshot.
type Stats struct {
	// Enqueued counts records accepted by Put (plus records recovered from
	// the durable queue at startup).
	Enqueued int64 `json:"enqueued"`

	// Uploaded counts records whose bytes S3 has acknowledged.
	Uploaded int64 `json:"uploaded"`

	// Dropped counts records lost to abandoned uploads.
	Dropped int64 `json:"dropped"`

	// Queue is the durable queue's view.
	Queue queue.Stats `json:"queue"`
}

// Open starts a journal (or, when Options.Shards > 1, a sharded fan-out of
// journals). The context bounds startup work only: client construction and
// crash recovery.
func Open(ctx context.Context, opts Options) (Journal, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	if opts.Shards > 1 {
		return openSharded(ctx, opts)
	}
	return openJournal(ctx, opts)
}

// journal is one configured pipeline instance.
type journal struct {
	opts Options
	lim  objectstore.Limits

	tf       *timeFormat
	compress Compressor
	suffix   string

	q     queue.Queue
	store objectstore.Client

	sem      *semaphore.Weighted
	enqueued atomic.Int64
	uploaded atomic.Int64
	dropped  atomic.Int64

	// pos is mutated only inside the batcher's flush callback.
	pos Position

	b *batcher

	closed       atomic.Bool
	closeCtx     context.Context
	closeCancel  context.CancelFunc
	consumerDone chan struct{}

	metrics Metrics
	now     func() time.Time
}

func openJournal(ctx context.Context, opts Options) (*journal, error) {
	tf, err := parseTimeFormat(opts.DirectoryFormat)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	tf.prefix = opts.shardPrefix + tf.prefix

	compress, suffix := opts.compressor()

	store := opts.Store
	if store == nil {
		s3store, err := objectstore.NewS3Store(ctx, opts.S3)
		if err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
		store = s3store
	}

	q, err := queue.OpenBadger(queue.BadgerOptions{
		Dir:      opts.LocalDirectory,
		Fsync:    !opts.DisableFsync,
		InMemory: opts.InMemoryQueue,
	})
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	closeCtx, closeCancel := context.WithCancel(context.Background())
	j := &journal{
		opts:         opts,
		lim:          opts.Limits,
		tf:           tf,
		compress:     compress,
		suffix:       suffix,
		q:            q,
		store:        store,
		sem:          semaphore.NewWeighted(int64(opts.MaxQueueSize)),
		closeCtx:     closeCtx,
		closeCancel:  closeCancel,
		consumerDone: make(chan struct{}),
		metrics:      opts.Metrics,
		now:          opts.nowFn,
	}

	state, pos, err := j.recover(ctx)
	if err != nil {
		closeCancel()
		_ = q.Close()
		return nil, err
	}
	j.pos = pos

	go j.consume(state)

	j.b = newBatcher(opts.MaxBatchSize, opts.MaxBatchLatency, j.flushBatch)

	logger.Info("Journal opened",
		"id", opts.ID,
		"directory_format", opts.DirectoryFormat,
		"local_directory", opts.LocalDirectory,
		"start_part", pos.Part)

	return j, nil
}

// Put submits one record.
func (j *journal) Put(record any) (bool, error) {
	if j.closed.Load() {
		return false, ErrClosed
	}

	data, err := j.opts.Encoder(record)
	if err != nil {
		return false, fmt.Errorf("journal: %w", err)
	}

	if !j.sem.TryAcquire(1) {
		return false, nil
	}

	if !j.b.put(data) {
		j.sem.Release(1)
		return false, ErrClosed
	}

	j.enqueued.Add(1)
	return true, nil
}

// Stats returns the journal's counters.
func (j *journal) Stats() Stats {
	return Stats{
		Enqueued: j.enqueued.Load(),
		Uploaded: j.uploaded.Load(),
		Dropped:  j.dropped.Load(),
		Queue:    j.q.Stats(),
	}
}

// Flush asks the consumer to close every open object. The write position
// moves past the flushed object, with the directory cleared the same way
// recovery leaves it, so the next batch starts a fresh object instead of
// addressing one the flush is about to end.
func (j *journal) Flush() error {
	if j.closed.Load() {
		return ErrClosed
	}

	j.b.flushThen(func() {
		if j.pos.Dir == "" {
			return
		}
		nextObject := (j.pos.Part/j.lim.MaxPartsPerObject + 1) * j.lim.MaxPartsPerObject
		j.pos = Position{Part: nextObject}
	})

	return j.putAction(Action{Kind: ActionFlush})
}

// Close flushes the batcher, enqueues a final flush action, latches the
// close flag and waits for the consumer loop to drain the queue and exit.
func (j *journal) Close() error {
	if !j.closed.CompareAndSwap(false, true) {
		return nil
	}

	j.b.close()

	if err := j.putAction(Action{Kind: ActionFlush}); err != nil {
		logger.Error("Failed to enqueue final flush", "error", err)
	}

	j.closeCancel()
	<-j.consumerDone

	if err := j.q.Close(); err != nil {
		return fmt.Errorf("journal: %w", err)
	}

	logger.Info("Journal closed",
		"id", j.opts.ID,
		"enqueued", j.enqueued.Load(),
		"uploaded", j.uploaded.Load())
	return nil
}

// putAction durably enqueues one action.
func (j *journal) putAction(a Action) error {
	if err := j.q.Put(encodeAction(a)); err != nil {
		return fmt.Errorf("journal: failed to enqueue %s: %w", a.Kind, err)
	}
	return nil
}

// flushBatch is the batcher callback: it frames and compresses the drained
// records, advances the position, and enqueues the resulting actions.
//
// Emission order matters: every transition action except uploads goes in
// before the conj so the consumer sees starts before any reference to their
// objects, and uploads go in after it so the chunks they flush are already
// appended.
func (j *journal) flushBatch(records [][]byte) {
	if records == nil {
		// Timer flush of an empty buffer; a liveness tick, nothing to do.
		return
	}

	count := int64(len(records))

	blob, err := j.compress(frame(records, []byte(j.opts.Delimiter), j.opts.Sized))
	if err != nil {
		logger.Error("Compression failed; dropping batch",
			"records", count, "error", err)
		j.dropped.Add(count)
		j.metrics.RecordDropped(count)
		j.sem.Release(count)
		return
	}

	dirNow := j.tf.Format(j.now())
	next, actions := advance(j.pos, dirNow, int64(len(blob)), j.lim)

	for _, a := range actions {
		if a.Kind == ActionUpload {
			continue
		}
		if err := j.putAction(a); err != nil {
			logger.Error("Failed to enqueue action", "action", a.Kind.String(), "error", err)
		}
	}

	if err := j.putAction(Action{Kind: ActionConj, Pos: next, Count: count, Payload: blob}); err != nil {
		logger.Error("Failed to enqueue batch; records lost",
			"records", count, "error", err)
		j.dropped.Add(count)
		j.metrics.RecordDropped(count)
		j.sem.Release(count)
		j.pos = next
		return
	}

	for _, a := range actions {
		if a.Kind != ActionUpload {
			continue
		}
		if err := j.putAction(a); err != nil {
			logger.Error("Failed to enqueue action", "action", a.Kind.String(), "error", err)
		}
	}

	j.pos = next
	j.metrics.RecordBatch(int(count), int64(len(blob)))
	j.metrics.RecordQueueDepth(j.q.Stats().Pending)
}

// objectKeyFor renders the S3 key for the object a position addresses.
func (j *journal) objectKeyFor(p Position) string {
	return objectKeyName(p.Dir, j.opts.ID, p.fileNumber(j.lim), j.suffix)
}
