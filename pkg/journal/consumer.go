package journal

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/marmos91/s3journal/internal/logger"
	"github.com/marmos91/s3journal/pkg/journal/objectstore"
	"github.com/marmos91/s3journal/pkg/journal/queue"
)

// chunk is one pending conj: the queue task that will be acknowledged when
// its part uploads, plus the decoded count and payload.
type chunk struct {
	task    *queue.Task
	count   int64
	payload []byte
}

// partState tracks one part of an open object: either a list of pending
// chunks or, once committed, the ETag S3 returned for it.
type partState struct {
	chunks   []chunk
	etag     string
	uploaded bool
}

func (p *partState) size() int64 {
	var n int64
	for _, c := range p.chunks {
		n += int64(len(c.payload))
	}
	return n
}

// objectState is the consumer's record of one open multipart upload.
type objectState struct {
	desc  objectstore.Descriptor
	parts map[int64]*partState
}

// consumer owns the upload state machine. Exactly one consumer goroutine
// runs per journal; it is the sole mutator of state and the only caller of
// the object store's mutating operations, which is what lets the
// cross-cutting invariants (contiguous part numbers, last-part handling,
// descriptor existence) live without locks.
type consumer struct {
	j         *journal
	state     map[objectKey]*objectState
	lastSweep time.Time
}

// consume is the consumer loop. It exits when the close latch is set and
// the queue has stayed empty for the drain timeout (5 seconds by default).
func (j *journal) consume(state map[objectKey]*objectState) {
	defer close(j.consumerDone)

	c := &consumer{j: j, state: state}

	for {
		if j.opts.Expiration > 0 && j.now().Sub(c.lastSweep) >= j.opts.sweepInterval {
			c.sweep(context.Background())
			c.lastSweep = j.now()
		}

		var task *queue.Task
		var err error
		if j.closeCtx.Err() != nil {
			task, err = j.q.TakeTimeout(j.opts.drainTimeout)
			if errors.Is(err, queue.ErrTimeout) {
				return
			}
		} else {
			task, err = j.q.Take(j.closeCtx)
			if errors.Is(err, context.Canceled) {
				continue
			}
		}
		if errors.Is(err, queue.ErrClosed) {
			return
		}
		if err != nil {
			logger.Error("Queue take failed", "error", err)
			time.Sleep(j.opts.retrySleep)
			continue
		}

		c.dispatch(task)
	}
}

// dispatch decodes and executes one task.
func (c *consumer) dispatch(task *queue.Task) {
	act, err := decodeAction(task.Payload)
	if err != nil {
		logger.Warn("Corrupted queue task; skipping", "task", task.ID, "error", err)
		act = Action{Kind: ActionSkip}
	}

	key := act.Pos.key(c.j.lim)
	obj := c.state[key]

	// Gating: anything but start and flush needs a live descriptor. A
	// missing one means the upload was abandoned; the task is stale and is
	// dropped. For conj that loses records, which is deliberate: retrying
	// would wedge the loop forever.
	if obj == nil {
		switch act.Kind {
		case ActionStart, ActionFlush, ActionSkip:
		default:
			if act.Kind == ActionConj && act.Count > 0 {
				logger.Warn("Dropping records addressed to an abandoned upload",
					"records", act.Count, "part", act.Pos.Part, "dir", act.Pos.Dir)
				c.j.dropped.Add(act.Count)
				c.j.metrics.RecordDropped(act.Count)
				c.j.sem.Release(act.Count)
			}
			c.complete(task)
			return
		}
	}

	switch act.Kind {
	case ActionStart:
		c.handleStart(task, act, key, obj)
	case ActionConj:
		c.handleConj(task, act, obj)
	case ActionUpload:
		c.handleUpload(task, act, obj)
	case ActionEnd:
		c.handleEnd(task, key, obj)
	case ActionFlush:
		c.handleFlush(task)
	case ActionSkip:
		c.complete(task)
	}
}

// handleStart initiates the multipart upload for the addressed object. A
// journal cannot make forward progress without a descriptor, so failures
// retry indefinitely at one-second intervals.
func (c *consumer) handleStart(task *queue.Task, act Action, key objectKey, obj *objectState) {
	if obj != nil {
		// Duplicate start (recovered object, or a replayed task).
		c.complete(task)
		return
	}

	keyName := c.j.objectKeyFor(act.Pos)
	for {
		desc, err := c.j.store.Initiate(context.Background(), keyName)
		if err == nil {
			c.state[key] = &objectState{
				desc:  desc,
				parts: make(map[int64]*partState),
			}
			c.j.metrics.RecordActiveUploads(1)
			break
		}
		logger.Error("Failed to initiate multipart upload; retrying",
			"key", keyName, "error", err)
		time.Sleep(c.j.opts.retrySleep)
	}

	c.complete(task)
}

// handleConj appends the chunk to its part. The task is not acknowledged
// here: it is acknowledged when the part it belongs to uploads.
func (c *consumer) handleConj(task *queue.Task, act Action, obj *objectState) {
	if act.Count == 0 {
		c.complete(task)
		return
	}

	ps := obj.parts[act.Pos.Part]
	if ps == nil {
		ps = &partState{}
		obj.parts[act.Pos.Part] = ps
	}

	if ps.uploaded {
		// The part was committed before a crash and the chunk's ack was
		// lost; its bytes are already in S3.
		c.j.uploaded.Add(act.Count)
		c.j.sem.Release(act.Count)
		c.complete(task)
		return
	}

	ps.chunks = append(ps.chunks, chunk{task: task, count: act.Count, payload: act.Payload})
}

// handleUpload flushes the accumulated chunks of the addressed part.
func (c *consumer) handleUpload(task *queue.Task, act Action, obj *objectState) {
	ps := obj.parts[act.Pos.Part]
	if ps == nil || ps.uploaded || len(ps.chunks) == 0 {
		// Nothing pending: the part was already committed, or its chunks
		// were consumed by a previous delivery of this task.
		c.complete(task)
		return
	}

	if !c.uploadPart(obj, act.Pos.Part, false) {
		c.retry(task)
		return
	}

	c.complete(task)
}

// uploadPart concatenates the part's chunks in task order, uploads them as
// one S3 part, and on success acknowledges every gathered chunk task and
// releases their admission permits. It reports whether the upload succeeded.
func (c *consumer) uploadPart(obj *objectState, part int64, last bool) bool {
	ps := obj.parts[part]
	payload := make([]byte, 0, ps.size())
	for _, ch := range ps.chunks {
		payload = append(payload, ch.payload...)
	}

	partNumber := int32(part%c.j.lim.MaxPartsPerObject) + 1
	etag, err := c.j.store.UploadPart(context.Background(), obj.desc, partNumber, payload, last)
	if err != nil {
		logger.Warn("Part upload failed",
			"key", obj.desc.Key, "part", partNumber, "bytes", len(payload), "error", err)
		return false
	}

	var count int64
	for _, ch := range ps.chunks {
		count += ch.count
		c.complete(ch.task)
	}
	ps.chunks = nil
	ps.etag = etag
	ps.uploaded = true

	c.j.uploaded.Add(count)
	c.j.sem.Release(count)
	c.j.metrics.RecordBytes("UploadPart", int64(len(payload)))

	logger.Debug("Part uploaded",
		"key", obj.desc.Key, "part", partNumber, "bytes", len(payload), "records", count)
	return true
}

// handleEnd completes the multipart upload once every part is committed.
// One pending part is tolerated when it is the final slot of the object: it
// may be smaller than the minimum part size, so it uploads with the last
// flag. Any other pending part means upload actions are still in the queue
// ahead of us; the end re-queues and waits for them to drain.
func (c *consumer) handleEnd(task *queue.Task, key objectKey, obj *objectState) {
	var pending []int64
	for idx, ps := range obj.parts {
		if !ps.uploaded {
			pending = append(pending, idx)
		}
	}

	if len(pending) == 1 {
		last := pending[0]
		if last%c.j.lim.MaxPartsPerObject == int64(len(obj.parts))-1 {
			if !c.uploadPart(obj, last, true) {
				c.retryLater(task)
				return
			}
			pending = nil
		}
	}
	if len(pending) > 0 {
		c.retryLater(task)
		return
	}

	if len(obj.parts) == 0 {
		// A recovered upload with nothing committed and nothing pending
		// cannot be completed; reclaim it.
		logger.Warn("Aborting empty multipart upload", "key", obj.desc.Key)
		if err := c.j.store.Abort(context.Background(), obj.desc); err != nil {
			logger.Warn("Abort failed", "key", obj.desc.Key, "error", err)
			c.retryLater(task)
			return
		}
		c.dropObject(key)
		c.complete(task)
		return
	}

	parts := make([]objectstore.CompletedPart, 0, len(obj.parts))
	for idx, ps := range obj.parts {
		parts = append(parts, objectstore.CompletedPart{
			PartNumber: int32(idx%c.j.lim.MaxPartsPerObject) + 1,
			ETag:       ps.etag,
		})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })

	if err := c.j.store.Complete(context.Background(), obj.desc, parts); err != nil {
		if objectstore.IsNotFound(err) {
			// The upload vanished underneath us (expired, or reclaimed by a
			// peer's sweeper). Nothing left to finish.
			logger.Warn("Multipart upload vanished before completion", "key", obj.desc.Key)
			c.dropObject(key)
			c.complete(task)
			return
		}
		logger.Warn("Failed to complete multipart upload",
			"key", obj.desc.Key, "parts", len(parts), "error", err)
		c.retryLater(task)
		return
	}

	logger.Info("Object completed", "key", obj.desc.Key, "parts", len(parts))
	c.dropObject(key)
	c.complete(task)
}

// handleFlush enqueues an end for every open object.
func (c *consumer) handleFlush(task *queue.Task) {
	for key := range c.state {
		err := c.j.putAction(Action{
			Kind: ActionEnd,
			Pos:  Position{Part: key.FirstPart, Dir: key.Dir},
		})
		if err != nil {
			logger.Error("Failed to enqueue end", "dir", key.Dir, "part", key.FirstPart, "error", err)
		}
	}
	c.complete(task)
}

func (c *consumer) dropObject(key objectKey) {
	delete(c.state, key)
	c.j.metrics.RecordActiveUploads(-1)
}

func (c *consumer) complete(task *queue.Task) {
	if err := c.j.q.Complete(task); err != nil {
		logger.Error("Failed to complete queue task", "task", task.ID, "error", err)
	}
}

// retry returns the task to the back of the queue without pausing; it is
// re-delivered after the tasks already enqueued.
func (c *consumer) retry(task *queue.Task) {
	if err := c.j.q.Retry(task); err != nil {
		logger.Error("Failed to retry queue task", "task", task.ID, "error", err)
	}
}

// retryLater returns the task to the queue and backs off, giving the
// outstanding work ahead of it time to drain.
func (c *consumer) retryLater(task *queue.Task) {
	c.retry(task)
	time.Sleep(c.j.opts.retrySleep)
}
