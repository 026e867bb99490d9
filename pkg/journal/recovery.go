package journal

import (
	"context"
	"fmt"

	"github.com/marmos91/s3journal/internal/logger"
	"github.com/marmos91/s3journal/pkg/journal/objectstore"
	"github.com/marmos91/s3journal/pkg/journal/queue"
)

// recover rebuilds upload state after a restart.
//
// Open multipart uploads under the journal's prefix are reloaded from the
// object store (descriptor plus committed parts) and an end is enqueued for
// each so the consumer resumes their completion. The pending durable-queue
// tasks are then scanned, without consuming them, to find the highest part
// index any pending conj references and to re-acquire admission permits for
// the records the conj tasks carry.
//
// New data starts at the next fresh object past everything recovered:
// pending parts finish inside their existing objects, fresh writes never
// interleave with them.
func (j *journal) recover(ctx context.Context) (map[objectKey]*objectState, Position, error) {
	state := make(map[objectKey]*objectState)
	highest := int64(-1)

	uploads, err := j.store.ListUploads(ctx, j.tf.Prefix())
	if err != nil {
		return nil, Position{}, fmt.Errorf("journal: failed to list open uploads: %w", err)
	}

	for _, u := range uploads {
		dir, id, fileNumber, ok := parseObjectKey(u.Key)
		if !ok || id != j.opts.ID {
			continue
		}
		firstPart := fileNumber * j.lim.MaxPartsPerObject

		desc := objectstore.Descriptor{
			Bucket:   j.store.Bucket(),
			Key:      u.Key,
			UploadID: u.UploadID,
		}

		parts, err := j.store.ListParts(ctx, desc)
		if err != nil {
			if objectstore.IsNotFound(err) {
				continue
			}
			return nil, Position{}, fmt.Errorf("journal: failed to list parts of %q: %w", u.Key, err)
		}

		obj := &objectState{desc: desc, parts: make(map[int64]*partState)}
		for _, p := range parts {
			idx := firstPart + int64(p.PartNumber) - 1
			obj.parts[idx] = &partState{etag: p.ETag, uploaded: true}
			if idx > highest {
				highest = idx
			}
		}
		if firstPart > highest {
			highest = firstPart
		}

		key := objectKey{FirstPart: firstPart, Dir: dir}
		state[key] = obj
		j.metrics.RecordActiveUploads(1)

		if err := j.putAction(Action{Kind: ActionEnd, Pos: Position{Part: firstPart, Dir: dir}}); err != nil {
			return nil, Position{}, err
		}

		logger.Info("Recovered open multipart upload",
			"key", u.Key, "committed_parts", len(parts))
	}

	// Scan pending tasks. Each conj still holds records that were accepted
	// before the crash: they count as enqueued and must hold admission
	// permits, exactly as if Put had just accepted them.
	var recovered int64
	err = j.q.Enumerate(func(t *queue.Task) error {
		act, err := decodeAction(t.Payload)
		if err != nil {
			// The consumer will log and skip it.
			return nil
		}
		if act.Kind != ActionConj {
			return nil
		}
		if act.Pos.Part > highest {
			highest = act.Pos.Part
		}
		if act.Count > 0 {
			if !j.sem.TryAcquire(act.Count) {
				return ErrQueueTooSmall
			}
			j.enqueued.Add(act.Count)
			recovered += act.Count
		}
		return nil
	})
	if err != nil {
		return nil, Position{}, err
	}

	startPart := int64(0)
	if highest >= 0 {
		startPart = (highest/j.lim.MaxPartsPerObject + 1) * j.lim.MaxPartsPerObject
	}

	if recovered > 0 || len(state) > 0 {
		logger.Info("Recovery complete",
			"open_uploads", len(state),
			"recovered_records", recovered,
			"start_part", startPart)
	}

	// Dir stays empty: the first flush routes through the directory-change
	// transition, which emits the start for the first fresh object.
	return state, Position{Part: startPart}, nil
}
