package journal

import (
	"github.com/marmos91/s3journal/pkg/journal/objectstore"
)

// Position locates the write head of a journal: how many bytes the current
// open part holds, the part index within the current time partition, and the
// partition directory itself. The zero Dir marks a journal that has not
// flushed since it was opened.
type Position struct {
	Bytes int64
	Part  int64
	Dir   string
}

// objectKey identifies one object in the consumer's upload state.
type objectKey struct {
	FirstPart int64
	Dir       string
}

// fileNumber returns the object ordinal the position's part belongs to.
func (p Position) fileNumber(lim objectstore.Limits) int64 {
	return p.Part / lim.MaxPartsPerObject
}

// key returns the upload-state key for the object the position addresses.
func (p Position) key(lim objectstore.Limits) objectKey {
	return objectKey{
		FirstPart: p.fileNumber(lim) * lim.MaxPartsPerObject,
		Dir:       p.Dir,
	}
}

// partNumber returns the 1-based S3 part number within the object.
func (p Position) partNumber(lim objectstore.Limits) int32 {
	return int32(p.Part%lim.MaxPartsPerObject) + 1
}

// advance computes the position transition for a payload of size bytes
// arriving while the wall clock maps to dirNow, and the actions the
// transition requires.
//
// The returned actions are ordered for enqueueing around the batch's conj:
// every action except uploads precedes the conj (the consumer must see a
// start before any reference to its object), uploads follow it (an upload
// flushes chunks the conj delivers).
//
// Transitions:
//
//   - A new partition directory ends the open object and starts a fresh one
//     at part 0. The very first flush after open takes the same path out of
//     the empty directory, but keeps the part floor recovery computed so
//     fresh writes never collide with recovered objects.
//   - Within a partition the part index advances once the open part has
//     exceeded the minimum part size; crossing into a part index that is a
//     multiple of the per-object cap rolls over to a new object.
//   - Whenever the open part exceeds the minimum part size it is scheduled
//     for upload.
func advance(p Position, dirNow string, size int64, lim objectstore.Limits) (Position, []Action) {
	if dirNow != p.Dir {
		part := int64(0)
		if p.Dir == "" {
			part = p.Part
		}
		next := Position{Bytes: size, Part: part, Dir: dirNow}

		actions := []Action{
			{Kind: ActionEnd, Pos: p},
			{Kind: ActionStart, Pos: next},
		}
		if next.Bytes > lim.MinPartSize {
			actions = append(actions, Action{Kind: ActionUpload, Pos: next})
		}
		return next, actions
	}

	bytes, part := p.Bytes+size, p.Part
	if p.Bytes > lim.MinPartSize {
		part = p.Part + 1
		bytes = size
	}
	next := Position{Bytes: bytes, Part: part, Dir: p.Dir}

	var actions []Action
	if part != p.Part && part%lim.MaxPartsPerObject == 0 {
		actions = append(actions,
			Action{Kind: ActionEnd, Pos: p},
			Action{Kind: ActionStart, Pos: next},
		)
	}
	if bytes > lim.MinPartSize {
		actions = append(actions, Action{Kind: ActionUpload, Pos: next})
	}
	return next, actions
}
