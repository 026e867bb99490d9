package journal

import (
	"encoding/binary"
	"fmt"
)

// ActionKind discriminates the task variants the consumer dispatches on.
type ActionKind uint8

const (
	// ActionStart initiates a multipart upload for the object implied by the
	// position.
	ActionStart ActionKind = iota + 1

	// ActionConj appends a pending chunk to the current part of the object.
	ActionConj

	// ActionUpload flushes the accumulated chunks of the current part as one
	// S3 part.
	ActionUpload

	// ActionEnd completes (or aborts) the multipart upload for the object.
	ActionEnd

	// ActionFlush asks the consumer to close every open object.
	ActionFlush

	// ActionSkip is the placeholder a corrupted task decodes to.
	ActionSkip
)

func (k ActionKind) String() string {
	switch k {
	case ActionStart:
		return "start"
	case ActionConj:
		return "conj"
	case ActionUpload:
		return "upload"
	case ActionEnd:
		return "end"
	case ActionFlush:
		return "flush"
	case ActionSkip:
		return "skip"
	default:
		return fmt.Sprintf("action(%d)", uint8(k))
	}
}

// Action is one durable task: a kind, the position it addresses, and for
// conj the record count and encoded payload it carries.
type Action struct {
	Kind    ActionKind
	Pos     Position
	Count   int64
	Payload []byte
}

// actionVersion is the first byte of every encoded action, bumped when the
// layout changes so stale queue directories fail loudly instead of decoding
// garbage.
const actionVersion = 1

// encodeAction serializes an action for the durable queue.
//
// Layout: version | kind | part(8) | bytes(8) | count(8) | dirLen(2) | dir |
// payloadLen(4) | payload, all integers big-endian.
func encodeAction(a Action) []byte {
	dir := []byte(a.Pos.Dir)
	buf := make([]byte, 0, 2+8+8+8+2+len(dir)+4+len(a.Payload))

	buf = append(buf, actionVersion, byte(a.Kind))
	buf = binary.BigEndian.AppendUint64(buf, uint64(a.Pos.Part))
	buf = binary.BigEndian.AppendUint64(buf, uint64(a.Pos.Bytes))
	buf = binary.BigEndian.AppendUint64(buf, uint64(a.Count))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(dir)))
	buf = append(buf, dir...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(a.Payload)))
	buf = append(buf, a.Payload...)
	return buf
}

// decodeAction deserializes a task payload. Errors mean the entry is
// corrupted; the consumer treats such tasks as skips.
func decodeAction(data []byte) (Action, error) {
	if len(data) < 2 {
		return Action{}, fmt.Errorf("action too short: %d bytes", len(data))
	}
	if data[0] != actionVersion {
		return Action{}, fmt.Errorf("unknown action version %d", data[0])
	}

	a := Action{Kind: ActionKind(data[1])}
	switch a.Kind {
	case ActionStart, ActionConj, ActionUpload, ActionEnd, ActionFlush, ActionSkip:
	default:
		return Action{}, fmt.Errorf("unknown action kind %d", data[1])
	}

	rest := data[2:]
	if len(rest) < 8+8+8+2 {
		return Action{}, fmt.Errorf("action truncated: %d bytes", len(data))
	}
	a.Pos.Part = int64(binary.BigEndian.Uint64(rest[0:8]))
	a.Pos.Bytes = int64(binary.BigEndian.Uint64(rest[8:16]))
	a.Count = int64(binary.BigEndian.Uint64(rest[16:24]))
	dirLen := int(binary.BigEndian.Uint16(rest[24:26]))
	rest = rest[26:]

	if len(rest) < dirLen+4 {
		return Action{}, fmt.Errorf("action truncated: %d bytes", len(data))
	}
	a.Pos.Dir = string(rest[:dirLen])
	rest = rest[dirLen:]

	payloadLen := int(binary.BigEndian.Uint32(rest[0:4]))
	rest = rest[4:]
	if len(rest) != payloadLen {
		return Action{}, fmt.Errorf("action payload length mismatch: have %d, want %d", len(rest), payloadLen)
	}
	if payloadLen > 0 {
		a.Payload = append([]byte(nil), rest...)
	}

	return a, nil
}
