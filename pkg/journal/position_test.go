package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/s3journal/pkg/journal/objectstore"
)

func testLimits() objectstore.Limits {
	return objectstore.Limits{
		MinPartSize:       16,
		MaxPartSize:       1 << 20,
		MaxPartsPerObject: 4,
	}
}

func kinds(actions []Action) []ActionKind {
	out := make([]ActionKind, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Kind)
	}
	return out
}

func TestAdvance_FirstFlushEntersDirectory(t *testing.T) {
	next, actions := advance(Position{}, "2024/01/15", 6, testLimits())

	assert.Equal(t, Position{Bytes: 6, Part: 0, Dir: "2024/01/15"}, next)
	require.Equal(t, []ActionKind{ActionEnd, ActionStart}, kinds(actions))
	assert.Equal(t, Position{}, actions[0].Pos)
	assert.Equal(t, next, actions[1].Pos)
}

func TestAdvance_FirstFlushKeepsRecoveredFloor(t *testing.T) {
	// After recovery the position carries a part floor and an empty
	// directory. The first flush must keep the floor so fresh writes land in
	// a fresh object instead of colliding with recovered state.
	next, actions := advance(Position{Part: 8}, "2024/01/15", 6, testLimits())

	assert.Equal(t, int64(8), next.Part)
	assert.Equal(t, []ActionKind{ActionEnd, ActionStart}, kinds(actions))
}

func TestAdvance_AccumulatesBelowMinPartSize(t *testing.T) {
	p := Position{Bytes: 5, Part: 2, Dir: "2024/01/15"}
	next, actions := advance(p, "2024/01/15", 6, testLimits())

	assert.Equal(t, Position{Bytes: 11, Part: 2, Dir: "2024/01/15"}, next)
	assert.Empty(t, actions)
}

func TestAdvance_SchedulesUploadWhenPartExceedsMin(t *testing.T) {
	p := Position{Bytes: 11, Part: 2, Dir: "2024/01/15"}
	next, actions := advance(p, "2024/01/15", 6, testLimits())

	assert.Equal(t, int64(17), next.Bytes)
	assert.Equal(t, int64(2), next.Part)
	require.Equal(t, []ActionKind{ActionUpload}, kinds(actions))
	assert.Equal(t, next, actions[0].Pos)
}

func TestAdvance_AdvancesPartAfterUploadThreshold(t *testing.T) {
	// The previous flush pushed the open part past the minimum; this one
	// rolls to the next part index.
	p := Position{Bytes: 17, Part: 2, Dir: "2024/01/15"}
	next, actions := advance(p, "2024/01/15", 6, testLimits())

	assert.Equal(t, Position{Bytes: 6, Part: 3, Dir: "2024/01/15"}, next)
	assert.Empty(t, actions)
}

func TestAdvance_ObjectRollover(t *testing.T) {
	// Part 3 is the last slot of object 0 (4 parts per object); advancing
	// out of it ends the object and starts the next one.
	p := Position{Bytes: 17, Part: 3, Dir: "2024/01/15"}
	next, actions := advance(p, "2024/01/15", 6, testLimits())

	assert.Equal(t, Position{Bytes: 6, Part: 4, Dir: "2024/01/15"}, next)
	require.Equal(t, []ActionKind{ActionEnd, ActionStart}, kinds(actions))
	assert.Equal(t, p, actions[0].Pos)
	assert.Equal(t, next, actions[1].Pos)
}

func TestAdvance_ObjectRolloverWithLargePayload(t *testing.T) {
	p := Position{Bytes: 17, Part: 3, Dir: "2024/01/15"}
	next, actions := advance(p, "2024/01/15", 20, testLimits())

	assert.Equal(t, int64(4), next.Part)
	assert.Equal(t, []ActionKind{ActionEnd, ActionStart, ActionUpload}, kinds(actions))
}

func TestAdvance_DayRolloverResetsPart(t *testing.T) {
	p := Position{Bytes: 11, Part: 7, Dir: "2024/01/15"}
	next, actions := advance(p, "2024/01/16", 6, testLimits())

	assert.Equal(t, Position{Bytes: 6, Part: 0, Dir: "2024/01/16"}, next)
	require.Equal(t, []ActionKind{ActionEnd, ActionStart}, kinds(actions))
	assert.Equal(t, p, actions[0].Pos)
}

func TestPosition_ObjectDerivations(t *testing.T) {
	lim := testLimits()

	p := Position{Part: 6, Dir: "2024/01/15"}
	assert.Equal(t, int64(1), p.fileNumber(lim))
	assert.Equal(t, objectKey{FirstPart: 4, Dir: "2024/01/15"}, p.key(lim))
	assert.Equal(t, int32(3), p.partNumber(lim))
}

func TestObjectKeyRoundTrip(t *testing.T) {
	lim := testLimits()

	for _, part := range []int64{0, 3, 4, 11} {
		p := Position{Part: part, Dir: "2024/01/15"}
		key := objectKeyName(p.Dir, "host_1", p.fileNumber(lim), "gz")

		dir, id, fileNumber, ok := parseObjectKey(key)
		require.True(t, ok, "key %q must reverse-parse", key)
		assert.Equal(t, p.Dir, dir)
		assert.Equal(t, "host_1", id)
		assert.Equal(t, p.fileNumber(lim), fileNumber)
	}
}

func TestParseObjectKey(t *testing.T) {
	dir, id, n, ok := parseObjectKey("2024/01/15/web_7-000042.journal")
	require.True(t, ok)
	assert.Equal(t, "2024/01/15", dir)
	assert.Equal(t, "web_7", id)
	assert.Equal(t, int64(42), n)

	// Prefixed and suffixed.
	dir, _, _, ok = parseObjectKey("archive/2024/01/15/web_7-000001.journal.gz")
	require.True(t, ok)
	assert.Equal(t, "archive/2024/01/15", dir)

	for _, bad := range []string{
		"2024/01/15/noid.journal",
		"2024/01/15/web-abc.journal",
		"not-a-journal-key",
	} {
		_, _, _, ok := parseObjectKey(bad)
		assert.False(t, ok, "key %q must not parse", bad)
	}
}
