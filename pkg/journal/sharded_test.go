package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/s3journal/pkg/journal/objectstore/fake"
)

func TestSharded_RoundRobinFanOut(t *testing.T) {
	store := fake.New()
	clock := newTestClock(testDay)

	opts := testOptions(store, clock)
	opts.Shards = 3
	opts.MaxQueueSize = 30

	j, err := Open(context.Background(), opts)
	require.NoError(t, err)
	require.IsType(t, &sharded{}, j)

	for i := 0; i < 6; i++ {
		mustPut(t, j, "payload")
	}
	require.NoError(t, j.Close())

	// Each shard received two records and completed one object under its
	// own prefix.
	for _, shard := range []string{"0", "1", "2"} {
		key := shard + "/2024/01/15/test-000000.journal"
		body, ok := store.Object(key)
		require.True(t, ok, "missing object for shard %s", shard)
		assert.Equal(t, "payload\npayload\n", string(body), "shard %s", shard)
	}

	stats := j.Stats()
	assert.Equal(t, int64(6), stats.Enqueued)
	assert.Equal(t, int64(6), stats.Uploaded)
	assert.Equal(t, int64(0), stats.Dropped)
}

func TestSharded_QueueShareValidation(t *testing.T) {
	opts := testOptions(fake.New(), newTestClock(testDay))
	opts.Shards = 8
	opts.MaxQueueSize = 4 // fewer permits than shards

	_, err := Open(context.Background(), opts)
	assert.Error(t, err)
}

func TestSharded_TooManyShards(t *testing.T) {
	opts := testOptions(fake.New(), newTestClock(testDay))
	opts.Shards = 37

	_, err := Open(context.Background(), opts)
	assert.Error(t, err)
}

func TestSharded_ShardsOwnDisjointDirectories(t *testing.T) {
	store := fake.New()
	opts := testOptions(store, newTestClock(testDay))
	opts.InMemoryQueue = false
	opts.LocalDirectory = t.TempDir()
	opts.Shards = 2

	j, err := Open(context.Background(), opts)
	require.NoError(t, err)

	mustPut(t, j, "a")
	mustPut(t, j, "b")
	require.NoError(t, j.Close())

	// Reopening finds both shard queues drained.
	j2, err := Open(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int64(0), j2.Stats().Queue.Pending)
	require.NoError(t, j2.Close())
}
