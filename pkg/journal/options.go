package journal

import (
	"fmt"
	"time"

	"github.com/marmos91/s3journal/internal/hostid"
	"github.com/marmos91/s3journal/pkg/journal/objectstore"
)

// Options configures a journal. The zero value is not usable: LocalDirectory
// is required, and either a batch size or a batch latency bound must remain
// set after defaulting.
type Options struct {
	// S3 configures the object-store client built by Open. Ignored when
	// Store is set.
	S3 objectstore.S3Config

	// Store overrides the object-store client, primarily for tests and
	// S3-compatible deployments that build their own client.
	Store objectstore.Client

	// DirectoryFormat is the time-partition pattern, optionally led by a
	// single-quoted literal that becomes the bucket prefix:
	// "yyyy/MM/dd" or "'archive'/yyyy/MM/dd". Default "yyyy/MM/dd".
	DirectoryFormat string

	// LocalDirectory hosts the durable queue. Required; owned exclusively by
	// this journal instance.
	LocalDirectory string

	// Encoder turns one record into bytes. The default passes through byte
	// slices and strings.
	Encoder func(v any) ([]byte, error)

	// Compressor names a built-in compressor: identity, gzip, snappy,
	// bzip2, lzo or zstd. Default identity.
	Compressor string

	// CustomCompressor overrides Compressor with an arbitrary bytes-to-bytes
	// function. Set Suffix alongside it if the objects should carry one.
	CustomCompressor Compressor

	// Delimiter is appended after every record. Default "\n"; set
	// NoDelimiter to frame records without a separator.
	Delimiter   string
	NoDelimiter bool

	// Sized prefixes every record with its big-endian 32-bit length.
	Sized bool

	// DisableFsync turns off per-put fsync on the durable queue, trading
	// crash durability of the latest puts for throughput.
	DisableFsync bool

	// Suffix is the object-key suffix. Empty means derived from the
	// compressor (gzip objects end in .gz, and so on).
	Suffix string

	// ID is baked into object keys. Default: the local hostname.
	ID string

	// MaxQueueSize caps accepted-but-not-yet-uploaded records. Default 65536.
	MaxQueueSize int

	// MaxBatchSize flushes the batcher at this many records. 0 means no
	// size bound.
	MaxBatchSize int

	// MaxBatchLatency flushes the batcher at least this often.
	// Default 60s. Set a negative value to disable the timer (requires
	// MaxBatchSize).
	MaxBatchLatency time.Duration

	// Expiration, when positive, reclaims stranded multipart uploads whose
	// time partition is older than this.
	Expiration time.Duration

	// Shards fans writes out across this many independent journals (at most
	// 36). 0 or 1 runs a single journal.
	Shards int

	// Limits overrides the S3 part-size rules. Tests shrink them; production
	// leaves them zero for the real limits.
	Limits objectstore.Limits

	// Metrics is optional.
	Metrics Metrics

	// InMemoryQueue backs the durable queue with memory instead of
	// LocalDirectory. Tests only: it does not survive restarts.
	InMemoryQueue bool

	// shardPrefix is prepended to every key by the sharded fan-out.
	shardPrefix string

	// nowFn overrides the wall clock in tests.
	nowFn func() time.Time

	// sweepInterval is how often the consumer loop re-runs the expiration
	// sweeper. Tests shrink it.
	sweepInterval time.Duration

	// retrySleep is the pause after a retried task. Tests shrink it.
	retrySleep time.Duration

	// drainTimeout is how long a take may stay empty after the close latch
	// before the consumer exits. Tests shrink it.
	drainTimeout time.Duration
}

// maxShards bounds the fan-out; shard ids are the characters 0-9 then a-z.
const maxShards = 36

// normalize applies defaults and validates the result.
func (o *Options) normalize() error {
	if o.LocalDirectory == "" && !o.InMemoryQueue {
		return fmt.Errorf("journal: LocalDirectory is required")
	}
	if o.Shards < 0 || o.Shards > maxShards {
		return fmt.Errorf("journal: Shards must be between 0 and %d", maxShards)
	}

	if o.DirectoryFormat == "" {
		o.DirectoryFormat = "yyyy/MM/dd"
	}
	if o.Encoder == nil {
		o.Encoder = encodeRecord
	}
	if o.Delimiter == "" && !o.NoDelimiter {
		o.Delimiter = "\n"
	}
	if o.NoDelimiter {
		o.Delimiter = ""
	}
	if o.ID == "" {
		o.ID = hostid.Default()
	}
	if o.MaxQueueSize <= 0 {
		o.MaxQueueSize = 65536
	}
	if o.MaxBatchLatency == 0 {
		o.MaxBatchLatency = 60 * time.Second
	}
	if o.MaxBatchLatency < 0 {
		o.MaxBatchLatency = 0
	}
	if o.MaxBatchSize <= 0 && o.MaxBatchLatency <= 0 {
		return fmt.Errorf("journal: at least one of MaxBatchSize and MaxBatchLatency must be set")
	}
	if o.Limits == (objectstore.Limits{}) {
		o.Limits = objectstore.DefaultLimits()
	}
	if o.Limits.MinPartSize <= 0 || o.Limits.MaxPartsPerObject <= 0 {
		return fmt.Errorf("journal: invalid part-size limits %+v", o.Limits)
	}
	if o.Metrics == nil {
		o.Metrics = nopMetrics{}
	}
	if o.nowFn == nil {
		o.nowFn = time.Now
	}
	if o.sweepInterval <= 0 {
		o.sweepInterval = time.Hour
	}
	if o.retrySleep <= 0 {
		o.retrySleep = time.Second
	}
	if o.drainTimeout <= 0 {
		o.drainTimeout = 5 * time.Second
	}

	if o.CustomCompressor == nil {
		if _, _, err := compressorByName(o.Compressor); err != nil {
			return err
		}
	}

	return nil
}

// compressor resolves the compressor function and the object-key suffix.
func (o *Options) compressor() (Compressor, string) {
	if o.CustomCompressor != nil {
		return o.CustomCompressor, o.Suffix
	}
	fn, derived, _ := compressorByName(o.Compressor)
	if o.Suffix != "" {
		derived = o.Suffix
	}
	return fn, derived
}
