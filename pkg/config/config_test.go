package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/s3journal/internal/bytesize"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json

s3:
  bucket: journal-bucket
  region: eu-west-1
  endpoint: http://127.0.0.1:9000
  force_path_style: true

journal:
  directory_format: "'archive'/yyyy/MM/dd"
  local_directory: /tmp/s3journal-test
  compressor: gzip
  sized: true
  max_queue_size: 1000
  max_batch_size: 50
  max_batch_latency: 5s
  expiration: 168h
  shards: 4
  min_part_size: 5Mi
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "journal-bucket", cfg.S3.Bucket)
	assert.True(t, cfg.S3.ForcePathStyle)
	assert.Equal(t, "'archive'/yyyy/MM/dd", cfg.Journal.DirectoryFormat)
	assert.Equal(t, "gzip", cfg.Journal.Compressor)
	assert.True(t, cfg.Journal.Sized)
	assert.True(t, cfg.Journal.Fsync, "fsync must default to true")
	assert.Equal(t, 1000, cfg.Journal.MaxQueueSize)
	assert.Equal(t, 5*time.Second, cfg.Journal.MaxBatchLatency)
	assert.Equal(t, 7*24*time.Hour, cfg.Journal.Expiration)
	assert.Equal(t, 4, cfg.Journal.Shards)
	assert.Equal(t, 5*bytesize.MiB, cfg.Journal.MinPartSize)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
s3:
  bucket: b
journal:
  local_directory: /tmp/q
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "yyyy/MM/dd", cfg.Journal.DirectoryFormat)
	assert.Equal(t, "identity", cfg.Journal.Compressor)
	assert.Equal(t, "\n", cfg.Journal.Delimiter)
	assert.True(t, cfg.Journal.Fsync)
	assert.Equal(t, 65536, cfg.Journal.MaxQueueSize)
	assert.Equal(t, 60*time.Second, cfg.Journal.MaxBatchLatency)
}

func TestLoad_ExplicitFsyncOff(t *testing.T) {
	path := writeConfig(t, `
s3:
  bucket: b
journal:
  local_directory: /tmp/q
  fsync: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Journal.Fsync)
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := map[string]string{
		"missing bucket": `
journal:
  local_directory: /tmp/q
`,
		"missing local directory": `
s3:
  bucket: b
`,
		"bad compressor": `
s3:
  bucket: b
journal:
  local_directory: /tmp/q
  compressor: brotli
`,
		"too many shards": `
s3:
  bucket: b
journal:
  local_directory: /tmp/q
  shards: 99
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestToOptions(t *testing.T) {
	path := writeConfig(t, `
s3:
  bucket: b
journal:
  local_directory: /tmp/q
  compressor: snappy
  id: node1
  fsync: false
  min_part_size: 1Mi
  max_parts_per_object: 100
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	opts := cfg.ToOptions(nil)
	assert.Equal(t, "b", opts.S3.Bucket)
	assert.Equal(t, "snappy", opts.Compressor)
	assert.Equal(t, "node1", opts.ID)
	assert.True(t, opts.DisableFsync)
	assert.Equal(t, int64(bytesize.MiB), opts.Limits.MinPartSize)
	assert.Equal(t, int64(100), opts.Limits.MaxPartsPerObject)
}
