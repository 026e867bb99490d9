package journal

import (
	"bytes"
	"io"
	"testing"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_DelimiterOnly(t *testing.T) {
	got := frame([][]byte{[]byte("hello"), []byte("world")}, []byte("\n"), false)
	assert.Equal(t, []byte("hello\nworld\n"), got)
}

func TestFrame_SizedOnly(t *testing.T) {
	got := frame([][]byte{[]byte("hi")}, nil, true)
	assert.Equal(t, []byte{0, 0, 0, 2, 'h', 'i'}, got)
}

func TestFrame_SizedAndDelimiter(t *testing.T) {
	got := frame([][]byte{[]byte("hi")}, []byte("|"), true)
	assert.Equal(t, []byte{0, 0, 0, 2, 'h', 'i', '|'}, got)
}

func TestFrame_Bare(t *testing.T) {
	got := frame([][]byte{[]byte("a"), []byte("b")}, nil, false)
	assert.Equal(t, []byte("ab"), got)
}

func TestFrame_NilBatch(t *testing.T) {
	assert.Nil(t, frame(nil, []byte("\n"), true))
}

func TestEncodeRecord(t *testing.T) {
	b, err := encodeRecord([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), b)

	b, err = encodeRecord("text")
	require.NoError(t, err)
	assert.Equal(t, []byte("text"), b)

	_, err = encodeRecord(struct{}{})
	assert.Error(t, err)
}

func TestCompressorSuffixes(t *testing.T) {
	cases := map[string]string{
		"":         "",
		"identity": "",
		"none":     "",
		"gzip":     "gz",
		"snappy":   "snappy",
		"bzip2":    "bz2",
		"lzo":      "lzo",
		"zstd":     "zst",
	}

	for name, suffix := range cases {
		fn, got, err := compressorByName(name)
		require.NoError(t, err, "compressor %q", name)
		assert.NotNil(t, fn)
		assert.Equal(t, suffix, got, "compressor %q", name)
	}

	_, _, err := compressorByName("brotli")
	assert.Error(t, err)
}

func TestGzipCompressorRoundTrip(t *testing.T) {
	in := bytes.Repeat([]byte("the quick brown fox\n"), 100)

	out, err := gzipCompressor(in)
	require.NoError(t, err)
	assert.Less(t, len(out), len(in))

	r, err := gzip.NewReader(bytes.NewReader(out))
	require.NoError(t, err)
	back, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, in, back)
}

func TestSnappyCompressorRoundTrip(t *testing.T) {
	in := bytes.Repeat([]byte("abcd"), 256)

	out, err := snappyCompressor(in)
	require.NoError(t, err)

	back, err := snappy.Decode(nil, out)
	require.NoError(t, err)
	assert.Equal(t, in, back)
}

func TestIdentityCompressor(t *testing.T) {
	in := []byte("unchanged")
	out, err := identityCompressor(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
