package journal

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dsnet/compress/bzip2"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	lzo "github.com/rasky/go-lzo"
)

// Compressor turns one framed batch into its stored representation.
type Compressor func([]byte) ([]byte, error)

// frame concatenates encoded records into one blob. Each record is
// optionally prefixed with its big-endian 32-bit length (sized) and
// optionally followed by the delimiter. A nil batch frames to zero bytes.
func frame(records [][]byte, delimiter []byte, sized bool) []byte {
	if len(records) == 0 {
		return nil
	}

	size := 0
	for _, r := range records {
		size += len(r) + len(delimiter)
		if sized {
			size += 4
		}
	}

	buf := make([]byte, 0, size)
	for _, r := range records {
		if sized {
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(r)))
		}
		buf = append(buf, r...)
		buf = append(buf, delimiter...)
	}
	return buf
}

// encodeRecord is the default record encoder: byte slices and strings pass
// through, fmt.Stringer values are encoded as their String(), anything else
// is rejected so producers notice instead of journaling fmt noise.
func encodeRecord(v any) ([]byte, error) {
	switch r := v.(type) {
	case []byte:
		return r, nil
	case string:
		return []byte(r), nil
	case fmt.Stringer:
		return []byte(r.String()), nil
	default:
		return nil, fmt.Errorf("cannot encode record of type %T; set Options.Encoder", v)
	}
}

func identityCompressor(data []byte) ([]byte, error) {
	return data, nil
}

func gzipCompressor(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return buf.Bytes(), nil
}

func snappyCompressor(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func bzip2Compressor(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
	if err != nil {
		return nil, fmt.Errorf("bzip2: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("bzip2: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("bzip2: %w", err)
	}
	return buf.Bytes(), nil
}

func lzoCompressor(data []byte) ([]byte, error) {
	return lzo.Compress1X999(data), nil
}

var zstdEncoder, zstdEncoderErr = zstd.NewWriter(nil)

func zstdCompressor(data []byte) ([]byte, error) {
	if zstdEncoderErr != nil {
		return nil, fmt.Errorf("zstd: %w", zstdEncoderErr)
	}
	return zstdEncoder.EncodeAll(data, nil), nil
}

// compressorByName resolves a configured compressor name to its function and
// the object-key suffix derived from it.
func compressorByName(name string) (Compressor, string, error) {
	switch name {
	case "", "identity", "none":
		return identityCompressor, "", nil
	case "gzip":
		return gzipCompressor, "gz", nil
	case "snappy":
		return snappyCompressor, "snappy", nil
	case "bzip2":
		return bzip2Compressor, "bz2", nil
	case "lzo":
		return lzoCompressor, "lzo", nil
	case "zstd":
		return zstdCompressor, "zst", nil
	default:
		return nil, "", fmt.Errorf("unknown compressor %q", name)
	}
}
