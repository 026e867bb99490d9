// Package objectstore defines the narrow S3 surface the journal consumes,
// together with the part-size rules multipart uploads must respect.
//
// The journal core never talks to the AWS SDK directly: it depends on the
// Client interface so tests can run against the in-memory fake and so
// S3-compatible stores (MinIO, Ceph RGW, R2) plug in through the same seam.
package objectstore

import (
	"context"
	"time"
)

// S3 multipart upload rules. Parts other than the last one must be at least
// MinPartSize; no part may exceed MaxPartSize; one object holds at most
// MaxPartsPerObject parts.
const (
	MinPartSize       = 5 * 1024 * 1024
	MaxPartSize       = 5 * 1024 * 1024 * 1024
	MaxPartsPerObject = 10000
)

// Limits carries the part-size rules. The upload state machine applies
// MinPartSize and MaxPartsPerObject; MaxPartSize is carried but not checked,
// so a part is not split when it grows past it. Production code uses
// DefaultLimits; tests shrink them to drive rollover paths with tiny
// payloads.
type Limits struct {
	MinPartSize       int64
	MaxPartSize       int64
	MaxPartsPerObject int64
}

// DefaultLimits returns the S3 production limits.
func DefaultLimits() Limits {
	return Limits{
		MinPartSize:       MinPartSize,
		MaxPartSize:       MaxPartSize,
		MaxPartsPerObject: MaxPartsPerObject,
	}
}

// Descriptor identifies one in-flight multipart upload.
type Descriptor struct {
	Bucket   string
	Key      string
	UploadID string
}

// CompletedPart is one committed part of a multipart upload.
type CompletedPart struct {
	PartNumber int32
	ETag       string
}

// Upload describes one open multipart upload returned by ListUploads.
type Upload struct {
	Key       string
	UploadID  string
	Initiated time.Time
}

// Client is the object-store surface the journal consumes.
//
// All mutating calls are serialized by the journal's single consumer loop;
// implementations only need to be safe for the read-side calls happening
// concurrently with recovery.
type Client interface {
	// Bucket returns the bucket the client operates on. Recovery uses it to
	// rebuild descriptors for uploads found by ListUploads.
	Bucket() string

	// Initiate starts a multipart upload for key and returns its descriptor.
	Initiate(ctx context.Context, key string) (Descriptor, error)

	// UploadPart uploads one part. partNumber is 1-based within the object.
	// last marks the final part of an object, which is allowed to be smaller
	// than MinPartSize.
	UploadPart(ctx context.Context, d Descriptor, partNumber int32, body []byte, last bool) (etag string, err error)

	// Complete finalizes a multipart upload from its committed parts.
	Complete(ctx context.Context, d Descriptor, parts []CompletedPart) error

	// Abort cancels a multipart upload. Aborting an already-gone upload is
	// not an error.
	Abort(ctx context.Context, d Descriptor) error

	// ListUploads returns the open multipart uploads under prefix. An empty
	// prefix lists the whole bucket.
	ListUploads(ctx context.Context, prefix string) ([]Upload, error)

	// ListParts returns the committed parts of an open multipart upload.
	ListParts(ctx context.Context, d Descriptor) ([]CompletedPart, error)

	// ListObjects returns the object keys under prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// Metrics receives per-operation observations from the store. A nil Metrics
// is valid and costs nothing.
type Metrics interface {
	ObserveOperation(operation string, duration time.Duration, err error)
	RecordBytes(operation string, bytes int64)
}
