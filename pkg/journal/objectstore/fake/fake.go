// Package fake provides an in-memory objectstore.Client for tests.
//
// It mirrors the S3 multipart contract closely enough for the journal's
// state machine: uploads are keyed by upload id, parts may be overwritten by
// part number, completion requires a contiguous 1-based part set, and list
// calls observe a consistent snapshot under the mutex.
package fake

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/smithy-go"

	"github.com/marmos91/s3journal/pkg/journal/objectstore"
)

// Client is an in-memory implementation of objectstore.Client.
type Client struct {
	mu       sync.Mutex
	bucket   string
	nextID   int
	uploads  map[string]*upload // upload id -> state
	objects  map[string][]byte  // completed objects
	now      func() time.Time
	failNext map[string]error // operation -> error injected once
	failAll  map[string]error // operation -> persistent error
	calls    []string
}

type upload struct {
	key       string
	id        string
	initiated time.Time
	parts     map[int32][]byte
	etags     map[int32]string
}

// New creates an empty fake store.
func New() *Client {
	return &Client{
		bucket:   "fake-bucket",
		uploads:  make(map[string]*upload),
		objects:  make(map[string][]byte),
		now:      time.Now,
		failNext: make(map[string]error),
		failAll:  make(map[string]error),
	}
}

// Bucket returns the fake bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// SetClock overrides the clock used to stamp upload initiation times.
func (c *Client) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// FailNext injects err into the next call of the named operation
// (Initiate, UploadPart, Complete, Abort, ListUploads, ListParts).
func (c *Client) FailNext(operation string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext[operation] = err
}

// FailAll makes every call of the named operation fail with err until reset
// with a nil err.
func (c *Client) FailAll(operation string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failAll, operation)
		return
	}
	c.failAll[operation] = err
}

// NotFoundErr returns an error objectstore.IsNotFound recognizes.
func NotFoundErr() error {
	return &smithy.GenericAPIError{Code: "NoSuchUpload", Message: "upload gone"}
}

// AccessDeniedErr returns an error objectstore.IsAccessDenied recognizes.
func AccessDeniedErr() error {
	return &smithy.GenericAPIError{Code: "AccessDenied", Message: "not authorized"}
}

func (c *Client) fail(operation string) error {
	if err, ok := c.failNext[operation]; ok {
		delete(c.failNext, operation)
		return err
	}
	if err, ok := c.failAll[operation]; ok {
		return err
	}
	return nil
}

// Initiate starts a fake multipart upload.
func (c *Client) Initiate(_ context.Context, key string) (objectstore.Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "Initiate "+key)

	if err := c.fail("Initiate"); err != nil {
		return objectstore.Descriptor{}, err
	}

	c.nextID++
	id := fmt.Sprintf("upload-%04d", c.nextID)
	c.uploads[id] = &upload{
		key:       key,
		id:        id,
		initiated: c.now(),
		parts:     make(map[int32][]byte),
		etags:     make(map[int32]string),
	}

	return objectstore.Descriptor{Bucket: c.bucket, Key: key, UploadID: id}, nil
}

// SeedUpload registers an open upload with pre-committed parts, as recovery
// and sweeper tests need.
func (c *Client) SeedUpload(key string, parts ...[]byte) objectstore.Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := fmt.Sprintf("upload-%04d", c.nextID)
	u := &upload{
		key:       key,
		id:        id,
		initiated: c.now(),
		parts:     make(map[int32][]byte),
		etags:     make(map[int32]string),
	}
	for i, p := range parts {
		n := int32(i + 1)
		u.parts[n] = append([]byte(nil), p...)
		u.etags[n] = fmt.Sprintf("etag-%s-%d", id, n)
	}
	c.uploads[id] = u

	return objectstore.Descriptor{Bucket: c.bucket, Key: key, UploadID: id}
}

// UploadPart stores one part.
func (c *Client) UploadPart(_ context.Context, d objectstore.Descriptor, partNumber int32, body []byte, _ bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, fmt.Sprintf("UploadPart %s #%d (%d bytes)", d.Key, partNumber, len(body)))

	if err := c.fail("UploadPart"); err != nil {
		return "", err
	}

	u, ok := c.uploads[d.UploadID]
	if !ok {
		return "", NotFoundErr()
	}

	u.parts[partNumber] = append([]byte(nil), body...)
	etag := fmt.Sprintf("etag-%s-%d-%d", d.UploadID, partNumber, len(body))
	u.etags[partNumber] = etag
	return etag, nil
}

// Complete assembles the upload into an object.
func (c *Client) Complete(_ context.Context, d objectstore.Descriptor, parts []objectstore.CompletedPart) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "Complete "+d.Key)

	if err := c.fail("Complete"); err != nil {
		return err
	}

	u, ok := c.uploads[d.UploadID]
	if !ok {
		return NotFoundErr()
	}
	if len(parts) == 0 {
		return &smithy.GenericAPIError{Code: "InvalidRequest", Message: "no parts"}
	}

	sorted := append([]objectstore.CompletedPart(nil), parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	var body []byte
	for i, p := range sorted {
		if p.PartNumber != int32(i+1) {
			return &smithy.GenericAPIError{Code: "InvalidPartOrder", Message: "part numbers not contiguous"}
		}
		data, ok := u.parts[p.PartNumber]
		if !ok || u.etags[p.PartNumber] != p.ETag {
			return &smithy.GenericAPIError{Code: "InvalidPart", Message: fmt.Sprintf("part %d missing or etag mismatch", p.PartNumber)}
		}
		body = append(body, data...)
	}

	c.objects[u.key] = body
	delete(c.uploads, d.UploadID)
	return nil
}

// Abort drops the upload.
func (c *Client) Abort(_ context.Context, d objectstore.Descriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "Abort "+d.Key)

	if err := c.fail("Abort"); err != nil {
		return err
	}

	delete(c.uploads, d.UploadID)
	return nil
}

// ListUploads lists open uploads under prefix, ordered by key then id.
func (c *Client) ListUploads(_ context.Context, prefix string) ([]objectstore.Upload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("ListUploads"); err != nil {
		return nil, err
	}

	var out []objectstore.Upload
	for _, u := range c.uploads {
		if strings.HasPrefix(u.key, prefix) {
			out = append(out, objectstore.Upload{Key: u.key, UploadID: u.id, Initiated: u.initiated})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].UploadID < out[j].UploadID
	})
	return out, nil
}

// ListParts returns the committed parts of an open upload.
func (c *Client) ListParts(_ context.Context, d objectstore.Descriptor) ([]objectstore.CompletedPart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("ListParts"); err != nil {
		return nil, err
	}

	u, ok := c.uploads[d.UploadID]
	if !ok {
		return nil, NotFoundErr()
	}

	var out []objectstore.CompletedPart
	for n, etag := range u.etags {
		out = append(out, objectstore.CompletedPart{PartNumber: n, ETag: etag})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartNumber < out[j].PartNumber })
	return out, nil
}

// ListObjects returns completed object keys under prefix, sorted.
func (c *Client) ListObjects(_ context.Context, prefix string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []string
	for k := range c.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Object returns the body of a completed object.
func (c *Client) Object(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	body, ok := c.objects[key]
	return body, ok
}

// OpenUploads returns how many multipart uploads are still open.
func (c *Client) OpenUploads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.uploads)
}

// Calls returns the operation log. Part sizes are recorded here because the
// upload state is gone once Complete assembles the object.
func (c *Client) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}
