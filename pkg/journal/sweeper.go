package journal

import (
	"context"
	"path"

	"github.com/marmos91/s3journal/internal/logger"
	"github.com/marmos91/s3journal/pkg/journal/objectstore"
)

// sweep reclaims stranded multipart uploads: any open upload whose
// time-partition directory is older than the configured expiration gets
// completed with whatever parts it has, preserving the data a crashed peer
// managed to upload. When completion is not permitted the upload is aborted
// instead. The listing is bucket-wide so uploads left by dead instances
// sharing the bucket are reclaimed too.
func (c *consumer) sweep(ctx context.Context) {
	expiration := c.j.opts.Expiration
	now := c.j.now()

	uploads, err := c.j.store.ListUploads(ctx, "")
	if err != nil {
		logger.Warn("Expiration sweep: failed to list uploads", "error", err)
		return
	}

	swept := 0
	for _, u := range uploads {
		dir := path.Dir(u.Key)
		partitioned, err := c.j.tf.Parse(dir)
		if err != nil {
			// A key this journal's format did not produce; leave it alone.
			continue
		}
		if now.Sub(partitioned) <= expiration {
			continue
		}

		desc := objectstore.Descriptor{
			Bucket:   c.j.store.Bucket(),
			Key:      u.Key,
			UploadID: u.UploadID,
		}

		// Skip uploads this consumer is still driving.
		if c.owns(desc) {
			continue
		}

		parts, err := c.j.store.ListParts(ctx, desc)
		if err != nil {
			if objectstore.IsNotFound(err) {
				continue
			}
			logger.Warn("Expiration sweep: failed to list parts",
				"key", u.Key, "error", err)
			continue
		}

		if len(parts) == 0 {
			if err := c.j.store.Abort(ctx, desc); err != nil {
				logger.Warn("Expiration sweep: abort failed", "key", u.Key, "error", err)
			}
			swept++
			continue
		}

		err = c.j.store.Complete(ctx, desc, parts)
		switch {
		case err == nil:
			swept++
		case objectstore.IsNotFound(err):
			// Already gone; nothing to reclaim.
		case objectstore.IsAccessDenied(err):
			if err := c.j.store.Abort(ctx, desc); err != nil {
				logger.Warn("Expiration sweep: abort after denied completion failed",
					"key", u.Key, "error", err)
			} else {
				swept++
			}
		default:
			logger.Warn("Expiration sweep: failed to complete upload",
				"key", u.Key, "error", err)
		}
	}

	if swept > 0 {
		logger.Info("Expiration sweep reclaimed stranded uploads", "count", swept)
	}
}

// owns reports whether the consumer is actively driving the given upload.
func (c *consumer) owns(desc objectstore.Descriptor) bool {
	for _, obj := range c.state {
		if obj.desc.UploadID == desc.UploadID && obj.desc.Key == desc.Key {
			return true
		}
	}
	return false
}
