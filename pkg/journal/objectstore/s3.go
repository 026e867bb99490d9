package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store implements Client on top of an AWS SDK v2 S3 client.
type S3Store struct {
	client  *s3.Client
	bucket  string
	metrics Metrics
}

// S3Config carries the settings needed to reach one bucket.
type S3Config struct {
	// AccessKey and SecretKey are static credentials. When both are empty the
	// SDK's default chain (env, shared config, IMDS) is used instead.
	AccessKey string
	SecretKey string

	// Region of the bucket. Defaults to us-east-1.
	Region string

	// Endpoint overrides the S3 endpoint for S3-compatible stores.
	Endpoint string

	// ForcePathStyle addresses the bucket as a path segment instead of a
	// virtual host. Required by most S3-compatible stores.
	ForcePathStyle bool

	// Bucket is the target bucket.
	Bucket string

	// Metrics is optional.
	Metrics Metrics
}

// NewS3Store builds an S3-backed store.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		metrics: cfg.Metrics,
	}, nil
}

// Bucket returns the bucket this store writes to.
func (s *S3Store) Bucket() string {
	return s.bucket
}

func (s *S3Store) observe(op string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, time.Since(start), err)
	}
}

// Initiate starts a multipart upload for key.
func (s *S3Store) Initiate(ctx context.Context, key string) (Descriptor, error) {
	start := time.Now()
	result, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	s.observe("CreateMultipartUpload", start, err)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to create multipart upload for %q: %w", key, err)
	}

	return Descriptor{
		Bucket:   s.bucket,
		Key:      key,
		UploadID: aws.ToString(result.UploadId),
	}, nil
}

// UploadPart uploads one part of a multipart upload.
func (s *S3Store) UploadPart(ctx context.Context, d Descriptor, partNumber int32, body []byte, last bool) (string, error) {
	start := time.Now()
	result, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(d.Bucket),
		Key:        aws.String(d.Key),
		UploadId:   aws.String(d.UploadID),
		PartNumber: aws.Int32(partNumber),
		Body:       bytes.NewReader(body),
	})
	s.observe("UploadPart", start, err)
	if err != nil {
		return "", fmt.Errorf("failed to upload part %d of %q: %w", partNumber, d.Key, err)
	}

	if s.metrics != nil {
		s.metrics.RecordBytes("UploadPart", int64(len(body)))
	}

	return aws.ToString(result.ETag), nil
}

// Complete finalizes a multipart upload.
func (s *S3Store) Complete(ctx context.Context, d Descriptor, parts []CompletedPart) error {
	completed := make([]types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.PartNumber),
		})
	}

	start := time.Now()
	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(d.Bucket),
		Key:      aws.String(d.Key),
		UploadId: aws.String(d.UploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	s.observe("CompleteMultipartUpload", start, err)
	if err != nil {
		return fmt.Errorf("failed to complete multipart upload for %q: %w", d.Key, err)
	}

	return nil
}

// Abort cancels a multipart upload. NoSuchUpload is swallowed so aborts are
// idempotent.
func (s *S3Store) Abort(ctx context.Context, d Descriptor) error {
	start := time.Now()
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(d.Bucket),
		Key:      aws.String(d.Key),
		UploadId: aws.String(d.UploadID),
	})
	s.observe("AbortMultipartUpload", start, err)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to abort multipart upload for %q: %w", d.Key, err)
	}

	return nil
}

// ListUploads returns the open multipart uploads under prefix.
func (s *S3Store) ListUploads(ctx context.Context, prefix string) ([]Upload, error) {
	var uploads []Upload

	input := &s3.ListMultipartUploadsInput{
		Bucket: aws.String(s.bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	for {
		start := time.Now()
		result, err := s.client.ListMultipartUploads(ctx, input)
		s.observe("ListMultipartUploads", start, err)
		if err != nil {
			return nil, fmt.Errorf("failed to list multipart uploads: %w", err)
		}

		for _, u := range result.Uploads {
			uploads = append(uploads, Upload{
				Key:       aws.ToString(u.Key),
				UploadID:  aws.ToString(u.UploadId),
				Initiated: aws.ToTime(u.Initiated),
			})
		}

		if !aws.ToBool(result.IsTruncated) {
			return uploads, nil
		}
		input.KeyMarker = result.NextKeyMarker
		input.UploadIdMarker = result.NextUploadIdMarker
	}
}

// ListParts returns the committed parts of an open multipart upload.
func (s *S3Store) ListParts(ctx context.Context, d Descriptor) ([]CompletedPart, error) {
	var parts []CompletedPart

	input := &s3.ListPartsInput{
		Bucket:   aws.String(d.Bucket),
		Key:      aws.String(d.Key),
		UploadId: aws.String(d.UploadID),
	}

	for {
		start := time.Now()
		result, err := s.client.ListParts(ctx, input)
		s.observe("ListParts", start, err)
		if err != nil {
			return nil, fmt.Errorf("failed to list parts of %q: %w", d.Key, err)
		}

		for _, p := range result.Parts {
			parts = append(parts, CompletedPart{
				PartNumber: aws.ToInt32(p.PartNumber),
				ETag:       aws.ToString(p.ETag),
			})
		}

		if !aws.ToBool(result.IsTruncated) {
			return parts, nil
		}
		input.PartNumberMarker = result.NextPartNumberMarker
	}
}

// ListObjects returns the object keys under prefix.
func (s *S3Store) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		start := time.Now()
		page, err := paginator.NextPage(ctx)
		s.observe("ListObjectsV2", start, err)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects under %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	return keys, nil
}
