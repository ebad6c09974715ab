// Package s3 provides an S3-backed handle backend.
//
// Reads are ranged GetObject calls issued directly against the bucket, so
// the pipeline keeps several range requests in flight. S3 objects cannot be
// modified in place: the first write, truncate or sync of an object
// downloads it into a staging buffer, and Sync or Close uploads the staged
// content with PutObject. Transient errors are retried with exponential
// backoff.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/ofio/internal/logger"
	"github.com/marmos91/ofio/internal/telemetry"
	"github.com/marmos91/ofio/pkg/handle"
)

// Config holds configuration for the S3 backend.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// KeyPrefix is prepended to every object name (e.g., "files/").
	KeyPrefix string

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool

	// MaxRetries is the maximum number of retry attempts for transient errors.
	// Default: 3
	MaxRetries int

	// AccessKeyID and SecretAccessKey select static credentials. When empty
	// the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
}

// Metrics records S3 requests. A nil Metrics disables collection.
type Metrics interface {
	ObserveRequest(op string, duration time.Duration, err error)
	RecordBytes(direction string, n int64)
}

// Backend stores objects in an S3 bucket.
type Backend struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	retry     retryConfig
	metrics   Metrics

	mu     sync.RWMutex
	closed bool
}

var (
	_ handle.Backend       = (*Backend)(nil)
	_ handle.ContextObject = (*Object)(nil)
)

// New creates an S3 backend with an existing client.
func New(client *s3.Client, cfg Config) *Backend {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Backend{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		retry:     defaultRetryConfig(cfg.MaxRetries),
	}
}

// NewFromConfig creates an S3 backend by building a client from cfg.
func NewFromConfig(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return New(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

// SetMetrics enables request metrics.
func (b *Backend) SetMetrics(m Metrics) {
	b.metrics = m
}

func (b *Backend) Name() string { return "s3" }

// Bucket returns the bucket name.
func (b *Backend) Bucket() string { return b.bucket }

func (b *Backend) key(name string) string {
	return b.keyPrefix + handle.CleanName(name)
}

func (b *Backend) observe(op string, start time.Time, err error) {
	if b.metrics != nil {
		b.metrics.ObserveRequest(op, time.Since(start), err)
	}
}

// HealthCheck verifies the bucket is accessible.
func (b *Backend) HealthCheck(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	if err != nil {
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	return nil
}

// Open implements handle.Backend.
func (b *Backend) Open(ctx context.Context, name string, mode handle.OpenMode) (handle.Object, error) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return nil, handle.ErrBackendClosed
	}

	if handle.CleanName(name) == "" {
		return nil, fmt.Errorf("s3 root: %w", handle.ErrAccessDenied)
	}
	obj := &Object{backend: b, key: b.key(name)}

	if mode.Truncate() {
		// Create-always: nothing to fetch, upload an empty object on close.
		obj.staged = []byte{}
		obj.dirty = true
		return obj, nil
	}

	size, _, err := b.head(ctx, obj.key)
	switch {
	case err == nil:
		obj.size = size
	case errors.Is(err, handle.ErrNotFound) && mode.Create():
		obj.staged = []byte{}
		obj.dirty = true
	default:
		return nil, err
	}
	return obj, nil
}

// Close implements handle.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// head returns the size and modification time of key.
func (b *Backend) head(ctx context.Context, key string) (size int64, mod time.Time, err error) {
	ctx, span := telemetry.StartStorageSpan(ctx, "s3", "head_object",
		telemetry.Bucket(b.bucket),
		telemetry.StorageKey(key))
	defer span.End()

	start := time.Now()
	defer func() { b.observe("head_object", start, err) }()

	var out *s3.HeadObjectOutput
	err = b.retry.do(ctx, "head_object", key, func() error {
		var herr error
		out, herr = b.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		return herr
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return 0, time.Time{}, mapError(key, err)
	}
	if out.ContentLength == nil {
		return 0, time.Time{}, fmt.Errorf("s3 object %s: content length not available", key)
	}
	return *out.ContentLength, aws.ToTime(out.LastModified), nil
}

// getRange reads into p from key at off with a ranged GetObject.
func (b *Backend) getRange(ctx context.Context, key string, p []byte, off int64) (n int, err error) {
	ctx, span := telemetry.StartStorageSpan(ctx, "s3", "get_object",
		telemetry.Bucket(b.bucket),
		telemetry.StorageKey(key),
		telemetry.FSOffset(off),
		telemetry.FSCount(len(p)))
	defer span.End()

	start := time.Now()
	defer func() {
		b.observe("get_object", start, err)
		if n > 0 && b.metrics != nil {
			b.metrics.RecordBytes("download", int64(n))
		}
	}()

	// S3 ranges are inclusive.
	rng := fmt.Sprintf("bytes=%d-%d", off, off+int64(len(p))-1)

	var out *s3.GetObjectOutput
	err = b.retry.do(ctx, "get_object", key, func() error {
		var gerr error
		out, gerr = b.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
			Range:  aws.String(rng),
		})
		return gerr
	})
	if err != nil {
		if isInvalidRangeError(err) {
			return 0, io.EOF
		}
		telemetry.RecordError(ctx, err)
		return 0, mapError(key, err)
	}
	defer func() { _ = out.Body.Close() }()

	n, err = io.ReadFull(out.Body, p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		// The object ends inside the requested range.
		return n, io.EOF
	}
	return n, err
}

// download fetches the whole object.
func (b *Backend) download(ctx context.Context, key string) (data []byte, err error) {
	ctx, span := telemetry.StartStorageSpan(ctx, "s3", "get_object",
		telemetry.Bucket(b.bucket),
		telemetry.StorageKey(key))
	defer span.End()

	start := time.Now()
	defer func() {
		b.observe("get_object", start, err)
		if b.metrics != nil {
			b.metrics.RecordBytes("download", int64(len(data)))
		}
	}()

	err = b.retry.do(ctx, "get_object", key, func() error {
		out, gerr := b.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		if gerr != nil {
			return gerr
		}
		defer func() { _ = out.Body.Close() }()
		data, gerr = io.ReadAll(out.Body)
		return gerr
	})
	if err != nil {
		return nil, mapError(key, err)
	}
	return data, nil
}

// put uploads data as key.
func (b *Backend) put(ctx context.Context, key string, data []byte) (err error) {
	ctx, span := telemetry.StartStorageSpan(ctx, "s3", "put_object",
		telemetry.Bucket(b.bucket),
		telemetry.StorageKey(key),
		telemetry.FSSize(int64(len(data))))
	defer span.End()

	start := time.Now()
	defer func() {
		b.observe("put_object", start, err)
		if err == nil && b.metrics != nil {
			b.metrics.RecordBytes("upload", int64(len(data)))
		}
	}()

	err = b.retry.do(ctx, "put_object", key, func() error {
		_, perr := b.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(b.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
		})
		return perr
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return mapError(key, err)
	}

	logger.DebugCtx(ctx, "s3: object uploaded",
		logger.KeyBucket, b.bucket,
		logger.KeyKey, key,
		logger.KeySize, int64(len(data)))
	return nil
}

// mapError wraps S3 errors with the handle sentinels.
func mapError(key string, err error) error {
	switch {
	case isNotFoundError(err):
		return fmt.Errorf("s3 object %s: %w", key, handle.ErrNotFound)
	case isAccessDeniedError(err):
		return fmt.Errorf("s3 object %s: %w: %w", key, handle.ErrAccessDenied, err)
	default:
		return fmt.Errorf("s3 object %s: %w", key, err)
	}
}
