package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/ofio/internal/logger"
	"github.com/marmos91/ofio/internal/telemetry"
	"github.com/marmos91/ofio/pkg/handle"
)

// Directories are key prefixes. Mkdir stores a zero-byte marker object
// named "<dir>/" so an empty directory survives; anything stored below a
// prefix implies the directory too.

func (b *Backend) usable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return handle.ErrBackendClosed
	}
	return nil
}

// dirKey is the marker key of the directory name, which must be cleaned.
func (b *Backend) dirKey(name string) string {
	return b.keyPrefix + name + "/"
}

// dirState reports whether name is a directory and whether it holds
// anything besides its own marker. mod is the marker's time, if any.
func (b *Backend) dirState(ctx context.Context, name string) (exists, hasChildren bool, mod time.Time, err error) {
	marker := b.dirKey(name)
	keys, err := b.listKeys(ctx, marker, 2)
	if err != nil {
		return false, false, time.Time{}, err
	}
	for _, k := range keys {
		if k.key == marker {
			mod = k.mod
			continue
		}
		hasChildren = true
	}
	return len(keys) > 0, hasChildren, mod, nil
}

type listedKey struct {
	key  string
	size int64
	mod  time.Time
}

// listKeys returns up to limit keys below prefix, without a delimiter.
func (b *Backend) listKeys(ctx context.Context, prefix string, limit int32) (keys []listedKey, err error) {
	ctx, span := telemetry.StartStorageSpan(ctx, "s3", "list_objects",
		telemetry.Bucket(b.bucket),
		telemetry.StorageKey(prefix))
	defer span.End()

	start := time.Now()
	defer func() { b.observe("list_objects", start, err) }()

	var out *s3.ListObjectsV2Output
	err = b.retry.do(ctx, "list_objects", prefix, func() error {
		var lerr error
		out, lerr = b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(b.bucket),
			Prefix:  aws.String(prefix),
			MaxKeys: aws.Int32(limit),
		})
		return lerr
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, mapError(prefix, err)
	}
	for _, obj := range out.Contents {
		keys = append(keys, listedKey{
			key:  aws.ToString(obj.Key),
			size: aws.ToInt64(obj.Size),
			mod:  aws.ToTime(obj.LastModified),
		})
	}
	return keys, nil
}

// Stat implements handle.Backend.
func (b *Backend) Stat(ctx context.Context, name string) (handle.Entry, error) {
	if err := b.usable(ctx); err != nil {
		return handle.Entry{}, err
	}
	name = handle.CleanName(name)
	if name == "" {
		return handle.Entry{Dir: true}, nil
	}

	size, mod, err := b.head(ctx, b.key(name))
	if err == nil {
		return handle.Entry{Name: name, Size: size, ModTime: mod}, nil
	}
	if !errors.Is(err, handle.ErrNotFound) {
		return handle.Entry{}, err
	}

	exists, _, mod, err := b.dirState(ctx, name)
	if err != nil {
		return handle.Entry{}, err
	}
	if !exists {
		return handle.Entry{}, fmt.Errorf("s3 object %s: %w", b.key(name), handle.ErrNotFound)
	}
	return handle.Entry{Name: name, ModTime: mod, Dir: true}, nil
}

// List implements handle.Backend.
func (b *Backend) List(ctx context.Context, dir string) (entries []handle.Entry, err error) {
	if err := b.usable(ctx); err != nil {
		return nil, err
	}
	dir = handle.CleanName(dir)
	l := handle.NewLister(dir)
	prefix := b.keyPrefix + l.Prefix()

	ctx, span := telemetry.StartStorageSpan(ctx, "s3", "list_objects",
		telemetry.Bucket(b.bucket),
		telemetry.StorageKey(prefix))
	defer span.End()

	start := time.Now()
	defer func() { b.observe("list_objects", start, err) }()

	found := false
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		var page *s3.ListObjectsV2Output
		err = b.retry.do(ctx, "list_objects", prefix, func() error {
			var perr error
			page, perr = paginator.NextPage(ctx)
			return perr
		})
		if err != nil {
			telemetry.RecordError(ctx, err)
			return nil, mapError(prefix, err)
		}

		for _, obj := range page.Contents {
			found = true
			name := strings.TrimPrefix(aws.ToString(obj.Key), b.keyPrefix)
			// The listed directory's own marker lists as "".
			l.Add(name, aws.ToInt64(obj.Size), aws.ToTime(obj.LastModified))
		}
		for _, cp := range page.CommonPrefixes {
			found = true
			name := strings.TrimPrefix(aws.ToString(cp.Prefix), b.keyPrefix)
			l.AddDir(strings.TrimSuffix(name, "/"), time.Time{})
		}
	}

	if dir != "" && !found {
		return nil, fmt.Errorf("s3 directory %s: %w", prefix, handle.ErrNotFound)
	}
	return l.Entries(), nil
}

// Mkdir implements handle.Backend. Parents are implied by the marker.
func (b *Backend) Mkdir(ctx context.Context, name string) error {
	if err := b.usable(ctx); err != nil {
		return err
	}
	name = handle.CleanName(name)
	if name == "" {
		return fmt.Errorf("s3 directory %s: %w", b.keyPrefix, handle.ErrExists)
	}

	if _, err := b.Stat(ctx, name); err == nil {
		return fmt.Errorf("s3 directory %s: %w", b.dirKey(name), handle.ErrExists)
	} else if !errors.Is(err, handle.ErrNotFound) {
		return err
	}
	return b.put(ctx, b.dirKey(name), nil)
}

// Remove implements handle.Backend.
func (b *Backend) Remove(ctx context.Context, name string) error {
	if err := b.usable(ctx); err != nil {
		return err
	}
	name = handle.CleanName(name)
	if name == "" {
		return fmt.Errorf("s3 root: %w", handle.ErrAccessDenied)
	}

	_, _, err := b.head(ctx, b.key(name))
	if err == nil {
		return b.delete(ctx, b.key(name))
	}
	if !errors.Is(err, handle.ErrNotFound) {
		return err
	}

	exists, hasChildren, _, err := b.dirState(ctx, name)
	switch {
	case err != nil:
		return err
	case hasChildren:
		return fmt.Errorf("s3 directory %s: %w", b.dirKey(name), handle.ErrNotEmpty)
	case !exists:
		return fmt.Errorf("s3 object %s: %w", b.key(name), handle.ErrNotFound)
	}
	return b.delete(ctx, b.dirKey(name))
}

// Rename implements handle.Backend with a server-side copy followed by a
// delete. Directories cannot be renamed.
func (b *Backend) Rename(ctx context.Context, from, to string) error {
	if err := b.usable(ctx); err != nil {
		return err
	}
	from, to = handle.CleanName(from), handle.CleanName(to)
	if from == "" || to == "" {
		return fmt.Errorf("s3 root: %w", handle.ErrAccessDenied)
	}

	if _, _, err := b.head(ctx, b.key(from)); errors.Is(err, handle.ErrNotFound) {
		exists, _, _, derr := b.dirState(ctx, from)
		if derr != nil {
			return derr
		}
		if exists {
			return fmt.Errorf("s3 directory %s: rename: %w", b.dirKey(from), errors.ErrUnsupported)
		}
		return err
	} else if err != nil {
		return err
	}
	if from == to {
		return nil
	}

	exists, _, _, err := b.dirState(ctx, to)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("s3 object %s: %s is a directory: %w", b.key(from), b.key(to), handle.ErrExists)
	}

	if err := b.copy(ctx, b.key(from), b.key(to)); err != nil {
		return err
	}
	return b.delete(ctx, b.key(from))
}

// copy duplicates src as dst inside the bucket.
func (b *Backend) copy(ctx context.Context, src, dst string) (err error) {
	ctx, span := telemetry.StartStorageSpan(ctx, "s3", "copy_object",
		telemetry.Bucket(b.bucket),
		telemetry.StorageKey(dst))
	defer span.End()

	start := time.Now()
	defer func() { b.observe("copy_object", start, err) }()

	source := url.PathEscape(b.bucket + "/" + src)
	err = b.retry.do(ctx, "copy_object", src, func() error {
		_, cerr := b.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(b.bucket),
			Key:        aws.String(dst),
			CopySource: aws.String(source),
		})
		return cerr
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return mapError(src, err)
	}

	logger.DebugCtx(ctx, "s3: object copied",
		logger.KeyBucket, b.bucket,
		logger.KeyKey, dst,
		"source", src)
	return nil
}

// delete removes key. S3 reports success for a missing key.
func (b *Backend) delete(ctx context.Context, key string) (err error) {
	ctx, span := telemetry.StartStorageSpan(ctx, "s3", "delete_object",
		telemetry.Bucket(b.bucket),
		telemetry.StorageKey(key))
	defer span.End()

	start := time.Now()
	defer func() { b.observe("delete_object", start, err) }()

	err = b.retry.do(ctx, "delete_object", key, func() error {
		_, derr := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		return derr
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return mapError(key, err)
	}

	logger.DebugCtx(ctx, "s3: object deleted",
		logger.KeyBucket, b.bucket,
		logger.KeyKey, key)
	return nil
}
