package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. File-level keys use the "fs." prefix, pipeline tuning
// uses "aio." and storage backends use "storage.".
const (
	AttrOperation = "fs.operation"
	AttrHandle    = "fs.handle"
	AttrPath      = "fs.path"
	AttrOffset    = "fs.offset"
	AttrCount     = "fs.count"
	AttrSize      = "fs.size"
	AttrMode      = "fs.mode"
	AttrStatus    = "fs.status"
	AttrBytes     = "fs.bytes_transferred"

	AttrDepth       = "aio.depth"
	AttrChunkSize   = "aio.chunk_size"
	AttrSubmissions = "aio.submissions"

	AttrBackend = "storage.backend"
	AttrBucket  = "storage.bucket"
	AttrKey     = "storage.key"
	AttrRegion  = "storage.region"
)

// FSOperation returns an attribute for the operation name.
func FSOperation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// FSHandle returns an attribute for a file handle.
func FSHandle(h uint64) attribute.KeyValue {
	return attribute.Int64(AttrHandle, int64(h))
}

func FSPath(path string) attribute.KeyValue {
	return attribute.String(AttrPath, path)
}

func FSOffset(offset int64) attribute.KeyValue {
	return attribute.Int64(AttrOffset, offset)
}

func FSCount(count int) attribute.KeyValue {
	return attribute.Int(AttrCount, count)
}

func FSSize(size int64) attribute.KeyValue {
	return attribute.Int64(AttrSize, size)
}

func FSMode(mode string) attribute.KeyValue {
	return attribute.String(AttrMode, mode)
}

// FSStatus returns an attribute for a request status (ok, short_eof, error).
func FSStatus(status string) attribute.KeyValue {
	return attribute.String(AttrStatus, status)
}

// BytesTransferred returns an attribute for the bytes actually moved.
func BytesTransferred(n int) attribute.KeyValue {
	return attribute.Int(AttrBytes, n)
}

func PipelineDepth(n int) attribute.KeyValue {
	return attribute.Int(AttrDepth, n)
}

func ChunkSize(n int) attribute.KeyValue {
	return attribute.Int(AttrChunkSize, n)
}

// Submissions returns an attribute for the number of overlapped operations
// a request issued.
func Submissions(n int) attribute.KeyValue {
	return attribute.Int(AttrSubmissions, n)
}

func Backend(name string) attribute.KeyValue {
	return attribute.String(AttrBackend, name)
}

func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

// StartPipelineSpan starts a span for a buffered read or write.
func StartPipelineSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{FSOperation(op)}, attrs...)
	return StartSpan(ctx, "aio."+op, trace.WithAttributes(all...), trace.WithSpanKind(trace.SpanKindInternal))
}

// StartStorageSpan starts a span for a backend call.
func StartStorageSpan(ctx context.Context, backend, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Backend(backend)}, attrs...)
	return StartSpan(ctx, "storage."+op, trace.WithAttributes(all...), trace.WithSpanKind(trace.SpanKindClient))
}
