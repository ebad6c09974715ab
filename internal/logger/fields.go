package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys. Use them consistently so logs can be aggregated and
// queried across commands and backends.
const (
	// Tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Command and file
	KeyCommand   = "command"
	KeyOperation = "operation" // read, write, seek, ...
	KeyHandle    = "handle"
	KeyFileID    = "file_id"
	KeyPath      = "path"
	KeyMode      = "mode"
	KeySize      = "size"

	// I/O
	KeyOffset       = "offset"
	KeyCount        = "count"         // bytes requested
	KeyBytes        = "bytes"         // bytes transferred
	KeyBytesRead    = "bytes_read"    // actual bytes read
	KeyBytesWritten = "bytes_written" // actual bytes written
	KeyEOF          = "eof"
	KeyStatus       = "status" // ok, short_eof, error

	// Pipeline
	KeyDepth       = "depth"
	KeyChunkSize   = "chunk_size"
	KeySubmissions = "submissions"
	KeyPending     = "pending"

	// Outcome
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code" // native code (Errno)

	// Storage backend
	KeyBackend    = "backend" // local, memory, s3, badger
	KeyBucket     = "bucket"
	KeyKey        = "key"
	KeyRegion     = "region"
	KeyAttempt    = "attempt"
	KeyMaxRetries = "max_retries"
)

func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

func Command(name string) slog.Attr {
	return slog.String(KeyCommand, name)
}

func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Handle returns an attribute for a file handle.
func Handle(h uint64) slog.Attr {
	return slog.Uint64(KeyHandle, h)
}

func FileID(id string) slog.Attr {
	return slog.String(KeyFileID, id)
}

func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

func Mode(m string) slog.Attr {
	return slog.String(KeyMode, m)
}

func Size(s int64) slog.Attr {
	return slog.Int64(KeySize, s)
}

func Offset(off int64) slog.Attr {
	return slog.Int64(KeyOffset, off)
}

func Count(c int) slog.Attr {
	return slog.Int(KeyCount, c)
}

func Bytes(n int) slog.Attr {
	return slog.Int(KeyBytes, n)
}

func BytesRead(n int) slog.Attr {
	return slog.Int(KeyBytesRead, n)
}

func BytesWritten(n int) slog.Attr {
	return slog.Int(KeyBytesWritten, n)
}

func EOF(eof bool) slog.Attr {
	return slog.Bool(KeyEOF, eof)
}

func Status(s string) slog.Attr {
	return slog.String(KeyStatus, s)
}

func Depth(n int) slog.Attr {
	return slog.Int(KeyDepth, n)
}

func ChunkSize(n int) slog.Attr {
	return slog.Int(KeyChunkSize, n)
}

func Submissions(n int) slog.Attr {
	return slog.Int(KeySubmissions, n)
}

func Pending(n int) slog.Attr {
	return slog.Int(KeyPending, n)
}

func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns an attribute for an error. A nil error yields an empty
// attribute, which handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns an attribute for a native error code, rendered in hex
// like the codes in Windows documentation.
func ErrorCode(code uint32) slog.Attr {
	return slog.String(KeyErrorCode, fmt.Sprintf("0x%08X", code))
}

func Backend(name string) slog.Attr {
	return slog.String(KeyBackend, name)
}

func Bucket(name string) slog.Attr {
	return slog.String(KeyBucket, name)
}

func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

func Region(r string) slog.Attr {
	return slog.String(KeyRegion, r)
}

func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}
