package handle

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// OpenMode selects access and create disposition for Open.
type OpenMode int

const (
	// ModeRead opens an existing object for reading.
	ModeRead OpenMode = iota
	// ModeWrite creates the object, truncating any existing content.
	ModeWrite
	// ModeAppend opens or creates the object for writing with the file
	// pointer at the end.
	ModeAppend
	// ModeReadWrite opens or creates the object for reading and writing.
	ModeReadWrite
)

func (m OpenMode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	case ModeAppend:
		return "append"
	case ModeReadWrite:
		return "readwrite"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// CanRead reports whether the mode grants read access.
func (m OpenMode) CanRead() bool {
	return m == ModeRead || m == ModeReadWrite
}

// CanWrite reports whether the mode grants write access.
func (m OpenMode) CanWrite() bool {
	return m != ModeRead
}

// Create reports whether Open creates a missing object.
func (m OpenMode) Create() bool {
	return m != ModeRead
}

// Truncate reports whether Open discards existing content.
func (m OpenMode) Truncate() bool {
	return m == ModeWrite
}

// ParseOpenMode parses "read", "write", "append" or "readwrite" ("rw").
func ParseOpenMode(s string) (OpenMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read", "r":
		return ModeRead, nil
	case "write", "w":
		return ModeWrite, nil
	case "append", "a":
		return ModeAppend, nil
	case "readwrite", "rw":
		return ModeReadWrite, nil
	default:
		return ModeRead, fmt.Errorf("invalid open mode: %q (valid: read, write, append, readwrite)", s)
	}
}

// Backend opens named objects.
type Backend interface {
	// Name identifies the backend in logs and metrics ("local", "s3", ...).
	Name() string

	// Open opens or creates name according to mode. A missing object opened
	// with ModeRead returns an error wrapping ErrNotFound.
	Open(ctx context.Context, name string, mode OpenMode) (Object, error)

	// Stat describes name. A missing name returns an error wrapping
	// ErrNotFound.
	Stat(ctx context.Context, name string) (Entry, error)

	// List returns the entries directly under dir, sorted by name. The
	// root is "".
	List(ctx context.Context, dir string) ([]Entry, error)

	// Mkdir creates the directory name and any missing parents. An
	// existing name returns an error wrapping ErrExists.
	Mkdir(ctx context.Context, name string) error

	// Remove deletes an object or an empty directory. A directory with
	// entries returns an error wrapping ErrNotEmpty.
	Remove(ctx context.Context, name string) error

	// Rename moves an object, replacing any object already at to.
	Rename(ctx context.Context, from, to string) error

	// Close releases backend resources. Objects must be closed first.
	Close() error
}

// Object is an open object with positional I/O.
//
// ReadAt follows io.ReaderAt: reading at or past the end returns io.EOF,
// and a read crossing the end returns the bytes available with io.EOF.
// Implementations must allow concurrent ReadAt and WriteAt calls on
// non-overlapping ranges.
type Object interface {
	io.ReaderAt
	io.WriterAt

	Size() (int64, error)
	Truncate(size int64) error
	Sync() error
	Close() error
}

// ContextObject is implemented by objects whose transfers can be aborted.
// When present the service uses these methods for overlapped operations
// so that CancelOverlapped reaches the backend.
type ContextObject interface {
	ReadAtContext(ctx context.Context, p []byte, off int64) (int, error)
	WriteAtContext(ctx context.Context, p []byte, off int64) (int, error)
}

// InlineCompleter is implemented by backends that complete overlapped
// operations before ReadAsync or WriteAsync return.
type InlineCompleter interface {
	InlineCompletion() bool
}
