// Package file provides a stream-style file API over the buffered I/O
// pipeline.
//
// A File couples a handle from a handle.Service with an aio.Engine. Bulk
// Read and Write calls go through the engine at the file pointer and move
// it by the bytes transferred; single-byte calls and positioning go
// straight to the service.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/marmos91/ofio/internal/logger"
	"github.com/marmos91/ofio/pkg/aio"
	"github.com/marmos91/ofio/pkg/handle"
)

// ErrClosed is returned by operations on a closed File.
var ErrClosed = errors.New("file already closed")

// File is an open file. Methods are safe for concurrent use but share one
// file pointer, so concurrent readers see interleaved data.
type File struct {
	id   uuid.UUID
	name string
	mode handle.OpenMode
	svc  *handle.Service
	eng  *aio.Engine
	h    aio.Handle

	mu     sync.Mutex
	closed bool
}

var (
	_ io.ReadWriteSeeker = (*File)(nil)
	_ io.ByteReader      = (*File)(nil)
	_ io.ByteWriter      = (*File)(nil)
	_ io.Closer          = (*File)(nil)
)

// Open opens name on svc and binds it to eng.
func Open(ctx context.Context, svc *handle.Service, eng *aio.Engine, name string, mode handle.OpenMode) (*File, error) {
	h, err := svc.Open(ctx, name, mode)
	if err != nil {
		return nil, err
	}

	f := &File{
		id:   uuid.New(),
		name: name,
		mode: mode,
		svc:  svc,
		eng:  eng,
		h:    h,
	}
	logger.DebugCtx(ctx, "file opened",
		logger.KeyFileID, f.id.String(),
		logger.KeyHandle, uint64(h),
		logger.KeyPath, name,
		logger.KeyMode, mode.String())
	return f, nil
}

// ID returns the identifier assigned at open time.
func (f *File) ID() uuid.UUID { return f.id }

// Name returns the name the file was opened with.
func (f *File) Name() string { return f.name }

// Mode returns the open mode.
func (f *File) Mode() handle.OpenMode { return f.mode }

// Handle returns the underlying service handle.
func (f *File) Handle() aio.Handle { return f.h }

func (f *File) lock() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	return nil
}

// Read implements io.Reader.
func (f *File) Read(p []byte) (int, error) {
	return f.ReadContext(context.Background(), p)
}

// ReadContext reads up to len(p) bytes at the file pointer. A read at end
// of file returns 0, io.EOF; a read that reaches end of file part way
// returns the bytes read and no error.
func (f *File) ReadContext(ctx context.Context, p []byte) (int, error) {
	if err := f.lock(); err != nil {
		return 0, err
	}
	defer f.mu.Unlock()

	if len(p) == 0 {
		return 0, nil
	}

	pos, err := f.svc.Seek(f.h, 0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}

	out, err := f.eng.BufferedRead(ctx, f.h, p, pos)
	n := contiguous(out, err)
	if serr := f.advance(pos, n); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		return n, err
	}
	if out.Status == aio.StatusShortEOF && out.Bytes == 0 {
		return 0, io.EOF
	}
	return out.Bytes, nil
}

// ReadAt reads len(p) bytes at off without moving the file pointer.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if err := f.lock(); err != nil {
		return 0, err
	}
	defer f.mu.Unlock()

	out, err := f.eng.BufferedRead(context.Background(), f.h, p, off)
	if err != nil {
		return contiguous(out, err), err
	}
	if out.Bytes < len(p) {
		return out.Bytes, io.EOF
	}
	return out.Bytes, nil
}

// ReadByte implements io.ByteReader.
func (f *File) ReadByte() (byte, error) {
	if err := f.lock(); err != nil {
		return 0, err
	}
	defer f.mu.Unlock()

	var b [1]byte
	n, err := f.svc.Read(f.h, b[:])
	if n == 1 {
		return b[0], nil
	}
	if err == nil {
		err = io.EOF
	}
	return 0, err
}

// Write implements io.Writer.
func (f *File) Write(p []byte) (int, error) {
	return f.WriteContext(context.Background(), p)
}

// WriteContext writes p at the file pointer.
func (f *File) WriteContext(ctx context.Context, p []byte) (int, error) {
	if err := f.lock(); err != nil {
		return 0, err
	}
	defer f.mu.Unlock()

	if len(p) == 0 {
		return 0, nil
	}

	pos, err := f.svc.Seek(f.h, 0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}

	out, err := f.eng.BufferedWrite(ctx, f.h, p, pos)
	n := contiguous(out, err)
	if serr := f.advance(pos, n); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		return n, err
	}
	if out.Bytes < len(p) {
		return out.Bytes, io.ErrShortWrite
	}
	return out.Bytes, nil
}

// WriteAt writes p at off without moving the file pointer.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if err := f.lock(); err != nil {
		return 0, err
	}
	defer f.mu.Unlock()

	out, err := f.eng.BufferedWrite(context.Background(), f.h, p, off)
	if err != nil {
		return contiguous(out, err), err
	}
	if out.Bytes < len(p) {
		return out.Bytes, io.ErrShortWrite
	}
	return out.Bytes, nil
}

// WriteByte implements io.ByteWriter.
func (f *File) WriteByte(c byte) error {
	if err := f.lock(); err != nil {
		return err
	}
	defer f.mu.Unlock()

	_, err := f.svc.Write(f.h, []byte{c})
	return err
}

// contiguous returns how many bytes at the front of the request are known
// to have been transferred. A failed request may have completed chunks past
// a hole; those are not reported.
func contiguous(out aio.Outcome, err error) int {
	if out.Status != aio.StatusError {
		return out.Bytes
	}
	var ioErr *aio.IOError
	if errors.As(err, &ioErr) {
		return ioErr.Prefix
	}
	return 0
}

func (f *File) advance(pos int64, n int) error {
	if n == 0 {
		return nil
	}
	_, err := f.svc.Seek(f.h, pos+int64(n), io.SeekStart)
	return err
}

// Seek implements io.Seeker.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if err := f.lock(); err != nil {
		return 0, err
	}
	defer f.mu.Unlock()
	return f.svc.Seek(f.h, offset, whence)
}

// Skip moves the file pointer n bytes forward (or back for negative n) and
// returns the new position. Skipping past the end is allowed.
func (f *File) Skip(n int64) (int64, error) {
	return f.Seek(n, io.SeekCurrent)
}

// SetLength truncates or extends the file to size and leaves the file
// pointer there.
func (f *File) SetLength(size int64) error {
	if err := f.lock(); err != nil {
		return err
	}
	defer f.mu.Unlock()

	if _, err := f.svc.Seek(f.h, size, io.SeekStart); err != nil {
		return err
	}
	return f.svc.SetEndOfFile(f.h)
}

// Length returns the current file size.
func (f *File) Length() (int64, error) {
	if err := f.lock(); err != nil {
		return 0, err
	}
	defer f.mu.Unlock()
	return f.svc.Size(f.h)
}

// Sync flushes buffered data to the backend.
func (f *File) Sync() error {
	if err := f.lock(); err != nil {
		return err
	}
	defer f.mu.Unlock()
	return f.svc.Flush(f.h)
}

// Available returns the number of bytes that can be read without blocking.
// The service offers no way to tell, so it is always 0.
func (f *File) Available() int { return 0 }

// Close releases the handle. Closing twice returns ErrClosed.
func (f *File) Close() error {
	if err := f.lock(); err != nil {
		return err
	}
	defer f.mu.Unlock()

	f.closed = true
	if err := f.svc.Close(f.h); err != nil {
		return fmt.Errorf("close %s: %w", f.name, err)
	}
	return nil
}
