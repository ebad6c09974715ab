package s3

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/marmos91/ofio/pkg/handle"
)

// Object is an open S3 object.
type Object struct {
	backend *Backend
	key     string

	mu     sync.RWMutex
	size   int64  // remote size, valid while staged is nil
	staged []byte // local copy once written, nil before
	dirty  bool
	closed bool
}

// Key returns the object key including the backend prefix.
func (o *Object) Key() string { return o.key }

// ReadAt implements io.ReaderAt.
func (o *Object) ReadAt(p []byte, off int64) (int, error) {
	return o.ReadAtContext(context.Background(), p, off)
}

// ReadAtContext implements handle.ContextObject.
func (o *Object) ReadAtContext(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, handle.ErrInvalidOffset
	}
	if len(p) == 0 {
		return 0, nil
	}

	o.mu.RLock()
	if o.closed {
		o.mu.RUnlock()
		return 0, os.ErrClosed
	}
	if o.staged != nil {
		defer o.mu.RUnlock()
		if off >= int64(len(o.staged)) {
			return 0, io.EOF
		}
		n := copy(p, o.staged[off:])
		if n < len(p) {
			return n, io.EOF
		}
		return n, nil
	}
	size := o.size
	o.mu.RUnlock()

	if off >= size {
		return 0, io.EOF
	}
	want := p
	if rem := size - off; int64(len(want)) > rem {
		want = want[:rem]
	}

	n, err := o.backend.getRange(ctx, o.key, want, off)
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

// WriteAt implements io.WriterAt.
func (o *Object) WriteAt(p []byte, off int64) (int, error) {
	return o.WriteAtContext(context.Background(), p, off)
}

// WriteAtContext implements handle.ContextObject. Data is staged locally
// until Sync or Close.
func (o *Object) WriteAtContext(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, handle.ErrInvalidOffset
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return 0, os.ErrClosed
	}
	if err := o.stageLocked(ctx); err != nil {
		return 0, err
	}

	end := off + int64(len(p))
	if end > int64(len(o.staged)) {
		o.staged = resize(o.staged, end)
	}
	copy(o.staged[off:], p)
	o.dirty = true
	return len(p), nil
}

// Size implements handle.Object.
func (o *Object) Size() (int64, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return 0, os.ErrClosed
	}
	if o.staged != nil {
		return int64(len(o.staged)), nil
	}
	return o.size, nil
}

// Truncate implements handle.Object.
func (o *Object) Truncate(size int64) error {
	if size < 0 {
		return handle.ErrInvalidOffset
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return os.ErrClosed
	}
	if err := o.stageLocked(context.Background()); err != nil {
		return err
	}
	o.staged = resize(o.staged, size)
	o.dirty = true
	return nil
}

// Sync uploads staged changes.
func (o *Object) Sync() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return os.ErrClosed
	}
	return o.flushLocked(context.Background())
}

// Close uploads staged changes and releases the staging buffer.
func (o *Object) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return os.ErrClosed
	}
	err := o.flushLocked(context.Background())
	o.closed = true
	o.staged = nil
	return err
}

func (o *Object) stageLocked(ctx context.Context) error {
	if o.staged != nil {
		return nil
	}
	if o.size == 0 {
		o.staged = []byte{}
		return nil
	}
	data, err := o.backend.download(ctx, o.key)
	if err != nil {
		return err
	}
	o.staged = data
	return nil
}

func (o *Object) flushLocked(ctx context.Context) error {
	if !o.dirty {
		return nil
	}
	if err := o.backend.put(ctx, o.key, o.staged); err != nil {
		return err
	}
	o.dirty = false
	o.size = int64(len(o.staged))
	return nil
}

// resize returns b with length n, zero-filling any growth.
func resize(b []byte, n int64) []byte {
	if n <= int64(len(b)) {
		return b[:n]
	}
	if n <= int64(cap(b)) {
		old := len(b)
		b = b[:n]
		clear(b[old:])
		return b
	}
	grown := make([]byte, n, n+n/4)
	copy(grown, b)
	return grown
}
