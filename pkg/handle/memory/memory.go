// Package memory provides an in-memory handle backend.
//
// Objects live in a map keyed by name and survive Close, so a test can
// write through one handle and read through another. Options add inline
// completion, artificial latency and fault injection for exercising the
// pipeline's error paths.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/marmos91/ofio/pkg/handle"
)

// Options configures the backend.
type Options struct {
	// Inline completes overlapped operations before ReadAsync and
	// WriteAsync return.
	Inline bool

	// Latency delays every transfer. Canceled operations return early.
	Latency time.Duration

	// Capacity caps the size of every object in bytes; writes beyond it
	// are short and fail with handle.ErrDiskFull. 0 means unlimited.
	Capacity int64
}

type fault struct {
	offset int64
	err    error
}

type blob struct {
	mu   sync.RWMutex
	data []byte
	mod  time.Time
}

// touch records a modification. Callers hold blob.mu.
func (b *blob) touch() { b.mod = time.Now() }

// Backend is an in-memory handle.Backend.
type Backend struct {
	opts Options

	mu      sync.Mutex
	objects map[string]*blob
	dirs    map[string]time.Time
	faults  map[string]fault
	closed  bool
}

// New creates an empty backend.
func New(opts Options) *Backend {
	return &Backend{
		opts:    opts,
		objects: make(map[string]*blob),
		dirs:    make(map[string]time.Time),
		faults:  make(map[string]fault),
	}
}

var (
	_ handle.Backend         = (*Backend)(nil)
	_ handle.InlineCompleter = (*Backend)(nil)
	_ handle.ContextObject   = (*Object)(nil)
)

func (b *Backend) Name() string { return "memory" }

// InlineCompletion implements handle.InlineCompleter.
func (b *Backend) InlineCompletion() bool { return b.opts.Inline }

// Put stores data under name, replacing any existing object.
func (b *Backend) Put(name string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[handle.CleanName(name)] = &blob{data: append([]byte(nil), data...), mod: time.Now()}
}

// Bytes returns a copy of the object stored under name.
func (b *Backend) Bytes(name string) ([]byte, bool) {
	b.mu.Lock()
	obj, ok := b.objects[handle.CleanName(name)]
	b.mu.Unlock()
	if !ok {
		return nil, false
	}
	obj.mu.RLock()
	defer obj.mu.RUnlock()
	return append([]byte(nil), obj.data...), true
}

// FailAt makes every transfer on name whose range covers offset fail with
// err. A nil err clears the fault.
func (b *Backend) FailAt(name string, offset int64, err error) {
	name = handle.CleanName(name)
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.faults, name)
		return
	}
	b.faults[name] = fault{offset: offset, err: err}
}

func (b *Backend) faultFor(name string) (fault, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.faults[name]
	return f, ok
}

// Open implements handle.Backend.
func (b *Backend) Open(ctx context.Context, name string, mode handle.OpenMode) (handle.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, handle.ErrBackendClosed
	}

	name = handle.CleanName(name)
	if name == "" || b.isDirLocked(name) {
		return nil, fmt.Errorf("memory object %q is a directory: %w", name, handle.ErrAccessDenied)
	}

	obj, ok := b.objects[name]
	switch {
	case !ok && !mode.Create():
		return nil, fmt.Errorf("memory object %q: %w", name, handle.ErrNotFound)
	case !ok:
		obj = &blob{mod: time.Now()}
		b.objects[name] = obj
	case mode.Truncate():
		obj.mu.Lock()
		obj.data = nil
		obj.touch()
		obj.mu.Unlock()
	}

	return &Object{backend: b, name: name, blob: obj}, nil
}

// Close implements handle.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Object is an open in-memory object.
type Object struct {
	backend *Backend
	name    string
	blob    *blob

	mu     sync.Mutex
	closed bool
}

func (o *Object) check(off int64) error {
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return handle.ErrInvalidHandle
	}
	if off < 0 {
		return handle.ErrInvalidOffset
	}
	return nil
}

// transferCheck validates a transfer of n bytes at off, applying any
// injected fault.
func (o *Object) transferCheck(off int64, n int) error {
	if err := o.check(off); err != nil {
		return err
	}
	if f, ok := o.backend.faultFor(o.name); ok && f.offset >= off && f.offset < off+int64(max(n, 1)) {
		return f.err
	}
	return nil
}

func (o *Object) delay(ctx context.Context) error {
	if o.backend.opts.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(o.backend.opts.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ReadAt implements io.ReaderAt.
func (o *Object) ReadAt(p []byte, off int64) (int, error) {
	return o.ReadAtContext(context.Background(), p, off)
}

// ReadAtContext implements handle.ContextObject.
func (o *Object) ReadAtContext(ctx context.Context, p []byte, off int64) (int, error) {
	if err := o.delay(ctx); err != nil {
		return 0, err
	}
	if err := o.transferCheck(off, len(p)); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	o.blob.mu.RLock()
	defer o.blob.mu.RUnlock()

	if off >= int64(len(o.blob.data)) {
		return 0, io.EOF
	}
	n := copy(p, o.blob.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt.
func (o *Object) WriteAt(p []byte, off int64) (int, error) {
	return o.WriteAtContext(context.Background(), p, off)
}

// WriteAtContext implements handle.ContextObject.
func (o *Object) WriteAtContext(ctx context.Context, p []byte, off int64) (int, error) {
	if err := o.delay(ctx); err != nil {
		return 0, err
	}
	if err := o.transferCheck(off, len(p)); err != nil {
		return 0, err
	}

	end := off + int64(len(p))
	var full error
	if limit := o.backend.opts.Capacity; limit > 0 && end > limit {
		end = max(off, limit)
		full = handle.ErrDiskFull
	}
	n := int(end - off)
	if n == 0 && full != nil {
		return 0, full
	}

	o.blob.mu.Lock()
	defer o.blob.mu.Unlock()

	if end > int64(len(o.blob.data)) {
		o.blob.data = grow(o.blob.data, end)
	}
	copy(o.blob.data[off:end], p[:n])
	if n > 0 {
		o.blob.touch()
	}
	return n, full
}

// Size implements handle.Object.
func (o *Object) Size() (int64, error) {
	if err := o.check(0); err != nil {
		return 0, err
	}
	o.blob.mu.RLock()
	defer o.blob.mu.RUnlock()
	return int64(len(o.blob.data)), nil
}

// Truncate implements handle.Object.
func (o *Object) Truncate(size int64) error {
	if err := o.check(size); err != nil {
		return err
	}
	if limit := o.backend.opts.Capacity; limit > 0 && size > limit {
		return handle.ErrDiskFull
	}

	o.blob.mu.Lock()
	defer o.blob.mu.Unlock()
	o.blob.touch()
	if size <= int64(len(o.blob.data)) {
		o.blob.data = o.blob.data[:size]
		return nil
	}
	o.blob.data = grow(o.blob.data, size)
	return nil
}

// Sync implements handle.Object. Memory objects have nothing to flush.
func (o *Object) Sync() error {
	return o.check(0)
}

// Close implements handle.Object.
func (o *Object) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return handle.ErrInvalidHandle
	}
	o.closed = true
	return nil
}

func grow(data []byte, size int64) []byte {
	if int64(cap(data)) >= size {
		old := len(data)
		data = data[:size]
		clear(data[old:])
		return data
	}
	out := make([]byte, size, size+size/4)
	copy(out, data)
	return out
}
