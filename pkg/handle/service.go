// Package handle implements the file handle service driven by the buffered
// I/O pipeline.
//
// A Service opens objects from a Backend and hands out opaque handles. Each
// handle carries a file pointer used by the synchronous Read, Write, Seek
// and SetEndOfFile calls. The overlapped API (CreateOverlapped, ReadAsync,
// WriteAsync, GetOverlappedResult, CancelOverlapped) never touches the file
// pointer: every operation carries its own offset and runs on its own
// goroutine, or inline when the backend completes synchronously.
//
// Errors from the overlapped API carry an aio.Errno; use ToErrno on any
// other error to obtain the native code.
package handle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/ofio/internal/logger"
	"github.com/marmos91/ofio/internal/telemetry"
	"github.com/marmos91/ofio/pkg/aio"
)

// openFile is the state behind one handle.
type openFile struct {
	id   aio.Handle
	name string
	mode OpenMode
	obj  Object

	// posMu serializes file pointer users.
	posMu sync.Mutex
	pos   int64

	mu       sync.Mutex
	closed   bool
	ovs      map[*overlapped]struct{}
	inflight sync.WaitGroup
}

// Service implements aio.FileHandleService and aio.Canceler over a Backend.
type Service struct {
	backend Backend
	inline  bool
	metrics Metrics

	mu     sync.RWMutex
	files  map[aio.Handle]*openFile
	next   aio.Handle
	closed bool

	lastErr atomic.Uint32
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics enables storage metrics. A nil m leaves them disabled.
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a service over backend.
func New(backend Backend, opts ...Option) *Service {
	s := &Service{
		backend: backend,
		files:   make(map[aio.Handle]*openFile),
		next:    1,
	}
	if ic, ok := backend.(InlineCompleter); ok {
		s.inline = ic.InlineCompletion()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the backend the service was created with.
func (s *Service) Backend() Backend {
	return s.backend
}

// Open opens name and returns a new handle. ModeAppend places the file
// pointer at the end of the object.
func (s *Service) Open(ctx context.Context, name string, mode OpenMode) (h aio.Handle, err error) {
	ctx, span := telemetry.StartStorageSpan(ctx, s.backend.Name(), "open",
		telemetry.FSPath(name),
		telemetry.FSMode(mode.String()))
	defer span.End()

	start := time.Now()
	defer func() {
		s.observe("open", 0, start, err)
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
	}()

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return aio.InvalidHandle, ErrBackendClosed
	}

	obj, err := s.backend.Open(ctx, name, mode)
	if err != nil {
		return aio.InvalidHandle, fmt.Errorf("open %s: %w", name, err)
	}

	f := &openFile{
		name: name,
		mode: mode,
		obj:  obj,
		ovs:  make(map[*overlapped]struct{}),
	}
	if mode == ModeAppend {
		if f.pos, err = obj.Size(); err != nil {
			_ = obj.Close()
			return aio.InvalidHandle, fmt.Errorf("open %s: size: %w", name, err)
		}
	}

	s.mu.Lock()
	f.id = s.next
	s.next++
	s.files[f.id] = f
	s.mu.Unlock()

	telemetry.SetAttributes(ctx, telemetry.FSHandle(uint64(f.id)))
	logger.DebugCtx(ctx, "handle opened",
		logger.KeyHandle, uint64(f.id),
		logger.KeyPath, name,
		logger.KeyMode, mode.String(),
		logger.KeyBackend, s.backend.Name())

	return f.id, nil
}

func (s *Service) lookup(h aio.Handle) (*openFile, error) {
	s.mu.RLock()
	f, ok := s.files[h]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("handle %d: %w", h, ErrInvalidHandle)
	}
	return f, nil
}

// Close cancels the overlapped operations still in flight on h, waits for
// them and closes the object.
func (s *Service) Close(h aio.Handle) (err error) {
	start := time.Now()
	defer func() { s.observe("close", 0, start, err) }()

	s.mu.Lock()
	f, ok := s.files[h]
	delete(s.files, h)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("handle %d: %w", h, ErrInvalidHandle)
	}

	f.mu.Lock()
	f.closed = true
	for ov := range f.ovs {
		ov.abort()
	}
	f.mu.Unlock()
	f.inflight.Wait()

	logger.Debug("handle closed", logger.KeyHandle, uint64(h), logger.KeyPath, f.name)
	if err := f.obj.Close(); err != nil {
		return fmt.Errorf("close %s: %w", f.name, err)
	}
	return nil
}

// Shutdown closes every open handle and then the backend.
func (s *Service) Shutdown() error {
	s.mu.Lock()
	s.closed = true
	handles := make([]aio.Handle, 0, len(s.files))
	for h := range s.files {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if err := s.Close(h); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.backend.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Name returns the name h was opened with.
func (s *Service) Name(h aio.Handle) (string, error) {
	f, err := s.lookup(h)
	if err != nil {
		return "", err
	}
	return f.name, nil
}

// Mode returns the mode h was opened with.
func (s *Service) Mode(h aio.Handle) (OpenMode, error) {
	f, err := s.lookup(h)
	if err != nil {
		return ModeRead, err
	}
	return f.mode, nil
}

// Read reads into p at the file pointer and advances it. It returns io.EOF
// when the pointer is at or past the end.
func (s *Service) Read(h aio.Handle, p []byte) (n int, err error) {
	start := time.Now()
	defer func() { s.observe("read", n, start, err) }()

	f, err := s.lookup(h)
	if err != nil {
		return 0, err
	}
	if !f.mode.CanRead() {
		return 0, fmt.Errorf("read %s: %w", f.name, ErrAccessDenied)
	}
	if len(p) == 0 {
		return 0, nil
	}

	f.posMu.Lock()
	defer f.posMu.Unlock()

	n, err = f.obj.ReadAt(p, f.pos)
	f.pos += int64(n)
	if n > 0 && errors.Is(err, io.EOF) {
		err = nil
	}
	return n, err
}

// Write writes p at the file pointer and advances it.
func (s *Service) Write(h aio.Handle, p []byte) (n int, err error) {
	start := time.Now()
	defer func() { s.observe("write", n, start, err) }()

	f, err := s.lookup(h)
	if err != nil {
		return 0, err
	}
	if !f.mode.CanWrite() {
		return 0, fmt.Errorf("write %s: %w", f.name, ErrAccessDenied)
	}

	f.posMu.Lock()
	defer f.posMu.Unlock()

	n, err = f.obj.WriteAt(p, f.pos)
	f.pos += int64(n)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	return n, err
}

// Seek moves the file pointer. whence is io.SeekStart, io.SeekCurrent or
// io.SeekEnd. Seeking past the end is allowed; a negative result is not.
func (s *Service) Seek(h aio.Handle, offset int64, whence int) (int64, error) {
	f, err := s.lookup(h)
	if err != nil {
		return 0, err
	}

	f.posMu.Lock()
	defer f.posMu.Unlock()

	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		if base, err = f.obj.Size(); err != nil {
			return 0, fmt.Errorf("seek %s: %w", f.name, err)
		}
	default:
		return 0, fmt.Errorf("seek %s: whence %d: %w", f.name, whence, ErrInvalidOffset)
	}

	pos := base + offset
	if pos < 0 {
		return 0, fmt.Errorf("seek %s: position %d: %w", f.name, pos, ErrInvalidOffset)
	}
	f.pos = pos
	return pos, nil
}

// SetEndOfFile truncates or extends the object to the file pointer.
func (s *Service) SetEndOfFile(h aio.Handle) (err error) {
	start := time.Now()
	defer func() { s.observe("truncate", 0, start, err) }()

	f, err := s.lookup(h)
	if err != nil {
		return err
	}
	if !f.mode.CanWrite() {
		return fmt.Errorf("truncate %s: %w", f.name, ErrAccessDenied)
	}

	f.posMu.Lock()
	defer f.posMu.Unlock()

	if err := f.obj.Truncate(f.pos); err != nil {
		return fmt.Errorf("truncate %s at %d: %w", f.name, f.pos, err)
	}
	return nil
}

// Flush commits buffered data of h to the backend.
func (s *Service) Flush(h aio.Handle) (err error) {
	start := time.Now()
	defer func() { s.observe("sync", 0, start, err) }()

	f, err := s.lookup(h)
	if err != nil {
		return err
	}
	if err := f.obj.Sync(); err != nil {
		return fmt.Errorf("flush %s: %w", f.name, err)
	}
	return nil
}

// Size returns the current size of the object behind h.
func (s *Service) Size(h aio.Handle) (int64, error) {
	f, err := s.lookup(h)
	if err != nil {
		return 0, err
	}
	size, err := f.obj.Size()
	if err != nil {
		return 0, fmt.Errorf("size %s: %w", f.name, err)
	}
	return size, nil
}

// LastError returns the native code of the most recent failed operation
// on any handle or name, or ERROR_SUCCESS if none has failed.
func (s *Service) LastError() aio.Errno {
	return aio.Errno(s.lastErr.Load())
}

// Stat describes the object or directory name.
func (s *Service) Stat(ctx context.Context, name string) (e Entry, err error) {
	err = s.namespaceOp(ctx, "stat", name, func(ctx context.Context) error {
		e, err = s.backend.Stat(ctx, name)
		return err
	})
	return e, err
}

// List returns the entries directly under dir, sorted by name.
func (s *Service) List(ctx context.Context, dir string) (entries []Entry, err error) {
	err = s.namespaceOp(ctx, "list", dir, func(ctx context.Context) error {
		entries, err = s.backend.List(ctx, dir)
		return err
	})
	return entries, err
}

// Mkdir creates the directory name and any missing parents.
func (s *Service) Mkdir(ctx context.Context, name string) error {
	return s.namespaceOp(ctx, "mkdir", name, func(ctx context.Context) error {
		return s.backend.Mkdir(ctx, name)
	})
}

// Remove deletes an object or an empty directory. Handles already open on
// the object stay usable where the backend allows it.
func (s *Service) Remove(ctx context.Context, name string) error {
	return s.namespaceOp(ctx, "remove", name, func(ctx context.Context) error {
		return s.backend.Remove(ctx, name)
	})
}

// Rename moves the object from to to, replacing any object at to.
func (s *Service) Rename(ctx context.Context, from, to string) error {
	return s.namespaceOp(ctx, "rename", from, func(ctx context.Context) error {
		if err := s.backend.Rename(ctx, from, to); err != nil {
			return fmt.Errorf("to %s: %w", to, err)
		}
		return nil
	})
}

// namespaceOp runs a name based backend call with the tracing, metrics and
// error wrapping every service operation gets.
func (s *Service) namespaceOp(ctx context.Context, op, name string, fn func(context.Context) error) (err error) {
	ctx, span := telemetry.StartStorageSpan(ctx, s.backend.Name(), op,
		telemetry.FSPath(name))
	defer span.End()

	start := time.Now()
	defer func() {
		s.observe(op, 0, start, err)
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
	}()

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrBackendClosed
	}

	if err := fn(ctx); err != nil {
		return fmt.Errorf("%s %s: %w", op, name, err)
	}
	logger.DebugCtx(ctx, "namespace operation", logger.KeyOperation, op, logger.KeyPath, name)
	return nil
}

func (s *Service) observe(op string, bytes int, start time.Time, err error) {
	if err != nil {
		s.lastErr.Store(uint32(ToErrno(err)))
	}
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, bytes, time.Since(start), err)
	}
}
