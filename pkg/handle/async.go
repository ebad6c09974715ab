package handle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/marmos91/ofio/pkg/aio"
)

var (
	_ aio.FileHandleService = (*Service)(nil)
	_ aio.Canceler          = (*Service)(nil)
)

// nativeError attaches the native code to err, keeping err in the chain.
func nativeError(err error) error {
	if err == nil {
		return nil
	}
	var code aio.Errno
	if errors.As(err, &code) {
		return err
	}
	return fmt.Errorf("%w: %w", ToErrno(err), err)
}

func (s *Service) overlappedFor(h aio.Handle, ov aio.Overlapped) (*openFile, *overlapped, error) {
	o, ok := ov.(*overlapped)
	if !ok || o == nil {
		return nil, nil, aio.ErrnoInvalidParameter
	}
	f, err := s.lookup(h)
	if err != nil {
		return nil, nil, nativeError(err)
	}
	if o.file != f {
		return nil, nil, aio.ErrnoInvalidParameter
	}
	return f, o, nil
}

// CreateOverlapped creates an overlapped context bound to h.
func (s *Service) CreateOverlapped(h aio.Handle) (aio.Overlapped, error) {
	f, err := s.lookup(h)
	if err != nil {
		return nil, nativeError(err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, aio.ErrnoInvalidHandle
	}
	o := newOverlapped(f)
	f.ovs[o] = struct{}{}
	return o, nil
}

// DestroyOverlapped releases ov. An operation still in flight is canceled
// and waited for, so the caller's buffer is no longer referenced once
// DestroyOverlapped returns.
func (s *Service) DestroyOverlapped(_ aio.Handle, ov aio.Overlapped) {
	o, ok := ov.(*overlapped)
	if !ok || o == nil {
		return
	}
	if o.pending() {
		o.abort()
		_, _ = o.result(true)
	}

	o.mu.Lock()
	o.destroyed = true
	o.mu.Unlock()

	f := o.file
	f.mu.Lock()
	delete(f.ovs, o)
	f.mu.Unlock()
}

// SetOverlappedOffset sets the offset used by the next operation on ov.
func (s *Service) SetOverlappedOffset(_ aio.Handle, ov aio.Overlapped, off int64) {
	if o, ok := ov.(*overlapped); ok && o != nil {
		o.setOffset(off)
	}
}

// ReadAsync starts reading len(p) bytes at the offset of ov.
//
// It returns nil when the read completed inline, aio.ErrnoIOPending when
// it is in flight, and a native error when it could not be started. A read
// at or past the end fails with aio.ErrnoHandleEOF.
func (s *Service) ReadAsync(h aio.Handle, p []byte, ov aio.Overlapped) error {
	return s.submit(h, ov, p, false)
}

// WriteAsync starts writing p at the offset of ov. See ReadAsync.
func (s *Service) WriteAsync(h aio.Handle, p []byte, ov aio.Overlapped) error {
	return s.submit(h, ov, p, true)
}

func (s *Service) submit(h aio.Handle, ov aio.Overlapped, p []byte, write bool) error {
	f, o, err := s.overlappedFor(h, ov)
	if err != nil {
		return err
	}
	if write && !f.mode.CanWrite() || !write && !f.mode.CanRead() {
		return nativeError(fmt.Errorf("%s: %w", f.name, ErrAccessDenied))
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return aio.ErrnoInvalidHandle
	}
	f.inflight.Add(1)
	f.mu.Unlock()

	ctx, off, err := o.arm()
	if err != nil {
		f.inflight.Done()
		return nativeError(err)
	}

	run := func() (int, error) {
		defer f.inflight.Done()
		start := time.Now()
		n, err := transfer(ctx, f.obj, p, off, write)
		op := "read_async"
		if write {
			op = "write_async"
		}
		s.observe(op, n, start, err)
		o.finish(n, err)
		return n, err
	}

	if s.inline {
		// A partial transfer still completed; its bytes are collected
		// through GetOverlappedResult along with the error.
		if n, err := run(); err != nil && n == 0 {
			return nativeError(err)
		}
		return nil
	}

	go run()
	return aio.ErrnoIOPending
}

// transfer performs one positional operation. A read that returns data
// together with io.EOF is reported as a plain short read.
func transfer(ctx context.Context, obj Object, p []byte, off int64, write bool) (n int, err error) {
	co, cancelable := obj.(ContextObject)

	switch {
	case write && cancelable:
		n, err = co.WriteAtContext(ctx, p, off)
	case write:
		n, err = obj.WriteAt(p, off)
	case cancelable:
		n, err = co.ReadAtContext(ctx, p, off)
	default:
		n, err = obj.ReadAt(p, off)
	}

	if !write && n > 0 && errors.Is(err, io.EOF) {
		err = nil
	}
	return n, err
}

// GetOverlappedResult returns the bytes transferred by the last operation
// on ov. Without wait it returns aio.ErrnoIOIncomplete while the operation
// is in flight.
func (s *Service) GetOverlappedResult(_ aio.Handle, ov aio.Overlapped, wait bool) (int, error) {
	o, ok := ov.(*overlapped)
	if !ok || o == nil {
		return 0, aio.ErrnoInvalidParameter
	}
	n, err := o.result(wait)
	return n, nativeError(err)
}

// CancelOverlapped requests cancellation of the operation in flight on ov.
// Backends that do not implement ContextObject finish the operation
// normally.
func (s *Service) CancelOverlapped(_ aio.Handle, ov aio.Overlapped) {
	if o, ok := ov.(*overlapped); ok && o != nil {
		o.abort()
	}
}
