package aio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeOverlapped is a scripted overlapped context.
type fakeOverlapped struct {
	id        int
	offset    int64
	ch        chan struct{}
	done      bool
	n         int
	err       error
	destroyed int
}

func (o *fakeOverlapped) Signaled() <-chan struct{} {
	return o.ch
}

func (o *fakeOverlapped) signal() {
	select {
	case <-o.ch:
	default:
		close(o.ch)
	}
}

// submission is one entry of the fake's submission log.
type submission struct {
	op     direction
	offset int64
	length int
}

// fakeService is a single-goroutine FileHandleService backed by a byte
// slice. Operations are computed at submission and released according to
// the mode: inline (completed before return), auto (pending but already
// signaled) or manual (pending until the test completes them).
type fakeService struct {
	data []byte

	inline bool
	manual bool

	// failAt makes the operation at that offset complete with failErr after
	// moving failBytes of its chunk.
	failAt    int64
	failErr   error
	failBytes int

	// submitErrAt makes the submission at that offset fail with submitErr.
	submitErrAt int64
	submitErr   error

	// writeLimit caps the file size for writes; 0 means unlimited.
	writeLimit int

	// allocFailAfter fails CreateOverlapped once that many contexts exist;
	// negative means never.
	allocFailAfter int

	canceled int

	created     []*fakeOverlapped
	submissions []submission
}

func newFakeService(data []byte) *fakeService {
	return &fakeService{
		data:           data,
		failAt:         -1,
		submitErrAt:    -1,
		allocFailAfter: -1,
	}
}

func (s *fakeService) CreateOverlapped(Handle) (Overlapped, error) {
	if s.allocFailAfter >= 0 && len(s.created) >= s.allocFailAfter {
		return nil, ErrnoNotEnoughMemory
	}
	ov := &fakeOverlapped{id: len(s.created), ch: make(chan struct{})}
	s.created = append(s.created, ov)
	return ov, nil
}

func (s *fakeService) DestroyOverlapped(_ Handle, ov Overlapped) {
	ov.(*fakeOverlapped).destroyed++
}

func (s *fakeService) SetOverlappedOffset(_ Handle, ov Overlapped, off int64) {
	ov.(*fakeOverlapped).offset = off
}

func (s *fakeService) ReadAsync(_ Handle, p []byte, ov Overlapped) error {
	o := ov.(*fakeOverlapped)
	return s.start(dirRead, o, len(p), func() (int, error) {
		if o.offset >= int64(len(s.data)) {
			return 0, ErrnoHandleEOF
		}
		return copy(p, s.data[o.offset:]), nil
	})
}

func (s *fakeService) WriteAsync(_ Handle, p []byte, ov Overlapped) error {
	o := ov.(*fakeOverlapped)
	return s.start(dirWrite, o, len(p), func() (int, error) {
		end := int(o.offset) + len(p)
		if s.writeLimit > 0 && end > s.writeLimit {
			end = s.writeLimit
		}
		n := max(0, end-int(o.offset))
		if end > len(s.data) {
			grown := make([]byte, end)
			copy(grown, s.data)
			s.data = grown
		}
		copy(s.data[o.offset:], p[:n])
		return n, nil
	})
}

func (s *fakeService) start(op direction, o *fakeOverlapped, length int, transfer func() (int, error)) error {
	s.submissions = append(s.submissions, submission{op: op, offset: o.offset, length: length})

	if o.offset == s.submitErrAt {
		return s.submitErr
	}

	o.ch = make(chan struct{})
	o.done = false
	if o.offset == s.failAt {
		o.n, o.err = min(s.failBytes, length), s.failErr
	} else {
		o.n, o.err = transfer()
	}

	switch {
	case s.inline:
		o.done = true
		o.signal()
		return nil
	case s.manual:
		return ErrnoIOPending
	default:
		o.done = true
		o.signal()
		return ErrnoIOPending
	}
}

func (s *fakeService) GetOverlappedResult(_ Handle, ov Overlapped, wait bool) (int, error) {
	o := ov.(*fakeOverlapped)
	if !o.done {
		if !wait {
			return 0, ErrnoIOIncomplete
		}
		o.done = true
		o.signal()
	}
	return o.n, o.err
}

// fakeCancelService adds CancelOverlapped to fakeService.
type fakeCancelService struct {
	*fakeService
}

func (s fakeCancelService) CancelOverlapped(_ Handle, ov Overlapped) {
	o := ov.(*fakeOverlapped)
	s.canceled++
	if !o.done {
		o.n, o.err = 0, ErrnoOperationAborted
		o.done = true
		o.signal()
	}
}

// complete finishes the manual operation in flight at offset.
func (s *fakeService) complete(t *testing.T, offset int64) {
	t.Helper()
	for _, o := range s.created {
		if o.offset == offset && !o.done {
			o.done = true
			o.signal()
			return
		}
	}
	t.Fatalf("no operation in flight at offset %d", offset)
}

func (s *fakeService) offsets() []int64 {
	out := make([]int64, len(s.submissions))
	for i, sub := range s.submissions {
		out[i] = sub.offset
	}
	return out
}

// newTestPipeline builds a pipeline outside of Engine.run so tests can step
// it one completion at a time.
func newTestPipeline(t *testing.T, svc FileHandleService, cfg Config, dir direction, buf []byte, off int64) *pipeline {
	t.Helper()
	eng, err := New(svc, cfg)
	require.NoError(t, err)
	p := newPipeline(context.Background(), eng, newTestWaitSet(t), dir, 1, buf, off)
	t.Cleanup(p.release)
	return p
}

func newTestWaitSet(t *testing.T) WaitSet {
	t.Helper()
	ws, err := defaultWaitSet()
	require.NoError(t, err)
	return ws
}

// requireConsistent checks pending == busy buffers == wait-set length.
func requireConsistent(t *testing.T, p *pipeline) {
	t.Helper()
	require.Equal(t, p.pending, len(p.pool.busy()), "pending vs busy buffers")
	require.Equal(t, p.pending, p.ws.Len(), "pending vs wait-set length")
}
