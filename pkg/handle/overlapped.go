package handle

import (
	"context"
	"sync"

	"github.com/marmos91/ofio/pkg/aio"
)

type opState int

const (
	opIdle opState = iota
	opPending
	opDone
)

// overlapped is the service's per-operation context.
//
// Each submission re-arms the event with a fresh channel that is closed when
// the operation finishes, so a completed event stays signaled until the
// next submission.
type overlapped struct {
	file *openFile

	mu        sync.Mutex
	ch        chan struct{}
	offset    int64
	state     opState
	n         int
	err       error
	cancel    context.CancelFunc
	destroyed bool
}

func newOverlapped(f *openFile) *overlapped {
	return &overlapped{file: f, ch: make(chan struct{})}
}

// Signaled implements waitset.Event.
func (o *overlapped) Signaled() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ch
}

func (o *overlapped) setOffset(off int64) {
	o.mu.Lock()
	o.offset = off
	o.mu.Unlock()
}

// arm starts a new operation and returns its context and offset.
func (o *overlapped) arm() (context.Context, int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case o.destroyed:
		return nil, 0, ErrInvalidHandle
	case o.state == opPending:
		return nil, 0, ErrBusy
	case o.offset < 0:
		return nil, 0, ErrInvalidOffset
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.ch = make(chan struct{})
	o.state = opPending
	o.n, o.err = 0, nil
	o.cancel = cancel
	return ctx, o.offset, nil
}

// finish records the result and signals the event.
func (o *overlapped) finish(n int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.n, o.err = n, err
	o.state = opDone
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	close(o.ch)
}

// result returns the outcome of the last operation. Without wait it reports
// ErrnoIOIncomplete while the operation is in flight.
func (o *overlapped) result(wait bool) (int, error) {
	o.mu.Lock()
	if o.state == opPending {
		if !wait {
			o.mu.Unlock()
			return 0, aio.ErrnoIOIncomplete
		}
		ch := o.ch
		o.mu.Unlock()
		<-ch
		o.mu.Lock()
	}
	defer o.mu.Unlock()

	if o.state == opIdle {
		return 0, aio.ErrnoInvalidParameter
	}
	return o.n, o.err
}

// abort cancels the operation in flight, if any.
func (o *overlapped) abort() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == opPending && o.cancel != nil {
		o.cancel()
	}
}

func (o *overlapped) pending() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == opPending
}
