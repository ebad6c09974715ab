package aio

import (
	"fmt"
)

// transferBuffer is one slot of the buffer pool.
//
// data is a window into the caller's buffer, never a copy. slot doubles as
// the wait-set tag, so completions map back to buffers by index.
type transferBuffer struct {
	slot   int
	data   []byte
	offset int64
	state  bufferState
	ov     Overlapped
}

func (b *transferBuffer) idle() bool {
	return b.state == stateIdle
}

// bufferPool owns the transfer buffers of one request.
//
// Slots are created lazily, up to depth, each with its own overlapped
// context. Contexts live until releaseAll, so a slot that is reused for
// several chunks is only created and destroyed once.
type bufferPool struct {
	svc      FileHandleService
	h        Handle
	depth    int
	policy   AllocFailurePolicy
	bufs     []*transferBuffer
	released bool
}

func newBufferPool(svc FileHandleService, h Handle, depth int, policy AllocFailurePolicy) *bufferPool {
	return &bufferPool{
		svc:    svc,
		h:      h,
		depth:  depth,
		policy: policy,
		bufs:   make([]*transferBuffer, 0, depth),
	}
}

// acquire returns an idle buffer, creating a new slot when every existing
// one is busy.
func (p *bufferPool) acquire() (*transferBuffer, error) {
	if p.released {
		return nil, fmt.Errorf("%w: pool released", ErrOverlappedAlloc)
	}
	for _, b := range p.bufs {
		if b.idle() {
			return b, nil
		}
	}
	if len(p.bufs) >= p.depth {
		return nil, fmt.Errorf("%w: all %d buffers busy", ErrOverlappedAlloc, p.depth)
	}

	ov, err := p.svc.CreateOverlapped(p.h)
	if err == nil && ov == nil {
		err = ErrnoNotEnoughMemory
	}
	if err != nil {
		if p.policy == AllocFailurePanic {
			panic(fmt.Sprintf("aio: create overlapped context for handle %d: %v", p.h, err))
		}
		return nil, fmt.Errorf("%w: %w", ErrOverlappedAlloc, err)
	}

	b := &transferBuffer{slot: len(p.bufs), ov: ov}
	p.bufs = append(p.bufs, b)
	return b, nil
}

// slot returns the buffer registered under tag, or nil.
func (p *bufferPool) slot(tag int) *transferBuffer {
	if tag < 0 || tag >= len(p.bufs) {
		return nil
	}
	return p.bufs[tag]
}

// busy returns the buffers with an operation in flight.
func (p *bufferPool) busy() []*transferBuffer {
	var out []*transferBuffer
	for _, b := range p.bufs {
		if !b.idle() {
			out = append(out, b)
		}
	}
	return out
}

// releaseAll destroys every overlapped context exactly once. Safe to call
// more than once.
func (p *bufferPool) releaseAll() {
	if p.released {
		return
	}
	p.released = true
	for _, b := range p.bufs {
		if b.ov != nil {
			p.svc.DestroyOverlapped(p.h, b.ov)
		}
		b.ov = nil
		b.data = nil
		b.state = stateIdle
	}
}
