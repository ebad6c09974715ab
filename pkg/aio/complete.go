package aio

import (
	"context"
	"fmt"
)

// collect queries the operation in flight on b and retires it unless it is
// still pending. wait blocks in the service until the operation finishes.
func (p *pipeline) collect(b *transferBuffer, wait bool) {
	n, err := p.svc.GetOverlappedResult(p.h, b.ov, wait)
	res := Classify(n, err)
	if res == ResultPending {
		p.spuriousWake()
		return
	}

	want := len(b.data)
	n = max(0, min(n, want))
	start := int(b.offset - p.base)

	p.ws.Remove(b.ov)
	b.state = stateIdle
	b.data = nil
	p.pending--

	switch res {
	case ResultDone:
		p.record(start, n)
		if n < want {
			if p.dir == dirWrite {
				p.terminate(causeShortWrite, nil)
			} else {
				p.terminate(causeEOF, nil)
			}
		}
	case ResultEOF:
		p.record(start, n)
		p.terminate(causeEOF, nil)
	case ResultError:
		// A failing operation may still have moved part of its chunk.
		p.record(start, n)
		p.terminate(causeError, err)
	}
}

// step waits for one completion and retires it, refilling the freed buffer
// while work remains.
func (p *pipeline) step() {
	tag, ok, err := p.ws.Wait(p.ctx)
	if err != nil {
		if ctxErr := p.ctx.Err(); ctxErr != nil {
			p.cancel(ctxErr)
			return
		}
		p.terminate(causeFatal, fmt.Errorf("%w: %w", ErrWaitSet, err))
		p.drainBlocking()
		return
	}
	if !ok {
		// Nothing registered while operations are counted as pending.
		p.terminate(causeFatal, fmt.Errorf("%w: empty with %d pending", ErrWaitSet, p.pending))
		p.drainBlocking()
		return
	}

	b := p.pool.slot(tag)
	if b == nil || b.idle() {
		p.spuriousWake()
		return
	}
	p.collect(b, false)
	if b.idle() {
		p.resubmit(b)
	}
}

// cancel stops new submissions, asks the service to abort what is in flight
// and lets the drain continue without the caller's deadline.
func (p *pipeline) cancel(cause error) {
	p.terminate(causeCanceled, cause)
	if c, ok := p.svc.(Canceler); ok {
		for _, b := range p.pool.busy() {
			c.CancelOverlapped(p.h, b.ov)
		}
	}
	p.ctx = context.WithoutCancel(p.ctx)
}

// drainBlocking retires every busy buffer by blocking in the service. Used
// when the wait set can no longer be trusted.
func (p *pipeline) drainBlocking() {
	for _, b := range p.pool.busy() {
		p.collect(b, true)
	}
	// A service that still reports pending after a blocking wait is broken;
	// stop counting so the loop can end.
	for _, b := range p.pool.busy() {
		p.ws.Remove(b.ov)
		b.state = stateIdle
		b.data = nil
		p.pending--
	}
}

func (p *pipeline) spuriousWake() {
	p.spurious++
	if p.metrics != nil {
		p.metrics.RecordSpuriousWake(p.dir.String())
	}
}
