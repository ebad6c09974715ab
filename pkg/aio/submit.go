package aio

import (
	"errors"
	"fmt"
)

// prime fills the pipeline up to depth.
//
// An operation that completes inline leaves its buffer idle, so the next
// acquire hands the same slot back and priming carries on.
func (p *pipeline) prime() {
	for p.canSubmit() && p.pending < p.depth {
		b, err := p.pool.acquire()
		if err != nil {
			p.terminate(causeFatal, err)
			return
		}
		p.submit(b)
	}
	p.reportInFlight()
}

// resubmit keeps b busy with the next chunk after a completion.
func (p *pipeline) resubmit(b *transferBuffer) {
	for b.idle() && p.canSubmit() {
		p.submit(b)
	}
	p.reportInFlight()
}

// submit claims the next chunk at the cursor and issues it on b.
//
// The cursor moves before the result is known: offsets are handed out
// exactly once, whatever the service answers.
func (p *pipeline) submit(b *transferBuffer) {
	n := min(p.chunk, p.remaining())
	start := p.cursor
	p.cursor += n

	b.data = p.buf[start : start+n : start+n]
	b.offset = p.base + int64(start)
	b.state = p.dir.busyState()

	if err := p.ws.Add(b.slot, b.ov); err != nil {
		b.state = stateIdle
		b.data = nil
		p.terminate(causeFatal, fmt.Errorf("%w: %w", ErrWaitSet, err))
		return
	}

	p.svc.SetOverlappedOffset(p.h, b.ov, b.offset)

	var err error
	if p.dir == dirWrite {
		err = p.svc.WriteAsync(p.h, b.data, b.ov)
	} else {
		err = p.svc.ReadAsync(p.h, b.data, b.ov)
	}
	p.submitted++

	switch {
	case err == nil:
		p.recordSubmission(submitInline)
		p.pending++
		p.collect(b, false)

	case errors.Is(err, ErrnoIOPending):
		p.recordSubmission(submitPending)
		p.pending++

	default:
		p.recordSubmission(submitError)
		p.ws.Remove(b.ov)
		b.state = stateIdle
		b.data = nil
		if errors.Is(err, ErrnoHandleEOF) {
			p.terminate(causeEOF, nil)
		} else {
			p.terminate(causeError, err)
		}
	}
}

func (p *pipeline) recordSubmission(result string) {
	if p.metrics != nil {
		p.metrics.RecordSubmission(p.dir.String(), result)
	}
}

func (p *pipeline) reportInFlight() {
	if p.metrics != nil {
		p.metrics.SetInFlight(p.dir.String(), p.pending)
	}
}
