package aio

import (
	"context"
	"errors"
	"io"
)

// cause records why a pipeline stopped accepting new work. Higher values
// take precedence when several causes are observed.
type cause int

const (
	causeNone cause = iota
	causeEOF
	causeShortWrite
	causeError
	causeCanceled
	causeFatal
)

func (c cause) String() string {
	switch c {
	case causeNone:
		return "none"
	case causeEOF:
		return "eof"
	case causeShortWrite:
		return "short_write"
	case causeError:
		return "error"
	case causeCanceled:
		return "canceled"
	case causeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// pipeline is the state of a single buffered request.
//
// Invariant between steps: pending == len(pool.busy()) == ws.Len().
type pipeline struct {
	ctx     context.Context
	svc     FileHandleService
	ws      WaitSet
	pool    *bufferPool
	metrics Metrics

	h     Handle
	dir   direction
	buf   []byte
	base  int64
	chunk int
	depth int

	shortWrites ShortWritePolicy

	cursor      int
	transferred int
	prefix      int
	extents     map[int]int
	pending     int
	submitted   int
	spurious    int

	cause cause
	err   error
}

func newPipeline(ctx context.Context, e *Engine, ws WaitSet, dir direction, h Handle, p []byte, off int64) *pipeline {
	return &pipeline{
		ctx:         ctx,
		svc:         e.svc,
		ws:          ws,
		pool:        newBufferPool(e.svc, h, e.cfg.Depth, e.cfg.OnAllocFailure),
		metrics:     e.metrics,
		h:           h,
		dir:         dir,
		buf:         p,
		base:        off,
		chunk:       e.cfg.ChunkSize,
		depth:       e.cfg.Depth,
		shortWrites: e.cfg.ShortWrites,
	}
}

// record accounts for [start, start+n) of buf as transferred and advances
// the contiguous prefix over completed ranges that now touch it.
func (p *pipeline) record(start, n int) {
	p.transferred += n
	if n <= 0 {
		return
	}
	end := start + n
	if start > p.prefix {
		if p.extents == nil {
			p.extents = make(map[int]int)
		}
		p.extents[start] = end
		return
	}
	p.prefix = max(p.prefix, end)
	for {
		next, ok := p.extents[p.prefix]
		if !ok {
			return
		}
		delete(p.extents, p.prefix)
		p.prefix = next
	}
}

func (p *pipeline) remaining() int {
	return len(p.buf) - p.cursor
}

func (p *pipeline) terminal() bool {
	return p.cause != causeNone
}

// canSubmit reports whether another chunk may be claimed.
func (p *pipeline) canSubmit() bool {
	return !p.terminal() && p.remaining() > 0
}

// terminate records a stop cause. The strongest cause wins; among equal
// causes the latest error is kept.
func (p *pipeline) terminate(c cause, err error) {
	switch {
	case c > p.cause:
		p.cause = c
		p.err = err
	case c == p.cause && err != nil:
		p.err = err
	}
}

// release returns every overlapped context and closes the wait set.
func (p *pipeline) release() {
	p.pool.releaseAll()
	if p.ws != nil {
		_ = p.ws.Close()
		p.ws = nil
	}
}

// outcome maps the final pipeline state to what the caller sees.
func (p *pipeline) outcome() (Outcome, error) {
	out := Outcome{Bytes: p.transferred, Status: StatusOK}

	switch p.cause {
	case causeNone:
		return out, nil

	case causeEOF:
		if p.dir == dirWrite {
			return p.shortWriteOutcome(out)
		}
		if p.transferred < len(p.buf) {
			out.Bytes = p.prefix
			out.Status = StatusShortEOF
		}
		return out, nil

	case causeShortWrite:
		return p.shortWriteOutcome(out)

	case causeError:
		out.Code = ErrnoOf(p.err)
		if out.Code == ErrnoSuccess {
			out.Code = ErrnoGenFailure
		}

	case causeCanceled:
		out.Code = ErrnoOperationAborted

	case causeFatal:
		out.Code = ErrnoGenFailure
		if errors.Is(p.err, ErrOverlappedAlloc) {
			out.Code = ErrnoNotEnoughMemory
		}
	}

	out.Status = StatusError
	return out, p.ioError(out)
}

func (p *pipeline) shortWriteOutcome(out Outcome) (Outcome, error) {
	if p.shortWrites == ShortWriteAllow {
		out.Bytes = p.prefix
		out.Status = StatusShortEOF
		return out, nil
	}
	out.Status = StatusError
	out.Code = ErrnoWriteFault
	if p.err == nil {
		p.err = io.ErrShortWrite
	}
	return out, p.ioError(out)
}

func (p *pipeline) ioError(out Outcome) error {
	return &IOError{
		Op:     p.dir.String(),
		Offset: p.base,
		Bytes:  out.Bytes,
		Prefix: p.prefix,
		Code:   out.Code,
		Err:    p.err,
	}
}
