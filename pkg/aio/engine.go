package aio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/marmos91/ofio/internal/logger"
	"github.com/marmos91/ofio/internal/telemetry"
	"github.com/marmos91/ofio/pkg/aio/waitset"
)

// WaitSet multiplexes the completion events of in-flight buffers.
// *waitset.Set is the default implementation.
type WaitSet interface {
	Add(tag int, ev waitset.Event) error
	Remove(ev waitset.Event) bool
	Wait(ctx context.Context) (tag int, ok bool, err error)
	Len() int
	Close() error
}

// Engine runs buffered reads and writes against a FileHandleService.
//
// An Engine holds no per-request state and is safe for concurrent use;
// each call owns its buffers, contexts and wait set.
type Engine struct {
	svc        FileHandleService
	cfg        Config
	newWaitSet func() (WaitSet, error)
	metrics    Metrics
}

func defaultWaitSet() (WaitSet, error) {
	return waitset.New(), nil
}

// Option configures an Engine.
type Option func(*Engine)

// WithWaitSetFactory replaces the wait set used by each request.
func WithWaitSetFactory(f func() (WaitSet, error)) Option {
	return func(e *Engine) {
		if f != nil {
			e.newWaitSet = f
		}
	}
}

// WithMetrics enables metrics collection. A nil m leaves it disabled.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an engine. Zero Depth and ChunkSize take their defaults.
func New(svc FileHandleService, cfg Config, opts ...Option) (*Engine, error) {
	if svc == nil {
		return nil, errors.New("aio: file handle service is required")
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("aio: invalid config: %w", err)
	}

	e := &Engine{
		svc:        svc,
		cfg:        cfg,
		newWaitSet: defaultWaitSet,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration with defaults applied.
func (e *Engine) Config() Config {
	return e.cfg
}

// BufferedRead reads len(p) bytes from h starting at off.
//
// Status is StatusShortEOF when end of file is reached first; out.Bytes
// bytes at the front of p are then valid. On StatusError the returned error
// is an *IOError and out.Bytes still counts the bytes that were read. The
// file pointer of h is not used or moved.
func (e *Engine) BufferedRead(ctx context.Context, h Handle, p []byte, off int64) (Outcome, error) {
	return e.run(ctx, dirRead, h, p, off)
}

// BufferedWrite writes p to h starting at off. See BufferedRead for the
// meaning of the outcome.
func (e *Engine) BufferedWrite(ctx context.Context, h Handle, p []byte, off int64) (Outcome, error) {
	return e.run(ctx, dirWrite, h, p, off)
}

func (e *Engine) run(ctx context.Context, dir direction, h Handle, p []byte, off int64) (Outcome, error) {
	if len(p) == 0 {
		return Outcome{Status: StatusOK}, nil
	}
	if off < 0 {
		out := Outcome{Status: StatusError, Code: ErrnoInvalidParameter}
		return out, &IOError{Op: dir.String(), Offset: off, Code: out.Code}
	}

	ctx, span := telemetry.StartPipelineSpan(ctx, dir.String(),
		telemetry.FSHandle(uint64(h)),
		telemetry.FSOffset(off),
		telemetry.FSCount(len(p)),
		telemetry.PipelineDepth(e.cfg.Depth),
		telemetry.ChunkSize(e.cfg.ChunkSize))
	defer span.End()

	start := time.Now()

	ws, err := e.newWaitSet()
	if err != nil {
		out := Outcome{Status: StatusError, Code: ErrnoNotEnoughMemory}
		ioErr := &IOError{Op: dir.String(), Offset: off, Code: out.Code, Err: fmt.Errorf("%w: %w", ErrWaitSet, err)}
		e.finish(ctx, dir, h, off, len(p), out, ioErr, start, 0)
		return out, ioErr
	}

	pl := newPipeline(ctx, e, ws, dir, h, p, off)
	defer pl.release()

	if ctxErr := ctx.Err(); ctxErr != nil {
		pl.terminate(causeCanceled, ctxErr)
	}
	pl.prime()
	for pl.pending > 0 {
		pl.step()
	}
	pl.release()

	out, err := pl.outcome()
	e.finish(ctx, dir, h, off, len(p), out, err, start, pl.submitted)
	return out, err
}

// finish logs, traces and records the outcome of a request.
func (e *Engine) finish(ctx context.Context, dir direction, h Handle, off int64, count int, out Outcome, err error, start time.Time, submitted int) {
	elapsed := time.Since(start)

	telemetry.SetAttributes(ctx,
		telemetry.BytesTransferred(out.Bytes),
		telemetry.FSStatus(out.Status.String()),
		telemetry.Submissions(submitted))
	if err != nil {
		telemetry.RecordError(ctx, err)
		telemetry.SetStatus(ctx, codes.Error, out.Code.Error())
	}

	if e.metrics != nil {
		e.metrics.ObserveRequest(dir.String(), out.Bytes, out.Status, elapsed)
		e.metrics.SetInFlight(dir.String(), 0)
	}

	args := []any{
		logger.KeyOperation, dir.String(),
		logger.KeyHandle, uint64(h),
		logger.KeyOffset, off,
		logger.KeyCount, count,
		logger.KeyBytes, out.Bytes,
		logger.KeyStatus, out.Status.String(),
		logger.KeySubmissions, submitted,
		logger.KeyDurationMs, float64(elapsed.Microseconds()) / 1000,
	}
	if err != nil {
		args = append(args, logger.KeyErrorCode, uint32(out.Code), logger.KeyError, err.Error())
		logger.WarnCtx(ctx, "buffered transfer failed", args...)
		return
	}
	logger.DebugCtx(ctx, "buffered transfer complete", args...)
}
