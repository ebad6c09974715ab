package aio

import (
	"errors"

	"github.com/marmos91/ofio/pkg/aio/waitset"
)

// Handle is an opaque file handle issued by the file handle service.
type Handle uint64

// InvalidHandle is never issued by a service.
const InvalidHandle Handle = 0

// Overlapped is a per-operation I/O context bound to one file handle.
//
// Its event signals when the operation most recently submitted on the
// context completes.
type Overlapped interface {
	waitset.Event
}

// FileHandleService is the overlapped file API the pipeline drives.
//
// ReadAsync and WriteAsync return nil when the operation completed
// immediately, ErrnoIOPending when it is in flight, and any other error when
// it failed at submission. GetOverlappedResult returns ErrnoIOIncomplete
// while the operation is still in flight and wait is false.
type FileHandleService interface {
	CreateOverlapped(h Handle) (Overlapped, error)
	DestroyOverlapped(h Handle, ov Overlapped)
	SetOverlappedOffset(h Handle, ov Overlapped, offset int64)
	ReadAsync(h Handle, p []byte, ov Overlapped) error
	WriteAsync(h Handle, p []byte, ov Overlapped) error
	GetOverlappedResult(h Handle, ov Overlapped, wait bool) (int, error)
}

// Canceler is implemented by services able to abort in-flight operations.
// A canceled operation completes with ErrnoOperationAborted.
type Canceler interface {
	CancelOverlapped(h Handle, ov Overlapped)
}

// Result is the outcome of probing one overlapped operation.
type Result int

const (
	ResultDone Result = iota
	ResultPending
	ResultEOF
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultDone:
		return "done"
	case ResultPending:
		return "pending"
	case ResultEOF:
		return "eof"
	case ResultError:
		return "error"
	default:
		return "unknown"
	}
}

// Classify maps the return values of GetOverlappedResult to a Result.
func Classify(n int, err error) Result {
	switch {
	case err == nil:
		return ResultDone
	case errors.Is(err, ErrnoIOIncomplete), errors.Is(err, ErrnoIOPending):
		return ResultPending
	case errors.Is(err, ErrnoHandleEOF):
		return ResultEOF
	default:
		return ResultError
	}
}

// Status is the overall status of a buffered request.
type Status int

const (
	// StatusOK means the whole request was transferred.
	StatusOK Status = iota
	// StatusShortEOF means end of file was reached first. Not an error.
	StatusShortEOF
	// StatusError means the request failed; Outcome.Code has the native code.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusShortEOF:
		return "short_eof"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is what a buffered request reports to its caller.
//
// With StatusOK Bytes is the full length. With StatusShortEOF it is the
// contiguous run at the start of the buffer that was transferred. With
// StatusError it is the total moved, holes included; IOError.Prefix has
// the contiguous part.
type Outcome struct {
	Bytes  int
	Status Status
	Code   Errno
}

// bufferState tracks a transfer buffer through submission and retirement.
type bufferState int

const (
	stateIdle bufferState = iota
	stateReading
	stateWriting
)

func (s bufferState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateReading:
		return "reading"
	case stateWriting:
		return "writing"
	default:
		return "unknown"
	}
}

// direction selects the read or write half of the pipeline.
type direction int

const (
	dirRead direction = iota
	dirWrite
)

func (d direction) String() string {
	if d == dirWrite {
		return "write"
	}
	return "read"
}

func (d direction) busyState() bufferState {
	if d == dirWrite {
		return stateWriting
	}
	return stateReading
}
