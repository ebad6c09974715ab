package aio

import (
	"errors"
	"fmt"
)

var (
	// ErrOverlappedAlloc is returned when an overlapped context cannot be
	// created for a transfer buffer.
	ErrOverlappedAlloc = errors.New("overlapped context allocation failed")

	// ErrWaitSet is returned when the wait set cannot be created or used.
	ErrWaitSet = errors.New("wait set failure")
)

// IOError describes a failed buffered request.
//
// Bytes counts every byte moved by the request, including the completed
// part of a failing operation. With several chunks in flight those bytes
// need not be contiguous: only the first Prefix bytes of the buffer are
// known to have been transferred.
type IOError struct {
	Op     string
	Offset int64
	Bytes  int
	Prefix int
	Code   Errno
	Err    error
}

func (e *IOError) Error() string {
	if e.Err != nil && !errors.Is(e.Err, e.Code) {
		return fmt.Sprintf("%s at offset %d: %s (transferred %d bytes): %v", e.Op, e.Offset, e.Code, e.Bytes, e.Err)
	}
	return fmt.Sprintf("%s at offset %d: %s (transferred %d bytes)", e.Op, e.Offset, e.Code, e.Bytes)
}

func (e *IOError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Code
}

// Is matches the native code as well as the wrapped error.
func (e *IOError) Is(target error) bool {
	if code, ok := target.(Errno); ok {
		return code == e.Code
	}
	return e.Code.Is(target)
}
