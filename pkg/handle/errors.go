package handle

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"syscall"

	"github.com/marmos91/ofio/pkg/aio"
)

// ============================================================================
// Standard Handle Service Errors
// ============================================================================

// Backends return these (or wrap them) so that ToErrno can map failures to
// the native code reported through the overlapped API.

var (
	// ErrNotFound indicates the named object does not exist.
	//
	// Native code: ERROR_FILE_NOT_FOUND (2)
	ErrNotFound = fs.ErrNotExist

	// ErrExists indicates the object already exists.
	//
	// Native code: ERROR_FILE_EXISTS (80)
	ErrExists = fs.ErrExist

	// ErrAccessDenied indicates the handle was not opened for the
	// requested access, or the backend refused it.
	//
	// Native code: ERROR_ACCESS_DENIED (5)
	ErrAccessDenied = fs.ErrPermission

	// ErrInvalidHandle indicates the handle is unknown or already closed.
	//
	// Native code: ERROR_INVALID_HANDLE (6)
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrInvalidOffset indicates a negative offset or seek target.
	//
	// Native code: ERROR_INVALID_PARAMETER (87)
	ErrInvalidOffset = errors.New("invalid offset")

	// ErrDiskFull indicates the backend has no space left.
	//
	// This is a transient error - it may succeed after cleanup.
	//
	// Native code: ERROR_DISK_FULL (112)
	ErrDiskFull = errors.New("disk full")

	// ErrNotEmpty indicates a directory still has entries and cannot be
	// removed.
	//
	// Native code: ERROR_DIR_NOT_EMPTY (145)
	ErrNotEmpty = errors.New("directory not empty")

	// ErrBusy indicates an overlapped context was reused while an operation
	// was still in flight on it.
	//
	// Native code: ERROR_INVALID_PARAMETER (87)
	ErrBusy = errors.New("overlapped context busy")

	// ErrBackendClosed indicates the backend has been shut down.
	//
	// Native code: ERROR_INVALID_HANDLE (6)
	ErrBackendClosed = errors.New("backend closed")
)

// ToErrno maps an error returned by a backend or by the service to the
// native code space. A nil error maps to ERROR_SUCCESS.
func ToErrno(err error) aio.Errno {
	if err == nil {
		return aio.ErrnoSuccess
	}

	var code aio.Errno
	if errors.As(err, &code) {
		return code
	}

	switch {
	case errors.Is(err, io.EOF):
		return aio.ErrnoHandleEOF
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return aio.ErrnoOperationAborted
	case errors.Is(err, ErrNotFound):
		return aio.ErrnoFileNotFound
	case errors.Is(err, ErrExists):
		return aio.ErrnoFileExists
	case errors.Is(err, ErrAccessDenied):
		return aio.ErrnoAccessDenied
	case errors.Is(err, ErrInvalidHandle), errors.Is(err, ErrBackendClosed), errors.Is(err, fs.ErrClosed):
		return aio.ErrnoInvalidHandle
	case errors.Is(err, ErrInvalidOffset), errors.Is(err, ErrBusy), errors.Is(err, fs.ErrInvalid):
		return aio.ErrnoInvalidParameter
	case errors.Is(err, ErrDiskFull), errors.Is(err, syscall.ENOSPC):
		return aio.ErrnoDiskFull
	case errors.Is(err, ErrNotEmpty), errors.Is(err, syscall.ENOTEMPTY):
		return aio.ErrnoDirNotEmpty
	case errors.Is(err, errors.ErrUnsupported):
		return aio.ErrnoNotSupported
	default:
		return aio.ErrnoGenFailure
	}
}
