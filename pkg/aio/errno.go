package aio

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Errno is a native error code as reported by the file handle service.
//
// Values follow the Win32 code space used by the underlying file API, so
// codes can be passed through to callers unchanged.
type Errno uint32

const (
	ErrnoSuccess          Errno = 0
	ErrnoFileNotFound     Errno = 2
	ErrnoAccessDenied     Errno = 5
	ErrnoInvalidHandle    Errno = 6
	ErrnoNotEnoughMemory  Errno = 8
	ErrnoWriteFault       Errno = 29
	ErrnoReadFault        Errno = 30
	ErrnoGenFailure       Errno = 31
	ErrnoHandleEOF        Errno = 38
	ErrnoNotSupported     Errno = 50
	ErrnoFileExists       Errno = 80
	ErrnoInvalidParameter Errno = 87
	ErrnoDiskFull         Errno = 112
	ErrnoDirNotEmpty      Errno = 145
	ErrnoOperationAborted Errno = 995
	ErrnoIOIncomplete     Errno = 996
	ErrnoIOPending        Errno = 997
)

var errnoNames = map[Errno]string{
	ErrnoSuccess:          "success",
	ErrnoFileNotFound:     "file not found",
	ErrnoAccessDenied:     "access denied",
	ErrnoInvalidHandle:    "invalid handle",
	ErrnoNotEnoughMemory:  "not enough memory",
	ErrnoWriteFault:       "write fault",
	ErrnoReadFault:        "read fault",
	ErrnoGenFailure:       "general failure",
	ErrnoHandleEOF:        "end of file",
	ErrnoNotSupported:     "not supported",
	ErrnoFileExists:       "file exists",
	ErrnoInvalidParameter: "invalid parameter",
	ErrnoDiskFull:         "disk full",
	ErrnoDirNotEmpty:      "directory not empty",
	ErrnoOperationAborted: "operation aborted",
	ErrnoIOIncomplete:     "overlapped I/O incomplete",
	ErrnoIOPending:        "overlapped I/O pending",
}

func (e Errno) Error() string {
	if name, ok := errnoNames[e]; ok {
		return name
	}
	return fmt.Sprintf("errno %d", uint32(e))
}

// Is lets errors.Is match codes against the portable sentinels.
func (e Errno) Is(target error) bool {
	switch target {
	case os.ErrNotExist:
		return e == ErrnoFileNotFound
	case os.ErrPermission:
		return e == ErrnoAccessDenied
	case os.ErrExist:
		return e == ErrnoFileExists
	case os.ErrClosed:
		return e == ErrnoInvalidHandle
	case io.EOF:
		return e == ErrnoHandleEOF
	}
	return false
}

// ErrnoOf extracts the native code carried by err.
// It returns ErrnoSuccess for nil and ErrnoGenFailure when err carries none.
func ErrnoOf(err error) Errno {
	if err == nil {
		return ErrnoSuccess
	}
	var code Errno
	if errors.As(err, &code) {
		return code
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return ioErr.Code
	}
	return ErrnoGenFailure
}
