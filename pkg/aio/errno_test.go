package aio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrnoIs(t *testing.T) {
	assert.ErrorIs(t, ErrnoFileNotFound, os.ErrNotExist)
	assert.ErrorIs(t, ErrnoAccessDenied, os.ErrPermission)
	assert.ErrorIs(t, ErrnoFileExists, os.ErrExist)
	assert.ErrorIs(t, ErrnoInvalidHandle, os.ErrClosed)
	assert.ErrorIs(t, ErrnoHandleEOF, io.EOF)
	assert.NotErrorIs(t, ErrnoReadFault, io.EOF)
}

func TestErrnoError(t *testing.T) {
	assert.Equal(t, "end of file", ErrnoHandleEOF.Error())
	assert.Equal(t, "errno 1234", Errno(1234).Error())
}

func TestErrnoOf(t *testing.T) {
	assert.Equal(t, ErrnoSuccess, ErrnoOf(nil))
	assert.Equal(t, ErrnoDiskFull, ErrnoOf(fmt.Errorf("write chunk: %w", ErrnoDiskFull)))
	assert.Equal(t, ErrnoGenFailure, ErrnoOf(errors.New("boom")))
	assert.Equal(t, ErrnoWriteFault, ErrnoOf(&IOError{Op: "write", Code: ErrnoWriteFault, Err: io.ErrShortWrite}))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		n    int
		err  error
		want Result
	}{
		{"Done", 10, nil, ResultDone},
		{"ShortDone", 3, nil, ResultDone},
		{"Incomplete", 0, ErrnoIOIncomplete, ResultPending},
		{"Pending", 0, ErrnoIOPending, ResultPending},
		{"EOF", 0, ErrnoHandleEOF, ResultEOF},
		{"WrappedEOF", 0, fmt.Errorf("range: %w", ErrnoHandleEOF), ResultEOF},
		{"Error", 0, ErrnoReadFault, ResultError},
		{"ForeignError", 0, errors.New("network down"), ResultError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.n, tt.err))
		})
	}
}

func TestIOError(t *testing.T) {
	err := &IOError{Op: "read", Offset: 4096, Bytes: 100, Code: ErrnoReadFault, Err: ErrnoReadFault}
	assert.Equal(t, "read at offset 4096: read fault (transferred 100 bytes)", err.Error())
	assert.ErrorIs(t, err, ErrnoReadFault)
	assert.NotErrorIs(t, err, ErrnoWriteFault)

	wrapped := &IOError{Op: "write", Code: ErrnoWriteFault, Err: io.ErrShortWrite}
	assert.Contains(t, wrapped.Error(), io.ErrShortWrite.Error())
	assert.ErrorIs(t, wrapped, io.ErrShortWrite)
	assert.ErrorIs(t, wrapped, ErrnoWriteFault)

	bare := &IOError{Op: "read", Code: ErrnoHandleEOF}
	assert.ErrorIs(t, bare, io.EOF)
}
