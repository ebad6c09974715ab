//go:build unix

package local

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

func newFile(f *os.File) *file {
	return &file{f: f}
}

// rawFd returns the descriptor. Fd is called on every use so the
// descriptor stays tied to the *os.File lifetime.
func (f *file) rawFd() int {
	return int(f.f.Fd())
}

// ReadAt implements io.ReaderAt with pread(2).
func (f *file) ReadAt(p []byte, off int64) (int, error) {
	if err := f.check(); err != nil {
		return 0, err
	}
	fd := f.rawFd()

	n := 0
	for n < len(p) {
		m, err := unix.Pread(fd, p[n:], off+int64(n))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return n, &os.PathError{Op: "pread", Path: f.f.Name(), Err: err}
		}
		if m == 0 {
			return n, io.EOF
		}
		n += m
	}
	return n, nil
}

// WriteAt implements io.WriterAt with pwrite(2).
func (f *file) WriteAt(p []byte, off int64) (int, error) {
	if err := f.check(); err != nil {
		return 0, err
	}
	fd := f.rawFd()

	n := 0
	for n < len(p) {
		m, err := unix.Pwrite(fd, p[n:], off+int64(n))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return n, &os.PathError{Op: "pwrite", Path: f.f.Name(), Err: err}
		}
		if m == 0 {
			return n, io.ErrShortWrite
		}
		n += m
	}
	return n, nil
}

// Size implements handle.Object.
func (f *file) Size() (int64, error) {
	if err := f.check(); err != nil {
		return 0, err
	}
	var st unix.Stat_t
	if err := unix.Fstat(f.rawFd(), &st); err != nil {
		return 0, &os.PathError{Op: "fstat", Path: f.f.Name(), Err: err}
	}
	return st.Size, nil
}

// Truncate implements handle.Object.
func (f *file) Truncate(size int64) error {
	if err := f.check(); err != nil {
		return err
	}
	if err := unix.Ftruncate(f.rawFd(), size); err != nil {
		return &os.PathError{Op: "ftruncate", Path: f.f.Name(), Err: err}
	}
	return nil
}

// Sync implements handle.Object.
func (f *file) Sync() error {
	if err := f.check(); err != nil {
		return err
	}
	if err := unix.Fsync(f.rawFd()); err != nil {
		return &os.PathError{Op: "fsync", Path: f.f.Name(), Err: err}
	}
	return nil
}
