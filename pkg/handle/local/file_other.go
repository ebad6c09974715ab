//go:build !unix

package local

import (
	"os"
)

func newFile(f *os.File) *file {
	return &file{f: f}
}

// ReadAt implements io.ReaderAt.
func (f *file) ReadAt(p []byte, off int64) (int, error) {
	if err := f.check(); err != nil {
		return 0, err
	}
	return f.f.ReadAt(p, off)
}

// WriteAt implements io.WriterAt.
func (f *file) WriteAt(p []byte, off int64) (int, error) {
	if err := f.check(); err != nil {
		return 0, err
	}
	return f.f.WriteAt(p, off)
}

// Size implements handle.Object.
func (f *file) Size() (int64, error) {
	if err := f.check(); err != nil {
		return 0, err
	}
	info, err := f.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Truncate implements handle.Object.
func (f *file) Truncate(size int64) error {
	if err := f.check(); err != nil {
		return err
	}
	return f.f.Truncate(size)
}

// Sync implements handle.Object.
func (f *file) Sync() error {
	if err := f.check(); err != nil {
		return err
	}
	return f.f.Sync()
}
