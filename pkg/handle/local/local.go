// Package local provides a filesystem-backed handle backend.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/marmos91/ofio/pkg/handle"
)

// Config holds configuration for the local backend.
type Config struct {
	// Root confines every name to this directory. Empty means names are
	// used as given (relative to the working directory).
	Root string

	// CreateDirs creates missing parent directories when creating a file.
	// Default: true
	CreateDirs bool

	// DirMode is the permission mode for created directories.
	// Default: 0755
	DirMode os.FileMode

	// FileMode is the permission mode for created files.
	// Default: 0644
	FileMode os.FileMode
}

// DefaultConfig returns the default configuration.
func DefaultConfig(root string) Config {
	return Config{
		Root:       root,
		CreateDirs: true,
		DirMode:    0755,
		FileMode:   0644,
	}
}

// Backend opens regular files.
type Backend struct {
	cfg Config

	mu     sync.RWMutex
	closed bool
}

var _ handle.Backend = (*Backend)(nil)

// New creates a local backend.
func New(cfg Config) (*Backend, error) {
	if cfg.DirMode == 0 {
		cfg.DirMode = 0755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0644
	}

	if cfg.Root != "" {
		root, err := filepath.Abs(cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("resolve root %q: %w", cfg.Root, err)
		}
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("root %q is not a directory", root)
		}
		cfg.Root = root
	}

	return &Backend{cfg: cfg}, nil
}

func (b *Backend) Name() string { return "local" }

// Path resolves name to a filesystem path. With a root configured, names
// cannot escape it.
func (b *Backend) Path(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty name: %w", fs.ErrInvalid)
	}
	if b.cfg.Root == "" {
		return filepath.Clean(name), nil
	}

	// Cleaning against "/" drops any leading ".." components.
	rel := filepath.Clean("/" + filepath.ToSlash(name))
	path := filepath.Join(b.cfg.Root, filepath.FromSlash(strings.TrimPrefix(rel, "/")))
	if path != b.cfg.Root && !strings.HasPrefix(path, b.cfg.Root+string(filepath.Separator)) {
		return "", fmt.Errorf("%q escapes root: %w", name, handle.ErrAccessDenied)
	}
	return path, nil
}

func openFlags(mode handle.OpenMode) int {
	switch mode {
	case handle.ModeWrite:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case handle.ModeAppend:
		// Positional writes ignore the offset under O_APPEND on Linux, so
		// the file pointer is placed at the end by the service instead.
		return os.O_WRONLY | os.O_CREATE
	case handle.ModeReadWrite:
		return os.O_RDWR | os.O_CREATE
	default:
		return os.O_RDONLY
	}
}

// Open implements handle.Backend.
func (b *Backend) Open(ctx context.Context, name string, mode handle.OpenMode) (handle.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return nil, handle.ErrBackendClosed
	}

	path, err := b.Path(name)
	if err != nil {
		return nil, err
	}

	if mode.Create() && b.cfg.CreateDirs {
		if err := os.MkdirAll(filepath.Dir(path), b.cfg.DirMode); err != nil {
			return nil, err
		}
	}

	f, err := os.OpenFile(path, openFlags(mode), b.cfg.FileMode)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%s is a directory: %w", path, handle.ErrAccessDenied)
	}

	return newFile(f), nil
}

// Close implements handle.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// file is an open regular file. Positional I/O lives in the
// platform-specific files.
type file struct {
	f *os.File

	mu     sync.RWMutex
	closed bool
}

func (f *file) check() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return os.ErrClosed
	}
	return nil
}

// Close implements handle.Object.
func (f *file) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return os.ErrClosed
	}
	f.closed = true
	if err := f.f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
