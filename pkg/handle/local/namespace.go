package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/marmos91/ofio/pkg/handle"
)

// resolve maps name to a path like Path, with "" naming the root.
func (b *Backend) resolve(name string) (string, error) {
	if handle.CleanName(name) == "" {
		if b.cfg.Root == "" {
			return ".", nil
		}
		return b.cfg.Root, nil
	}
	return b.Path(name)
}

func (b *Backend) usable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return handle.ErrBackendClosed
	}
	return nil
}

func entryOf(name string, info os.FileInfo) handle.Entry {
	e := handle.Entry{Name: name, ModTime: info.ModTime(), Dir: info.IsDir()}
	if !e.Dir {
		e.Size = info.Size()
	}
	return e
}

// Stat implements handle.Backend.
func (b *Backend) Stat(ctx context.Context, name string) (handle.Entry, error) {
	if err := b.usable(ctx); err != nil {
		return handle.Entry{}, err
	}
	path, err := b.resolve(name)
	if err != nil {
		return handle.Entry{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return handle.Entry{}, err
	}
	return entryOf(handle.CleanName(name), info), nil
}

// List implements handle.Backend.
func (b *Backend) List(ctx context.Context, dir string) ([]handle.Entry, error) {
	if err := b.usable(ctx); err != nil {
		return nil, err
	}
	path, err := b.resolve(dir)
	if err != nil {
		return nil, err
	}

	dirents, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	entries := make([]handle.Entry, 0, len(dirents))
	for _, d := range dirents {
		info, err := d.Info()
		if errors.Is(err, os.ErrNotExist) {
			// Removed since the directory was read.
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, entryOf(d.Name(), info))
	}
	slices.SortFunc(entries, func(a, b handle.Entry) int { return strings.Compare(a.Name, b.Name) })
	return entries, nil
}

// Mkdir implements handle.Backend.
func (b *Backend) Mkdir(ctx context.Context, name string) error {
	if err := b.usable(ctx); err != nil {
		return err
	}
	path, err := b.Path(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("mkdir %s: %w", path, handle.ErrExists)
	}
	return os.MkdirAll(path, b.cfg.DirMode)
}

// Remove implements handle.Backend.
func (b *Backend) Remove(ctx context.Context, name string) error {
	if err := b.usable(ctx); err != nil {
		return err
	}
	if handle.CleanName(name) == "" {
		return fmt.Errorf("remove root: %w", handle.ErrAccessDenied)
	}
	path, err := b.Path(name)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		dirents, err := os.ReadDir(path)
		if err != nil {
			return err
		}
		if len(dirents) > 0 {
			return fmt.Errorf("remove %s: %w", path, handle.ErrNotEmpty)
		}
	}
	return os.Remove(path)
}

// Rename implements handle.Backend. Directories are renamed as a whole.
func (b *Backend) Rename(ctx context.Context, from, to string) error {
	if err := b.usable(ctx); err != nil {
		return err
	}
	src, err := b.Path(from)
	if err != nil {
		return err
	}
	dst, err := b.Path(to)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); err != nil {
		return err
	}
	if b.cfg.CreateDirs {
		if err := os.MkdirAll(filepath.Dir(dst), b.cfg.DirMode); err != nil {
			return err
		}
	}
	return os.Rename(src, dst)
}
