package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/ofio/pkg/handle"
)

// lockUsable takes b.mu and fails if the backend can no longer serve ctx.
// On success the caller must unlock.
func (b *Backend) lockUsable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return handle.ErrBackendClosed
	}
	return nil
}

// isDirLocked reports whether name is a directory, either created by Mkdir
// or implied by an object below it. Callers hold b.mu.
func (b *Backend) isDirLocked(name string) bool {
	if _, ok := b.dirs[name]; ok {
		return true
	}
	return b.hasChildrenLocked(name)
}

func (b *Backend) hasChildrenLocked(name string) bool {
	prefix := name + "/"
	for n := range b.objects {
		if strings.HasPrefix(n, prefix) {
			return true
		}
	}
	for d := range b.dirs {
		if strings.HasPrefix(d, prefix) {
			return true
		}
	}
	return false
}

func (b *blob) entry(name string) handle.Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return handle.Entry{Name: name, Size: int64(len(b.data)), ModTime: b.mod}
}

// Stat implements handle.Backend.
func (b *Backend) Stat(ctx context.Context, name string) (handle.Entry, error) {
	if err := b.lockUsable(ctx); err != nil {
		return handle.Entry{}, err
	}
	defer b.mu.Unlock()

	name = handle.CleanName(name)
	if name == "" {
		return handle.Entry{Dir: true}, nil
	}
	if obj, ok := b.objects[name]; ok {
		return obj.entry(name), nil
	}
	if b.isDirLocked(name) {
		return handle.Entry{Name: name, ModTime: b.dirs[name], Dir: true}, nil
	}
	return handle.Entry{}, fmt.Errorf("memory object %q: %w", name, handle.ErrNotFound)
}

// List implements handle.Backend.
func (b *Backend) List(ctx context.Context, dir string) ([]handle.Entry, error) {
	if err := b.lockUsable(ctx); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()

	dir = handle.CleanName(dir)
	if dir != "" && !b.isDirLocked(dir) {
		return nil, fmt.Errorf("memory directory %q: %w", dir, handle.ErrNotFound)
	}

	l := handle.NewLister(dir)
	for name, obj := range b.objects {
		e := obj.entry(name)
		l.Add(name, e.Size, e.ModTime)
	}
	for name, mod := range b.dirs {
		l.AddDir(name, mod)
	}
	return l.Entries(), nil
}

// Mkdir implements handle.Backend.
func (b *Backend) Mkdir(ctx context.Context, name string) error {
	if err := b.lockUsable(ctx); err != nil {
		return err
	}
	defer b.mu.Unlock()

	name = handle.CleanName(name)
	if _, ok := b.objects[name]; ok || name == "" || b.isDirLocked(name) {
		return fmt.Errorf("memory directory %q: %w", name, handle.ErrExists)
	}

	now := time.Now()
	for dir := name; dir != ""; {
		if _, ok := b.objects[dir]; ok {
			return fmt.Errorf("memory directory %q: parent %q is an object: %w", name, dir, handle.ErrExists)
		}
		if _, ok := b.dirs[dir]; !ok {
			b.dirs[dir] = now
		}
		i := strings.LastIndexByte(dir, '/')
		if i < 0 {
			break
		}
		dir = dir[:i]
	}
	return nil
}

// Remove implements handle.Backend. Open objects keep their data until
// closed.
func (b *Backend) Remove(ctx context.Context, name string) error {
	if err := b.lockUsable(ctx); err != nil {
		return err
	}
	defer b.mu.Unlock()

	name = handle.CleanName(name)
	if name == "" {
		return fmt.Errorf("memory root: %w", handle.ErrAccessDenied)
	}
	if _, ok := b.objects[name]; ok {
		delete(b.objects, name)
		delete(b.faults, name)
		return nil
	}
	if b.hasChildrenLocked(name) {
		return fmt.Errorf("memory directory %q: %w", name, handle.ErrNotEmpty)
	}
	if _, ok := b.dirs[name]; ok {
		delete(b.dirs, name)
		return nil
	}
	return fmt.Errorf("memory object %q: %w", name, handle.ErrNotFound)
}

// Rename implements handle.Backend. Only objects can be renamed.
func (b *Backend) Rename(ctx context.Context, from, to string) error {
	if err := b.lockUsable(ctx); err != nil {
		return err
	}
	defer b.mu.Unlock()

	from, to = handle.CleanName(from), handle.CleanName(to)
	if from == "" || to == "" {
		return fmt.Errorf("memory root: %w", handle.ErrAccessDenied)
	}

	obj, ok := b.objects[from]
	switch {
	case !ok && b.isDirLocked(from):
		return fmt.Errorf("memory directory %q: rename: %w", from, errors.ErrUnsupported)
	case !ok:
		return fmt.Errorf("memory object %q: %w", from, handle.ErrNotFound)
	case from == to:
		return nil
	case b.isDirLocked(to):
		return fmt.Errorf("memory object %q: %q is a directory: %w", from, to, handle.ErrExists)
	}

	b.objects[to] = obj
	delete(b.objects, from)
	delete(b.faults, from)
	return nil
}
