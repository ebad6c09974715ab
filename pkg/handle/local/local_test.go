package local

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ofio/pkg/handle"
)

func newTestBackend(t *testing.T) (*Backend, string) {
	t.Helper()
	root := t.TempDir()
	b, err := New(DefaultConfig(root))
	require.NoError(t, err)
	return b, root
}

func TestNewRequiresDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := New(DefaultConfig(file))
	assert.ErrorContains(t, err, "not a directory")

	_, err = New(DefaultConfig(filepath.Join(dir, "missing")))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestPathConfinement(t *testing.T) {
	b, root := newTestBackend(t)

	tests := []struct {
		name string
		want string
	}{
		{"a.txt", filepath.Join(root, "a.txt")},
		{"dir/b.txt", filepath.Join(root, "dir", "b.txt")},
		{"/abs.txt", filepath.Join(root, "abs.txt")},
		{"../../escape.txt", filepath.Join(root, "escape.txt")},
		{"dir/../../c.txt", filepath.Join(root, "c.txt")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Path(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := b.Path("")
	assert.ErrorIs(t, err, fs.ErrInvalid)
}

func TestPathWithoutRoot(t *testing.T) {
	b, err := New(Config{})
	require.NoError(t, err)

	got, err := b.Path("./x/../y")
	require.NoError(t, err)
	assert.Equal(t, "y", got)
}

func TestOpenModes(t *testing.T) {
	b, root := newTestBackend(t)
	ctx := context.Background()

	_, err := b.Open(ctx, "missing", handle.ModeRead)
	assert.ErrorIs(t, err, handle.ErrNotFound)

	obj, err := b.Open(ctx, "nested/dir/f.txt", handle.ModeWrite)
	require.NoError(t, err)
	_, err = obj.WriteAt([]byte("hello"), 0)
	require.NoError(t, err)
	require.NoError(t, obj.Sync())
	require.NoError(t, obj.Close())

	data, err := os.ReadFile(filepath.Join(root, "nested", "dir", "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	obj, err = b.Open(ctx, "nested/dir/f.txt", handle.ModeAppend)
	require.NoError(t, err)
	size, err := obj.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(5), size, "append does not truncate")
	_, err = obj.WriteAt([]byte(" world"), size)
	require.NoError(t, err)
	require.NoError(t, obj.Close())

	data, err = os.ReadFile(filepath.Join(root, "nested", "dir", "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	obj, err = b.Open(ctx, "nested/dir/f.txt", handle.ModeWrite)
	require.NoError(t, err)
	size, err = obj.Size()
	require.NoError(t, err)
	assert.Zero(t, size, "write mode truncates")
	require.NoError(t, obj.Close())

	_, err = b.Open(ctx, "nested", handle.ModeRead)
	assert.ErrorIs(t, err, handle.ErrAccessDenied, "directories cannot be opened")
}

func TestPositionalIO(t *testing.T) {
	b, _ := newTestBackend(t)
	obj, err := b.Open(context.Background(), "f", handle.ModeReadWrite)
	require.NoError(t, err)
	defer func() { _ = obj.Close() }()

	_, err = obj.WriteAt([]byte("0123456789"), 0)
	require.NoError(t, err)
	_, err = obj.WriteAt([]byte("xy"), 12)
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := obj.ReadAt(buf, 2)
	require.NoError(t, err)
	assert.Equal(t, "2345", string(buf[:n]))

	buf = make([]byte, 6)
	n, err = obj.ReadAt(buf, 9)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []byte{'9', 0, 0, 'x', 'y'}, buf[:n])

	n, err = obj.ReadAt(buf, 100)
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, n)

	require.NoError(t, obj.Truncate(4))
	size, err := obj.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)
}

func TestClosed(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	obj, err := b.Open(ctx, "f", handle.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, obj.Close())
	assert.ErrorIs(t, obj.Close(), os.ErrClosed)
	_, err = obj.WriteAt([]byte("x"), 0)
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.Equal(t, "local", b.Name())

	require.NoError(t, b.Close())
	_, err = b.Open(ctx, "f", handle.ModeRead)
	assert.ErrorIs(t, err, handle.ErrBackendClosed)
}

func TestNamespace(t *testing.T) {
	b, root := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Mkdir(ctx, "docs/old"))
	assert.ErrorIs(t, b.Mkdir(ctx, "docs"), handle.ErrExists)
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "a.txt"), []byte("hello"), 0o644))

	entries, err := b.List(ctx, "docs")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, int64(5), entries[0].Size)
	assert.False(t, entries[0].Dir)
	assert.Equal(t, "old", entries[1].Name)
	assert.True(t, entries[1].Dir)

	top, err := b.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "docs", top[0].Name)

	e, err := b.Stat(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "docs/a.txt", e.Name)
	assert.Equal(t, handle.AttrExists|handle.AttrRegular, e.Attributes())
	assert.False(t, e.ModTime.IsZero())

	require.NoError(t, b.Rename(ctx, "docs/a.txt", "archive/a.txt"))
	_, err = b.Stat(ctx, "docs/a.txt")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	data, err := os.ReadFile(filepath.Join(root, "archive", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	assert.ErrorIs(t, b.Remove(ctx, "docs"), handle.ErrNotEmpty)
	require.NoError(t, b.Remove(ctx, "docs/old"))
	require.NoError(t, b.Remove(ctx, "docs"))
	assert.ErrorIs(t, b.Remove(ctx, "docs"), fs.ErrNotExist)
	assert.ErrorIs(t, b.Remove(ctx, ""), handle.ErrAccessDenied)

	assert.ErrorIs(t, b.Rename(ctx, "missing", "x"), fs.ErrNotExist)
}
