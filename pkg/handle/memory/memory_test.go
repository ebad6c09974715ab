package memory

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ofio/pkg/handle"
)

func TestOpenModes(t *testing.T) {
	b := New(Options{})
	ctx := context.Background()

	_, err := b.Open(ctx, "x", handle.ModeRead)
	assert.ErrorIs(t, err, handle.ErrNotFound)

	b.Put("x", []byte("abc"))
	obj, err := b.Open(ctx, "x", handle.ModeAppend)
	require.NoError(t, err)
	size, err := obj.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)

	_, err = b.Open(ctx, "x", handle.ModeWrite)
	require.NoError(t, err)
	size, err = obj.Size()
	require.NoError(t, err)
	assert.Zero(t, size, "truncation is visible through every open object")

	require.NoError(t, b.Remove(ctx, "x"))
	_, ok := b.Bytes("x")
	assert.False(t, ok)
}

func TestReadWrite(t *testing.T) {
	b := New(Options{})
	obj, err := b.Open(context.Background(), "f", handle.ModeReadWrite)
	require.NoError(t, err)

	n, err := obj.WriteAt([]byte("world"), 6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	_, err = obj.WriteAt([]byte("hello"), 0)
	require.NoError(t, err)

	data, _ := b.Bytes("f")
	assert.Equal(t, "hello\x00world", string(data))

	buf := make([]byte, 8)
	n, err = obj.ReadAt(buf, 6)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "world", string(buf[:n]))

	n, err = obj.ReadAt(buf[:0], 100)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = obj.ReadAt(buf, -1)
	assert.ErrorIs(t, err, handle.ErrInvalidOffset)

	require.NoError(t, obj.Truncate(2))
	require.NoError(t, obj.Truncate(4))
	data, _ = b.Bytes("f")
	assert.Equal(t, "he\x00\x00", string(data))
}

func TestCapacity(t *testing.T) {
	b := New(Options{Capacity: 10})
	obj, err := b.Open(context.Background(), "f", handle.ModeWrite)
	require.NoError(t, err)

	n, err := obj.WriteAt(make([]byte, 8), 4)
	assert.ErrorIs(t, err, handle.ErrDiskFull)
	assert.Equal(t, 6, n)

	n, err = obj.WriteAt(make([]byte, 4), 12)
	assert.ErrorIs(t, err, handle.ErrDiskFull)
	assert.Zero(t, n)

	assert.ErrorIs(t, obj.Truncate(11), handle.ErrDiskFull)
}

func TestFaults(t *testing.T) {
	b := New(Options{})
	b.Put("f", make([]byte, 100))
	boom := errors.New("boom")
	b.FailAt("f", 50, boom)

	obj, err := b.Open(context.Background(), "f", handle.ModeReadWrite)
	require.NoError(t, err)

	_, err = obj.ReadAt(make([]byte, 10), 40)
	assert.NoError(t, err, "range ends before the fault")
	_, err = obj.ReadAt(make([]byte, 10), 45)
	assert.ErrorIs(t, err, boom)
	_, err = obj.WriteAt(make([]byte, 1), 50)
	assert.ErrorIs(t, err, boom)

	size, err := obj.Size()
	require.NoError(t, err, "size is not a transfer")
	assert.Equal(t, int64(100), size)

	b.FailAt("f", 0, nil)
	_, err = obj.ReadAt(make([]byte, 10), 45)
	assert.NoError(t, err)
}

func TestLatencyHonorsContext(t *testing.T) {
	b := New(Options{Latency: time.Hour})
	b.Put("f", make([]byte, 10))
	obj, err := b.Open(context.Background(), "f", handle.ModeRead)
	require.NoError(t, err)
	co := obj.(handle.ContextObject)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = co.ReadAtContext(ctx, make([]byte, 4), 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClose(t *testing.T) {
	b := New(Options{Inline: true})
	assert.True(t, b.InlineCompletion())
	assert.Equal(t, "memory", b.Name())

	obj, err := b.Open(context.Background(), "f", handle.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, obj.Close())
	assert.ErrorIs(t, obj.Close(), handle.ErrInvalidHandle)
	_, err = obj.WriteAt([]byte("x"), 0)
	assert.ErrorIs(t, err, handle.ErrInvalidHandle)

	require.NoError(t, b.Close())
	_, err = b.Open(context.Background(), "f", handle.ModeRead)
	assert.ErrorIs(t, err, handle.ErrBackendClosed)
}

func TestNamespace(t *testing.T) {
	ctx := context.Background()

	t.Run("MkdirAndList", func(t *testing.T) {
		b := New(Options{})
		require.NoError(t, b.Mkdir(ctx, "a/b"))
		assert.ErrorIs(t, b.Mkdir(ctx, "a"), handle.ErrExists)
		b.Put("a/f", []byte("12345"))
		b.Put("top", nil)
		b.Put("a/c/deep", []byte("x"))

		entries, err := b.List(ctx, "")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "a", entries[0].Name)
		assert.True(t, entries[0].Dir)
		assert.Equal(t, "top", entries[1].Name)

		entries, err = b.List(ctx, "/a/")
		require.NoError(t, err)
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name
		}
		assert.Equal(t, []string{"b", "c", "f"}, names)
		assert.Equal(t, int64(5), entries[2].Size)

		_, err = b.List(ctx, "missing")
		assert.ErrorIs(t, err, handle.ErrNotFound)
	})

	t.Run("Stat", func(t *testing.T) {
		b := New(Options{})
		before := time.Now()
		obj, err := b.Open(ctx, "d/f", handle.ModeWrite)
		require.NoError(t, err)
		_, err = obj.WriteAt([]byte("abc"), 0)
		require.NoError(t, err)

		e, err := b.Stat(ctx, "d/f")
		require.NoError(t, err)
		assert.Equal(t, int64(3), e.Size)
		assert.False(t, e.ModTime.Before(before))
		assert.Equal(t, handle.AttrExists|handle.AttrRegular, e.Attributes())

		e, err = b.Stat(ctx, "d")
		require.NoError(t, err)
		assert.True(t, e.Dir)

		e, err = b.Stat(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, handle.AttrExists|handle.AttrDirectory, e.Attributes())

		_, err = b.Stat(ctx, "nope")
		assert.ErrorIs(t, err, handle.ErrNotFound)

		_, err = b.Open(ctx, "d", handle.ModeRead)
		assert.ErrorIs(t, err, handle.ErrAccessDenied)
	})

	t.Run("Remove", func(t *testing.T) {
		b := New(Options{})
		require.NoError(t, b.Mkdir(ctx, "d"))
		b.Put("d/f", []byte("x"))

		assert.ErrorIs(t, b.Remove(ctx, "d"), handle.ErrNotEmpty)
		require.NoError(t, b.Remove(ctx, "d/f"))
		require.NoError(t, b.Remove(ctx, "d"))
		assert.ErrorIs(t, b.Remove(ctx, "d"), handle.ErrNotFound)
		assert.ErrorIs(t, b.Remove(ctx, ""), handle.ErrAccessDenied)
	})

	t.Run("Rename", func(t *testing.T) {
		b := New(Options{})
		b.Put("old", []byte("data"))
		b.Put("dir/x", []byte("y"))

		require.NoError(t, b.Rename(ctx, "old", "new"))
		_, ok := b.Bytes("old")
		assert.False(t, ok)
		data, ok := b.Bytes("new")
		require.True(t, ok)
		assert.Equal(t, []byte("data"), data)

		assert.ErrorIs(t, b.Rename(ctx, "old", "other"), handle.ErrNotFound)
		assert.ErrorIs(t, b.Rename(ctx, "dir", "moved"), errors.ErrUnsupported)
		assert.ErrorIs(t, b.Rename(ctx, "new", "dir"), handle.ErrExists)
	})

	t.Run("Closed", func(t *testing.T) {
		b := New(Options{})
		require.NoError(t, b.Close())
		_, err := b.List(ctx, "")
		assert.ErrorIs(t, err, handle.ErrBackendClosed)
	})
}
