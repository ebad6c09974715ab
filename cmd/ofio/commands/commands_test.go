package commands

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ofio/pkg/aio"
	"github.com/marmos91/ofio/pkg/file"
	"github.com/marmos91/ofio/pkg/handle"
	"github.com/marmos91/ofio/pkg/handle/local"
	"github.com/marmos91/ofio/pkg/handle/memory"
)

// execute runs the root command with a local backend rooted at root and
// returns what the command wrote to its output.
func execute(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	catOffset, catLength = 0, -1
	putAppend = false
	tailLines, tailFollow = 10, false
	versionShort = false
	benchChunk, benchDepths, benchVerify = 0, []int{1, 2, 4, 8, 16}, true
	cfgFile, outputFormat = "", "table"
	mkdirParents, rmRecursive, rmForce = false, false, false

	var out bytes.Buffer
	cmd := GetRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--backend", "local", "--root", root, "--depth", "3", "--chunk-size", "100B"}, args...))

	err := cmd.Execute()
	teardown()
	return out.String(), err
}

func putString(t *testing.T, root, name, data string, extra ...string) {
	t.Helper()
	stdin = strings.NewReader(data)
	t.Cleanup(func() { stdin = os.Stdin })

	_, err := execute(t, root, append([]string{"put"}, append(extra, name)...)...)
	require.NoError(t, err)
}

func TestPutThenCat(t *testing.T) {
	root := t.TempDir()
	data := strings.Repeat("0123456789", 250)

	putString(t, root, "a.txt", data)

	onDisk, err := os.ReadFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, data, string(onDisk))

	out, err := execute(t, root, "cat", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, data, out)

	out, err = execute(t, root, "cat", "--offset", "5", "--length", "7", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "5678901", out)
}

func TestPutAppend(t *testing.T) {
	root := t.TempDir()

	putString(t, root, "log", "one\n")
	putString(t, root, "log", "two\n", "--append")

	out, err := execute(t, root, "cat", "log")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", out)
}

func TestCatMissingFile(t *testing.T) {
	_, err := execute(t, t.TempDir(), "cat", "missing")
	require.Error(t, err)
}

func TestCatNegativeOffset(t *testing.T) {
	root := t.TempDir()
	putString(t, root, "a", "abc")

	_, err := execute(t, root, "cat", "--offset", "-1", "a")
	require.Error(t, err)
}

func TestCp(t *testing.T) {
	root := t.TempDir()
	data := strings.Repeat("xyz", 1234)
	putString(t, root, "src", data)

	_, err := execute(t, root, "-o", "json", "cp", "src", "dst")
	require.NoError(t, err)

	copied, err := os.ReadFile(filepath.Join(root, "dst"))
	require.NoError(t, err)
	assert.Equal(t, data, string(copied))
}

func TestTail(t *testing.T) {
	root := t.TempDir()
	putString(t, root, "log", "a\nb\nc\nd\n")

	out, err := execute(t, root, "tail", "-n", "2", "log")
	require.NoError(t, err)
	assert.Equal(t, "c\nd\n", out)
}

func TestStat(t *testing.T) {
	root := t.TempDir()
	putString(t, root, "a", "abc")

	_, err := execute(t, root, "-o", "json", "stat", "a")
	require.NoError(t, err)

	_, err = execute(t, root, "stat", "missing")
	require.Error(t, err)
}

func TestNamespaceCommands(t *testing.T) {
	root := t.TempDir()

	_, err := execute(t, root, "mkdir", "logs/2024")
	require.NoError(t, err)
	info, err := os.Stat(filepath.Join(root, "logs", "2024"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = execute(t, root, "mkdir", "logs")
	assert.ErrorIs(t, err, handle.ErrExists)
	_, err = execute(t, root, "mkdir", "-p", "logs")
	require.NoError(t, err)

	putString(t, root, "logs/2024/a.log", "hello")
	_, err = execute(t, root, "mv", "logs/2024/a.log", "logs/b.log")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(root, "logs", "2024", "a.log"))
	assert.FileExists(t, filepath.Join(root, "logs", "b.log"))

	_, err = execute(t, root, "-o", "json", "ls", "logs")
	require.NoError(t, err)
	_, err = execute(t, root, "ls", "missing")
	assert.ErrorIs(t, err, handle.ErrNotFound)

	_, err = execute(t, root, "rm", "logs")
	assert.ErrorIs(t, err, handle.ErrNotEmpty)
	_, err = execute(t, root, "rm", "logs/b.log")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(root, "logs", "b.log"))

	_, err = execute(t, root, "rm", "-r", "-f", "logs")
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(root, "logs"))

	_, err = execute(t, root, "rm", "-r", "-f", "/")
	assert.ErrorIs(t, err, handle.ErrAccessDenied)
	assert.DirExists(t, root)
}

func TestRemoveTreeFlatStore(t *testing.T) {
	backend := memory.New(memory.Options{})
	svc := handle.New(backend)
	t.Cleanup(func() { _ = svc.Shutdown() })
	ctx := context.Background()

	require.NoError(t, svc.Mkdir(ctx, "d/empty"))
	backend.Put("d/a", []byte("a"))
	backend.Put("d/sub/b", []byte("b"))
	backend.Put("keep", []byte("k"))

	require.NoError(t, removeTree(ctx, svc, "d"))

	entries, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep", entries[0].Name)
}

func TestBench(t *testing.T) {
	root := t.TempDir()

	_, err := execute(t, root, "-o", "json", "bench", "--size", "1KiB", "--depths", "1,4", "--chunk", "100B", "scratch")
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(root, "scratch"))
	require.NoError(t, err)
	assert.Equal(t, int64(1024), info.Size())
}

func TestBenchRejectsBadDepth(t *testing.T) {
	_, err := execute(t, t.TempDir(), "bench", "--size", "1KiB", "--depths", "0", "scratch")
	require.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ofio.yaml")

	out, err := execute(t, t.TempDir(), "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = execute(t, t.TempDir(), "config", "init", "--config", path)
	require.Error(t, err, "init must not overwrite without --force")

	out, err = execute(t, t.TempDir(), "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation: OK")

	out, err = execute(t, t.TempDir(), "-o", "json", "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"Pipeline"`)
}

func TestInvalidFlags(t *testing.T) {
	_, err := execute(t, t.TempDir(), "--backend", "floppy", "cat", "x")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, t.TempDir(), "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestCompletion(t *testing.T) {
	out, err := execute(t, t.TempDir(), "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "ofio")

	_, err = execute(t, t.TempDir(), "completion", "tcsh")
	require.Error(t, err)
}

func openMemoryFile(t *testing.T, data string) (*file.File, func(handle.OpenMode) *file.File) {
	t.Helper()
	backend := memory.New(memory.Options{})
	backend.Put("f", []byte(data))

	svc := handle.New(backend)
	t.Cleanup(func() { _ = svc.Shutdown() })
	eng, err := aio.New(svc, aio.Config{Depth: 2, ChunkSize: 4})
	require.NoError(t, err)

	reopen := func(mode handle.OpenMode) *file.File {
		f, err := file.Open(context.Background(), svc, eng, "f", mode)
		require.NoError(t, err)
		return f
	}
	return reopen(handle.ModeRead), reopen
}

func TestTailStart(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		lines int
		want  int64
	}{
		{"empty", "", 3, 0},
		{"fewer lines than asked", "a\nb\n", 5, 0},
		{"trailing newline", "a\nb\nc\n", 2, 2},
		{"no trailing newline", "a\nb\nc", 2, 2},
		{"zero lines", "a\nb\n", 0, 4},
		{"spans buffers", "line1\nline2\nline3\n", 1, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := openMemoryFile(t, tt.data)
			got, err := tailStart(f, int64(len(tt.data)), tt.lines, 3)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFollowCopiesAppendedData(t *testing.T) {
	f, reopen := openMemoryFile(t, "old")
	_, err := f.Seek(0, io.SeekEnd)
	require.NoError(t, err)

	w := reopen(handle.ModeAppend)
	_, err = w.Write([]byte(" new"))
	require.NoError(t, err)

	// One pending notification, then the channel closes.
	changes := make(chan struct{}, 1)
	changes <- struct{}{}
	close(changes)

	var out bytes.Buffer
	require.NoError(t, follow(context.Background(), f, &out, changes, 16))
	assert.Equal(t, " new", out.String())
}

func TestFollowStopsOnCancel(t *testing.T) {
	f, _ := openMemoryFile(t, "data")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	require.NoError(t, follow(ctx, f, &out, make(chan struct{}), 16))
	assert.Empty(t, out.String())
}

func TestWatchChangesPolls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, stop, err := watchChanges(ctx, memory.New(memory.Options{}), "f", 5*time.Millisecond)
	require.NoError(t, err)
	defer stop()

	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("no poll notification")
	}

	_, _, err = watchChanges(ctx, memory.New(memory.Options{}), "f", 0)
	require.Error(t, err)
}

func TestWatchChangesLocal(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "log")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := local.New(local.DefaultConfig(root))
	require.NoError(t, err)
	changes, stop, err := watchChanges(ctx, backend, "log", time.Second)
	require.NoError(t, err)
	defer stop()

	fh, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = fh.WriteString("y")
	require.NoError(t, err)
	require.NoError(t, fh.Close())

	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no watch notification")
	}
}
