package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/marmos91/ofio/internal/logger"
	"github.com/marmos91/ofio/pkg/bufpool"
	"github.com/marmos91/ofio/pkg/file"
	"github.com/marmos91/ofio/pkg/handle"
	"github.com/marmos91/ofio/pkg/handle/local"
)

var (
	tailLines    int
	tailFollow   bool
	tailInterval time.Duration
)

var tailCmd = &cobra.Command{
	Use:   "tail <path>",
	Short: "Print the end of a file",
	Long: `Print the last lines of a file. With --follow, keep printing data appended
to it until interrupted.

The local backend is watched for changes; other backends are polled.

Examples:
  ofio tail -n 20 logs/app.log
  ofio tail -f logs/app.log
  ofio --backend s3 tail -f --interval 5s logs/app.log`,
	Args: cobra.ExactArgs(1),
	RunE: runTail,
}

func init() {
	tailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "number of lines to print")
	tailCmd.Flags().BoolVarP(&tailFollow, "follow", "f", false, "follow appended data")
	tailCmd.Flags().DurationVar(&tailInterval, "interval", time.Second, "poll interval for backends that cannot be watched")
}

func runTail(cmd *cobra.Command, args []string) error {
	name := args[0]
	bufSize := int(rt.cfg.Pipeline.CopyBuffer)

	return withSession(func(ctx context.Context, s *session) error {
		f, err := s.open(ctx, name, handle.ModeRead)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		size, err := f.Length()
		if err != nil {
			return err
		}
		start, err := tailStart(f, size, tailLines, bufSize)
		if err != nil {
			return err
		}
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if _, err := copyOut(ctx, out, f, -1, bufSize); err != nil {
			return err
		}
		if !tailFollow {
			return nil
		}

		changes, stop, err := watchChanges(ctx, s.backend, name, tailInterval)
		if err != nil {
			return err
		}
		defer stop()

		rt.printer.Printf("Following %s (Ctrl+C to stop)...\n", name)
		return follow(ctx, f, out, changes, bufSize)
	})
}

// tailStart returns the offset of the first of the last lines lines of f.
// A trailing newline does not start an empty last line.
func tailStart(f *file.File, size int64, lines, bufSize int) (int64, error) {
	if lines <= 0 {
		return size, nil
	}

	buf := bufpool.Get(bufSize)
	defer bufpool.Put(buf)

	found := 0
	pos := size
	for pos > 0 {
		n := min(int64(len(buf)), pos)
		pos -= n
		if _, err := f.ReadAt(buf[:n], pos); err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		for i := n - 1; i >= 0; i-- {
			if buf[i] != '\n' || pos+i == size-1 {
				continue
			}
			found++
			if found == lines {
				return pos + i + 1, nil
			}
		}
	}
	return 0, nil
}

// follow copies whatever was appended to f each time changes fires. A file
// that shrank below the pointer is read again from the start.
func follow(ctx context.Context, f *file.File, w io.Writer, changes <-chan struct{}, bufSize int) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
		}

		size, err := f.Length()
		if err != nil {
			return err
		}
		pos, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		if size < pos {
			rt.printer.Warning("file truncated, reading from the start")
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return err
			}
		}

		if _, err := copyOut(ctx, w, f, -1, bufSize); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// watchChanges reports possible appends to name. Local files are watched
// with fsnotify; everything else is polled every interval.
func watchChanges(ctx context.Context, backend handle.Backend, name string, interval time.Duration) (<-chan struct{}, func(), error) {
	changes := make(chan struct{}, 1)
	notify := func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	}

	lb, ok := backend.(*local.Backend)
	if !ok {
		if interval <= 0 {
			return nil, nil, fmt.Errorf("poll interval must be positive, got %v", interval)
		}
		ticker := time.NewTicker(interval)
		done := make(chan struct{})
		go func() {
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					notify()
				}
			}
		}()
		return changes, func() { ticker.Stop(); close(done) }, nil
	}

	path, err := lb.Path(name)
	if err != nil {
		return nil, nil, err
	}
	path, err = filepath.Abs(path)
	if err != nil {
		return nil, nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write == fsnotify.Write {
					notify()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("file watcher error", logger.KeyPath, path, logger.KeyError, err)
			}
		}
	}()

	return changes, func() { _ = watcher.Close() }, nil
}
