package commands

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/ofio/internal/logger"
	"github.com/marmos91/ofio/pkg/bufpool"
	"github.com/marmos91/ofio/pkg/handle"
)

var putAppend bool

// stdin is replaced in tests.
var stdin io.Reader = os.Stdin

var putCmd = &cobra.Command{
	Use:   "put <path>",
	Short: "Write stdin to a file",
	Long: `Read stdin and write it to a file through the buffered pipeline.

The file is created if missing and truncated unless --append is given.

Examples:
  tar c dir | ofio put backups/dir.tar
  echo "line" | ofio put --append logs/app.log`,
	Args: cobra.ExactArgs(1),
	RunE: runPut,
}

func init() {
	putCmd.Flags().BoolVarP(&putAppend, "append", "a", false, "append instead of truncating")
}

func runPut(cmd *cobra.Command, args []string) error {
	mode := handle.ModeWrite
	if putAppend {
		mode = handle.ModeAppend
	}

	return withSession(func(ctx context.Context, s *session) error {
		f, err := s.open(ctx, args[0], mode)
		if err != nil {
			return err
		}

		buf := bufpool.Get(int(rt.cfg.Pipeline.CopyBuffer))
		defer bufpool.Put(buf)

		var total int64
		for {
			n, rerr := io.ReadFull(stdin, buf)
			if n > 0 {
				w, werr := f.WriteContext(ctx, buf[:n])
				total += int64(w)
				if werr != nil {
					_ = f.Close()
					return werr
				}
			}
			if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
				break
			}
			if rerr != nil {
				_ = f.Close()
				return rerr
			}
		}

		if err := f.Sync(); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		logger.DebugCtx(ctx, "put finished", logger.KeyPath, args[0], logger.KeyBytesWritten, total)
		return nil
	})
}
