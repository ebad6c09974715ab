package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/marmos91/ofio/internal/logger"
	"github.com/marmos91/ofio/pkg/bufpool"
	"github.com/marmos91/ofio/pkg/file"
	"github.com/marmos91/ofio/pkg/handle"
)

var (
	catOffset int64
	catLength int64
)

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a file to stdout",
	Long: `Read a file through the buffered pipeline and write it to stdout.

Examples:
  # Print a whole file
  ofio cat data.bin

  # Print 4KiB starting at offset 1MiB from S3
  ofio cat --backend s3 --offset 1048576 --length 4096 logs/app.log`,
	Args: cobra.ExactArgs(1),
	RunE: runCat,
}

func init() {
	catCmd.Flags().Int64Var(&catOffset, "offset", 0, "start reading at this offset")
	catCmd.Flags().Int64Var(&catLength, "length", -1, "read at most this many bytes (-1 reads to the end)")
}

func runCat(cmd *cobra.Command, args []string) error {
	if catOffset < 0 {
		return fmt.Errorf("offset must not be negative, got %d", catOffset)
	}
	return withSession(func(ctx context.Context, s *session) error {
		f, err := s.open(ctx, args[0], handle.ModeRead)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		if _, err := f.Seek(catOffset, io.SeekStart); err != nil {
			return err
		}
		n, err := copyOut(ctx, cmd.OutOrStdout(), f, catLength, int(rt.cfg.Pipeline.CopyBuffer))
		logger.DebugCtx(ctx, "cat finished", logger.KeyPath, args[0], logger.KeyBytesRead, n)
		return err
	})
}

// copyOut writes up to limit bytes (all when limit < 0) from the file
// pointer of f to w.
func copyOut(ctx context.Context, w io.Writer, f *file.File, limit int64, bufSize int) (int64, error) {
	buf := bufpool.Get(bufSize)
	defer bufpool.Put(buf)

	var total int64
	for limit < 0 || total < limit {
		p := buf
		if limit >= 0 && int64(len(p)) > limit-total {
			p = p[:limit-total]
		}

		n, err := f.ReadContext(ctx, p)
		if n > 0 {
			if _, werr := w.Write(p[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
