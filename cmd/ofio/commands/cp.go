package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/ofio/internal/cli/output"
	"github.com/marmos91/ofio/internal/cli/timeutil"
	"github.com/marmos91/ofio/pkg/file"
	"github.com/marmos91/ofio/pkg/handle"
)

var cpCmd = &cobra.Command{
	Use:   "cp <src> <dst>",
	Short: "Copy a file",
	Long: `Copy src to dst within the configured backend. Both sides run their own
buffered requests, so reads and writes each keep several chunks in flight.

Examples:
  ofio cp data.bin data.bak
  ofio --backend badger cp in.bin out.bin`,
	Args: cobra.ExactArgs(2),
	RunE: runCp,
}

type copyResult struct {
	Source      string        `json:"source" yaml:"source"`
	Destination string        `json:"destination" yaml:"destination"`
	Bytes       int64         `json:"bytes" yaml:"bytes"`
	Duration    time.Duration `json:"duration_ns" yaml:"duration"`
}

func (r copyResult) Headers() []string {
	return []string{"Source", "Destination", "Size", "Duration", "Throughput"}
}

func (r copyResult) Rows() [][]string {
	return [][]string{{
		r.Source,
		r.Destination,
		output.Bytes(r.Bytes),
		timeutil.FormatDuration(r.Duration),
		output.Throughput(r.Bytes, r.Duration),
	}}
}

func runCp(cmd *cobra.Command, args []string) error {
	return withSession(func(ctx context.Context, s *session) error {
		src, err := s.open(ctx, args[0], handle.ModeRead)
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()

		dst, err := s.open(ctx, args[1], handle.ModeWrite)
		if err != nil {
			return err
		}

		start := time.Now()
		n, err := file.Copy(ctx, dst, src, int(rt.cfg.Pipeline.CopyBuffer))
		if err != nil {
			_ = dst.Close()
			return err
		}
		if err := dst.Sync(); err != nil {
			_ = dst.Close()
			return err
		}
		if err := dst.Close(); err != nil {
			return err
		}

		return rt.printer.Print(copyResult{
			Source:      args[0],
			Destination: args[1],
			Bytes:       n,
			Duration:    time.Since(start),
		})
	})
}
