package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var mvCmd = &cobra.Command{
	Use:   "mv <src> <dst>",
	Short: "Rename a file",
	Long: `Rename src to dst, replacing any file already at dst. Only the local
backend renames directories.

Examples:
  ofio mv draft.txt final.txt
  ofio --backend s3 mv staging/report.pdf published/report.pdf`,
	Args: cobra.ExactArgs(2),
	RunE: runMv,
}

func runMv(cmd *cobra.Command, args []string) error {
	return withSession(func(ctx context.Context, s *session) error {
		if err := s.svc.Rename(ctx, args[0], args[1]); err != nil {
			return err
		}
		rt.printer.Success(fmt.Sprintf("Renamed %s to %s", args[0], args[1]))
		return nil
	})
}
