package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/marmos91/ofio/internal/logger"
	"github.com/marmos91/ofio/pkg/handle"
)

var mkdirParents bool

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <dir>...",
	Short: "Create directories",
	Long: `Create each directory along with any missing parents. An existing
directory is an error unless --parents is given.

Examples:
  ofio mkdir logs
  ofio mkdir -p backups/2024/03`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMkdir,
}

func init() {
	mkdirCmd.Flags().BoolVarP(&mkdirParents, "parents", "p", false, "no error if the directory exists")
}

func runMkdir(cmd *cobra.Command, args []string) error {
	return withSession(func(ctx context.Context, s *session) error {
		for _, dir := range args {
			err := s.svc.Mkdir(ctx, dir)
			if mkdirParents && errors.Is(err, handle.ErrExists) {
				if e, serr := s.svc.Stat(ctx, dir); serr == nil && e.Dir {
					continue
				}
			}
			if err != nil {
				return err
			}
			logger.DebugCtx(ctx, "directory created", logger.KeyPath, dir)
		}
		return nil
	})
}
