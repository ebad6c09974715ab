package commands

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/spf13/cobra"

	"github.com/marmos91/ofio/internal/cli/prompt"
	"github.com/marmos91/ofio/internal/logger"
	"github.com/marmos91/ofio/pkg/handle"
)

var (
	rmRecursive bool
	rmForce     bool
)

var rmCmd = &cobra.Command{
	Use:   "rm <path>...",
	Short: "Remove files and directories",
	Long: `Remove files and empty directories. With --recursive a directory is
removed along with everything below it, after confirmation unless --force is
given.

Examples:
  ofio rm old.bin
  ofio rm -r -f scratch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRm,
}

func init() {
	rmCmd.Flags().BoolVarP(&rmRecursive, "recursive", "r", false, "remove directories and their contents")
	rmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "do not ask for confirmation")
}

func runRm(cmd *cobra.Command, args []string) error {
	return withSession(func(ctx context.Context, s *session) error {
		for _, name := range args {
			if err := removePath(ctx, s.svc, name); err != nil {
				if prompt.IsAborted(err) {
					rt.printer.Printf("Aborted.\n")
					return nil
				}
				return err
			}
		}
		return nil
	})
}

func removePath(ctx context.Context, svc *handle.Service, name string) error {
	if !rmRecursive {
		return svc.Remove(ctx, name)
	}
	if handle.CleanName(name) == "" {
		return fmt.Errorf("refusing to remove the backend root: %w", handle.ErrAccessDenied)
	}

	e, err := svc.Stat(ctx, name)
	if err != nil {
		return err
	}
	if !e.Dir {
		return svc.Remove(ctx, name)
	}

	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Remove %s and everything below it", name), rmForce)
	if err != nil {
		return err
	}
	if !ok {
		return prompt.ErrAborted
	}
	return removeTree(ctx, svc, handle.CleanName(name))
}

// removeTree removes dir depth first.
func removeTree(ctx context.Context, svc *handle.Service, dir string) error {
	entries, err := svc.List(ctx, dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		child := path.Join(dir, e.Name)
		if e.Dir {
			if err := removeTree(ctx, svc, child); err != nil {
				return err
			}
			continue
		}
		if err := svc.Remove(ctx, child); err != nil {
			return err
		}
	}

	// Flat stores drop an implied directory with its last child.
	if err := svc.Remove(ctx, dir); err != nil && !errors.Is(err, handle.ErrNotFound) {
		return err
	}
	logger.DebugCtx(ctx, "directory removed", logger.KeyPath, dir)
	return nil
}
