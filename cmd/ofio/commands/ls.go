package commands

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/ofio/internal/cli/output"
	"github.com/marmos91/ofio/internal/cli/timeutil"
	"github.com/marmos91/ofio/pkg/handle"
)

var lsCmd = &cobra.Command{
	Use:   "ls [dir]",
	Short: "List a directory",
	Long: `List the entries directly under dir, or under the backend root when dir
is omitted. On S3 and BadgerDB, directories are name prefixes.

Examples:
  ofio ls
  ofio ls logs
  ofio --backend s3 -o json ls backups/2024`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

type listResult struct {
	Dir     string         `json:"dir" yaml:"dir"`
	Entries []handle.Entry `json:"entries" yaml:"entries"`
}

func (r listResult) Headers() []string {
	return []string{"Name", "Type", "Size", "Modified"}
}

func (r listResult) Rows() [][]string {
	rows := make([][]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		kind, size := "file", output.Bytes(e.Size)
		name := e.Name
		if e.Dir {
			kind, size = "dir", "-"
			name += "/"
		}
		rows = append(rows, []string{name, kind, size, timeutil.FormatTime(e.ModTime)})
	}
	return rows
}

func runLs(cmd *cobra.Command, args []string) error {
	dir := ""
	if len(args) > 0 {
		dir = args[0]
	}

	return withSession(func(ctx context.Context, s *session) error {
		entries, err := s.svc.List(ctx, dir)
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []handle.Entry{}
		}
		return rt.printer.Print(listResult{Dir: strings.Trim(dir, "/"), Entries: entries})
	})
}
