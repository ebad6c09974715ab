package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/ofio/internal/cli/health"
	"github.com/marmos91/ofio/internal/cli/output"
	"github.com/marmos91/ofio/internal/cli/timeutil"
	"github.com/marmos91/ofio/pkg/handle"
	"github.com/marmos91/ofio/pkg/handle/badger"
	"github.com/marmos91/ofio/pkg/handle/local"
	"github.com/marmos91/ofio/pkg/handle/s3"
)

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Show size and backend information for a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runStat,
}

type statResult struct {
	Name      string    `json:"name" yaml:"name"`
	Size      int64     `json:"size" yaml:"size"`
	ModTime   time.Time `json:"mod_time,omitzero" yaml:"mod_time,omitempty"`
	Backend   string    `json:"backend" yaml:"backend"`
	Location  string    `json:"location,omitempty" yaml:"location,omitempty"`
	BlockSize int64     `json:"block_size,omitempty" yaml:"block_size,omitempty"`
	Depth     int       `json:"depth" yaml:"depth"`
	ChunkSize int       `json:"chunk_size" yaml:"chunk_size"`

	Health health.Report `json:"health" yaml:"health"`
}

func (r statResult) pairs() [][2]string {
	rows := [][2]string{
		{"Name", r.Name},
		{"Size", output.Bytes(r.Size) + " (" + strconv.FormatInt(r.Size, 10) + " bytes)"},
		{"Modified", timeutil.FormatTime(r.ModTime)},
		{"Backend", r.Backend},
	}
	if r.Location != "" {
		rows = append(rows, [2]string{"Location", r.Location})
	}
	if r.BlockSize > 0 {
		rows = append(rows, [2]string{"Block size", output.Bytes(r.BlockSize)})
	}
	rows = append(rows,
		[2]string{"Pipeline depth", strconv.Itoa(r.Depth)},
		[2]string{"Chunk size", output.Bytes(int64(r.ChunkSize))},
		[2]string{"Health", healthSummary(r.Health)},
	)
	return rows
}

func runStat(cmd *cobra.Command, args []string) error {
	return withSession(func(ctx context.Context, s *session) error {
		f, err := s.open(ctx, args[0], handle.ModeRead)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		size, err := f.Length()
		if err != nil {
			return err
		}

		engCfg := s.eng.Config()
		result := statResult{
			Name:      f.Name(),
			Size:      size,
			Backend:   s.backend.Name(),
			Depth:     engCfg.Depth,
			ChunkSize: engCfg.ChunkSize,
		}
		if e, err := s.svc.Stat(ctx, args[0]); err == nil {
			result.ModTime = e.ModTime
		}

		switch b := s.backend.(type) {
		case *local.Backend:
			if p, err := b.Path(args[0]); err == nil {
				result.Location = p
			}
		case *s3.Backend:
			result.Location = "s3://" + b.Bucket() + "/" + args[0]
		case *badger.Backend:
			result.BlockSize = b.BlockSize()
		}

		result.Health = health.Check(ctx, s.backend)
		if result.Health.Status == health.StatusUnhealthy {
			rt.printer.Warning(fmt.Sprintf("%s health check failed: %s", result.Backend, result.Health.Error))
		}

		if rt.printer.Format() == output.FormatTable {
			return output.PrintKeyValue(rt.printer.Writer(), result.pairs())
		}
		return rt.printer.Print(result)
	})
}

func healthSummary(r health.Report) string {
	switch r.Status {
	case health.StatusHealthy:
		return r.Status + " (" + timeutil.FormatDuration(r.Latency) + ")"
	case health.StatusUnhealthy:
		return r.Status + ": " + r.Error
	}
	return r.Status
}
