package commands

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/ofio/internal/bytesize"
	"github.com/marmos91/ofio/internal/cli/output"
	"github.com/marmos91/ofio/internal/cli/timeutil"
	"github.com/marmos91/ofio/internal/logger"
	"github.com/marmos91/ofio/pkg/aio"
	"github.com/marmos91/ofio/pkg/handle"
)

var (
	benchSize   = 64 * bytesize.MiB
	benchChunk  bytesize.ByteSize
	benchDepths []int
	benchVerify bool
)

var benchCmd = &cobra.Command{
	Use:   "bench <path>",
	Short: "Measure pipeline throughput per depth",
	Long: `Write and read back a file once per pipeline depth and print the
throughput of each run. The file is overwritten and left in place.

Examples:
  ofio bench scratch.bin
  ofio bench --size 256MiB --depths 1,4,16 --chunk 128KiB scratch.bin
  ofio --backend s3 bench --size 16MiB bench/object`,
	Args: cobra.ExactArgs(1),
	RunE: runBench,
}

func init() {
	benchCmd.Flags().Var(&benchSize, "size", "bytes written and read per run")
	benchCmd.Flags().Var(&benchChunk, "chunk", "chunk size (default: pipeline.chunk_size)")
	benchCmd.Flags().IntSliceVar(&benchDepths, "depths", []int{1, 2, 4, 8, 16}, "pipeline depths to measure")
	benchCmd.Flags().BoolVar(&benchVerify, "verify", true, "compare the data read back with the data written")
}

type benchRun struct {
	Depth     int           `json:"depth" yaml:"depth"`
	ChunkSize int           `json:"chunk_size" yaml:"chunk_size"`
	Bytes     int64         `json:"bytes" yaml:"bytes"`
	Write     time.Duration `json:"write_ns" yaml:"write"`
	Read      time.Duration `json:"read_ns" yaml:"read"`
}

type benchResult struct {
	Backend string     `json:"backend" yaml:"backend"`
	Path    string     `json:"path" yaml:"path"`
	Runs    []benchRun `json:"runs" yaml:"runs"`
}

func (r benchResult) Headers() []string {
	return []string{"Depth", "Chunk", "Size", "Write", "Read", "Write time", "Read time"}
}

func (r benchResult) Rows() [][]string {
	rows := make([][]string, 0, len(r.Runs))
	for _, run := range r.Runs {
		rows = append(rows, []string{
			strconv.Itoa(run.Depth),
			output.Bytes(int64(run.ChunkSize)),
			output.Bytes(run.Bytes),
			output.Throughput(run.Bytes, run.Write),
			output.Throughput(run.Bytes, run.Read),
			timeutil.FormatDuration(run.Write),
			timeutil.FormatDuration(run.Read),
		})
	}
	return rows
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchSize == 0 || benchSize > bytesize.GiB {
		return fmt.Errorf("size must be between 1B and 1GiB, got %s", benchSize)
	}
	if len(benchDepths) == 0 {
		return fmt.Errorf("at least one depth is required")
	}
	for _, d := range benchDepths {
		if d < 1 || d > aio.MaxDepth {
			return fmt.Errorf("depth must be between 1 and %d, got %d", aio.MaxDepth, d)
		}
	}

	base, err := rt.cfg.Pipeline.EngineConfig()
	if err != nil {
		return err
	}
	if benchChunk > 0 {
		base.ChunkSize = int(benchChunk)
	}

	data := make([]byte, benchSize)
	if _, err := rand.Read(data); err != nil {
		return err
	}

	return withSession(func(ctx context.Context, s *session) error {
		h, err := s.svc.Open(ctx, args[0], handle.ModeReadWrite)
		if err != nil {
			return err
		}
		defer func() { _ = s.svc.Close(h) }()

		result := benchResult{Backend: s.backend.Name(), Path: args[0]}
		readBack := make([]byte, len(data))

		for _, d := range benchDepths {
			cfg := base
			cfg.Depth = d
			eng, err := s.engine(cfg)
			if err != nil {
				return err
			}

			run, err := benchOnce(ctx, eng, s.svc, h, data, readBack)
			if err != nil {
				return fmt.Errorf("depth %d: %w", d, err)
			}
			run.Depth = d
			run.ChunkSize = cfg.ChunkSize
			result.Runs = append(result.Runs, run)

			logger.DebugCtx(ctx, "bench run finished",
				logger.KeyDepth, d,
				logger.KeyChunkSize, cfg.ChunkSize,
				"write_ms", run.Write.Milliseconds(),
				"read_ms", run.Read.Milliseconds())
		}

		return rt.printer.Print(result)
	})
}

func benchOnce(ctx context.Context, eng *aio.Engine, svc *handle.Service, h aio.Handle, data, readBack []byte) (benchRun, error) {
	run := benchRun{Bytes: int64(len(data))}

	start := time.Now()
	out, err := eng.BufferedWrite(ctx, h, data, 0)
	if err != nil {
		return run, err
	}
	if out.Bytes != len(data) {
		return run, fmt.Errorf("short write: %d of %d bytes", out.Bytes, len(data))
	}
	if err := svc.Flush(h); err != nil {
		return run, err
	}
	run.Write = time.Since(start)

	start = time.Now()
	out, err = eng.BufferedRead(ctx, h, readBack, 0)
	if err != nil {
		return run, err
	}
	run.Read = time.Since(start)

	if out.Bytes != len(data) {
		return run, fmt.Errorf("short read: %d of %d bytes", out.Bytes, len(data))
	}
	if benchVerify && !bytes.Equal(data, readBack) {
		return run, fmt.Errorf("data read back differs from data written")
	}
	return run, nil
}
