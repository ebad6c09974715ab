// Package commands implements the ofio command line.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/ofio/cmd/ofio/commands/config"
	"github.com/marmos91/ofio/internal/bytesize"
	"github.com/marmos91/ofio/internal/cli/output"
	"github.com/marmos91/ofio/internal/logger"
	"github.com/marmos91/ofio/internal/telemetry"
	ofioconfig "github.com/marmos91/ofio/pkg/config"
	"github.com/marmos91/ofio/pkg/metrics"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile      string
	backendType  string
	localRoot    string
	depth        int
	chunkSize    bytesize.ByteSize
	logLevel     string
	outputFormat string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ofio",
	Short: "ofio - buffered overlapped file I/O",
	Long: `ofio moves file data through a pipeline of overlapped reads and writes,
keeping several chunks in flight at once against a local directory, memory,
S3 or BadgerDB.

Use "ofio [command] --help" for more information about a command.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command and releases what setup acquired, whether
// or not the command succeeded.
func Execute() error {
	err := rootCmd.Execute()
	teardown()
	return err
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/ofio/config.yaml)")
	flags.StringVar(&backendType, "backend", "", "storage backend (local|memory|s3|badger)")
	flags.StringVar(&localRoot, "root", "", "root directory of the local backend")
	flags.IntVar(&depth, "depth", 0, "chunks kept in flight per request")
	flags.Var(&chunkSize, "chunk-size", "largest transfer of one overlapped operation (e.g. 64KiB)")
	flags.StringVar(&logLevel, "log-level", "", "log level (DEBUG|INFO|WARN|ERROR)")
	flags.StringVarP(&outputFormat, "output", "o", "table", "output format (table|json|yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(cpCmd)
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// runState holds what setup prepared for the running command.
type runState struct {
	cfg     *ofioconfig.Config
	printer *output.Printer
	ctx     context.Context
	cancel  context.CancelFunc

	shutdown []func() error
}

var rt *runState

// skipSetup reports whether cmd manages configuration itself.
func skipSetup(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c == config.Cmd || c == versionCmd || c == completionCmd {
			return true
		}
	}
	return false
}

func setup(cmd *cobra.Command, args []string) error {
	if skipSetup(cmd) {
		return nil
	}

	cfg, err := ofioconfig.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := applyFlagOverrides(cmd, cfg); err != nil {
		return err
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cancel := stop
	if cfg.Pipeline.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, cfg.Pipeline.Timeout)
		cancel = func() { cancelTimeout(); stop() }
	}

	lc := logger.NewLogContext(cmd.Name()).WithBackend(cfg.Backend.Type)
	if len(args) > 0 {
		lc = lc.WithPath(args[0])
	}
	ctx = logger.WithContext(ctx, lc)

	rt = &runState{
		cfg:     cfg,
		printer: output.NewPrinter(os.Stdout, os.Stderr, format, isTerminal(os.Stderr)),
		ctx:     ctx,
		cancel:  cancel,
	}

	tracingShutdown, err := telemetry.Init(ctx, cfg.TracingConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	rt.shutdown = append(rt.shutdown, func() error { return tracingShutdown(context.Background()) })

	profilingShutdown, err := telemetry.InitProfiling(cfg.Telemetry.ProfilingConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	rt.shutdown = append(rt.shutdown, profilingShutdown)

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	logger.Debug("configuration loaded",
		"source", configSource(cfgFile),
		logger.KeyBackend, cfg.Backend.Type,
		logger.KeyDepth, cfg.Pipeline.Depth,
		logger.KeyChunkSize, cfg.Pipeline.ChunkSize.String())
	return nil
}

func teardown() {
	if rt == nil {
		return
	}
	if lc := logger.FromContext(rt.ctx); lc != nil {
		logger.DebugCtx(rt.ctx, "command finished", logger.KeyDurationMs, lc.DurationMs())
	}
	for i := len(rt.shutdown) - 1; i >= 0; i-- {
		if err := rt.shutdown[i](); err != nil {
			logger.Warn("shutdown error", logger.KeyError, err)
		}
	}
	rt.cancel()
	rt = nil
}

// applyFlagOverrides copies explicitly set global flags over the loaded
// configuration and revalidates it.
func applyFlagOverrides(cmd *cobra.Command, cfg *ofioconfig.Config) error {
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend.Type = backendType
	}
	if flags.Changed("root") {
		cfg.Backend.Local.Root = localRoot
	}
	if flags.Changed("depth") {
		cfg.Pipeline.Depth = depth
	}
	if flags.Changed("chunk-size") {
		cfg.Pipeline.ChunkSize = chunkSize
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	ofioconfig.ApplyDefaults(cfg)
	if err := ofioconfig.Validate(cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *ofioconfig.Config) error {
	if err := logger.Init(cfg.Logging.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func configSource(path string) string {
	if path != "" {
		return path
	}
	if ofioconfig.DefaultConfigExists() {
		return ofioconfig.GetDefaultConfigPath()
	}
	return "defaults"
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
