package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/ofio/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the ofio configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  ofio config validate

  # Validate specific config file
  ofio config validate --config ./ofio.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)

	cfg, err := config.MustLoad(path)
	if err != nil {
		return err
	}

	displayPath := path
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	if _, err := cfg.Pipeline.EngineConfig(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	var warnings []string
	if cfg.Backend.Type == "local" && cfg.Backend.Local.Root == "" {
		warnings = append(warnings, "backend.local.root is empty - paths resolve against the working directory")
	}
	if cfg.Backend.Type == "badger" && cfg.Backend.Badger.InMemory {
		warnings = append(warnings, "badger runs in memory - data is lost on exit")
	}
	if cfg.Pipeline.ShortWrites == "allow" {
		warnings = append(warnings, "short writes are reported as success")
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(w, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(w, "\nWarnings:")
		for _, warning := range warnings {
			_, _ = fmt.Fprintf(w, "  - %s\n", warning)
		}
	}

	_, _ = fmt.Fprintf(w, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(w, "  Backend:       %s\n", cfg.Backend.Type)
	_, _ = fmt.Fprintf(w, "  Depth:         %d\n", cfg.Pipeline.Depth)
	_, _ = fmt.Fprintf(w, "  Chunk size:    %s\n", cfg.Pipeline.ChunkSize)
	_, _ = fmt.Fprintf(w, "  Short writes:  %s\n", cfg.Pipeline.ShortWrites)
	_, _ = fmt.Fprintf(w, "  Log level:     %s\n", cfg.Logging.Level)
	return nil
}
