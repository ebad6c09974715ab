package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/ofio/internal/cli/prompt"
	"github.com/marmos91/ofio/pkg/config"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration file",
	Long: `Write a configuration file holding every default value, or the answers
to a few questions with --interactive.

By default, the configuration file is created at $XDG_CONFIG_HOME/ofio/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  ofio config init

  # Initialize with custom path
  ofio config init --config ./ofio.yaml

  # Pick backend and pipeline settings interactively
  ofio config init --interactive

  # Force overwrite existing config
  ofio config init --force`,
	RunE: runConfigInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Ask for backend and pipeline settings")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	cfg := config.GetDefaultConfig()
	force := initForce

	if initInteractive {
		if !force {
			if _, err := os.Stat(path); err == nil {
				ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Overwrite %s", path), false)
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("configuration file left unchanged")
				}
				force = true
			}
		}
		if err := runWizard(cfg); err != nil {
			if prompt.IsAborted(err) {
				return errors.New("initialization aborted")
			}
			return err
		}
	}

	if err := config.WriteConfig(path, cfg, force); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "Configuration file created at: %s\n", path)
	_, _ = fmt.Fprintln(w, "\nNext steps:")
	if !initInteractive {
		_, _ = fmt.Fprintln(w, "  1. Pick a backend and set backend.type")
	} else {
		_, _ = fmt.Fprintf(w, "  1. Backend %q is ready to use\n", cfg.Backend.Type)
	}
	_, _ = fmt.Fprintf(w, "  2. Check it with: ofio config validate --config %s\n", path)
	return nil
}
