// Package cmd implements the kryzon CLI commands using Cobra.
// It provides commands for running the reconciliation daemon and for
// creating, inspecting and stopping challenge instances.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmgilman/kryzon/internal/config"
	"github.com/jmgilman/kryzon/internal/slogger"
)

var (
	configPath string
	verbosity  int
)

// current is closed by the finalizer once the command completes.
var current *app

var rootCmd = &cobra.Command{
	Use:   "kryzon",
	Short: "Run and reconcile CTF challenge instances",
	Long: `Kryzon manages per-player CTF challenge containers.

Each instance is a container started from a challenge image with a dedicated
host port and a time-to-live. A reconciliation sweeper expires instances,
removes orphaned containers and enforces per-player quotas.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loader, err := config.NewLoader(configPath)
		if err != nil {
			return fmt.Errorf("init config loader: %w", err)
		}

		cfg, err := loader.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger := slogger.New(slogger.Config{
			Verbosity:  verbosity,
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			Timestamps: cmd.Name() == "serve",
		})

		// Store dependencies in context for subcommands
		ctx := cmd.Context()
		ctx = slogger.WithLogger(ctx, logger)
		ctx = WithConfig(ctx, cfg)
		ctx = WithLoader(ctx, loader)

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		current = a
		ctx = withApp(ctx, a)

		cmd.SetContext(ctx)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnFinalize(closeApp)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/kryzon/config.yaml)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v info, -vv debug)")
}

func closeApp() {
	if current == nil {
		return
	}
	if err := current.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: close: %v\n", err)
	}
	current = nil
}
