package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmgilman/kryzon/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and modify configuration",
	Long: `View and modify kryzon configuration.

With no subcommand, displays all configuration.`,
	Example: `  # Show all config
  kryzon config

  # Show value for a specific key
  kryzon config get instances.max_per_user

  # Set a value
  kryzon config set database.driver postgres

  # Open config file in editor
  kryzon config --edit`,
	Args: cobra.NoArgs,
	// Override parent: config commands must work while the config is invalid
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		editFlag, _ := cmd.Flags().GetBool("edit")
		if editFlag {
			return runEdit()
		}

		loader, err := config.NewLoader(configPath)
		if err != nil {
			return fmt.Errorf("init config loader: %w", err)
		}
		return runShowAll(cmd, loader)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Display the value for a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := config.NewLoader(configPath)
		if err != nil {
			return fmt.Errorf("init config loader: %w", err)
		}
		return runShowKey(cmd, loader, args[0])
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set the value for a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := config.NewLoader(configPath)
		if err != nil {
			return fmt.Errorf("init config loader: %w", err)
		}
		return runSetKey(cmd, loader, args[0], args[1])
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Display the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := config.NewLoader(configPath)
		if err != nil {
			return fmt.Errorf("init config loader: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), loader.Path())
		return nil
	},
}

func runEdit() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return config.ErrNoEditor
	}

	loader, err := config.NewLoader(configPath)
	if err != nil {
		return fmt.Errorf("init config loader: %w", err)
	}

	// Ensure config exists; validation errors are what the editor is for.
	if err := loader.Ensure(); err != nil {
		return fmt.Errorf("create config: %w", err)
	}

	editorCmd := exec.Command(editor, loader.Path())
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	return editorCmd.Run()
}

func runShowAll(cmd *cobra.Command, loader *config.Loader) error {
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

func runShowKey(cmd *cobra.Command, loader *config.Loader, key string) error {
	if err := config.ValidateKey(key); err != nil {
		return err
	}

	// Read the file without validating so broken values can be inspected
	if err := loader.Ensure(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	value, err := loader.Get(key)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if value == nil {
		fmt.Fprintln(out, "")
		return nil
	}

	switch v := value.(type) {
	case string:
		fmt.Fprintln(out, v)
	case map[string]any, []any:
		b, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal value: %w", err)
		}
		fmt.Fprint(out, string(b))
	default:
		fmt.Fprintln(out, value)
	}

	return nil
}

func runSetKey(cmd *cobra.Command, loader *config.Loader, key, value string) error {
	// Read the file first so Set writes back the existing values
	if err := loader.Ensure(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := loader.Set(key, value); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configGetCmd, configSetCmd, configPathCmd)

	configCmd.Flags().Bool("edit", false, "open config file in $EDITOR")
}
