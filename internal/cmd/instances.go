package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmgilman/kryzon/internal/instance"
	"github.com/jmgilman/kryzon/internal/prompt"
	"github.com/jmgilman/kryzon/internal/slogger"
	"github.com/jmgilman/kryzon/internal/spinner"
)

// defaultLogTail is the number of container log lines shown by default.
const defaultLogTail = 100

var instancesCmd = &cobra.Command{
	Use:     "instances",
	Aliases: []string{"inst"},
	Short:   "Create and manage challenge instances",
	Long: `Create and manage challenge instances on behalf of a player.

Every command acts as the player given by --owner and only sees that
player's instances. Use the admin commands to act on any instance.`,
}

var instancesCreateCmd = &cobra.Command{
	Use:   "create <challenge>",
	Short: "Start a new instance of a challenge",
	Long: `Start a new instance of a published challenge.

The command reserves a host port, records the instance and waits for the
container to start. A spinner shows progress when attached to a terminal.`,
	Example: `  kryzon instances create web-login --owner alice`,
	Args:    cobra.ExactArgs(1),
	RunE:    runInstancesCreate,
}

func runInstancesCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	slug := args[0]

	owner, err := cmd.Flags().GetString("owner")
	if err != nil {
		return fmt.Errorf("get owner flag: %w", err)
	}

	a, err := requireApp(ctx)
	if err != nil {
		return err
	}

	// Seed the port cache from running containers before allocating.
	if _, err := a.sweeper.RebuildPorts(ctx); err != nil {
		return fmt.Errorf("rebuild port reservations: %w", err)
	}

	inst, err := a.manager.Create(ctx, owner, slug)
	if err != nil {
		return describeError(err)
	}

	waitForStart(a.manager, fmt.Sprintf("starting %s on port %d", slug, inst.HostPort))

	final, err := a.manager.Get(ctx, inst.ID)
	if err != nil {
		return fmt.Errorf("get instance: %w", err)
	}
	if final.Status == instance.StatusFailed {
		return fmt.Errorf("instance %s failed to start: %s", final.ID, final.ErrorMessage)
	}

	slogger.L(ctx).Info("created instance", "id", final.ID, "challenge", slug, "owner", owner)
	return writeInstance(cmd.OutOrStdout(), final)
}

// waitForStart blocks until every background start finishes, showing a
// spinner on interactive terminals.
func waitForStart(mgr *instance.Manager, status string) {
	done := make(chan struct{})
	go func() {
		mgr.Wait()
		close(done)
	}()

	if !isTerminal(os.Stderr) {
		<-done
		return
	}

	sp := spinner.New(os.Stderr)
	sp.Update(status)
	go func() {
		<-done
		sp.Stop()
	}()
	if err := sp.Start(); err != nil {
		<-done
	}
}

var instancesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List a player's active instances",
	Example: `  kryzon instances list --owner alice`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := cmd.Flags().GetString("owner")
		if err != nil {
			return fmt.Errorf("get owner flag: %w", err)
		}

		a, err := requireApp(cmd.Context())
		if err != nil {
			return err
		}

		instances, err := a.manager.ListActive(cmd.Context(), owner)
		if err != nil {
			return fmt.Errorf("list instances: %w", err)
		}

		if len(instances) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No active instances")
			return nil
		}
		return writeInstances(cmd.OutOrStdout(), instances, false)
	},
}

var instancesStatusCmd = &cobra.Command{
	Use:     "status <id>",
	Short:   "Show an instance with its health",
	Example: `  kryzon instances status 3f2a9c1e-... --owner alice`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := cmd.Flags().GetString("owner")
		if err != nil {
			return fmt.Errorf("get owner flag: %w", err)
		}

		a, err := requireApp(cmd.Context())
		if err != nil {
			return err
		}

		inst, err := a.manager.Status(cmd.Context(), args[0], owner)
		if err != nil {
			return describeError(err)
		}
		return writeInstance(cmd.OutOrStdout(), inst)
	},
}

var instancesStopCmd = &cobra.Command{
	Use:   "stop [id]",
	Short: "Stop one of a player's instances",
	Long: `Stop one of a player's instances and release its host port.

With no ID on an interactive terminal, pick from the player's active
instances.`,
	Example: `  kryzon instances stop 3f2a9c1e-... --owner alice`,
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		owner, err := cmd.Flags().GetString("owner")
		if err != nil {
			return fmt.Errorf("get owner flag: %w", err)
		}

		a, err := requireApp(ctx)
		if err != nil {
			return err
		}

		var id string
		if len(args) == 1 {
			id = args[0]
		} else {
			id, err = chooseInstance(ctx, a.manager, prompt.New(cmd.OutOrStdout()), owner)
			if err != nil {
				return err
			}
		}

		if err := a.manager.Stop(ctx, id, owner, true); err != nil {
			return describeError(err)
		}

		slogger.L(ctx).Info("stopped instance", "id", id, "owner", owner)
		fmt.Fprintf(cmd.OutOrStdout(), "Stopped %s\n", id)
		return nil
	},
}

// chooseInstance asks the player to pick one of their active instances.
func chooseInstance(ctx context.Context, mgr *instance.Manager, p prompt.Prompter, owner string) (string, error) {
	if !isTerminal(os.Stdin) {
		return "", errors.New("instance ID required when not attached to a terminal")
	}

	instances, err := mgr.ListActive(ctx, owner)
	if err != nil {
		return "", fmt.Errorf("list instances: %w", err)
	}
	if len(instances) == 0 {
		return "", errors.New("no active instances")
	}

	options := make([]string, len(instances))
	for i := range instances {
		options[i] = fmt.Sprintf("%s  %s  %s", instances[i].ID[:8], instances[i].ChallengeSlug, instances[i].Status)
	}

	idx, err := p.Choice("Select an instance to stop", options)
	if err != nil {
		return "", err
	}
	return instances[idx].ID, nil
}

var instancesExtendCmd = &cobra.Command{
	Use:   "extend <id>",
	Short: "Extend a running instance's time-to-live",
	Long: `Add hours to a running instance's time-to-live.

The extension is measured from now, so the instance stays up for at least
the requested number of hours.`,
	Example: `  kryzon instances extend 3f2a9c1e-... --owner alice --hours 2`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := cmd.Flags().GetString("owner")
		if err != nil {
			return fmt.Errorf("get owner flag: %w", err)
		}
		hours, err := cmd.Flags().GetInt("hours")
		if err != nil {
			return fmt.Errorf("get hours flag: %w", err)
		}

		a, err := requireApp(cmd.Context())
		if err != nil {
			return err
		}

		res, err := a.manager.Extend(cmd.Context(), args[0], owner, hours)
		if err != nil {
			var notRunning *instance.NotRunningError
			if errors.As(err, &notRunning) {
				return fmt.Errorf("instance is %s; only running instances can be extended", notRunning.Status)
			}
			return describeError(err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Extended %s: %s remaining (ttl %s)\n",
			res.InstanceID, formatRemaining(res.TimeRemaining), time.Duration(res.TTLSeconds)*time.Second)
		return nil
	},
}

var instancesLogsCmd = &cobra.Command{
	Use:   "logs <id>",
	Short: "Show an instance's container output",
	Example: `  # Last 100 lines
  kryzon instances logs 3f2a9c1e-... --owner alice

  # Last 500 lines
  kryzon instances logs 3f2a9c1e-... --owner alice -n 500`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := cmd.Flags().GetString("owner")
		if err != nil {
			return fmt.Errorf("get owner flag: %w", err)
		}
		tail, err := cmd.Flags().GetInt("lines")
		if err != nil {
			return fmt.Errorf("get lines flag: %w", err)
		}

		a, err := requireApp(cmd.Context())
		if err != nil {
			return err
		}

		logs, err := a.manager.Logs(cmd.Context(), args[0], owner, true, tail)
		if err != nil {
			return describeError(err)
		}
		fmt.Fprint(cmd.OutOrStdout(), logs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(instancesCmd)
	instancesCmd.AddCommand(instancesCreateCmd, instancesListCmd, instancesStatusCmd,
		instancesStopCmd, instancesExtendCmd, instancesLogsCmd)

	instancesCmd.PersistentFlags().String("owner", "", "player the command acts for (required)")
	//nolint:errcheck // flag is defined above
	instancesCmd.MarkPersistentFlagRequired("owner")

	instancesExtendCmd.Flags().Int("hours", 1, "hours to add (1 to instances.max_extend_hours)")
	instancesLogsCmd.Flags().IntP("lines", "n", defaultLogTail, "number of lines to show")
}
