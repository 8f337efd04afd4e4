package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/jmgilman/kryzon/internal/instance"
	"github.com/jmgilman/kryzon/internal/prompt"
	"github.com/jmgilman/kryzon/internal/slogger"
	"github.com/jmgilman/kryzon/internal/store"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Operator commands acting on any instance",
}

var adminListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List instances across all players",
	Example: `  # Every running instance
  kryzon admin list --status running

  # Instances whose owner contains "team-7", newest 20
  kryzon admin list --owner team-7 --limit 20`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		statusFlag, err := cmd.Flags().GetString("status")
		if err != nil {
			return fmt.Errorf("get status flag: %w", err)
		}
		owner, err := cmd.Flags().GetString("owner")
		if err != nil {
			return fmt.Errorf("get owner flag: %w", err)
		}
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return fmt.Errorf("get limit flag: %w", err)
		}

		filter := instance.ListFilter{OwnerContains: owner, Limit: limit}
		if statusFlag != "" {
			status, err := store.ParseStatus(statusFlag)
			if err != nil {
				return err
			}
			filter.Status = status
		}

		a, err := requireApp(cmd.Context())
		if err != nil {
			return err
		}

		instances, err := a.manager.List(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("list instances: %w", err)
		}
		if len(instances) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No instances found")
			return nil
		}
		return writeInstances(cmd.OutOrStdout(), instances, true)
	},
}

var adminForceStopCmd = &cobra.Command{
	Use:     "force-stop <id>...",
	Short:   "Stop instances regardless of owner",
	Example: `  kryzon admin force-stop 3f2a9c1e-... 7b01d4aa-...`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := requireApp(ctx)
		if err != nil {
			return err
		}

		var errs []error
		for _, id := range args {
			if err := a.manager.ForceStop(ctx, id); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", id, describeError(err)))
				continue
			}
			slogger.L(ctx).Info("force-stopped instance", "id", id)
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped %s\n", id)
		}
		return errors.Join(errs...)
	},
}

var adminStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show instance counts, durations and managed containers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp(cmd.Context())
		if err != nil {
			return err
		}

		stats, err := a.sweeper.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("collect stats: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		if _, err := fmt.Fprintln(w, "STATUS\tCOUNT\tAVG DURATION"); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		for _, st := range stats.ByStatus {
			avg := "-"
			if st.AvgDuration > 0 {
				avg = st.AvgDuration.Round(time.Second).String()
			}
			if _, err := fmt.Fprintf(w, "%s\t%d\t%s\n", st.Status, st.Count, avg); err != nil {
				return fmt.Errorf("write stats: %w", err)
			}
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flush output: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\nTotal instances:    %d\n", stats.TotalInstances)
		fmt.Fprintf(cmd.OutOrStdout(), "Managed containers: %d\n", stats.ManagedContainers)
		fmt.Fprintf(cmd.OutOrStdout(), "Collected:          %s\n", stats.Timestamp.Format(time.RFC3339))
		return nil
	},
}

var adminUsageCmd = &cobra.Command{
	Use:     "usage <id>",
	Short:   "Show a running instance's CPU and memory usage",
	Example: `  kryzon admin usage 3f2a9c1e-...`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp(cmd.Context())
		if err != nil {
			return err
		}

		stats, err := a.manager.Stats(cmd.Context(), args[0])
		if err != nil {
			return describeError(err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "CPU:     %.2f%%\n", stats.CPUPercent)
		fmt.Fprintf(out, "Memory:  %s / %s (%.2f%%)\n",
			units.BytesSize(float64(stats.MemoryUsage)), units.BytesSize(float64(stats.MemoryLimit)), stats.MemoryPercent)
		fmt.Fprintf(out, "Network: %s rx / %s tx\n",
			units.HumanSize(float64(stats.NetworkRx)), units.HumanSize(float64(stats.NetworkTx)))
		return nil
	},
}

var adminCleanupAllCmd = &cobra.Command{
	Use:   "cleanup-all",
	Short: "Stop every active instance and remove finished containers",
	Long: `Stop every starting or running instance, then remove finished managed
containers and rebuild port reservations.

Asks for confirmation unless --yes is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		yes, err := cmd.Flags().GetBool("yes")
		if err != nil {
			return fmt.Errorf("get yes flag: %w", err)
		}

		if !yes {
			confirmed, err := prompt.New(cmd.OutOrStdout()).Confirm(
				"Stop every active instance?",
				"All players lose their running challenge containers.",
			)
			if err != nil {
				return err
			}
			if !confirmed {
				return prompt.ErrCanceled
			}
		}

		a, err := requireApp(ctx)
		if err != nil {
			return err
		}

		report := a.sweeper.ForceCleanupAll(ctx)
		return writeReport(cmd.OutOrStdout(), report)
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminListCmd, adminForceStopCmd, adminStatsCmd, adminUsageCmd, adminCleanupAllCmd)

	adminListCmd.Flags().String("status", "", "filter by status (starting, running, stopped, failed)")
	adminListCmd.Flags().String("owner", "", "filter by owner substring")
	adminListCmd.Flags().Int("limit", 0, "maximum results (0 = unlimited)")

	adminCleanupAllCmd.Flags().BoolP("yes", "y", false, "skip confirmation")
}
