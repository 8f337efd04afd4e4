package cmd

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmgilman/kryzon/internal/sweeper"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one reconciliation sweep",
	Long: `Run one reconciliation sweep and print what it did.

A sweep stops expired instances, fails starts that never finished, removes
orphaned containers, evicts instances over quota and rebuilds port
reservations. It exits non-zero when any action failed, for use from cron.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp(cmd.Context())
		if err != nil {
			return err
		}

		report := a.sweeper.Sweep(cmd.Context())
		return writeReport(cmd.OutOrStdout(), report)
	},
}

var reportSteps = []sweeper.Step{
	sweeper.StepExpire,
	sweeper.StepStale,
	sweeper.StepOrphan,
	sweeper.StepQuota,
	sweeper.StepForce,
	sweeper.StepCleanup,
}

// writeReport prints a sweep report and returns an error if anything failed.
func writeReport(out io.Writer, report *sweeper.Report) error {
	if report.Empty() {
		fmt.Fprintf(out, "Nothing to do (%d ports reserved)\n", report.Reserved)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "STEP\tOK\tFAILED"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, step := range reportSteps {
		ok, failed := report.Count(step)
		_, stepFailed := report.StepErrors[step]
		if ok == 0 && failed == 0 && !stepFailed {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\t%d\t%d\n", step, ok, failed); err != nil {
			return fmt.Errorf("write step: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	failures := report.Failures()
	for _, o := range failures {
		target := o.InstanceID
		if target == "" {
			target = o.ContainerID
		}
		fmt.Fprintf(out, "  %s %s: %v\n", o.Step, target, o.Err)
	}

	steps := make([]sweeper.Step, 0, len(report.StepErrors))
	for step := range report.StepErrors {
		steps = append(steps, step)
	}
	slices.Sort(steps)
	for _, step := range steps {
		fmt.Fprintf(out, "  %s step skipped: %v\n", step, report.StepErrors[step])
	}

	fmt.Fprintf(out, "%d ports reserved, took %s\n", report.Reserved, report.Duration)

	if n := len(failures) + len(steps); n > 0 {
		return fmt.Errorf("sweep finished with %d failures", n)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
