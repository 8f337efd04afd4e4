package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/jmgilman/kryzon/internal/instance"
)

func requireApp(ctx context.Context) (*app, error) {
	a := appFromContext(ctx)
	if a == nil {
		return nil, errors.New("instance manager not initialized")
	}
	return a, nil
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// formatRemaining renders a time remaining with minute precision.
func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return "expired"
	}
	return d.Truncate(time.Minute).String()
}

// describeError turns lifecycle errors into player-facing messages.
func describeError(err error) error {
	var quota *instance.QuotaError
	switch {
	case errors.As(err, &quota):
		return fmt.Errorf("instance limit reached (%d of %d active); stop one first", quota.Active, quota.Max)
	case errors.Is(err, instance.ErrChallengeNotFound):
		return errors.New("challenge not found or not published")
	case errors.Is(err, instance.ErrNoCapacity):
		return errors.New("no capacity available, try again shortly")
	case errors.Is(err, instance.ErrNotFound):
		return errors.New("instance not found")
	}
	return err
}

// writeInstances prints instances as an aligned table.
func writeInstances(out io.Writer, instances []instance.Instance, withOwner bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	header := []string{"ID", "CHALLENGE", "STATUS", "PORT", "URL", "REMAINING"}
	if withOwner {
		header = append(header, "OWNER")
	}
	if _, err := fmt.Fprintln(w, strings.Join(header, "\t")); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := range instances {
		inst := &instances[i]
		row := []string{
			inst.ID,
			inst.ChallengeSlug,
			string(inst.Status),
			fmt.Sprint(inst.HostPort),
			inst.HostURL,
			formatRemaining(inst.TimeRemaining),
		}
		if withOwner {
			row = append(row, inst.OwnerID)
		}
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return fmt.Errorf("write instance: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// writeInstance prints one instance as key/value lines.
func writeInstance(out io.Writer, inst *instance.Instance) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	lines := [][2]string{
		{"ID", inst.ID},
		{"Challenge", inst.ChallengeSlug},
		{"Owner", inst.OwnerID},
		{"Status", string(inst.Status)},
		{"URL", inst.HostURL},
		{"Port", fmt.Sprint(inst.HostPort)},
		{"Container", inst.ContainerName},
		{"Started", inst.StartedAt.Format(time.RFC3339)},
		{"TTL", (time.Duration(inst.TTLSeconds) * time.Second).String()},
	}
	if inst.Status.Active() {
		lines = append(lines, [2]string{"Remaining", formatRemaining(inst.TimeRemaining)})
	}
	if inst.StoppedAt != nil {
		lines = append(lines, [2]string{"Stopped", inst.StoppedAt.Format(time.RFC3339)})
	}
	if inst.ErrorMessage != "" {
		lines = append(lines, [2]string{"Error", inst.ErrorMessage})
	}
	if inst.Health != nil {
		lines = append(lines, [2]string{"Health", inst.Health.Health})
	}

	for _, line := range lines {
		if _, err := fmt.Fprintf(w, "%s:\t%s\n", line[0], line[1]); err != nil {
			return fmt.Errorf("write instance: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
