package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmgilman/kryzon/internal/challenge"
	"github.com/jmgilman/kryzon/internal/registry"
)

var challengesCmd = &cobra.Command{
	Use:   "challenges",
	Short: "Inspect the challenge catalog",
}

var challengesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List every challenge, published or not",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp(cmd.Context())
		if err != nil {
			return err
		}

		challenges, err := a.source.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list challenges: %w", err)
		}
		if len(challenges) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No challenges found")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		if _, err := fmt.Fprintln(w, "SLUG\tNAME\tIMAGE\tPORT\tPUBLISHED"); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		for _, c := range challenges {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n", c.Slug, c.Name, c.Image, c.Port, c.Published); err != nil {
				return fmt.Errorf("write challenge: %w", err)
			}
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flush output: %w", err)
		}
		return nil
	},
}

var challengesVerifyCmd = &cobra.Command{
	Use:   "verify [slug]...",
	Short: "Check that challenge images resolve and expose their port",
	Long: `Resolve each challenge image in its registry and check that the image
declares the challenge port.

With no slugs, every published challenge is checked. Images that resolve
but do not declare the port are reported as warnings.`,
	Example: `  # Check every published challenge
  kryzon challenges verify

  # Check two challenges
  kryzon challenges verify web-login pwn-stack`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := requireApp(ctx)
		if err != nil {
			return err
		}

		targets, err := verifyTargets(cmd, a.source, args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, c := range targets {
			v := registry.Verify(ctx, a.registry, c.Image, c.Port)
			switch {
			case v.Err != nil:
				failed++
				fmt.Fprintf(out, "FAIL  %s  %s: %v\n", c.Slug, c.Image, v.Err)
			case !v.Exposed:
				fmt.Fprintf(out, "WARN  %s  %s: port %d not declared by image\n", c.Slug, c.Image, c.Port)
			default:
				fmt.Fprintf(out, "OK    %s  %s@%s\n", c.Slug, c.Image, v.Digest)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d challenge images failed verification", failed, len(targets))
		}
		return nil
	},
}

// verifyTargets resolves slugs, or every published challenge when none are given.
func verifyTargets(cmd *cobra.Command, source challenge.Source, slugs []string) ([]challenge.Challenge, error) {
	ctx := cmd.Context()

	if len(slugs) == 0 {
		all, err := source.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list challenges: %w", err)
		}
		published := make([]challenge.Challenge, 0, len(all))
		for _, c := range all {
			if c.Published {
				published = append(published, c)
			}
		}
		return published, nil
	}

	targets := make([]challenge.Challenge, 0, len(slugs))
	for _, slug := range slugs {
		c, err := source.Lookup(ctx, slug)
		if err != nil {
			if errors.Is(err, challenge.ErrNotFound) {
				return nil, fmt.Errorf("challenge %q not found or not published", slug)
			}
			return nil, fmt.Errorf("lookup challenge: %w", err)
		}
		targets = append(targets, *c)
	}
	return targets, nil
}

func init() {
	rootCmd.AddCommand(challengesCmd)
	challengesCmd.AddCommand(challengesListCmd, challengesVerifyCmd)
}
