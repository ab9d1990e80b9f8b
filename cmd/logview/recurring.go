package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/logview/internal/analytics"
	"github.com/therealutkarshpriyadarshi/logview/internal/export"
	"github.com/therealutkarshpriyadarshi/logview/internal/viewer"
)

// recurringOptions holds the recurring command flags
type recurringOptions struct {
	top    int
	output string
}

func newRecurringCommand(a *app) *cobra.Command {
	opts := &recurringOptions{}

	cmd := &cobra.Command{
		Use:   "recurring <file>...",
		Short: "Report the most repeated lines of each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecurring(cmd, a, args, opts)
		},
	}

	cmd.Flags().IntVar(&opts.top, "top", analytics.DefaultRecurringTop, "Lines reported per file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the report to a file instead of stdout")

	return cmd
}

func runRecurring(cmd *cobra.Command, a *app, paths []string, opts *recurringOptions) error {
	return a.withSession(cmd, paths, func(sess *viewer.Session) error {
		lines := sess.RecurringLines(opts.top)

		if opts.output == "" {
			return export.WriteRecurring(cmd.OutOrStdout(), lines)
		}

		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", opts.output, err)
		}
		if err := export.WriteRecurring(f, lines); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d lines to %s\n", len(lines), opts.output)
		return nil
	})
}
