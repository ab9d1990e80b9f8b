package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/logview/internal/viewer"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

// patternsOptions holds the patterns command flags
type patternsOptions struct {
	output   string
	examples int
}

func newPatternsCommand(a *app) *cobra.Command {
	opts := &patternsOptions{}

	cmd := &cobra.Command{
		Use:   "patterns <file>...",
		Short: "Detect known and recurring error patterns",
		Long: `Scan the given files for known error classes (timeouts, connection
failures, out of memory and so on) and for clusters of ERROR lines that
share a signature.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatterns(cmd, a, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVar(&opts.examples, "examples", 3, "Occurrences printed per pattern")

	return cmd
}

func runPatterns(cmd *cobra.Command, a *app, paths []string, opts *patternsOptions) error {
	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf("invalid output format %q (use text or json)", opts.output)
	}

	return a.withSession(cmd, paths, func(sess *viewer.Session) error {
		found := sess.DetectPatterns()

		out := cmd.OutOrStdout()
		if opts.output == "json" {
			if found == nil {
				found = []types.ErrorPattern{}
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(found)
		}

		if len(found) == 0 {
			fmt.Fprintln(out, "No error patterns found")
			return nil
		}
		for i := range found {
			writePattern(out, &found[i], opts.examples)
		}
		return nil
	})
}

func writePattern(w io.Writer, p *types.ErrorPattern, examples int) {
	kind := "known"
	if p.Custom {
		kind = "custom"
	}
	fmt.Fprintf(w, "%s [%s] x%d\n", p.Name, kind, p.Count)
	if p.HasTimeRange {
		fmt.Fprintf(w, "  %s .. %s (%s)\n",
			p.First.Format(time.DateTime), p.Last.Format(time.DateTime), p.Span())
	}
	for i, occ := range p.Occurrences {
		if i >= examples {
			fmt.Fprintf(w, "  ... %d more\n", len(p.Occurrences)-examples)
			break
		}
		fmt.Fprintf(w, "  %s: %s\n", occ.SourceAlias, occ.Content)
	}
}
