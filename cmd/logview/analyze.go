package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/logview/internal/level"
	"github.com/therealutkarshpriyadarshi/logview/internal/viewer"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

// analyzeOptions holds the analyze command flags
type analyzeOptions struct {
	output string
	top    int
}

func newAnalyzeCommand(a *app) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <file>...",
		Short: "Summarize levels, activity and top errors",
		Long: `Load the given files and print an analytics summary over all of them:
record counts, level distribution, time range, peak hours and the most
frequent error signatures.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, a, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVar(&opts.top, "top", 10, "Number of error signatures to report")

	return cmd
}

func runAnalyze(cmd *cobra.Command, a *app, paths []string, opts *analyzeOptions) error {
	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf("invalid output format %q (use text or json)", opts.output)
	}

	return a.withSession(cmd, paths, func(sess *viewer.Session) error {
		snap := sess.GetAnalytics()
		if opts.top >= 0 && len(snap.ErrorSummary) > opts.top {
			snap.ErrorSummary = snap.ErrorSummary[:opts.top]
		}

		out := cmd.OutOrStdout()
		if opts.output == "json" {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		writeAnalytics(out, snap)
		return nil
	})
}

func writeAnalytics(w io.Writer, snap types.AnalyticsSnapshot) {
	fmt.Fprintf(w, "Records:          %d\n", snap.TotalRecords)
	fmt.Fprintf(w, "Unique messages:  %d\n", snap.UniqueMessages)
	fmt.Fprintf(w, "Average length:   %.1f\n", snap.AverageLength)
	fmt.Fprintf(w, "Timestamped:      %d\n", snap.TimestampedRecords)
	if snap.HasTimeRange {
		fmt.Fprintf(w, "Time range:       %s .. %s (%s)\n",
			snap.First.Format(time.DateTime), snap.Last.Format(time.DateTime), snap.Span)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Levels:")
	for _, lvl := range append(level.All(), level.Unknown) {
		n := snap.LevelCounts[lvl]
		if n == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-8s %8d  %5.1f%%\n", lvl, n, snap.LevelPercentages[lvl])
	}

	if len(snap.PeakHours) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Peak hours (%d records):\n", snap.PeakCount)
		for _, h := range snap.PeakHours {
			fmt.Fprintf(w, "  %s\n", h)
		}
	}

	if len(snap.ErrorSummary) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Top errors:")
		for _, sc := range snap.ErrorSummary {
			fmt.Fprintf(w, "  %6d  %s\n", sc.Count, sc.Signature)
		}
	}
}
