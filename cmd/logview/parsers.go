package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/logview/internal/parser"
)

func newParsersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parsers",
		Short: "List the configured line parsers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := parser.FromConfig(a.cfg.Parsers, nil)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tEXTENSIONS\tDESCRIPTION")
			for _, p := range registry.Parsers() {
				exts := strings.Join(p.Extensions(), ",")
				if exts == "" {
					exts = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name(), exts, p.Description())
			}
			return tw.Flush()
		},
	}
}
