package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/logview/internal/config"
	"github.com/therealutkarshpriyadarshi/logview/internal/export"
	"github.com/therealutkarshpriyadarshi/logview/internal/filter"
	"github.com/therealutkarshpriyadarshi/logview/internal/viewer"
)

// exportOptions holds the export command flags
type exportOptions struct {
	output        string
	format        string
	search        string
	regex         bool
	caseSensitive bool
	field         string
	levels        string
	center        string
	window        int
	keywords      bool
	preset        string
}

func newExportCommand(a *app) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export <file>...",
		Short: "Export a filtered view as text, CSV, JSON or XML",
		Long: `Load the given files, apply the filter flags and write the matching
records in timeline order.

With --output the format and compression follow the file extension, for
example "errors.csv" or "view.json.gz". Without it the view is written to
stdout in the --format format.`,
		Example: `  logview export app.log db.log --levels ERROR,FATAL -o errors.csv
  logview export app.log --search "timeout" --center "2024-01-01 10:00:00" --window 300
  logview export app.log --keywords -o keywords.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, a, args, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "Output file (format from extension)")
	flags.StringVarP(&opts.format, "format", "f", "text", "Format when writing to stdout (text|csv|json|xml)")
	flags.StringVarP(&opts.search, "search", "s", "", "Search text")
	flags.BoolVar(&opts.regex, "regex", false, "Treat --search as a regular expression")
	flags.BoolVar(&opts.caseSensitive, "case-sensitive", false, "Case sensitive search")
	flags.StringVar(&opts.field, "field", "all", "Field searched (all|content|source|timestamp)")
	flags.StringVarP(&opts.levels, "levels", "l", "", "Comma separated levels to keep (default all)")
	flags.StringVar(&opts.center, "center", "", "Time window center, "+export.TimeLayout)
	flags.IntVar(&opts.window, "window", 0, "Time window radius in seconds")
	flags.BoolVar(&opts.keywords, "keywords", false, "Export only records mentioning a keyword")
	flags.StringVar(&opts.preset, "preset", "", "Use a filter preset saved in the workspace")

	return cmd
}

func runExport(cmd *cobra.Command, a *app, paths []string, opts *exportOptions) error {
	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	return a.withSession(cmd, paths, func(sess *viewer.Session) error {
		var doc export.Document
		if opts.keywords {
			doc = sess.KeywordDocument()
		} else {
			c, err := a.exportCriteria(sess, opts)
			if err != nil {
				return err
			}
			doc = sess.ExportDocument(c)
		}

		if opts.output == "" {
			return export.Write(cmd.OutOrStdout(), format, doc)
		}
		if err := export.WriteFile(opts.output, doc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d records to %s\n", len(doc.Entries), opts.output)
		return nil
	})
}

// exportCriteria builds the view from a saved preset or from the flags
func (a *app) exportCriteria(sess *viewer.Session, opts *exportOptions) (filter.Criteria, error) {
	var center time.Time
	if opts.center != "" {
		t, err := time.ParseInLocation(export.TimeLayout, opts.center, time.Local)
		if err != nil {
			return filter.Criteria{}, fmt.Errorf("invalid --center: %w", err)
		}
		center = t
	}

	if opts.preset != "" {
		if err := a.loadPresets(sess); err != nil {
			return filter.Criteria{}, err
		}
		p, ok := sess.Preset(opts.preset)
		if !ok {
			return filter.Criteria{}, fmt.Errorf("preset %q not found", opts.preset)
		}
		return filter.FromPreset(p, center)
	}

	field, err := filter.ParseField(opts.field)
	if err != nil {
		return filter.Criteria{}, err
	}
	levels, err := filter.ParseLevels(opts.levels)
	if err != nil {
		return filter.Criteria{}, err
	}

	c := filter.Criteria{
		Pattern:       opts.search,
		IsRegex:       opts.regex,
		CaseSensitive: opts.caseSensitive,
		Field:         field,
		Levels:        levels,
	}
	if opts.window < 0 {
		return filter.Criteria{}, fmt.Errorf("--window must be non-negative")
	}
	if !center.IsZero() && opts.window > 0 {
		c.Window = filter.NewWindow(center, time.Duration(opts.window)*time.Second)
	}
	return c, nil
}

// loadPresets copies the presets of the configured workspace into sess
func (a *app) loadPresets(sess *viewer.Session) error {
	ws, err := config.LoadWorkspace(a.cfg.Workspace.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, p := range ws.Presets {
		if err := sess.SavePreset(p); err != nil {
			return err
		}
	}
	return nil
}
