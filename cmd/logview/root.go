package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/logview/internal/config"
	"github.com/therealutkarshpriyadarshi/logview/internal/ingest"
	"github.com/therealutkarshpriyadarshi/logview/internal/keywords"
	"github.com/therealutkarshpriyadarshi/logview/internal/logging"
	"github.com/therealutkarshpriyadarshi/logview/internal/metrics"
	"github.com/therealutkarshpriyadarshi/logview/internal/parser"
	"github.com/therealutkarshpriyadarshi/logview/internal/store"
	"github.com/therealutkarshpriyadarshi/logview/internal/tracing"
	"github.com/therealutkarshpriyadarshi/logview/internal/viewer"
	"github.com/therealutkarshpriyadarshi/logview/internal/watcher"
	"github.com/therealutkarshpriyadarshi/logview/internal/worker"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

// rootOptions holds the flags shared by every command
type rootOptions struct {
	configFile string
	envFile    string
	logLevel   string
	onLimit    string
}

// app carries what the persistent pre-run resolved
type app struct {
	opts   rootOptions
	cfg    *config.Config
	logger *logging.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "logview",
		Short: "Parse, filter and analyze log files",
		Long: `logview loads one or more log files, resolves their timestamps and
merges them into a single timeline.

It can:
  - filter by text or regex, time window and severity level
  - summarize level distribution, hourly activity and peak hours
  - detect known and recurring error patterns
  - export filtered views as text, CSV, JSON or XML
  - watch files and reload them as they change`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.opts.configFile, "config", "c", "", "Path to configuration file")
	flags.StringVar(&a.opts.envFile, "env-file", ".env", "Environment file loaded before the configuration")
	flags.StringVar(&a.opts.logLevel, "log-level", "", "Override the configured log level")
	flags.StringVar(&a.opts.onLimit, "on-limit", "continue", "What to do when a file exceeds the line limit (continue|abort)")

	root.AddCommand(newAnalyzeCommand(a))
	root.AddCommand(newPatternsCommand(a))
	root.AddCommand(newExportCommand(a))
	root.AddCommand(newRecurringCommand(a))
	root.AddCommand(newParsersCommand(a))
	root.AddCommand(newWatchCommand(a))
	root.AddCommand(newVersionCommand())

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "logview %s\n", version)
		},
	}
}

// init loads the environment file and configuration and sets up logging
func (a *app) init(cmd *cobra.Command) error {
	if a.opts.envFile != "" {
		if err := godotenv.Load(a.opts.envFile); err != nil {
			// The default .env is optional; an explicit one is not
			if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("env-file") {
				return fmt.Errorf("failed to load env file: %w", err)
			}
		}
	}

	cfg, err := config.LoadOrDefault(a.opts.configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.opts.logLevel != "" {
		cfg.Logging.Level = a.opts.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if _, err := deciderFor(a.opts.onLimit); err != nil {
		return err
	}

	logCfg := cfg.LoggerConfig()
	logCfg.Output = cmd.ErrOrStderr()
	a.logger = logging.New(logCfg)
	logging.SetGlobal(a.logger)
	a.cfg = cfg
	return nil
}

func deciderFor(mode string) (ingest.Decider, error) {
	switch strings.ToLower(mode) {
	case "", "continue":
		return ingest.AlwaysContinue, nil
	case "abort":
		return ingest.AlwaysAbort, nil
	default:
		return nil, fmt.Errorf("invalid --on-limit %q (use continue or abort)", mode)
	}
}

func (a *app) keywords() (*keywords.Set, error) {
	if a.cfg.Keywords.File != "" {
		return keywords.LoadFile(a.cfg.Keywords.File)
	}
	if len(a.cfg.Keywords.Words) > 0 {
		return keywords.New(a.cfg.Keywords.Words...), nil
	}
	return keywords.Default(), nil
}

// sessionOptions adds the long-running collaborators used by watch
type sessionOptions struct {
	metrics *metrics.Collector
	tracer  *tracing.Provider
	watcher *watcher.Registry
}

// newSession assembles store, worker pool, pipeline and session from the
// configuration. The caller stops the returned pool.
func (a *app) newSession(opts sessionOptions) (*viewer.Session, *worker.Pool, error) {
	registry, err := parser.FromConfig(a.cfg.Parsers, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build parsers: %w", err)
	}
	kw, err := a.keywords()
	if err != nil {
		return nil, nil, err
	}
	decider, err := deciderFor(a.opts.onLimit)
	if err != nil {
		return nil, nil, err
	}

	st := store.New(a.cfg.Limits.MaxSources)

	pool := worker.NewPool(a.cfg.PoolConfig(), a.logger)
	if opts.metrics != nil {
		pool.SetObserver(opts.metrics)
	}
	pool.Start()

	pcfg := ingest.Config{
		Store:               st,
		Registry:            registry,
		Logger:              a.logger,
		Tracer:              opts.tracer,
		Pool:                pool,
		Watcher:             opts.watcher,
		Retry:               a.cfg.ReloadRetry(),
		MaxLinesPerFile:     a.cfg.Limits.MaxLinesPerFile,
		ShowLineRateWarning: a.cfg.LineRateWarning(),
		Decider:             decider,
		BatchSize:           a.cfg.Ingest.BatchSize,
		Parallelism:         a.cfg.Ingest.Workers,
	}
	if opts.metrics != nil {
		pcfg.Metrics = opts.metrics
	}
	pipeline, err := ingest.New(pcfg)
	if err != nil {
		pool.Stop()
		return nil, nil, err
	}

	vcfg := viewer.Config{
		Store:               st,
		Pipeline:            pipeline,
		Logger:              a.logger,
		MaxDisplayed:        a.cfg.Limits.MaxDisplayedRecords,
		Keywords:            kw,
		MaxLinesPerFile:     a.cfg.Limits.MaxLinesPerFile,
		ShowLineRateWarning: a.cfg.LineRateWarning(),
		WatchOnLoad:         opts.watcher != nil,
	}
	if opts.metrics != nil {
		vcfg.FilterObserver = opts.metrics
		vcfg.LevelObserver = opts.metrics
	}
	sess, err := viewer.New(vcfg)
	if err != nil {
		pool.Stop()
		return nil, nil, err
	}
	return sess, pool, nil
}

// loadFiles loads paths into sess and reports per file failures on w. It
// fails only when nothing could be loaded.
func loadFiles(ctx context.Context, sess *viewer.Session, paths []string, w io.Writer) error {
	results := sess.LoadAll(ctx, paths)

	loaded := 0
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "warning: %s: %v\n", r.Path, r.Err)
		}
		if r.Source != nil && r.Source.State == types.StateLoaded {
			loaded++
			if r.Source.Truncated {
				fmt.Fprintf(w, "warning: %s: stopped at the line limit\n", r.Path)
			}
		}
	}
	if loaded == 0 && len(paths) > 0 {
		return fmt.Errorf("no log files could be loaded")
	}
	return nil
}

// withSession runs fn over a session holding the given files
func (a *app) withSession(cmd *cobra.Command, paths []string, fn func(*viewer.Session) error) error {
	sess, pool, err := a.newSession(sessionOptions{})
	if err != nil {
		return err
	}
	defer pool.Stop()

	if err := loadFiles(cmd.Context(), sess, paths, cmd.ErrOrStderr()); err != nil {
		return err
	}
	return fn(sess)
}
