package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/therealutkarshpriyadarshi/logview/internal/health"
	"github.com/therealutkarshpriyadarshi/logview/internal/level"
	"github.com/therealutkarshpriyadarshi/logview/internal/metrics"
	"github.com/therealutkarshpriyadarshi/logview/internal/profiling"
	"github.com/therealutkarshpriyadarshi/logview/internal/server"
	"github.com/therealutkarshpriyadarshi/logview/internal/shutdown"
	"github.com/therealutkarshpriyadarshi/logview/internal/tracing"
	"github.com/therealutkarshpriyadarshi/logview/internal/viewer"
	"github.com/therealutkarshpriyadarshi/logview/internal/watcher"
	"github.com/therealutkarshpriyadarshi/logview/internal/workspace"
)

// watchOptions holds the watch command flags
type watchOptions struct {
	noRestore      bool
	statusInterval time.Duration
}

func newWatchCommand(a *app) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch [file]...",
		Short: "Keep files loaded and reload them as they change",
		Long: `Restore the saved workspace, load the given files and watch all of
them. Changed files are reloaded in the background, the workspace is saved
as sources change and, when enabled, metrics are served over HTTP.

Stops on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, a, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noRestore, "no-restore", false, "Do not restore the saved workspace")
	cmd.Flags().DurationVar(&opts.statusInterval, "status-interval", 5*time.Second, "How often a status line is logged after changes")

	return cmd
}

func runWatch(cmd *cobra.Command, a *app, paths []string, opts *watchOptions) (err error) {
	logger := a.logger
	sm := shutdown.New(shutdown.Config{Logger: logger})
	ctx := sm.Context(cmd.Context())
	go sm.WaitForSignal()

	defer func() {
		if serr := sm.Shutdown(); serr != nil {
			logger.Error().Err(serr).Msg("Shutdown finished with errors")
			if err == nil {
				err = serr
			}
		}
	}()

	collector := metrics.NewCollector()

	tracer, err := tracing.NewProvider(ctx, a.cfg.TracerConfig())
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}
	sm.RegisterFunc("tracing", tracer.Shutdown)

	reg := watcher.NewRegistry(a.cfg.WatcherConfig(), logger)
	reg.SetObserver(collector)
	sm.RegisterFunc("watcher", func(context.Context) error { return reg.Close() })

	sess, pool, err := a.newSession(sessionOptions{
		metrics: collector,
		tracer:  tracer,
		watcher: reg,
	})
	if err != nil {
		return err
	}
	sm.RegisterComponent(sess.Pipeline())
	sm.RegisterFunc("worker-pool", func(context.Context) error { return pool.Stop() })

	ws, err := workspace.NewManager(a.cfg.Workspace.Path, a.cfg.Workspace.AutosaveInterval, sess.Workspace, logger)
	if err != nil {
		return err
	}

	if !opts.noRestore {
		restoreWorkspace(ctx, a, sess, ws)
	}
	if len(paths) > 0 {
		if err := loadFiles(ctx, sess, paths, cmd.ErrOrStderr()); err != nil {
			return err
		}
	}
	if sess.Store().SourceCount() == 0 {
		return fmt.Errorf("nothing to watch: pass log files or save a workspace first")
	}

	// Sources were added above, before anything follows the change feed
	ws.MarkDirty()
	ws.Start()
	sm.RegisterComponent(ws)

	if a.cfg.Metrics.Enabled {
		checker := health.NewChecker(0)
		checker.Register("sources", health.SourcesCheck(sess.Store()))
		checker.Register("workers", health.PoolCheck(pool.Metrics, 50))

		srv := server.New(server.Config{
			MetricsAddress:  a.cfg.Metrics.Address,
			MetricsPath:     a.cfg.Metrics.Path,
			MetricsRegistry: collector.Registry(),
			Health:          checker,
			Logger:          logger,
		})
		if err := srv.Start(); err != nil {
			return err
		}
		sm.RegisterComponent(srv)

		collector.Start(15 * time.Second)
		sm.RegisterFunc("metrics", func(context.Context) error {
			collector.Stop()
			return nil
		})
	}

	monitor := profiling.New(a.cfg.Profiling, logger)
	if err := monitor.Start(); err != nil {
		return err
	}
	sm.RegisterComponent(monitor)

	logger.Info().
		Int("sources", sess.Store().SourceCount()).
		Int("records", sess.Store().TotalCount()).
		Msg("Watching log files")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sess.Pipeline().Run(gctx)
	})
	g.Go(func() error {
		ws.Follow(gctx, sess.Store().Changes())
		return nil
	})
	g.Go(func() error {
		reportStatus(gctx, a, sess, monitor, opts.statusInterval)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("Watch stopped")
	return nil
}

// restoreWorkspace loads the saved workspace, if any, into sess
func restoreWorkspace(ctx context.Context, a *app, sess *viewer.Session, ws *workspace.Manager) {
	doc, err := ws.Load()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			a.logger.Warn().Err(err).Str("path", ws.Path()).Msg("Ignoring unreadable workspace")
		}
		return
	}

	results, err := sess.Restore(ctx, doc)
	if err != nil {
		a.logger.Warn().Err(err).Str("path", ws.Path()).Msg("Failed to restore workspace")
		return
	}
	for _, r := range results {
		if r.Err != nil {
			a.logger.Warn().Err(r.Err).Str("path", r.Path).Msg("Saved source could not be loaded")
		}
	}
}

// reportStatus logs a summary whenever the store changed since the last
// tick
func reportStatus(ctx context.Context, a *app, sess *viewer.Session, monitor *profiling.Monitor, interval time.Duration) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := sess.Version()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v := sess.Version()
			if v == last {
				continue
			}
			last = v

			snap := sess.GetAnalytics()
			event := a.logger.Info().
				Int("sources", sess.Store().SourceCount()).
				Int("records", snap.TotalRecords).
				Int("errors", snap.LevelCounts[level.Error]+snap.LevelCounts[level.Fatal]).
				Uint64("version", v)
			if usage, ok := monitor.Latest(); ok {
				event = event.Str("usage", usage.Summary())
			}
			event.Msg("Sources changed")
		}
	}
}
