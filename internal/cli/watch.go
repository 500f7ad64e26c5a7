package cli

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/forceweave/pkg/graph"
	"github.com/matzehuels/forceweave/pkg/layout"
	"github.com/matzehuels/forceweave/pkg/refresh"
	"github.com/matzehuels/forceweave/pkg/session"
	"github.com/matzehuels/forceweave/pkg/source"
)

// watchOpts holds the flags of the watch command.
type watchOpts struct {
	filterFlags
	interval time.Duration
	plain    bool
	noFollow bool
}

// watchCommand keeps a session current with its source.
func (c *CLI) watchCommand() *cobra.Command {
	var opts watchOpts

	cmd := &cobra.Command{
		Use:   "watch [graph.json]",
		Short: "Refresh a source periodically with a live dashboard",
		Long: `Refresh a source periodically with a live dashboard.

Without an argument the [source] section of the config is used, which may
point at a file or a MongoDB project. File sources are also refreshed as soon
as the file changes, unless --no-follow is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return c.runWatch(cmd.Context(), path, opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "refresh interval (default from config)")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "log refreshes instead of showing the dashboard")
	cmd.Flags().BoolVar(&opts.noFollow, "no-follow", false, "do not refresh on file changes")
	return cmd
}

func (c *CLI) runWatch(ctx context.Context, path string, opts watchOpts) error {
	logger := loggerFromContext(ctx)

	mode, sel, err := opts.resolve(c.cfg)
	if err != nil {
		return err
	}
	src, closeSource, err := c.openSource(ctx, path)
	if err != nil {
		return err
	}
	defer closeSource()

	lc, cleanup, err := c.layoutConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	// send delivers dashboard messages; in plain mode there is no program.
	send := func(tea.Msg) {}
	var prog *tea.Program
	if !opts.plain {
		prog = tea.NewProgram(NewDashboardModel(src.Name(), mode))
		send = prog.Send
		// The dashboard owns the terminal; keep log lines out of it.
		logger = logger.WithPrefix("watch")
		logger.SetLevel(max(logger.GetLevel(), log.WarnLevel))
	}
	lc.Logger = logger
	lc.OnState = func(s layout.State) { send(stateMsg(s)) }
	lc.OnProgress = func(p layout.Progress) { send(progressMsg(p)) }

	sess := session.New("", session.Options{Mode: mode, Selection: sel, Layout: lc, Logger: logger})
	defer sess.Close()

	r := refresh.New(src, sess, logger)
	r.Interval = c.cfg.Refresh.Interval.Duration
	if opts.interval > 0 {
		r.Interval = opts.interval
	}
	r.OnUpdate = func(filtered graph.Data) {
		counters, ind := sess.Statistics()
		if opts.plain {
			logger.Info("refreshed", "nodes", len(filtered.Nodes), "links", len(filtered.Links), "counters", counters.Map())
			return
		}
		send(refreshMsg{nodes: len(filtered.Nodes), links: len(filtered.Links), counters: counters, indicators: ind, at: time.Now()})
	}
	r.OnError = func(err error) { send(refreshErrMsg{err: err}) }

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := r.Once(gctx); err != nil && gctx.Err() == nil {
			logger.Warn("initial fetch failed", "source", src.Name(), "error", err)
		}
		return r.Run(gctx)
	})
	if f, ok := src.(*source.File); ok && !opts.noFollow {
		g.Go(func() error {
			return f.Watch(gctx, func() {
				if err := r.Once(gctx); err != nil && gctx.Err() == nil {
					logger.Debug("refresh on change failed", "error", err)
				}
			})
		})
	}

	if prog == nil {
		printInfo("Watching %s every %s (%s)", src.Name(), r.Interval, mode)
		return g.Wait()
	}

	g.Go(func() error {
		<-gctx.Done()
		prog.Quit()
		return nil
	})
	_, runErr := prog.Run()
	cancel()
	if err := g.Wait(); err != nil {
		return err
	}
	return runErr
}
