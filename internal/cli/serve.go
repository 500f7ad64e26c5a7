package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/forceweave/pkg/cache"
	"github.com/matzehuels/forceweave/pkg/graph"
	"github.com/matzehuels/forceweave/pkg/observability"
	"github.com/matzehuels/forceweave/pkg/refresh"
	"github.com/matzehuels/forceweave/pkg/render"
	"github.com/matzehuels/forceweave/pkg/server"
	"github.com/matzehuels/forceweave/pkg/session"
)

// serveCommand runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr   string
		source string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API.

Clients create sessions, push graph data, switch modes and categories, drag
nodes and stream frames over server-sent events. With --source (or a [source]
section in the config) one session is opened up front and kept current by
periodic refresh.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, source)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&source, "source", "", "graph file to serve as a refreshed session")
	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr, src string) error {
	logger := loggerFromContext(ctx)
	if addr == "" {
		addr = c.cfg.Server.Addr
	}

	lc, cleanup, err := c.layoutConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	mode, err := c.cfg.Mode()
	if err != nil {
		return err
	}
	sel, err := c.cfg.Selection()
	if err != nil {
		return err
	}

	var metrics http.Handler
	if c.cfg.Server.Metrics {
		prom := observability.NewPrometheus(appName)
		observability.SetLayoutHooks(prom)
		observability.SetWorkerHooks(prom)
		observability.SetRefreshHooks(prom)
		defer observability.Reset()
		metrics = prom.Handler()
	}

	artifacts := c.artifactCache(false)
	if c.cfg.Cache.Enabled && c.cfg.Worker.Transport == "redis" {
		client := redis.NewClient(&redis.Options{Addr: c.cfg.Worker.RedisAddr})
		defer client.Close()
		artifacts = cache.NewRedis(client, c.cfg.Worker.QueuePrefix)
	}
	renderer := render.NewRenderer(artifacts, logger)
	renderer.TTL = c.cfg.Cache.TTL.Duration

	m := session.NewManager(session.Options{Mode: mode, Selection: sel, Layout: lc, Logger: logger})
	srv := server.New(m, server.Options{
		Timeout:     c.cfg.Server.Timeout.Duration,
		CORSOrigins: c.cfg.Server.CORSOrigins,
		Metrics:     metrics,
		Renderer:    renderer,
		Logger:      logger,
	})

	var r *refresh.Refresher
	if src != "" || c.cfg.Source.Kind != "" {
		source, closeSource, err := c.openSource(ctx, src)
		if err != nil {
			return err
		}
		defer closeSource()

		sess := srv.Open("", nil)
		r = refresh.New(source, sess, logger)
		r.Interval = c.cfg.Refresh.Interval.Duration
		r.OnUpdate = func(graph.Data) {
			srv.Hub().Publish(sess.ID(), server.Event{Type: server.EventRefresh, Data: sess.Info()})
		}
		if err := r.Once(ctx); err != nil {
			logger.Warn("initial fetch failed", "source", source.Name(), "error", err)
		}
		printInfo("Serving %s as session %s", source.Name(), sess.ID())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx, addr) })
	if r != nil {
		g.Go(func() error { return r.Run(gctx) })
	}

	printInfo("Listening on %s", addr)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
