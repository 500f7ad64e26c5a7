// Package cli implements the forceweave command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/matzehuels/forceweave/pkg/buildinfo"
	"github.com/matzehuels/forceweave/pkg/cache"
	"github.com/matzehuels/forceweave/pkg/config"
	"github.com/matzehuels/forceweave/pkg/errors"
	"github.com/matzehuels/forceweave/pkg/filter"
	"github.com/matzehuels/forceweave/pkg/layout"
	"github.com/matzehuels/forceweave/pkg/source"
	"github.com/matzehuels/forceweave/pkg/worker"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for display.
const appName = config.AppName

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		cfg:    config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Forceweave lays out discussion graphs with force simulations",
		Long:         `Forceweave filters participatory-discussion graphs by perspective, lays them out with a force-directed simulation that offloads large graphs to workers, and reports engagement statistics.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			c.cfg = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/forceweave/config.toml)")

	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.filterCommand())
	root.AddCommand(c.statsCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.workerCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Factories
// =============================================================================

// spawner returns the offload transport selected by the worker config, and
// a cleanup func. A "none" transport yields a nil spawner.
func (c *CLI) spawner() (worker.Spawner, func(), error) {
	switch c.cfg.Worker.Transport {
	case "none":
		return nil, func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: c.cfg.Worker.RedisAddr})
		return worker.NewRedis(client, c.cfg.Worker.QueuePrefix, c.Logger), func() { client.Close() }, nil
	case "local", "":
		return worker.NewLocal(), func() {}, nil
	default:
		return nil, nil, errors.New(errors.ErrCodeInvalidConfig, "unknown worker transport %q", c.cfg.Worker.Transport)
	}
}

// layoutConfig returns controller settings from the config, with the
// transport attached.
func (c *CLI) layoutConfig() (layout.Config, func(), error) {
	lc := c.cfg.LayoutConfig()
	lc.Logger = c.Logger
	sp, cleanup, err := c.spawner()
	if err != nil {
		return lc, nil, err
	}
	lc.Spawner = sp
	return lc, cleanup, nil
}

// openSource opens the configured source. path, if set, overrides it with a
// file source.
func (c *CLI) openSource(ctx context.Context, path string) (source.Source, func(), error) {
	if path != "" {
		return source.NewFile(path, c.Logger), func() {}, nil
	}
	sc := c.cfg.Source
	switch sc.Kind {
	case "file":
		return source.NewFile(sc.Path, c.Logger), func() {}, nil
	case "mongo":
		m, err := source.NewMongo(ctx, sc.MongoURI, sc.Database, sc.Project, c.Logger)
		if err != nil {
			return nil, nil, err
		}
		return m, func() { m.Close(context.Background()) }, nil
	default:
		return nil, nil, errors.New(errors.ErrCodeInvalidConfig, "no source configured: pass a graph file or set [source]")
	}
}

// artifactCache returns the rendered-artifact cache. It degrades to a null
// cache when caching is off or the directory cannot be created.
func (c *CLI) artifactCache(disabled bool) cache.Cache {
	if disabled || !c.cfg.Cache.Enabled {
		return cache.NewNullCache()
	}
	dir := c.cfg.CacheDir()
	if dir == "" {
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(filepath.Join(dir, "artifacts"))
	if err != nil {
		c.Logger.Warn("artifact cache unavailable", "dir", dir, "error", err)
		return cache.NewNullCache()
	}
	return fc
}

// =============================================================================
// Filter Flags
// =============================================================================

// filterFlags are the mode and category flags shared by several commands.
type filterFlags struct {
	mode       string
	categories []string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "", "mode: project, user, indicators, beeswarm (default from config)")
	cmd.Flags().StringSliceVarP(&f.categories, "categories", "c", nil, "comma-separated categories to show (default: all)")
	_ = cmd.RegisterFlagCompletionFunc("mode", completeModes)
	_ = cmd.RegisterFlagCompletionFunc("categories", completeCategories)
}

// resolve applies the flags over the config.
func (f *filterFlags) resolve(cfg config.Config) (filter.Mode, filter.Selection, error) {
	mode, err := cfg.Mode()
	if err != nil {
		return "", nil, err
	}
	if f.mode != "" {
		if mode, err = filter.ParseMode(f.mode); err != nil {
			return "", nil, err
		}
	}
	sel, err := cfg.Selection()
	if err != nil {
		return "", nil, err
	}
	if len(f.categories) > 0 {
		if sel, err = filter.ParseSelection(f.categories); err != nil {
			return "", nil, err
		}
	}
	return mode, sel, nil
}
