package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/forceweave/pkg/filter"
	"github.com/matzehuels/forceweave/pkg/graph"
	"github.com/matzehuels/forceweave/pkg/layout"
	"github.com/matzehuels/forceweave/pkg/session"
)

// layoutOpts holds the flags of the layout command.
type layoutOpts struct {
	filterFlags
	output    string
	width     float64
	height    float64
	seed      uint64
	threshold int
	noOffload bool
	timeout   time.Duration
}

// layoutCommand creates the layout command for computing node positions.
func (c *CLI) layoutCommand() *cobra.Command {
	var opts layoutOpts

	cmd := &cobra.Command{
		Use:   "layout [graph.json]",
		Short: "Filter a graph and compute node positions",
		Long: `Filter a graph and compute node positions.

The layout command reads a graph.json file, applies the selected mode and
categories, and runs the force layout until it settles. Graphs above the
offload threshold are laid out by a worker. The output is the filtered graph
with x/y positions, readable by 'render'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(cmd, args[0], opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: <input>.layout.json)")
	cmd.Flags().Float64Var(&opts.width, "width", 0, "frame width (default from config)")
	cmd.Flags().Float64Var(&opts.height, "height", 0, "frame height (default from config)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "random seed for initial placement (0: from config)")
	cmd.Flags().IntVar(&opts.threshold, "offload-threshold", -1, "node count above which layout is offloaded (-1: from config)")
	cmd.Flags().BoolVar(&opts.noOffload, "no-offload", false, "always lay out in-process")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "give up after this long")

	return cmd
}

// runLayout loads the graph, lays out its filtered view, and writes the
// positioned graph.
func (c *CLI) runLayout(cmd *cobra.Command, input string, opts layoutOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	mode, sel, err := opts.resolve(c.cfg)
	if err != nil {
		return err
	}
	d, err := graph.ReadFile(input, logger)
	if err != nil {
		return fmt.Errorf("load graph %s: %w", input, err)
	}

	lc, cleanup, err := c.layoutConfig()
	if err != nil {
		return err
	}
	defer cleanup()
	if opts.width > 0 {
		lc.Width = opts.width
	}
	if opts.height > 0 {
		lc.Height = opts.height
	}
	if opts.seed != 0 {
		lc.Seed = opts.seed
	}
	if opts.threshold >= 0 {
		lc.OffloadThreshold = opts.threshold
	}
	if opts.noOffload {
		lc.Spawner = nil
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Laying out %s view...", mode))
	lc.OnProgress = func(p layout.Progress) {
		spinner.SetMessage("%s %s: %d/%d (%.0f%%)", p.Strategy, p.Phase, p.Iteration, p.Total, p.Percent)
	}

	prog := newElapsed(logger)
	sess := session.New("", session.Options{Mode: mode, Selection: sel, Layout: lc, Logger: logger})
	defer sess.Close()

	spinner.Start()
	sess.Load(d)

	waitCtx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()
	if err := sess.Wait(waitCtx); err != nil {
		spinner.StopWithError("Layout failed")
		return fmt.Errorf("layout: %w", err)
	}
	spinner.Stop()

	out := sess.Filtered()
	info := sess.Info()
	prog.done("Layout settled")

	outputPath := opts.output
	if outputPath == "" {
		outputPath = strings.TrimSuffix(input, filepath.Ext(input)) + ".layout.json"
	}
	if err := graph.WriteFile(out, outputPath); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	printSuccess("Layout complete")
	printFile(outputPath)
	extra := []string{string(mode)}
	if mode != filter.ModeBeeswarm && info.Strategy != "" {
		extra = append(extra, string(info.Strategy))
	}
	printGraphStats(len(out.Nodes), len(out.Links), extra...)
	printNewline()
	printNextStep("Render", appName+" render "+outputPath)
	return nil
}
