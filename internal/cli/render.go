package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/forceweave/pkg/graph"
	"github.com/matzehuels/forceweave/pkg/render"
)

// renderOpts holds the flags of the render command.
type renderOpts struct {
	output  string
	formats []render.Format
	labels  bool
	noCache bool
}

// renderCommand draws a positioned graph.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		opts       renderOpts
		formatsStr string
	)

	cmd := &cobra.Command{
		Use:   "render [layout.json]",
		Short: "Draw a laid-out graph as SVG, PNG or PDF",
		Long: `Draw a laid-out graph as SVG, PNG or PDF.

The input is a graph whose nodes carry x/y positions, as written by 'layout'.
Nodes are pinned at those positions and drawn with the category palette.
PDF output requires rsvg-convert.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formats, err := parseFormats(formatsStr)
			if err != nil {
				return err
			}
			opts.formats = formats
			return c.runRender(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), png, pdf, dot (comma-separated)")
	cmd.Flags().BoolVar(&opts.labels, "labels", false, "draw node titles")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "render even if a cached artifact exists")
	_ = cmd.RegisterFlagCompletionFunc("format", completeFormats)
	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, input string, opts renderOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	d, err := graph.ReadFile(input, logger)
	if err != nil {
		return fmt.Errorf("load layout %s: %w", input, err)
	}
	unplaced := 0
	for _, n := range d.Nodes {
		if n != nil && !n.Placed() {
			unplaced++
		}
	}
	if unplaced > 0 {
		printWarning("%d of %d nodes have no position; run '%s layout' first", unplaced, len(d.Nodes), appName)
	}
	frame := graph.Snapshot(d)
	dot := render.ToDOT(frame, render.Options{Labels: opts.labels})

	base := opts.output
	if base == "" || len(opts.formats) > 1 {
		if base == "" {
			base = input
		}
		base = strings.TrimSuffix(strings.TrimSuffix(base, filepath.Ext(base)), ".layout")
	}

	r := render.NewRenderer(c.artifactCache(opts.noCache), logger)
	r.TTL = c.cfg.Cache.TTL.Duration
	for _, format := range opts.formats {
		out, err := r.Render(ctx, dot, format)
		if err != nil {
			return fmt.Errorf("render %s: %w", format, err)
		}

		path := base + "." + string(format)
		if opts.output != "" && len(opts.formats) == 1 {
			path = opts.output
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		printFile(path)
	}
	printSuccess("Rendered %d nodes", len(frame.Nodes))
	return nil
}

// parseFormats splits the --format flag. Empty means SVG.
func parseFormats(s string) ([]render.Format, error) {
	if strings.TrimSpace(s) == "" {
		return []render.Format{render.FormatSVG}, nil
	}
	var out []render.Format
	for _, name := range strings.Split(s, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		f, err := render.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
