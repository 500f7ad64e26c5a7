package cli

import (
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/matzehuels/forceweave/pkg/filter"
	"github.com/matzehuels/forceweave/pkg/graph"
	"github.com/matzehuels/forceweave/pkg/stats"
)

// filterOpts holds the flags shared by the filter and stats commands.
type filterOpts struct {
	filterFlags
	output string
	// slider is the time slider position in [0, filter.SliderMax]; negative
	// disables the time restriction.
	slider float64
}

func (o *filterOpts) register(cmd *cobra.Command) {
	o.filterFlags.register(cmd)
	cmd.Flags().Float64Var(&o.slider, "time", -1, fmt.Sprintf("time slider position 0..%v (-1: no time limit)", filter.SliderMax))
}

// apply filters d by the resolved mode, selection and time slider.
func (o *filterOpts) apply(d graph.Data, mode filter.Mode, sel filter.Selection) graph.Data {
	spec := filter.Compute(mode, sel)
	if o.slider >= 0 {
		if t, ok := filter.TimeThreshold(d.Nodes, o.slider, filter.SliderMax); ok {
			spec = filter.WithCreatedBefore(spec, t)
		}
	}
	return filter.Apply(d, spec)
}

// filterCommand writes the filtered view of a graph.
func (c *CLI) filterCommand() *cobra.Command {
	var opts filterOpts

	cmd := &cobra.Command{
		Use:   "filter [graph.json]",
		Short: "Write the filtered view of a graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			mode, sel, err := opts.resolve(c.cfg)
			if err != nil {
				return err
			}
			d, err := graph.ReadFile(args[0], logger)
			if err != nil {
				return fmt.Errorf("load graph %s: %w", args[0], err)
			}
			d, report := d.Sanitize()
			if !report.Clean() {
				logger.Warn("input sanitized", "nil_nodes", report.NilNodes, "duplicates", report.DuplicateNodes, "nil_links", report.NilLinks, "dangling", report.DanglingLinks)
			}
			view := opts.apply(d, mode, sel)

			if opts.output == "" {
				return graph.Write(view, cmd.OutOrStdout())
			}
			if err := graph.WriteFile(view, opts.output); err != nil {
				return fmt.Errorf("write output %s: %w", opts.output, err)
			}
			printSuccess("Filtered %s view", mode)
			printFile(opts.output)
			printGraphStats(len(view.Nodes), len(view.Links))
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

// statsCommand prints counters and indicators of a graph's filtered view.
func (c *CLI) statsCommand() *cobra.Command {
	var (
		opts   filterOpts
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "stats [graph.json]",
		Short: "Print counters and engagement indicators",
		Long: `Print counters and engagement indicators.

Counters are computed over the filtered view, so the mode and category flags
change what is counted. Indicators are derived from the counters.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			mode, sel, err := opts.resolve(c.cfg)
			if err != nil {
				return err
			}
			d, err := graph.ReadFile(args[0], logger)
			if err != nil {
				return fmt.Errorf("load graph %s: %w", args[0], err)
			}
			d, _ = d.Sanitize()
			counters := stats.Count(opts.apply(d, mode, sel), mode)
			ind := stats.Derive(counters)

			if asJSON {
				return writeStatsJSON(cmd.OutOrStdout(), mode, counters, ind)
			}
			writeStats(cmd.OutOrStdout(), fmt.Sprintf("%s · %s", args[0], mode), counters, ind)
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

type statsJSON struct {
	Mode        filter.Mode       `json:"mode"`
	Counters    map[string]int    `json:"counters"`
	Indicators  map[string]string `json:"indicators"`
	GeneratedAt time.Time         `json:"generated_at"`
}

func writeStatsJSON(w io.Writer, mode filter.Mode, c stats.Counters, ind stats.Indicators) error {
	out := statsJSON{
		Mode:        mode,
		Counters:    c.Map(),
		Indicators:  make(map[string]string),
		GeneratedAt: time.Now().UTC(),
	}
	for _, e := range ind.Entries() {
		out.Indicators[e.Name] = stats.Format(e.Value)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
