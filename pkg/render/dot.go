package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/matzehuels/forceweave/pkg/graph"
)

// Style is the drawing style of one category.
type Style struct {
	Color string
	// Radius is the circle radius in points.
	Radius float64
}

// Palette maps each category to its style, in canonical category order.
var Palette = map[graph.Category]Style{
	graph.CategoryProject:   {"#023a78", 10},
	graph.CategoryMap:       {"#0b522e", 9},
	graph.CategoryDivpoint:  {"#ff8000", 8},
	graph.CategoryQuestion:  {"#974da2", 7},
	graph.CategoryComment:   {"#e51d1d", 6},
	graph.CategoryReply:     {"#377eb8", 4},
	graph.CategoryAgreement: {"#4eaf49", 3},
	graph.CategoryUser:      {"#636c77", 7},
	graph.CategoryUsers:     {"#b2b7bd", 9},
}

// fallback styles nodes of unknown category.
var fallback = Style{Color: "#999999", Radius: 5}

// StyleOf returns the style of c.
func StyleOf(c graph.Category) Style {
	if s, ok := Palette[c]; ok {
		return s
	}
	return fallback
}

// Options configures DOT output.
type Options struct {
	// Labels draws node titles (or ids when untitled) next to nodes.
	Labels bool
	// Radii overrides the per-category radius by node id, as produced by
	// the beeswarm layout.
	Radii map[string]float64
}

// pointsPerInch converts point sizes to Graphviz inches.
const pointsPerInch = 72.0

// ToDOT writes f as a DOT digraph with every node pinned at its position.
// The y axis is flipped since Graphviz grows upward.
func ToDOT(f graph.Frame, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  notranslate=true;\n")
	buf.WriteString("  overlap=true;\n")
	buf.WriteString("  splines=false;\n")
	buf.WriteString("  node [shape=circle, style=filled, fixedsize=true, penwidth=0.5, color=white, fontsize=8];\n")
	buf.WriteString("  edge [color=\"#999999\", penwidth=0.6, arrowsize=0.4];\n")
	buf.WriteString("\n")

	for _, p := range f.Nodes {
		fmt.Fprintf(&buf, "  %q [%s];\n", p.ID, strings.Join(nodeAttrs(p, opts), ", "))
	}
	buf.WriteString("\n")
	for _, e := range f.Links {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.Source, e.Target)
	}
	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(p graph.Position, opts Options) []string {
	style := StyleOf(p.Category)
	r := style.Radius
	if v, ok := opts.Radii[p.ID]; ok {
		r = v
	}
	d := 2 * r / pointsPerInch
	attrs := []string{
		fmt.Sprintf("pos=\"%.2f,%.2f!\"", p.X, -p.Y),
		"pin=true",
		fmt.Sprintf("width=%.3f", d),
		fmt.Sprintf("height=%.3f", d),
		fmt.Sprintf("fillcolor=%q", style.Color),
	}
	if opts.Labels {
		label := p.Title
		if label == "" {
			label = p.ID
		}
		attrs = append(attrs, fmt.Sprintf("xlabel=%q", label), `label=""`)
	} else {
		attrs = append(attrs, `label=""`)
	}
	if p.Pinned {
		attrs = append(attrs, "penwidth=1.5", "color=black")
	}
	return attrs
}
