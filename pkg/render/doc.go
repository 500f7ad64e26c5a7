// Package render draws laid-out graphs.
//
// Rendering never computes a layout. [ToDOT] serializes a [graph.Frame] as
// Graphviz DOT with every node pinned at its computed position, and [SVG]
// and [PNG] hand that to Graphviz's neato engine, which honours pins. Node
// colour and size follow the category palette in [Palette].
//
//	dot := render.ToDOT(frame, render.Options{Labels: true})
//	svg, err := render.SVG(ctx, dot)
//
// [ToPDF] converts SVG output with the external rsvg-convert tool.
//
// [graph.Frame]: github.com/matzehuels/forceweave/pkg/graph.Frame
package render
