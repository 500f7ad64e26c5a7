// Package filter turns a visualization mode and the user's category
// selection into predicate sets, and applies them to graph data.
//
// A [Spec] maps node fields to predicates. Semantics are conjunctive: a node
// passes only if every predicate accepts its field, and a node that lacks a
// targeted field is rejected. Fields a spec does not mention are
// unconstrained. [Apply] then keeps only the links whose endpoints both
// survived, so filtered output never has dangling endpoints.
//
//	spec := filter.Compute(filter.ModeProject, filter.AllCategories())
//	spec = filter.WithCreatedBefore(spec, cutoff)
//	view := filter.Apply(data, spec)
package filter

import (
	"slices"
	"time"

	"github.com/matzehuels/forceweave/pkg/graph"
)

// SliderMax is the upper end of the time slider.
const SliderMax = 50

// Predicate accepts or rejects one field value.
type Predicate func(v any) bool

// Spec maps node fields to predicates.
type Spec map[graph.Field]Predicate

// Matches reports whether n satisfies every predicate in s.
func (s Spec) Matches(n *graph.Node) bool {
	if n == nil {
		return false
	}
	for field, pred := range s {
		if pred == nil {
			continue
		}
		v, ok := n.Value(field)
		if !ok || !pred(v) {
			return false
		}
	}
	return true
}

// And returns a spec requiring both s and o. Predicates on the same field
// are conjoined. Neither input is modified.
func (s Spec) And(o Spec) Spec {
	out := make(Spec, len(s)+len(o))
	for f, p := range s {
		out[f] = p
	}
	for f, p := range o {
		if prev, ok := out[f]; ok && prev != nil && p != nil {
			out[f] = both(prev, p)
			continue
		}
		if p != nil {
			out[f] = p
		}
	}
	return out
}

// Fields returns the constrained fields in sorted order.
func (s Spec) Fields() []graph.Field {
	out := make([]graph.Field, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

func both(a, b Predicate) Predicate {
	return func(v any) bool { return a(v) && b(v) }
}

// CategoryIn accepts category values in cs.
func CategoryIn(cs ...graph.Category) Predicate {
	set := NewSelection(cs...)
	return func(v any) bool {
		c, ok := v.(graph.Category)
		return ok && set.Has(c)
	}
}

// CreatedAtOrBefore accepts timestamps no later than t.
func CreatedAtOrBefore(t time.Time) Predicate {
	return func(v any) bool {
		ts, ok := v.(time.Time)
		return ok && !ts.After(t)
	}
}

// Compute intersects the categories mode admits with the user's selection
// and returns the resulting category spec. An unknown mode imposes no
// category restriction of its own; the selection still applies.
func Compute(mode Mode, selected Selection) Spec {
	var allowed []graph.Category
	if mode.Valid() {
		for _, c := range mode.Categories() {
			if selected.Has(c) {
				allowed = append(allowed, c)
			}
		}
	} else {
		allowed = selected.Slice()
	}
	return Spec{graph.FieldCategory: CategoryIn(allowed...)}
}

// WithCreatedBefore returns spec composed with createdAt ≤ threshold.
func WithCreatedBefore(spec Spec, threshold time.Time) Spec {
	return spec.And(Spec{graph.FieldCreatedAt: CreatedAtOrBefore(threshold)})
}

// TimeThreshold maps a slider position in [0, sliderMax] linearly onto the span
// between the earliest and latest createdAt in nodes. Values outside the
// slider range are clamped. It returns false when no node carries a
// timestamp.
func TimeThreshold(nodes []*graph.Node, value, sliderMax float64) (time.Time, bool) {
	var lo, hi time.Time
	for _, n := range nodes {
		if n == nil || n.CreatedAt.IsZero() {
			continue
		}
		if lo.IsZero() || n.CreatedAt.Before(lo) {
			lo = n.CreatedAt
		}
		if hi.IsZero() || n.CreatedAt.After(hi) {
			hi = n.CreatedAt
		}
	}
	if lo.IsZero() {
		return time.Time{}, false
	}
	if sliderMax <= 0 {
		return hi, true
	}
	frac := max(0, min(1, value/sliderMax))
	return lo.Add(time.Duration(frac * float64(hi.Sub(lo)))), true
}

// Apply keeps the nodes that satisfy spec and the links whose endpoints
// are both kept. Raw-id and resolved endpoints are treated alike. The kept
// nodes and links are the same objects as in d.
func Apply(d graph.Data, spec Spec) graph.Data {
	out := graph.Data{
		Nodes: make([]*graph.Node, 0, len(d.Nodes)),
		Links: make([]*graph.Link, 0, len(d.Links)),
	}
	kept := make(map[string]struct{}, len(d.Nodes))
	for _, n := range d.Nodes {
		if spec.Matches(n) {
			out.Nodes = append(out.Nodes, n)
			kept[n.ID] = struct{}{}
		}
	}
	for _, l := range d.Links {
		if l == nil {
			continue
		}
		_, okS := kept[l.Source.ID()]
		_, okT := kept[l.Target.ID()]
		if okS && okT {
			out.Links = append(out.Links, l)
		}
	}
	return out
}
