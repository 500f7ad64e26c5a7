package store

import (
	"fmt"
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/matzehuels/forceweave/pkg/graph"
)

func placed(id string, x, y float64) *graph.Node {
	n := graph.NewNode(id, graph.CategoryComment)
	n.X, n.Y, n.VX, n.VY = x, y, 0.5, -0.5
	return n
}

func TestSetData(t *testing.T) {
	s := New(graph.Data{Nodes: []*graph.Node{placed("a", 1, 1)}})
	next := graph.Data{Nodes: []*graph.Node{graph.NewNode("b", graph.CategoryUser)}}
	s.SetData(next)

	got := s.Data()
	if len(got.Nodes) != 1 || got.Nodes[0].ID != "b" {
		t.Fatalf("Data() = %+v, want replacement", got.Nodes)
	}
	if got.Nodes[0].Placed() {
		t.Error("SetData must not carry positions over")
	}
}

func TestMergeIncoming(t *testing.T) {
	prev := graph.Data{Nodes: []*graph.Node{placed("a", 10, 20), placed("gone", 5, 5), graph.NewNode("fresh-before", graph.CategoryMap)}}
	prev.Nodes[0].Index = 7
	s := New(prev)

	next := graph.Data{
		Nodes: []*graph.Node{
			graph.NewNode("a", graph.CategoryReply),
			graph.NewNode("new", graph.CategoryUser),
			graph.NewNode("fresh-before", graph.CategoryMap),
		},
		Links: []*graph.Link{graph.NewLink("new", "a")},
	}
	next.Nodes[0].Title = "updated"

	got := s.MergeIncoming(next)

	if len(got.Nodes) != 3 {
		t.Fatalf("nodes = %d, want 3 (absent ids dropped)", len(got.Nodes))
	}
	a := got.Nodes[0]
	if a.X != 10 || a.Y != 20 || a.VX != 0.5 || a.VY != -0.5 || a.Index != 7 {
		t.Errorf("kinematic state not carried over: %+v", a)
	}
	if a.Title != "updated" || a.Category != graph.CategoryReply {
		t.Error("non-kinematic fields must come from the incoming node")
	}
	if got.Nodes[1].Placed() {
		t.Error("new node should stay unplaced")
	}
	if got.Nodes[2].Placed() {
		t.Error("an unplaced previous node must not overwrite with NaN-derived state")
	}
	for _, n := range got.Nodes {
		if n.ID == "gone" {
			t.Error("node absent from the incoming data should be dropped")
		}
	}
	if len(got.Links) != 1 {
		t.Errorf("links = %d, want 1", len(got.Links))
	}
	if s.Data().Nodes[0] != a {
		t.Error("merged data should become canonical")
	}
}

func TestMergeIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 40).Draw(t, "n")
		prev := graph.Data{}
		for i := 0; i < n; i++ {
			x := rapid.Float64Range(-500, 500).Draw(t, fmt.Sprintf("x%d", i))
			y := rapid.Float64Range(-500, 500).Draw(t, fmt.Sprintf("y%d", i))
			prev.Nodes = append(prev.Nodes, placed(fmt.Sprintf("n%d", i), x, y))
		}
		incoming := func() graph.Data {
			d := graph.Data{}
			for _, p := range prev.Nodes {
				d.Nodes = append(d.Nodes, graph.NewNode(p.ID, p.Category))
			}
			return d
		}

		once := New(prev)
		onceOut := once.MergeIncoming(incoming())

		twice := New(prev)
		twice.MergeIncoming(incoming())
		twiceOut := twice.MergeIncoming(incoming())

		for i := range onceOut.Nodes {
			a, b := onceOut.Nodes[i], twiceOut.Nodes[i]
			if a.X != b.X || a.Y != b.Y || a.VX != b.VX || a.VY != b.VY {
				t.Fatalf("node %s: single merge (%v,%v) != double merge (%v,%v)", a.ID, a.X, a.Y, b.X, b.Y)
			}
			if math.IsNaN(a.X) {
				t.Fatalf("node %s lost its position", a.ID)
			}
		}
	})
}

func TestMergeSameData(t *testing.T) {
	d := graph.Data{Nodes: []*graph.Node{placed("a", 1, 2)}}
	s := New(d)
	got := s.MergeIncoming(d)
	got = s.MergeIncoming(got)
	if got.Nodes[0].X != 1 || got.Nodes[0].Y != 2 {
		t.Errorf("merging a dataset into itself changed positions: %+v", got.Nodes[0])
	}
}

func TestMergeCarriesLinkIndex(t *testing.T) {
	kept := graph.NewLink("a", "b")
	kept.Index = 4
	reversed := graph.NewLink("b", "a")
	reversed.Index = 9
	prev := graph.Data{
		Nodes: []*graph.Node{placed("a", 0, 0), placed("b", 1, 1)},
		Links: []*graph.Link{kept, reversed, nil},
	}
	next := graph.Data{
		Nodes: []*graph.Node{graph.NewNode("a", graph.CategoryUser), graph.NewNode("b", graph.CategoryComment)},
		Links: []*graph.Link{graph.NewLink("b", "a"), graph.NewLink("a", "c"), graph.NewLink("a", "b"), nil},
	}

	got := Merge(prev, next)
	for i, want := range []int{9, 0, 4} {
		if got.Links[i].Index != want {
			t.Errorf("link %d index = %d, want %d", i, got.Links[i].Index, want)
		}
	}
}
