package filter

import (
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/matzehuels/forceweave/pkg/graph"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"project", ModeProject, false},
		{"projeto", ModeProject, false},
		{"usuário", ModeUser, false},
		{"Usuario", ModeUser, false},
		{"indicadores", ModeIndicators, false},
		{" beeswarm ", ModeBeeswarm, false},
		{"swarm", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestModeMembership(t *testing.T) {
	tests := []struct {
		mode  Mode
		allow []graph.Category
		deny  []graph.Category
	}{
		{ModeProject, []graph.Category{"project", "map", "agreement"}, []graph.Category{"user", "users"}},
		{ModeUser, []graph.Category{"comment", "user", "users"}, []graph.Category{"project", "question"}},
		{ModeIndicators, graph.Categories, nil},
		{ModeBeeswarm, []graph.Category{"project", "reply"}, []graph.Category{"agreement", "user"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			for _, c := range tt.allow {
				if !tt.mode.Allows(c) {
					t.Errorf("%s should allow %s", tt.mode, c)
				}
			}
			for _, c := range tt.deny {
				if tt.mode.Allows(c) {
					t.Errorf("%s should not allow %s", tt.mode, c)
				}
			}
		})
	}
	if Mode("bogus").Categories() != nil {
		t.Error("unknown mode should admit nothing")
	}
}

func TestSelection(t *testing.T) {
	s := AllCategories()
	if len(s.Slice()) != len(graph.Categories) {
		t.Fatalf("AllCategories() = %v", s.Slice())
	}
	if s.Toggle(graph.CategoryUser) {
		t.Error("toggling a selected category should turn it off")
	}
	if s.Has(graph.CategoryUser) {
		t.Error("user should be off")
	}
	if !s.Toggle(graph.CategoryUser) {
		t.Error("toggling again should turn it on")
	}

	parsed, err := ParseSelection([]string{"reply", " map"})
	if err != nil {
		t.Fatalf("ParseSelection() error = %v", err)
	}
	if got := parsed.Slice(); len(got) != 2 || got[0] != graph.CategoryMap || got[1] != graph.CategoryReply {
		t.Errorf("Slice() = %v, want canonical order [map reply]", got)
	}
	if _, err := ParseSelection([]string{"robot"}); err == nil {
		t.Error("unknown category should fail")
	}
}

func TestComputeIntersectsSelection(t *testing.T) {
	spec := Compute(ModeProject, NewSelection(graph.CategoryProject, graph.CategoryUser, graph.CategoryReply))
	cases := map[graph.Category]bool{
		graph.CategoryProject: true,
		graph.CategoryReply:   true,
		graph.CategoryUser:    false, // selected but not allowed by the mode
		graph.CategoryMap:     false, // allowed by the mode but not selected
	}
	for c, want := range cases {
		if got := spec.Matches(graph.NewNode("n", c)); got != want {
			t.Errorf("category %s: Matches() = %v, want %v", c, got, want)
		}
	}
}

func TestMatchesFailsClosed(t *testing.T) {
	spec := WithCreatedBefore(Compute(ModeIndicators, AllCategories()), time.Now())
	n := graph.NewNode("a", graph.CategoryProject)
	if spec.Matches(n) {
		t.Error("node without createdAt must be rejected by a createdAt predicate")
	}
	n.CreatedAt = time.Now().Add(-time.Hour)
	if !spec.Matches(n) {
		t.Error("node satisfying both predicates should pass")
	}
	if (Spec{}).Matches(nil) {
		t.Error("nil node never matches")
	}
	if !(Spec{}).Matches(graph.NewNode("x", "")) {
		t.Error("empty spec leaves every field unconstrained")
	}
}

func TestTimeThreshold(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	nodes := []*graph.Node{
		{ID: "a", CreatedAt: base},
		{ID: "b", CreatedAt: base.Add(100 * time.Hour)},
		{ID: "c"},
	}
	tests := []struct {
		value float64
		want  time.Time
	}{
		{0, base},
		{25, base.Add(50 * time.Hour)},
		{50, base.Add(100 * time.Hour)},
		{80, base.Add(100 * time.Hour)},
		{-3, base},
	}
	for _, tt := range tests {
		got, ok := TimeThreshold(nodes, tt.value, SliderMax)
		if !ok {
			t.Fatalf("TimeThreshold(%v) found no timestamps", tt.value)
		}
		if !got.Equal(tt.want) {
			t.Errorf("TimeThreshold(%v) = %v, want %v", tt.value, got, tt.want)
		}
	}
	if _, ok := TimeThreshold([]*graph.Node{{ID: "x"}}, 10, SliderMax); ok {
		t.Error("no timestamps should report false")
	}
}

func TestApplyProjectModeExcludesUsers(t *testing.T) {
	d := graph.Data{
		Nodes: []*graph.Node{graph.NewNode("a", graph.CategoryProject), graph.NewNode("b", graph.CategoryUser)},
		Links: []*graph.Link{graph.NewLink("a", "b")},
	}
	got := Apply(d, Compute(ModeProject, AllCategories()))

	if len(got.Nodes) != 1 || got.Nodes[0].ID != "a" {
		t.Errorf("nodes = %v, want only a", got.Nodes)
	}
	if len(got.Links) != 0 {
		t.Errorf("links = %d, the link to b must be dropped", len(got.Links))
	}
}

func TestApplyAcceptsResolvedEndpoints(t *testing.T) {
	d := graph.Data{
		Nodes: []*graph.Node{
			graph.NewNode("a", graph.CategoryComment),
			graph.NewNode("b", graph.CategoryReply),
			graph.NewNode("c", graph.CategoryUser),
		},
		Links: []*graph.Link{graph.NewLink("a", "b"), graph.NewLink("b", "c"), nil},
	}
	d.Links[0].Resolve(d.Index())

	got := Apply(d, Compute(ModeBeeswarm, AllCategories()))
	if len(got.Links) != 1 || got.Links[0] != d.Links[0] {
		t.Errorf("links = %v, want the resolved a-b link", got.Links)
	}
}

func genData(t *rapid.T) graph.Data {
	n := rapid.IntRange(0, 30).Draw(t, "nodes")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := graph.Data{}
	for i := 0; i < n; i++ {
		c := rapid.SampledFrom(append(graph.Categories, "")).Draw(t, fmt.Sprintf("cat%d", i))
		node := graph.NewNode(fmt.Sprintf("n%d", i), c)
		if rapid.Bool().Draw(t, fmt.Sprintf("ts%d", i)) {
			node.CreatedAt = base.Add(time.Duration(rapid.IntRange(0, 1000).Draw(t, fmt.Sprintf("h%d", i))) * time.Hour)
		}
		d.Nodes = append(d.Nodes, node)
	}
	if n == 0 {
		return d
	}
	m := rapid.IntRange(0, 60).Draw(t, "links")
	for i := 0; i < m; i++ {
		s := rapid.IntRange(0, n-1).Draw(t, fmt.Sprintf("s%d", i))
		tg := rapid.IntRange(0, n-1).Draw(t, fmt.Sprintf("t%d", i))
		d.Links = append(d.Links, graph.NewLink(fmt.Sprintf("n%d", s), fmt.Sprintf("n%d", tg)))
	}
	return d
}

func genSpec(t *rapid.T, label string) Spec {
	mode := rapid.SampledFrom(Modes).Draw(t, label+"mode")
	sel := NewSelection()
	for _, c := range graph.Categories {
		if rapid.Bool().Draw(t, label+string(c)) {
			sel[c] = struct{}{}
		}
	}
	spec := Compute(mode, sel)
	if rapid.Bool().Draw(t, label+"time") {
		cut := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(rapid.IntRange(0, 1000).Draw(t, label+"cut")) * time.Hour)
		spec = WithCreatedBefore(spec, cut)
	}
	return spec
}

func TestFilterCompositionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := genData(t)
		f1, f2 := genSpec(t, "f1"), genSpec(t, "f2")
		ab, ba := f1.And(f2), f2.And(f1)
		for _, n := range d.Nodes {
			want := f1.Matches(n) && f2.Matches(n)
			if ab.Matches(n) != want || ba.Matches(n) != want {
				t.Fatalf("node %s: F1∧F2=%v F2∧F1=%v, individually %v", n.ID, ab.Matches(n), ba.Matches(n), want)
			}
		}
	})
}

func TestLinkConsistencyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := genData(t)
		got := Apply(d, genSpec(t, "f"))
		ids := got.NodeIDs()
		for _, l := range got.Links {
			if _, ok := ids[l.Source.ID()]; !ok {
				t.Fatalf("dangling source %s", l.Source.ID())
			}
			if _, ok := ids[l.Target.ID()]; !ok {
				t.Fatalf("dangling target %s", l.Target.ID())
			}
		}
		// Every link with both endpoints kept must survive.
		want := 0
		for _, l := range d.Links {
			_, okS := ids[l.Source.ID()]
			_, okT := ids[l.Target.ID()]
			if okS && okT {
				want++
			}
		}
		if len(got.Links) != want {
			t.Fatalf("links = %d, want %d", len(got.Links), want)
		}
	})
}
