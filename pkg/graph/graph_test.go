package graph

import (
	"bytes"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestDecodeLenient(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantNodes int
		wantLinks int
		wantWarn  bool
	}{
		{
			name:      "well formed",
			input:     `{"nodes":[{"id":"a"},{"id":"b"}],"links":[{"source":"a","target":"b"}]}`,
			wantNodes: 2,
			wantLinks: 1,
		},
		{
			name:      "nodes not an array",
			input:     `{"nodes":{"id":"a"},"links":[]}`,
			wantNodes: 0,
			wantLinks: 0,
			wantWarn:  true,
		},
		{
			name:      "links null",
			input:     `{"nodes":[{"id":"a"}],"links":null}`,
			wantNodes: 1,
			wantLinks: 0,
			wantWarn:  true,
		},
		{
			name:      "links missing",
			input:     `{"nodes":[{"id":"a"}]}`,
			wantNodes: 1,
			wantLinks: 0,
			wantWarn:  true,
		},
		{
			name:      "null elements dropped",
			input:     `{"nodes":[{"id":"a"},null],"links":[null]}`,
			wantNodes: 1,
			wantLinks: 0,
			wantWarn:  true,
		},
		{
			name:      "undecodable element",
			input:     `{"nodes":[{"id":"a","createdAt":"yesterday"}],"links":[]}`,
			wantNodes: 0,
			wantLinks: 0,
			wantWarn:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			d, err := Decode(strings.NewReader(tt.input), log.New(&buf))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if len(d.Nodes) != tt.wantNodes {
				t.Errorf("nodes = %d, want %d", len(d.Nodes), tt.wantNodes)
			}
			if len(d.Links) != tt.wantLinks {
				t.Errorf("links = %d, want %d", len(d.Links), tt.wantLinks)
			}
			if d.Nodes == nil || d.Links == nil {
				t.Error("collections should be empty, not nil")
			}
			if gotWarn := buf.Len() > 0; gotWarn != tt.wantWarn {
				t.Errorf("warned = %v, want %v (log: %q)", gotWarn, tt.wantWarn, buf.String())
			}
		})
	}
}

func TestDecodeRejectsNonObject(t *testing.T) {
	for _, input := range []string{`[1,2]`, `not json`, ``} {
		if _, err := Decode(strings.NewReader(input), quietLogger()); err == nil {
			t.Errorf("Decode(%q) should fail", input)
		}
	}
}

func TestEndpointForms(t *testing.T) {
	input := `{"nodes":[{"id":"a"},{"id":"b"},{"id":"7"}],"links":[
		{"source":"a","target":"b"},
		{"source":{"id":"b","x":3},"target":{"id":"a"}},
		{"source":7,"target":"a"}
	]}`
	d, err := Unmarshal([]byte(input), quietLogger())
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	want := []Edge{{"a", "b"}, {"b", "a"}, {"7", "a"}}
	for i, l := range d.Links {
		if l.Source.ID() != want[i].Source || l.Target.ID() != want[i].Target {
			t.Errorf("link %d = %s->%s, want %s->%s", i, l.Source.ID(), l.Target.ID(), want[i].Source, want[i].Target)
		}
		if l.Source.IsResolved() {
			t.Errorf("link %d should decode unresolved", i)
		}
	}
}

func TestNodePositionsRoundTrip(t *testing.T) {
	placed := NewNode("a", CategoryProject)
	placed.X, placed.Y, placed.VX, placed.VY, placed.Index = 12.5, -3, 0.25, 0, 4
	unplaced := NewNode("b", CategoryUser)

	data, err := Marshal(Data{Nodes: []*Node{placed, unplaced}})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "NaN") {
		t.Fatalf("NaN leaked into JSON: %s", data)
	}

	got, err := Unmarshal(data, quietLogger())
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	a, b := got.Nodes[0], got.Nodes[1]
	if a.X != 12.5 || a.Y != -3 || a.VX != 0.25 || a.VY != 0 || a.Index != 4 {
		t.Errorf("placed node = %+v", a)
	}
	if b.Placed() || !math.IsNaN(b.VX) {
		t.Errorf("unplaced node should stay unplaced, got %+v", b)
	}
	if got.Links == nil || len(got.Links) != 0 {
		t.Errorf("links = %v, want empty", got.Links)
	}
}

func TestCreatedAtFormats(t *testing.T) {
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		raw  string
	}{
		{"rfc3339", `"2024-03-01T10:00:00Z"`},
		{"epoch millis", `1709287200000`},
		{"epoch millis string", `"1709287200000"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Node
			if err := n.UnmarshalJSON([]byte(`{"id":"a","createdAt":` + tt.raw + `}`)); err != nil {
				t.Fatalf("UnmarshalJSON() error = %v", err)
			}
			if !n.CreatedAt.Equal(want) {
				t.Errorf("CreatedAt = %v, want %v", n.CreatedAt, want)
			}
		})
	}
}

func TestGroupAlias(t *testing.T) {
	var n Node
	if err := n.UnmarshalJSON([]byte(`{"id":"a","group":"reply"}`)); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}
	if n.Category != CategoryReply {
		t.Errorf("Category = %q, want reply", n.Category)
	}
}

func TestNodeValue(t *testing.T) {
	n := NewNode("a", "")
	if _, ok := n.Value(FieldCategory); ok {
		t.Error("empty category should be absent")
	}
	if _, ok := n.Value(FieldCreatedAt); ok {
		t.Error("zero timestamp should be absent")
	}
	if _, ok := n.Value(Field("color")); ok {
		t.Error("unknown field should be absent")
	}
	n.Category = CategoryMap
	if v, ok := n.Value(FieldCategory); !ok || v != CategoryMap {
		t.Errorf("Value(category) = %v, %v", v, ok)
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range Categories {
		if got, err := ParseCategory(string(c)); err != nil || got != c {
			t.Errorf("ParseCategory(%q) = %q, %v", c, got, err)
		}
	}
	if _, err := ParseCategory("robot"); err == nil {
		t.Error("unknown category should fail")
	}
}

func TestLinkResolve(t *testing.T) {
	d := Data{
		Nodes: []*Node{NewNode("a", CategoryUser), NewNode("b", CategoryComment)},
		Links: []*Link{NewLink("a", "b"), NewLink("a", "zzz")},
	}
	idx := d.Index()
	if !d.Links[0].Resolve(idx) {
		t.Fatal("Resolve() should succeed for known ids")
	}
	if d.Links[0].Source.Node() != d.Nodes[0] || d.Links[0].Target.Node() != d.Nodes[1] {
		t.Error("endpoints should point at the node objects")
	}
	if d.Links[1].Resolve(idx) {
		t.Error("Resolve() should fail for unknown ids")
	}
	if d.Links[1].Source.IsResolved() {
		t.Error("failed Resolve() must leave the link untouched")
	}
}

func TestSanitize(t *testing.T) {
	a, b := NewNode("a", CategoryUser), NewNode("b", CategoryReply)
	d := Data{
		Nodes: []*Node{a, nil, b, NewNode("a", CategoryProject)},
		Links: []*Link{NewLink("a", "b"), nil, NewLink("b", "c")},
	}
	got, rep := d.Sanitize()
	want := Report{NilNodes: 1, DuplicateNodes: 1, NilLinks: 1, DanglingLinks: 1}
	if rep != want {
		t.Errorf("Report = %+v, want %+v", rep, want)
	}
	if len(got.Nodes) != 2 || got.Nodes[0] != a {
		t.Errorf("nodes = %v, first occurrence should win", got.Nodes)
	}
	if len(got.Links) != 1 {
		t.Errorf("links = %d, want 1", len(got.Links))
	}
	if _, rep := got.Sanitize(); !rep.Clean() {
		t.Error("sanitized data should be clean")
	}
}

func TestDataClone(t *testing.T) {
	d := Data{
		Nodes: []*Node{NewNode("a", CategoryUser), NewNode("b", CategoryReply)},
		Links: []*Link{NewLink("a", "b")},
	}
	d.Nodes[0].Pin(1, 2)
	d.Links[0].Resolve(d.Index())

	c := d.Clone()
	c.Nodes[0].X = 99
	*c.Nodes[0].FX = 50

	if d.Nodes[0].X == 99 || *d.Nodes[0].FX == 50 {
		t.Error("clone shares node state with the original")
	}
	if c.Links[0].Source.Node() != c.Nodes[0] {
		t.Error("cloned link should resolve to the cloned node")
	}
}

func TestValidate(t *testing.T) {
	ok := Data{Nodes: []*Node{NewNode("a", CategoryUser)}, Links: []*Link{NewLink("a", "a")}}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	bad := Data{Nodes: []*Node{NewNode("a", CategoryUser)}, Links: []*Link{NewLink("a", "b")}}
	if err := bad.Validate(); err == nil {
		t.Error("Validate() should report the dangling endpoint")
	}
}

func TestFrame(t *testing.T) {
	a := NewNode("a", CategoryUser)
	a.X, a.Y = 3, 4
	b := NewNode("b", CategoryReply)
	d := Data{Nodes: []*Node{a, b}, Links: []*Link{NewLink("a", "b")}}

	f := Snapshot(d)
	if f.Nodes[1].X != 0 || f.Nodes[1].Y != 0 {
		t.Errorf("unplaced node should snapshot at origin, got %+v", f.Nodes[1])
	}
	if f.Links[0] != (Edge{"a", "b"}) {
		t.Errorf("edge = %+v", f.Links[0])
	}

	a.X = 100
	if f.Nodes[0].X != 3 {
		t.Error("frame must not alias live nodes")
	}

	fresh := Data{Nodes: []*Node{NewNode("a", CategoryUser), NewNode("c", CategoryMap)}}
	if n := f.ApplyTo(fresh); n != 1 {
		t.Errorf("ApplyTo() updated %d nodes, want 1", n)
	}
	if fresh.Nodes[0].X != 3 || fresh.Nodes[0].Y != 4 {
		t.Errorf("applied node = %+v", fresh.Nodes[0])
	}

	minX, minY, maxX, maxY := f.Bounds()
	if minX != 0 || minY != 0 || maxX != 3 || maxY != 4 {
		t.Errorf("Bounds() = %v %v %v %v", minX, minY, maxX, maxY)
	}
}

func TestReadExampleDiscussion(t *testing.T) {
	d, err := ReadFile("../../examples/discussion.json", quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Nodes) != 16 || len(d.Links) != 17 {
		t.Errorf("got %d nodes, %d links; want 16, 17", len(d.Nodes), len(d.Links))
	}
	if _, report := d.Sanitize(); !report.Clean() {
		t.Errorf("example data should be clean: %+v", report)
	}
}
