package layout

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/forceweave/pkg/force"
	"github.com/matzehuels/forceweave/pkg/graph"
)

func TestParametersFor(t *testing.T) {
	tests := []struct {
		n            int
		strength     float64
		distanceMax  float64
		radius       float64
		linkDistance float64
		linkIters    int
	}{
		{10, -30, 387.8, 10, 35, 5},
		{200, -30, 387.8, 10, 35, 5},
		{201, -20, 300, 10, 35, 2},
		{500, -20, 300, 10, 35, 2},
		{501, -10, 200, 8, 30, 1},
		{1001, -8, 180, 7, 25, 1},
		{2000, -8, 180, 7, 25, 1},
		{2001, -5, 150, 5, 20, 1},
	}
	for _, tt := range tests {
		p := ParametersFor(tt.n)
		if p.Charge.Strength != tt.strength || p.Charge.DistanceMax != tt.distanceMax {
			t.Errorf("ParametersFor(%d) charge = %+v", tt.n, p.Charge)
		}
		if p.Collide.Radius != tt.radius {
			t.Errorf("ParametersFor(%d) collide radius = %v, want %v", tt.n, p.Collide.Radius, tt.radius)
		}
		if p.Link.Distance != tt.linkDistance || p.Link.Iterations != tt.linkIters {
			t.Errorf("ParametersFor(%d) link = %+v", tt.n, p.Link)
		}
	}
}

func TestParametersMonotonic(t *testing.T) {
	sizes := []int{100, 300, 700, 1500, 3000}
	for i := 1; i < len(sizes); i++ {
		prev, cur := ParametersFor(sizes[i-1]), ParametersFor(sizes[i])
		if -cur.Charge.Strength > -prev.Charge.Strength {
			t.Errorf("repulsion grows from %d to %d nodes", sizes[i-1], sizes[i])
		}
		if cur.Charge.DistanceMax > prev.Charge.DistanceMax || cur.Link.Distance > prev.Link.Distance {
			t.Errorf("distances grow from %d to %d nodes", sizes[i-1], sizes[i])
		}
		if cur.Link.Iterations > prev.Link.Iterations || cur.Collide.Iterations > prev.Collide.Iterations {
			t.Errorf("iterations grow from %d to %d nodes", sizes[i-1], sizes[i])
		}
	}
}

func TestPrecalcIterations(t *testing.T) {
	tests := []struct{ n, want int }{
		{0, 100}, {100, 100}, {101, 150}, {200, 150}, {201, 200}, {500, 200}, {501, 300}, {5000, 300},
	}
	for _, tt := range tests {
		if got := PrecalcIterations(tt.n); got != tt.want {
			t.Errorf("PrecalcIterations(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestApply(t *testing.T) {
	nodes := []*graph.Node{graph.NewNode("a", graph.CategoryUser), graph.NewNode("b", graph.CategoryUser)}
	links := []*graph.Link{graph.NewLink("a", "b")}
	sim := force.New(nodes)

	p := DefaultParameters()
	p.Center = CenterParams{X: 0.25, Y: 0.75}
	p.ForceX.Enabled = true
	p.Collide.Enabled = false
	install(sim, p, links, 400, 200)

	center, _ := lookup[*force.Center](sim, ForceCenter)
	if center.X != 100 || center.Y != 150 {
		t.Errorf("center = (%v, %v), want (100, 150)", center.X, center.Y)
	}
	collide, _ := lookup[*force.Collide](sim, ForceCollide)
	if collide.Strength != 0 || collide.Iterations != 0 {
		t.Errorf("disabled collide = %v/%d, want zero", collide.Strength, collide.Iterations)
	}
	fx, _ := lookup[*force.PositionX](sim, ForceX)
	if fx.Strength != 0.1 || fx.Target(nodes[0]) != 200 {
		t.Errorf("forceX = %v toward %v", fx.Strength, fx.Target(nodes[0]))
	}
	fy, _ := lookup[*force.PositionY](sim, ForceY)
	if fy.Strength != 0 {
		t.Errorf("disabled forceY strength = %v", fy.Strength)
	}
	link, _ := lookup[*force.Link](sim, ForceLink)
	if len(link.Links()) != 1 || link.Iterations != 5 {
		t.Errorf("link force = %d links, %d iterations", len(link.Links()), link.Iterations)
	}

	p.Link.Enabled = false
	apply(sim, p, links, 400, 200, nil)
	if len(link.Links()) != 0 || link.Iterations != 0 {
		t.Error("disabled link force should be unbound")
	}
}

func TestApplyMissingForce(t *testing.T) {
	sim := force.New(nil)
	install(sim, DefaultParameters(), nil, 100, 100)
	sim.RemoveForce(ForceCharge)
	sim.RemoveForce(ForceLink)

	p := DefaultParameters()
	p.Center.X = 1
	apply(sim, p, nil, 100, 100, log.New(io.Discard))

	center, _ := lookup[*force.Center](sim, ForceCenter)
	if center.X != 100 {
		t.Errorf("remaining forces should still update, center.X = %v", center.X)
	}
	if _, ok := lookup[*force.ManyBody](sim, ForceCharge); ok {
		t.Error("removed force reappeared")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Idle, "idle"},
		{StabilityCheck, "stability_check"},
		{Interactive, "interactive"},
		{Stopped, "stopped"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
	if !StabilityCheck.Stabilizing() || Interactive.Stabilizing() {
		t.Error("only the stability check renders at the reduced cadence")
	}
}
