package layout

import (
	"math"
	"time"
	"unicode/utf8"

	"github.com/matzehuels/forceweave/pkg/force"
	"github.com/matzehuels/forceweave/pkg/graph"
)

// =============================================================================
// Beeswarm
// =============================================================================

// Beeswarm layout constants.
const (
	SwarmTicks     = 300
	SwarmMinRadius = 3.0
	SwarmMaxRadius = 15.0
	SwarmPadding   = 2.0
	SwarmMargin    = 20.0
)

// Bounds is an axis-aligned box.
type Bounds struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// Fit returns the scale and offsets that center b inside a width×height
// viewport.
func (b Bounds) Fit(width, height float64) (scale, dx, dy float64) {
	bw, bh := b.MaxX-b.MinX, b.MaxY-b.MinY
	if bw <= 0 || bh <= 0 {
		return 1, 0, 0
	}
	scale = math.Min(width/bw, height/bh)
	dx = (width-bw*scale)/2 - b.MinX*scale
	dy = (height-bh*scale)/2 - b.MinY*scale
	return scale, dx, dy
}

// Swarm is the result of a beeswarm layout.
type Swarm struct {
	// Radii holds the circle radius per node id.
	Radii  map[string]float64 `json:"radii"`
	Bounds Bounds             `json:"bounds"`
	Start  time.Time          `json:"start"`
	End    time.Time          `json:"end"`
}

// Beeswarm lays nodes out along a time axis: x follows CreatedAt scaled
// onto [0, width], y is pulled to the middle and collisions keep circles
// apart. Circle radii grow with title length. Nodes without a timestamp are
// placed at the start of the axis. The layout runs headless for a fixed
// number of ticks and mutates the nodes.
func Beeswarm(nodes []*graph.Node, width, height float64) Swarm {
	s := Swarm{Radii: make(map[string]float64, len(nodes))}
	if len(nodes) == 0 {
		return s
	}

	s.Start, s.End = timeExtent(nodes)
	x := timeScale(s.Start, s.End, width)
	radius := titleScale(nodes)

	for _, n := range nodes {
		s.Radii[n.ID] = radius(n)
	}

	sim := force.New(nodes)
	fx := force.NewPositionX(0)
	fx.Target = func(n *graph.Node) float64 { return x(n.CreatedAt) }
	fx.Strength = 1
	sim.SetForce(ForceX, fx)
	sim.SetForce(ForceY, force.NewPositionY(height/2))
	collide := force.NewCollide(0)
	collide.Radius = func(n *graph.Node) float64 { return radius(n) + SwarmPadding }
	collide.Refresh()
	sim.SetForce(ForceCollide, collide)
	sim.Tick(SwarmTicks)

	s.Bounds = Bounds{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, n := range nodes {
		r := s.Radii[n.ID]
		s.Bounds.MinX = math.Min(s.Bounds.MinX, n.X-r)
		s.Bounds.MaxX = math.Max(s.Bounds.MaxX, n.X+r)
		s.Bounds.MinY = math.Min(s.Bounds.MinY, n.Y-r)
		s.Bounds.MaxY = math.Max(s.Bounds.MaxY, n.Y+r)
	}
	s.Bounds.MinX -= SwarmMargin
	s.Bounds.MinY -= SwarmMargin
	s.Bounds.MaxX += SwarmMargin
	s.Bounds.MaxY += SwarmMargin
	return s
}

func timeExtent(nodes []*graph.Node) (start, end time.Time) {
	for _, n := range nodes {
		t := n.CreatedAt
		if t.IsZero() {
			continue
		}
		if start.IsZero() || t.Before(start) {
			start = t
		}
		if end.IsZero() || t.After(end) {
			end = t
		}
	}
	return start, end
}

// timeScale maps [start, end] linearly onto [0, width]. A degenerate
// domain maps to the middle.
func timeScale(start, end time.Time, width float64) func(time.Time) float64 {
	span := end.Sub(start)
	return func(t time.Time) float64 {
		if t.IsZero() {
			return 0
		}
		if span <= 0 {
			return width / 2
		}
		return float64(t.Sub(start)) / float64(span) * width
	}
}

// titleScale maps title length linearly onto [SwarmMinRadius,
// SwarmMaxRadius] over the observed length range.
func titleScale(nodes []*graph.Node) func(*graph.Node) float64 {
	lo, hi := math.MaxInt, 0
	for _, n := range nodes {
		l := utf8.RuneCountInString(n.Title)
		lo, hi = min(lo, l), max(hi, l)
	}
	return func(n *graph.Node) float64 {
		if hi == lo {
			return (SwarmMinRadius + SwarmMaxRadius) / 2
		}
		l := utf8.RuneCountInString(n.Title)
		t := float64(l-lo) / float64(hi-lo)
		t = math.Max(0, math.Min(1, t))
		return SwarmMinRadius + t*(SwarmMaxRadius-SwarmMinRadius)
	}
}
