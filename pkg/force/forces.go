package force

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/forceweave/pkg/graph"
)

// =============================================================================
// Center
// =============================================================================

// Center translates nodes so that their mean position moves toward (X, Y).
// It changes positions directly and leaves velocities alone.
type Center struct {
	X, Y     float64
	Strength float64

	nodes []*graph.Node
}

// NewCenter returns a centering force at (x, y) with strength 1.
func NewCenter(x, y float64) *Center {
	return &Center{X: x, Y: y, Strength: 1}
}

func (c *Center) Initialize(nodes []*graph.Node, _ *rand.Rand) { c.nodes = nodes }

func (c *Center) Apply(float64) {
	if len(c.nodes) == 0 {
		return
	}
	var sx, sy float64
	for _, n := range c.nodes {
		sx += n.X
		sy += n.Y
	}
	k := float64(len(c.nodes))
	sx = (sx/k - c.X) * c.Strength
	sy = (sy/k - c.Y) * c.Strength
	for _, n := range c.nodes {
		n.X -= sx
		n.Y -= sy
	}
}

// =============================================================================
// ManyBody
// =============================================================================

// ManyBody applies a mutual charge between every pair of nodes. Negative
// strength repels. Pairs farther apart than DistanceMax are ignored and
// pairs closer than DistanceMin are softened.
type ManyBody struct {
	Strength    float64
	DistanceMin float64
	DistanceMax float64
	Theta       float64

	nodes     []*graph.Node
	particles []barneshut.Particle2
	rnd       *rand.Rand
}

// NewManyBody returns a repulsive charge with strength -30.
func NewManyBody() *ManyBody {
	return &ManyBody{Strength: -30, DistanceMin: 1, DistanceMax: math.Inf(1), Theta: 0.9}
}

// body adapts a node to the Barnes-Hut plane. Every body has unit mass;
// the charge strength is applied in the force function.
type body struct{ n *graph.Node }

func (b *body) Coord2() r2.Vec { return r2.Vec{X: b.n.X, Y: b.n.Y} }
func (b *body) Mass() float64  { return 1 }

func (m *ManyBody) Initialize(nodes []*graph.Node, rnd *rand.Rand) {
	m.nodes, m.rnd = nodes, rnd
	m.particles = make([]barneshut.Particle2, len(nodes))
	for i, n := range nodes {
		m.particles[i] = &body{n: n}
	}
}

func (m *ManyBody) Apply(alpha float64) {
	if len(m.particles) < 2 || m.Strength == 0 {
		return
	}
	min2 := m.DistanceMin * m.DistanceMin
	max2 := m.DistanceMax * m.DistanceMax
	charge := func(p1, p2 barneshut.Particle2, _, m2 float64, v r2.Vec) r2.Vec {
		if p2 != nil && p2 == p1 {
			return r2.Vec{}
		}
		l := v.X*v.X + v.Y*v.Y
		if l >= max2 {
			return r2.Vec{}
		}
		if v.X == 0 {
			v.X = jiggle(m.rnd)
			l += v.X * v.X
		}
		if v.Y == 0 {
			v.Y = jiggle(m.rnd)
			l += v.Y * v.Y
		}
		if l < min2 {
			l = math.Sqrt(min2 * l)
		}
		return r2.Scale(m.Strength*m2*alpha/l, v)
	}

	plane, err := barneshut.NewPlane(m.particles)
	theta := m.Theta
	if err != nil {
		// Coordinates too close to subdivide; sum every pair exactly.
		plane = &barneshut.Plane{Particles: m.particles}
		theta = 0
	}
	dv := make([]r2.Vec, len(m.particles))
	for i, p := range m.particles {
		dv[i] = plane.ForceOn(p, theta, charge)
	}
	for i, n := range m.nodes {
		n.VX += dv[i].X
		n.VY += dv[i].Y
	}
}

// =============================================================================
// Collide
// =============================================================================

// Collide treats nodes as circles and pushes overlapping pairs apart.
type Collide struct {
	Radius     func(*graph.Node) float64
	Strength   float64
	Iterations int

	nodes []*graph.Node
	radii []float64
	rnd   *rand.Rand
}

// NewCollide returns a collision force with a fixed radius.
func NewCollide(radius float64) *Collide {
	return &Collide{Radius: ConstantRadius(radius), Strength: 1, Iterations: 1}
}

// ConstantRadius returns a radius accessor that ignores the node.
func ConstantRadius(r float64) func(*graph.Node) float64 {
	return func(*graph.Node) float64 { return r }
}

func (c *Collide) Initialize(nodes []*graph.Node, rnd *rand.Rand) {
	c.nodes, c.rnd = nodes, rnd
	c.radii = make([]float64, len(nodes))
	if c.Radius == nil {
		return
	}
	for i, n := range nodes {
		c.radii[i] = c.Radius(n)
	}
}

// Refresh recomputes radii after Radius changes.
func (c *Collide) Refresh() { c.Initialize(c.nodes, c.rnd) }

func (c *Collide) Apply(float64) {
	if len(c.nodes) < 2 || c.Strength == 0 {
		return
	}
	var maxR float64
	for _, r := range c.radii {
		maxR = max(maxR, r)
	}
	for range c.Iterations {
		pts := make(collidePoints, len(c.nodes))
		for i, n := range c.nodes {
			pts[i] = collidePoint{x: n.X + n.VX, y: n.Y + n.VY, i: i}
		}
		tree := kdtree.New(pts, false)

		for i, ni := range c.nodes {
			ri := c.radii[i]
			ri2 := ri * ri
			xi, yi := ni.X+ni.VX, ni.Y+ni.VY
			reach := ri + maxR
			keep := kdtree.NewDistKeeper(reach * reach)
			tree.NearestSet(keep, collidePoint{x: xi, y: yi, i: -1})

			for _, cd := range keep.Heap {
				if cd.Comparable == nil {
					continue
				}
				j := cd.Comparable.(collidePoint).i
				if j <= i {
					continue
				}
				nj := c.nodes[j]
				rj := c.radii[j]
				r := ri + rj
				x := xi - nj.X - nj.VX
				y := yi - nj.Y - nj.VY
				l := x*x + y*y
				if l >= r*r {
					continue
				}
				if x == 0 {
					x = jiggle(c.rnd)
					l += x * x
				}
				if y == 0 {
					y = jiggle(c.rnd)
					l += y * y
				}
				l = math.Sqrt(l)
				l = (r - l) / l * c.Strength
				x, y = x*l, y*l
				rj2 := rj * rj
				w := rj2 / (ri2 + rj2)
				ni.VX += x * w
				ni.VY += y * w
				nj.VX -= x * (1 - w)
				nj.VY -= y * (1 - w)
			}
		}
	}
}

type collidePoint struct {
	x, y float64
	i    int
}

func (p collidePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(collidePoint)
	if d == 0 {
		return p.x - q.x
	}
	return p.y - q.y
}

func (p collidePoint) Dims() int { return 2 }

func (p collidePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(collidePoint)
	dx, dy := p.x-q.x, p.y-q.y
	return dx*dx + dy*dy
}

type collidePoints []collidePoint

func (p collidePoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p collidePoints) Len() int                              { return len(p) }
func (p collidePoints) Pivot(d kdtree.Dim) int                { return collidePlane{Dim: d, collidePoints: p}.Pivot() }
func (p collidePoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

type collidePlane struct {
	kdtree.Dim
	collidePoints
}

func (p collidePlane) Less(i, j int) bool {
	if p.Dim == 0 {
		return p.collidePoints[i].x < p.collidePoints[j].x
	}
	return p.collidePoints[i].y < p.collidePoints[j].y
}

func (p collidePlane) Swap(i, j int) {
	p.collidePoints[i], p.collidePoints[j] = p.collidePoints[j], p.collidePoints[i]
}

func (p collidePlane) Slice(start, end int) kdtree.SortSlicer {
	p.collidePoints = p.collidePoints[start:end]
	return p
}

func (p collidePlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfRandoms(p, 100)) }

// =============================================================================
// Link
// =============================================================================

// Link pulls the endpoints of each link toward Distance apart. Links whose
// endpoints are not among the simulated nodes are skipped.
type Link struct {
	Distance   float64
	Iterations int

	links      []*graph.Link
	nodes      []*graph.Node
	springs    []spring
	unresolved int
	rnd        *rand.Rand
}

type spring struct {
	source, target *graph.Node
	strength, bias float64
}

// NewLink returns a link force over links with distance 30.
func NewLink(links []*graph.Link) *Link {
	return &Link{Distance: 30, Iterations: 1, links: links}
}

// Links returns the bound links.
func (f *Link) Links() []*graph.Link { return f.links }

// SetLinks rebinds the force to links.
func (f *Link) SetLinks(links []*graph.Link) {
	f.links = links
	if f.rnd != nil {
		f.Initialize(f.nodes, f.rnd)
	}
}

// Unresolved returns how many links were skipped at the last binding.
func (f *Link) Unresolved() int { return f.unresolved }

func (f *Link) Initialize(nodes []*graph.Node, rnd *rand.Rand) {
	f.nodes, f.rnd = nodes, rnd
	f.unresolved = 0
	f.springs = f.springs[:0]

	index := make(map[string]*graph.Node, len(nodes))
	for _, n := range nodes {
		index[n.ID] = n
	}
	count := make(map[*graph.Node]int, len(nodes))
	for i, l := range f.links {
		if l == nil || !l.Resolve(index) {
			f.unresolved++
			continue
		}
		l.Index = i
		s, t := l.Source.Node(), l.Target.Node()
		count[s]++
		count[t]++
		f.springs = append(f.springs, spring{source: s, target: t})
	}
	for i := range f.springs {
		cs, ct := float64(count[f.springs[i].source]), float64(count[f.springs[i].target])
		f.springs[i].strength = 1 / min(cs, ct)
		f.springs[i].bias = cs / (cs + ct)
	}
}

func (f *Link) Apply(alpha float64) {
	for range f.Iterations {
		for _, s := range f.springs {
			x := s.target.X + s.target.VX - s.source.X - s.source.VX
			y := s.target.Y + s.target.VY - s.source.Y - s.source.VY
			if x == 0 {
				x = jiggle(f.rnd)
			}
			if y == 0 {
				y = jiggle(f.rnd)
			}
			l := math.Sqrt(x*x + y*y)
			l = (l - f.Distance) / l * alpha * s.strength
			x, y = x*l, y*l
			s.target.VX -= x * s.bias
			s.target.VY -= y * s.bias
			s.source.VX += x * (1 - s.bias)
			s.source.VY += y * (1 - s.bias)
		}
	}
}

// =============================================================================
// PositionX / PositionY
// =============================================================================

// PositionX pulls each node's x toward Target(node).
type PositionX struct {
	Target   func(*graph.Node) float64
	Strength float64

	nodes []*graph.Node
}

// NewPositionX returns a positioning force toward a fixed x with strength 0.1.
func NewPositionX(x float64) *PositionX {
	return &PositionX{Target: func(*graph.Node) float64 { return x }, Strength: 0.1}
}

func (p *PositionX) Initialize(nodes []*graph.Node, _ *rand.Rand) { p.nodes = nodes }

func (p *PositionX) Apply(alpha float64) {
	if p.Target == nil {
		return
	}
	for _, n := range p.nodes {
		n.VX += (p.Target(n) - n.X) * p.Strength * alpha
	}
}

// PositionY pulls each node's y toward Target(node).
type PositionY struct {
	Target   func(*graph.Node) float64
	Strength float64

	nodes []*graph.Node
}

// NewPositionY returns a positioning force toward a fixed y with strength 0.1.
func NewPositionY(y float64) *PositionY {
	return &PositionY{Target: func(*graph.Node) float64 { return y }, Strength: 0.1}
}

func (p *PositionY) Initialize(nodes []*graph.Node, _ *rand.Rand) { p.nodes = nodes }

func (p *PositionY) Apply(alpha float64) {
	if p.Target == nil {
		return
	}
	for _, n := range p.nodes {
		n.VY += (p.Target(n) - n.Y) * p.Strength * alpha
	}
}
