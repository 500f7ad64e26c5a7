package force

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/matzehuels/forceweave/pkg/graph"
)

// Simulation defaults.
const (
	DefaultAlphaMin      = 0.001
	DefaultVelocityDecay = 0.6

	initialRadius = 10
)

var (
	// DefaultAlphaDecay brings alpha from 1 to DefaultAlphaMin in 300 ticks.
	DefaultAlphaDecay = 1 - math.Pow(DefaultAlphaMin, 1.0/300)

	initialAngle = math.Pi * (3 - math.Sqrt(5))
)

// Force acts on the nodes of a simulation once per tick.
type Force interface {
	// Initialize binds the force to nodes. It is called whenever the
	// force is registered or the node set changes.
	Initialize(nodes []*graph.Node, rnd *rand.Rand)
	// Apply adjusts node velocities (or positions) for the given alpha.
	Apply(alpha float64)
}

type namedForce struct {
	name  string
	force Force
}

// Simulation advances node positions under a set of named forces.
//
// A Simulation is not safe for concurrent use.
type Simulation struct {
	nodes  []*graph.Node
	forces []namedForce
	rnd    *rand.Rand

	alpha         float64
	alphaMin      float64
	alphaDecay    float64
	alphaTarget   float64
	velocityDecay float64
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithSeed makes jiggle deterministic.
func WithSeed(seed uint64) Option {
	return func(s *Simulation) {
		s.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// New returns a simulation over nodes. Nil entries are dropped. Unplaced
// nodes are laid out on a phyllotaxis spiral and missing velocities are
// zeroed.
func New(nodes []*graph.Node, opts ...Option) *Simulation {
	s := &Simulation{
		alpha:         1,
		alphaMin:      DefaultAlphaMin,
		alphaDecay:    DefaultAlphaDecay,
		velocityDecay: DefaultVelocityDecay,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s.SetNodes(nodes)
	return s
}

// Nodes returns the simulated nodes.
func (s *Simulation) Nodes() []*graph.Node { return s.nodes }

// SetNodes replaces the node set and reinitializes every force.
func (s *Simulation) SetNodes(nodes []*graph.Node) {
	s.nodes = slices.DeleteFunc(slices.Clone(nodes), func(n *graph.Node) bool { return n == nil })
	s.initializeNodes()
	for _, f := range s.forces {
		f.force.Initialize(s.nodes, s.rnd)
	}
}

func (s *Simulation) initializeNodes() {
	for i, n := range s.nodes {
		n.Index = i
		if n.FX != nil {
			n.X = *n.FX
		}
		if n.FY != nil {
			n.Y = *n.FY
		}
		if math.IsNaN(n.X) || math.IsNaN(n.Y) {
			r := initialRadius * math.Sqrt(0.5+float64(i))
			a := float64(i) * initialAngle
			n.X, n.Y = r*math.Cos(a), r*math.Sin(a)
		}
		if math.IsNaN(n.VX) || math.IsNaN(n.VY) {
			n.VX, n.VY = 0, 0
		}
	}
}

// =============================================================================
// Forces
// =============================================================================

// SetForce registers f under name, replacing any force of that name in
// place. A nil f removes the force.
func (s *Simulation) SetForce(name string, f Force) {
	if f == nil {
		s.RemoveForce(name)
		return
	}
	f.Initialize(s.nodes, s.rnd)
	for i := range s.forces {
		if s.forces[i].name == name {
			s.forces[i].force = f
			return
		}
	}
	s.forces = append(s.forces, namedForce{name: name, force: f})
}

// Force returns the force registered under name.
func (s *Simulation) Force(name string) (Force, bool) {
	for _, f := range s.forces {
		if f.name == name {
			return f.force, true
		}
	}
	return nil, false
}

// RemoveForce unregisters name.
func (s *Simulation) RemoveForce(name string) {
	s.forces = slices.DeleteFunc(s.forces, func(f namedForce) bool { return f.name == name })
}

// ForceNames lists registered forces in application order.
func (s *Simulation) ForceNames() []string {
	out := make([]string, len(s.forces))
	for i, f := range s.forces {
		out[i] = f.name
	}
	return out
}

// =============================================================================
// Ticking
// =============================================================================

// Tick advances the simulation n times. Each tick moves alpha toward the
// target, applies every force in registration order and integrates
// velocities. Pinned coordinates are held fixed with zero velocity.
func (s *Simulation) Tick(n int) {
	for range n {
		s.alpha += (s.alphaTarget - s.alpha) * s.alphaDecay
		for _, f := range s.forces {
			f.force.Apply(s.alpha)
		}
		for _, node := range s.nodes {
			if node.FX == nil {
				node.VX *= s.velocityDecay
				node.X += node.VX
			} else {
				node.X, node.VX = *node.FX, 0
			}
			if node.FY == nil {
				node.VY *= s.velocityDecay
				node.Y += node.VY
			} else {
				node.Y, node.VY = *node.FY, 0
			}
		}
	}
}

// Alpha returns the current alpha.
func (s *Simulation) Alpha() float64 { return s.alpha }

// SetAlpha sets the current alpha.
func (s *Simulation) SetAlpha(a float64) { s.alpha = a }

// AlphaMin returns the threshold below which the simulation counts as cooled.
func (s *Simulation) AlphaMin() float64 { return s.alphaMin }

// SetAlphaMin sets the cooling threshold.
func (s *Simulation) SetAlphaMin(a float64) { s.alphaMin = a }

// AlphaDecay returns the per-tick decay rate.
func (s *Simulation) AlphaDecay() float64 { return s.alphaDecay }

// SetAlphaDecay sets the per-tick decay rate.
func (s *Simulation) SetAlphaDecay(d float64) { s.alphaDecay = d }

// AlphaTarget returns the value alpha converges to.
func (s *Simulation) AlphaTarget() float64 { return s.alphaTarget }

// SetAlphaTarget sets the value alpha converges to.
func (s *Simulation) SetAlphaTarget(t float64) { s.alphaTarget = t }

// VelocityDecay returns the velocity retention factor.
func (s *Simulation) VelocityDecay() float64 { return s.velocityDecay }

// SetVelocityDecay sets the velocity retention factor.
func (s *Simulation) SetVelocityDecay(d float64) { s.velocityDecay = d }

// Cooled reports whether alpha has fallen below alphaMin.
func (s *Simulation) Cooled() bool { return s.alpha < s.alphaMin }

// RMSSpeed returns the root-mean-square velocity magnitude of nodes.
func RMSSpeed(nodes []*graph.Node) float64 {
	var sum float64
	var n int
	for _, node := range nodes {
		if node == nil {
			continue
		}
		sum += node.VX*node.VX + node.VY*node.VY
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

// jiggle returns a tiny random offset used to separate coincident points.
func jiggle(rnd *rand.Rand) float64 {
	return (rnd.Float64() - 0.5) * 1e-6
}
