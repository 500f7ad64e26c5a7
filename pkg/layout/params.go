package layout

import (
	"github.com/charmbracelet/log"

	"github.com/matzehuels/forceweave/pkg/errors"
	"github.com/matzehuels/forceweave/pkg/force"
	"github.com/matzehuels/forceweave/pkg/graph"
)

// =============================================================================
// Force Parameters
// =============================================================================

// Force names as registered on the simulation.
const (
	ForceCenter  = "center"
	ForceCharge  = "charge"
	ForceCollide = "collide"
	ForceX       = "x"
	ForceY       = "y"
	ForceLink    = "link"
)

// ForceNames lists the managed forces in application order.
var ForceNames = []string{ForceCenter, ForceCharge, ForceCollide, ForceX, ForceY, ForceLink}

// CenterParams places the centering force. X and Y are fractions of the
// viewport.
type CenterParams struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ChargeParams configures the many-body force.
type ChargeParams struct {
	Enabled     bool    `json:"enabled"`
	Strength    float64 `json:"strength"`
	DistanceMin float64 `json:"distanceMin"`
	DistanceMax float64 `json:"distanceMax"`
}

// CollideParams configures collision.
type CollideParams struct {
	Enabled    bool    `json:"enabled"`
	Strength   float64 `json:"strength"`
	Iterations int     `json:"iterations"`
	Radius     float64 `json:"radius"`
}

// AxisParams configures a positioning force. At is a fraction of the
// viewport.
type AxisParams struct {
	Enabled  bool    `json:"enabled"`
	Strength float64 `json:"strength"`
	At       float64 `json:"at"`
}

// LinkParams configures the link force.
type LinkParams struct {
	Enabled    bool    `json:"enabled"`
	Distance   float64 `json:"distance"`
	Iterations int     `json:"iterations"`
}

// ForceParameters is the tunable force configuration of a controller.
type ForceParameters struct {
	Center  CenterParams  `json:"center"`
	Charge  ChargeParams  `json:"charge"`
	Collide CollideParams `json:"collide"`
	ForceX  AxisParams    `json:"forceX"`
	ForceY  AxisParams    `json:"forceY"`
	Link    LinkParams    `json:"link"`
}

// DefaultParameters returns the parameters used for small graphs.
func DefaultParameters() ForceParameters {
	return ForceParameters{
		Center:  CenterParams{X: 0.5, Y: 0.5},
		Charge:  ChargeParams{Enabled: true, Strength: -30, DistanceMin: 1, DistanceMax: 387.8},
		Collide: CollideParams{Enabled: true, Strength: 0.01, Iterations: 1, Radius: 10},
		ForceX:  AxisParams{Strength: 0.1, At: 0.5},
		ForceY:  AxisParams{Strength: 0.1, At: 0.5},
		Link:    LinkParams{Enabled: true, Distance: 35, Iterations: 5},
	}
}

// ParametersFor adapts the defaults to a graph of n nodes. Larger graphs
// get weaker, shorter-ranged forces and fewer iterations.
func ParametersFor(n int) ForceParameters {
	p := DefaultParameters()
	type step struct {
		strength, distanceMax, radius float64
		collideIters                  int
		linkDistance                  float64
		linkIters                     int
	}
	var s *step
	switch {
	case n > 2000:
		s = &step{-5, 150, 5, 1, 20, 1}
	case n > 1000:
		s = &step{-8, 180, 7, 1, 25, 1}
	case n > 500:
		s = &step{-10, 200, 8, 1, 30, 1}
	case n > 200:
		s = &step{-20, 300, 10, 1, 35, 2}
	}
	if s == nil {
		return p
	}
	p.Charge.Strength = s.strength
	p.Charge.DistanceMax = s.distanceMax
	p.Collide.Radius = s.radius
	p.Collide.Iterations = s.collideIters
	p.Link.Distance = s.linkDistance
	p.Link.Iterations = s.linkIters
	return p
}

// PrecalcIterations returns the silent pre-calculation budget for n nodes.
func PrecalcIterations(n int) int {
	switch {
	case n > 500:
		return 300
	case n > 200:
		return 200
	case n > 100:
		return 150
	default:
		return 100
	}
}

func enabled(on bool) float64 {
	if on {
		return 1
	}
	return 0
}

func enabledInt(on bool) int {
	if on {
		return 1
	}
	return 0
}

// install registers every managed force on sim.
func install(sim *force.Simulation, p ForceParameters, links []*graph.Link, width, height float64) {
	sim.SetForce(ForceCenter, force.NewCenter(0, 0))
	sim.SetForce(ForceCharge, force.NewManyBody())
	sim.SetForce(ForceCollide, force.NewCollide(0))
	sim.SetForce(ForceX, force.NewPositionX(0))
	sim.SetForce(ForceY, force.NewPositionY(0))
	sim.SetForce(ForceLink, force.NewLink(nil))
	apply(sim, p, links, width, height, nil)
}

// apply pushes p onto the forces registered on sim, looked up by name. A
// disabled force keeps its slot with zero strength and iterations. Missing
// forces are skipped and reported to logger.
func apply(sim *force.Simulation, p ForceParameters, links []*graph.Link, width, height float64, logger *log.Logger) {
	missing := func(name string) {
		if logger != nil {
			logger.Warn("force not registered", "force", name, "code", errors.ErrCodeMissingForce)
		}
	}

	if f, ok := lookup[*force.Center](sim, ForceCenter); ok {
		f.X, f.Y = width*p.Center.X, height*p.Center.Y
	} else {
		missing(ForceCenter)
	}
	if f, ok := lookup[*force.ManyBody](sim, ForceCharge); ok {
		f.Strength = p.Charge.Strength * enabled(p.Charge.Enabled)
		f.DistanceMin = p.Charge.DistanceMin
		f.DistanceMax = p.Charge.DistanceMax
	} else {
		missing(ForceCharge)
	}
	if f, ok := lookup[*force.Collide](sim, ForceCollide); ok {
		f.Strength = p.Collide.Strength * enabled(p.Collide.Enabled)
		f.Iterations = p.Collide.Iterations * enabledInt(p.Collide.Enabled)
		f.Radius = force.ConstantRadius(p.Collide.Radius)
		f.Refresh()
	} else {
		missing(ForceCollide)
	}
	if f, ok := lookup[*force.PositionX](sim, ForceX); ok {
		x := width * p.ForceX.At
		f.Target = func(*graph.Node) float64 { return x }
		f.Strength = p.ForceX.Strength * enabled(p.ForceX.Enabled)
	} else {
		missing(ForceX)
	}
	if f, ok := lookup[*force.PositionY](sim, ForceY); ok {
		y := height * p.ForceY.At
		f.Target = func(*graph.Node) float64 { return y }
		f.Strength = p.ForceY.Strength * enabled(p.ForceY.Enabled)
	} else {
		missing(ForceY)
	}
	if f, ok := lookup[*force.Link](sim, ForceLink); ok {
		f.Distance = p.Link.Distance
		f.Iterations = p.Link.Iterations * enabledInt(p.Link.Enabled)
		if p.Link.Enabled {
			f.SetLinks(links)
		} else {
			f.SetLinks(nil)
		}
	} else {
		missing(ForceLink)
	}
}

func lookup[T force.Force](sim *force.Simulation, name string) (T, bool) {
	f, ok := sim.Force(name)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := f.(T)
	return t, ok
}
