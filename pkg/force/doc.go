// Package force is a headless velocity-Verlet force simulation for node-link
// layouts.
//
// # Overview
//
// A [Simulation] owns a slice of [graph.Node] values and a list of named
// [Force] implementations. Each call to [Simulation.Tick] moves alpha (the
// "temperature") toward its target, lets every force nudge node velocities,
// then integrates positions with velocity decay:
//
//	sim := force.New(data.Nodes, force.WithSeed(1))
//	sim.SetForce("charge", force.NewManyBody())
//	sim.SetForce("link", force.NewLink(data.Links))
//	sim.SetForce("center", force.NewCenter(400, 300))
//	sim.Tick(300)
//
// # Forces
//
//   - [Center] translates all nodes so their mean sits on a point.
//   - [ManyBody] is an n-body charge, approximated with a Barnes-Hut
//     quadtree from gonum's spatial/barneshut package.
//   - [Collide] separates overlapping circles, finding candidates with a
//     k-d tree from gonum's spatial/kdtree package.
//   - [Link] pulls linked nodes toward a rest distance.
//   - [PositionX] and [PositionY] pull nodes toward a target coordinate.
//
// Forces are looked up by name so callers can retune a running simulation
// without rebuilding it.
//
// # Pinning
//
// A node with FX or FY set is held at that coordinate with zero velocity.
// This is how dragging is implemented.
package force
