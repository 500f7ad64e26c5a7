package worker

import (
	"context"

	"github.com/matzehuels/forceweave/pkg/errors"
	"github.com/matzehuels/forceweave/pkg/force"
	"github.com/matzehuels/forceweave/pkg/graph"
)

// Fixed worker force settings. The worker does not receive the
// controller's parameters; it runs a lighter configuration tuned for large
// graphs.
const (
	ChargeStrength    = -10
	ChargeDistanceMax = 200
	CollideRadius     = 10
	CollideStrength   = 0.01
	LinkDistance      = 35

	// FinalTicks run at FinalAlpha after the cooling schedule.
	FinalTicks = 50
	FinalAlpha = 0.0005
)

// Iterations returns the cooling schedule length for a graph of n nodes.
func Iterations(n int) int {
	switch {
	case n > 2000:
		return 1000
	case n > 1000:
		return 800
	case n > 500:
		return 600
	case n > 200:
		return 400
	default:
		return 300
	}
}

// Run lays out the payload of an init message headlessly and emits
// progress messages followed by one complete message. The payload is
// copied, so the caller's nodes are never touched. Run returns ctx.Err() if
// cancelled, in which case no complete message is emitted.
func Run(ctx context.Context, init Message, emit func(Message)) error {
	if init.Type != TypeInit {
		return errors.New(errors.ErrCodeInvalidInput, "worker expects an init message, got %q", init.Type)
	}
	if emit == nil {
		emit = func(Message) {}
	}
	d, _ := init.Data().Clone().Sanitize()

	sim := force.New(d.Nodes)
	sim.SetForce("center", force.NewCenter(init.Width/2, init.Height/2))
	charge := force.NewManyBody()
	charge.Strength = ChargeStrength
	charge.DistanceMax = ChargeDistanceMax
	sim.SetForce("charge", charge)
	collide := force.NewCollide(CollideRadius)
	collide.Strength = CollideStrength
	sim.SetForce("collide", collide)
	link := force.NewLink(d.Links)
	link.Distance = LinkDistance
	sim.SetForce("link", link)

	n := Iterations(len(d.Nodes))
	every := max(1, n/10)
	var cancelled error
	force.DefaultCooling(n).Run(sim, func(i int, alpha float64) bool {
		if i%every == 0 || i == n-1 {
			if err := ctx.Err(); err != nil {
				cancelled = err
				return false
			}
			emit(Message{
				Type:            TypeProgress,
				Job:             init.Job,
				Progress:        float64(i+1) / float64(n),
				Alpha:           alpha,
				Iteration:       i,
				TotalIterations: n,
			})
		}
		return true
	})
	if cancelled != nil {
		return cancelled
	}

	for range FinalTicks {
		sim.SetAlpha(FinalAlpha)
		sim.Tick(1)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	emit(Message{
		Type:       TypeComplete,
		Job:        init.Job,
		Nodes:      d.Nodes,
		Links:      d.Links,
		Iterations: n,
	})
	return nil
}

// ApplyResult copies kinematic state from a complete message onto nodes.
// Nodes are matched by position when the lengths agree and by id
// otherwise. It returns the number of nodes updated.
func ApplyResult(nodes []*graph.Node, result []*graph.Node) int {
	copyState := func(dst, src *graph.Node) {
		dst.X, dst.Y = src.X, src.Y
		dst.VX, dst.VY = src.VX, src.VY
	}
	updated := 0
	if len(nodes) == len(result) {
		for i, n := range nodes {
			if n != nil && result[i] != nil && n.ID == result[i].ID {
				copyState(n, result[i])
				updated++
			}
		}
		if updated == len(nodes) {
			return updated
		}
		updated = 0
	}
	byID := make(map[string]*graph.Node, len(result))
	for _, r := range result {
		if r != nil {
			byID[r.ID] = r
		}
	}
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if r, ok := byID[n.ID]; ok {
			copyState(n, r)
			updated++
		}
	}
	return updated
}
