package force

import "math"

// Cooling is a geometric alpha schedule from Alpha0 down to AlphaMin over
// a fixed number of iterations.
type Cooling struct {
	Alpha0     float64
	AlphaMin   float64
	Iterations int
}

// DefaultCooling returns the pre-calculation schedule for n iterations.
func DefaultCooling(n int) Cooling {
	return Cooling{Alpha0: 0.8, AlphaMin: DefaultAlphaMin, Iterations: n}
}

// Factor returns the per-iteration multiplier (AlphaMin/Alpha0)^(1/n).
func (c Cooling) Factor() float64 {
	if c.Iterations <= 0 {
		return 1
	}
	return math.Pow(c.AlphaMin/c.Alpha0, 1/float64(c.Iterations))
}

// At returns the alpha used for iteration i.
func (c Cooling) At(i int) float64 {
	return c.Alpha0 * math.Pow(c.Factor(), float64(i))
}

// Schedule returns the alpha for every iteration in order.
func (c Cooling) Schedule() []float64 {
	if c.Iterations <= 0 {
		return nil
	}
	out := make([]float64, c.Iterations)
	a, f := c.Alpha0, c.Factor()
	for i := range out {
		out[i] = a
		a *= f
	}
	return out
}

// Run applies the schedule to sim: for each iteration it sets alpha and
// ticks once. step is called after every tick with the iteration index and
// may stop the run by returning false.
func (c Cooling) Run(sim *Simulation, step func(i int, alpha float64) bool) int {
	for i, a := range c.Schedule() {
		sim.SetAlpha(a)
		sim.Tick(1)
		if step != nil && !step(i, a) {
			return i + 1
		}
	}
	return c.Iterations
}
