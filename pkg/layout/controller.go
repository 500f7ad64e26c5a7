package layout

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/forceweave/pkg/errors"
	"github.com/matzehuels/forceweave/pkg/force"
	"github.com/matzehuels/forceweave/pkg/graph"
	"github.com/matzehuels/forceweave/pkg/observability"
	"github.com/matzehuels/forceweave/pkg/worker"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultWidth and DefaultHeight size the viewport the forces target.
	DefaultWidth  = 960.0
	DefaultHeight = 600.0

	// DefaultOffloadThreshold is the node count above which pre-calculation
	// moves to a worker when one is configured.
	DefaultOffloadThreshold = 500

	// DefaultBatchSize is the number of silent ticks between yields.
	DefaultBatchSize = 10

	// DefaultTicksPerRender throttles frames while stabilizing.
	DefaultTicksPerRender = 10

	// DefaultPollInterval is the convergence polling period.
	DefaultPollInterval = 300 * time.Millisecond

	// DefaultFrameInterval is the live tick clock.
	DefaultFrameInterval = 16 * time.Millisecond
)

// Alpha settings of the phases after pre-calculation.
const (
	StabilityAlpha = 0.1

	ConvergedAlpha = 0.001
	SettledSpeed   = 0.1
	SettledAlpha   = 0.05

	FinalTicks = 50
	FinalAlpha = 0.0005

	InteractiveAlpha      = 0.05
	InteractiveAlphaDecay = 0.02

	DragAlphaTarget    = 1
	ReleaseAlphaTarget = 0.0001

	// DefaultUpdateAlpha restarts the simulation after UpdateForces.
	DefaultUpdateAlpha = 0.2
)

var (
	// ErrSuperseded is reported by Wait when a newer Start replaced the pass.
	ErrSuperseded = errors.New(errors.ErrCodeSuperseded, "layout pass superseded")

	// ErrStopped is reported by Wait after Stop.
	ErrStopped = errors.New(errors.ErrCodeSuperseded, "layout stopped")
)

// =============================================================================
// Config
// =============================================================================

// Yielder hands control back between pre-calculation batches.
type Yielder interface {
	Yield(ctx context.Context) error
}

// YieldFunc adapts a function to Yielder.
type YieldFunc func(ctx context.Context) error

// Yield calls f.
func (f YieldFunc) Yield(ctx context.Context) error { return f(ctx) }

// GoschedYielder lets other goroutines run and reports cancellation.
var GoschedYielder = YieldFunc(func(ctx context.Context) error {
	runtime.Gosched()
	return ctx.Err()
})

// Progress reports how far a silent phase has come.
type Progress struct {
	Phase     State    `json:"phase"`
	Strategy  Strategy `json:"strategy"`
	Iteration int      `json:"iteration"`
	Total     int      `json:"total"`
	Percent   float64  `json:"percent"`
}

// Config configures a Controller. Zero fields take the defaults above.
type Config struct {
	Width            float64
	Height           float64
	OffloadThreshold int
	BatchSize        int
	TicksPerRender   int
	PollInterval     time.Duration
	FrameInterval    time.Duration

	// Seed makes jiggle deterministic when non-zero.
	Seed uint64

	// Spawner enables offloading. Nil keeps every pass in-process.
	Spawner worker.Spawner
	Yielder Yielder
	Logger  *log.Logger

	// OnFrame receives position snapshots from live ticks.
	OnFrame func(graph.Frame)
	// OnProgress receives progress from silent phases.
	OnProgress func(Progress)
	// OnState receives every state transition.
	OnState func(State)
}

func (c *Config) setDefaults() {
	if c.Width <= 0 {
		c.Width = DefaultWidth
	}
	if c.Height <= 0 {
		c.Height = DefaultHeight
	}
	if c.OffloadThreshold <= 0 {
		c.OffloadThreshold = DefaultOffloadThreshold
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.TicksPerRender <= 0 {
		c.TicksPerRender = DefaultTicksPerRender
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = DefaultFrameInterval
	}
	if c.Yielder == nil {
		c.Yielder = GoschedYielder
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
}

// =============================================================================
// Controller
// =============================================================================

// Controller drives one force layout through its phases: strategy
// selection, silent pre-calculation, a convergence check, final
// stabilization and interactive ticking.
//
// Every Start supersedes the pass in flight. All methods are safe for
// concurrent use.
type Controller struct {
	cfg    Config
	logger *log.Logger

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	pass     *pass
	data     graph.Data
	byID     map[string]*graph.Node
	sim      *force.Simulation
	params   ForceParameters
	state    State
	strategy Strategy
	ticks    int
	worker   worker.Worker
	wake     chan struct{}
}

type pass struct {
	gen   uint64
	ready chan struct{}
	err   error
	done  bool
	start time.Time
}

// New returns an idle controller.
func New(cfg Config) *Controller {
	cfg.setDefaults()
	return &Controller{
		cfg:    cfg,
		logger: cfg.Logger,
		params: DefaultParameters(),
	}
}

// Start lays out d, superseding any pass in flight. Nil nodes, nil links,
// repeated ids and links to unknown nodes are dropped with a warning.
// The node objects of d are updated in place.
func (c *Controller) Start(d graph.Data) {
	clean, rep := d.Sanitize()
	if !rep.Clean() {
		c.logger.Warn("dropped invalid layout input",
			"nil_nodes", rep.NilNodes,
			"duplicate_nodes", rep.DuplicateNodes,
			"nil_links", rep.NilLinks,
			"dangling_links", rep.DanglingLinks,
			"code", errors.ErrCodeInvalidInput)
	}

	c.mu.Lock()
	c.supersedeLocked(ErrSuperseded)
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.pass = &pass{gen: gen, ready: make(chan struct{}), start: time.Now()}
	c.data = clean
	c.byID = clean.Index()
	c.sim = nil
	c.ticks = 0
	c.state = Idle
	wake := make(chan struct{}, 1)
	c.wake = wake
	c.mu.Unlock()

	go c.run(ctx, gen, clean, wake)
}

// Stop halts every pass and live tick.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.supersedeLocked(ErrStopped)
	c.gen++
	c.state = Stopped
	c.mu.Unlock()
	c.emitState(Stopped)
}

// supersedeLocked cancels the pass in flight and terminates its worker.
func (c *Controller) supersedeLocked(reason error) {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.worker != nil {
		c.worker.Terminate()
		c.worker = nil
	}
	c.finishLocked(reason)
}

func (c *Controller) finishLocked(err error) {
	if c.pass == nil || c.pass.done {
		return
	}
	c.pass.err = err
	c.pass.done = true
	close(c.pass.ready)
}

// Wait blocks until the current pass is interactive, is superseded or
// stopped, or ctx ends.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	p := c.pass
	c.mu.Unlock()
	if p == nil {
		return errors.New(errors.ErrCodeInvalidInput, "no layout started")
	}
	select {
	case <-p.ready:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Strategy returns where the current pass pre-calculates.
func (c *Controller) Strategy() Strategy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.strategy
}

// Running reports whether a pass has been started and not stopped.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pass != nil && c.state != Stopped
}

// Parameters returns the force parameters in effect.
func (c *Controller) Parameters() ForceParameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// SetParameters replaces the force parameters. They reach the running
// simulation on the next UpdateForces or Rebind.
func (c *Controller) SetParameters(p ForceParameters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = p
}

// Snapshot copies the current positions.
func (c *Controller) Snapshot() graph.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameLocked()
}

// Sync runs fn while no tick is in progress. Use it to read or replace
// node state that the controller shares.
func (c *Controller) Sync(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

func (c *Controller) frameLocked() graph.Frame {
	f := graph.Snapshot(c.data)
	f.Phase = c.state.String()
	f.Tick = c.ticks
	f.Width, f.Height = c.cfg.Width, c.cfg.Height
	if c.sim != nil {
		f.Alpha = c.sim.Alpha()
	}
	return f
}

// =============================================================================
// Live Operations
// =============================================================================

// UpdateForces re-applies the force parameters to the running simulation,
// rebinds the link force to links (or to none when links are disabled) and
// restarts at alpha. Forces missing from the simulation are skipped with a
// warning.
func (c *Controller) UpdateForces(links []*graph.Link, alpha float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sim == nil {
		c.logger.Debug("update forces ignored, no simulation yet")
		return
	}
	c.data.Links = links
	c.applyLocked(alpha)
}

// Rebind swaps the simulated nodes for those of view, keeping the
// kinematic state of node objects that stay, then behaves like
// UpdateForces with view.Links. Without a simulation it starts a pass.
func (c *Controller) Rebind(view graph.Data, alpha float64) {
	clean, _ := view.Sanitize()
	c.mu.Lock()
	if c.sim == nil {
		c.mu.Unlock()
		c.Start(clean)
		return
	}
	defer c.mu.Unlock()
	c.data = clean
	c.byID = clean.Index()
	c.sim.SetNodes(clean.Nodes)
	c.applyLocked(alpha)
}

func (c *Controller) applyLocked(alpha float64) {
	apply(c.sim, c.params, c.data.Links, c.cfg.Width, c.cfg.Height, c.logger)
	if f, ok := lookup[*force.Link](c.sim, ForceLink); ok && f.Unresolved() > 0 {
		c.logger.Warn("links to unknown nodes skipped", "count", f.Unresolved(), "code", errors.ErrCodeInvalidInput)
	}
	c.sim.SetAlpha(alpha)
	c.notify()
}

// DragStart pins node id at (x, y) and heats the simulation.
func (c *Controller) DragStart(id string, x, y float64) error {
	return c.drag(id, func(n *graph.Node) {
		n.Pin(x, y)
		c.sim.SetAlphaTarget(DragAlphaTarget)
	})
}

// Drag moves the pin of node id.
func (c *Controller) Drag(id string, x, y float64) error {
	return c.drag(id, func(n *graph.Node) { n.Pin(x, y) })
}

// DragEnd releases node id and lets the simulation cool.
func (c *Controller) DragEnd(id string) error {
	return c.drag(id, func(n *graph.Node) {
		n.Unpin()
		c.sim.SetAlphaTarget(ReleaseAlphaTarget)
	})
}

func (c *Controller) drag(id string, fn func(*graph.Node)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sim == nil {
		return errors.New(errors.ErrCodeInvalidInput, "layout is not running")
	}
	n, ok := c.byID[id]
	if !ok {
		return errors.New(errors.ErrCodeNodeNotFound, "node %q not in layout", id)
	}
	fn(n)
	c.notify()
	return nil
}

func (c *Controller) notify() {
	if c.wake == nil {
		return
	}
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// =============================================================================
// Pass
// =============================================================================

func (c *Controller) run(ctx context.Context, gen uint64, d graph.Data, wake <-chan struct{}) {
	n := len(d.Nodes)
	if !c.transition(ctx, gen, StrategySelected) {
		return
	}
	strategy := InProcess
	if n > c.cfg.OffloadThreshold && c.cfg.Spawner != nil && c.cfg.Spawner.Available() {
		strategy = Offload
	}
	params := ParametersFor(n)
	if err := c.locked(gen, func() {
		c.strategy = strategy
		c.params = params
	}); err != nil {
		return
	}

	logger := c.logger.With("gen", gen)
	logger.Info("layout started", "nodes", n, "links", len(d.Links), "strategy", strategy)
	observability.Layout().OnLayoutStart(ctx, string(strategy), n)
	start := time.Now()

	err := c.phases(ctx, gen, d, strategy, logger)
	observability.Layout().OnLayoutComplete(ctx, string(c.Strategy()), time.Since(start), err)
	if err != nil {
		logger.Debug("layout pass ended", "error", err)
		return
	}
	logger.Info("layout interactive", "duration", time.Since(start), "ticks", c.snapshotTicks())

	c.interactive(ctx, gen, wake)
}

func (c *Controller) phases(ctx context.Context, gen uint64, d graph.Data, strategy Strategy, logger *log.Logger) error {
	if strategy == Offload {
		err := c.offload(ctx, gen, d)
		if err == nil {
			if err := c.build(gen, d); err != nil {
				return err
			}
			return c.finish(ctx, gen)
		}
		if ctx.Err() != nil {
			return err
		}
		logger.Warn("worker failed, falling back in-process", "error", err, "code", errors.GetCode(err))
		if err := c.locked(gen, func() { c.strategy = InProcess }); err != nil {
			return err
		}
	}

	if err := c.build(gen, d); err != nil {
		return err
	}
	if err := c.precalc(ctx, gen, len(d.Nodes)); err != nil {
		return err
	}
	if err := c.stabilityCheck(ctx, gen); err != nil {
		return err
	}
	return c.finish(ctx, gen)
}

// finish runs final stabilization and enters the interactive state.
func (c *Controller) finish(ctx context.Context, gen uint64) error {
	if err := c.finalStabilization(ctx, gen); err != nil {
		return err
	}
	if err := c.locked(gen, func() {
		c.sim.SetAlpha(InteractiveAlpha)
		c.sim.SetAlphaTarget(0)
		c.sim.SetAlphaDecay(InteractiveAlphaDecay)
		c.state = Interactive
	}); err != nil {
		return err
	}
	observability.Layout().OnPhase(ctx, Interactive.String())
	c.emitState(Interactive)
	return c.locked(gen, func() { c.finishLocked(nil) })
}

// build creates the simulation over d's nodes with the adapted parameters.
func (c *Controller) build(gen uint64, d graph.Data) error {
	var opts []force.Option
	if c.cfg.Seed != 0 {
		opts = append(opts, force.WithSeed(c.cfg.Seed))
	}
	return c.locked(gen, func() {
		c.sim = force.New(d.Nodes, opts...)
		install(c.sim, c.params, d.Links, c.cfg.Width, c.cfg.Height)
	})
}

func (c *Controller) precalc(ctx context.Context, gen uint64, n int) error {
	if !c.transition(ctx, gen, Precalc) {
		return ErrSuperseded
	}
	total := PrecalcIterations(n)
	schedule := force.DefaultCooling(total).Schedule()
	for from := 0; from < total; from += c.cfg.BatchSize {
		to := min(from+c.cfg.BatchSize, total)
		if err := c.locked(gen, func() {
			for _, a := range schedule[from:to] {
				c.sim.SetAlpha(a)
				c.sim.Tick(1)
			}
		}); err != nil {
			return err
		}
		c.progress(Precalc, InProcess, to, total)
		if err := c.cfg.Yielder.Yield(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) stabilityCheck(ctx context.Context, gen uint64) error {
	if !c.transition(ctx, gen, StabilityCheck) {
		return ErrSuperseded
	}
	if err := c.locked(gen, func() { c.sim.SetAlpha(StabilityAlpha) }); err != nil {
		return err
	}
	frame := time.NewTicker(c.cfg.FrameInterval)
	defer frame.Stop()
	poll := time.NewTicker(c.cfg.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-frame.C:
			if err := c.liveTick(gen, c.cfg.TicksPerRender); err != nil {
				return err
			}
		case <-poll.C:
			var converged bool
			if err := c.locked(gen, func() { converged = Converged(c.sim) }); err != nil {
				return err
			}
			if converged {
				return nil
			}
		}
	}
}

// Converged reports whether sim has cooled or its nodes have settled.
func Converged(sim *force.Simulation) bool {
	a := sim.Alpha()
	return a < ConvergedAlpha || (force.RMSSpeed(sim.Nodes()) < SettledSpeed && a < SettledAlpha)
}

// Hot reports whether sim needs ticking: alpha has not cooled, or a
// raised target will heat it again.
func Hot(sim *force.Simulation) bool {
	return !sim.Cooled() || sim.AlphaTarget() >= sim.AlphaMin()
}

func (c *Controller) finalStabilization(ctx context.Context, gen uint64) error {
	if !c.transition(ctx, gen, FinalStabilization) {
		return ErrSuperseded
	}
	for from := 0; from < FinalTicks; from += c.cfg.BatchSize {
		to := min(from+c.cfg.BatchSize, FinalTicks)
		if err := c.locked(gen, func() {
			for range to - from {
				c.sim.SetAlpha(FinalAlpha)
				c.sim.Tick(1)
			}
		}); err != nil {
			return err
		}
		c.progress(FinalStabilization, c.Strategy(), to, FinalTicks)
		if err := c.cfg.Yielder.Yield(ctx); err != nil {
			return err
		}
	}
	return nil
}

// offload runs pre-calculation on a worker and copies the result onto d.
func (c *Controller) offload(ctx context.Context, gen uint64, d graph.Data) error {
	if !c.transition(ctx, gen, Precalc) {
		return ErrSuperseded
	}
	w, err := c.cfg.Spawner.Spawn(ctx)
	if err != nil {
		return err
	}
	if err := c.locked(gen, func() { c.worker = w }); err != nil {
		w.Terminate()
		return err
	}
	defer func() {
		c.mu.Lock()
		if c.worker == w {
			c.worker = nil
		}
		c.mu.Unlock()
		w.Terminate()
	}()

	if err := w.Post(ctx, worker.Init(d, c.cfg.Width, c.cfg.Height)); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-w.Messages():
			if !ok {
				return errors.New(errors.ErrCodeWorkerFailed, "worker exited without a result")
			}
			switch m.Type {
			case worker.TypeProgress:
				c.progress(Precalc, Offload, m.Iteration+1, m.TotalIterations)
			case worker.TypeError:
				return m.Err()
			case worker.TypeComplete:
				var updated int
				if err := c.locked(gen, func() { updated = worker.ApplyResult(d.Nodes, m.Nodes) }); err != nil {
					return err
				}
				if updated < len(d.Nodes) {
					c.logger.Warn("worker result incomplete", "updated", updated, "nodes", len(d.Nodes))
				}
				return nil
			}
		}
	}
}

// interactive ticks on the frame clock while the simulation is hot and
// sleeps until woken by a drag or force update once it has cooled. wake
// belongs to this pass.
func (c *Controller) interactive(ctx context.Context, gen uint64, wake <-chan struct{}) {
	frame := time.NewTicker(c.cfg.FrameInterval)
	defer frame.Stop()
	for {
		var hot bool
		if err := c.locked(gen, func() { hot = Hot(c.sim) }); err != nil {
			return
		}
		if !hot {
			select {
			case <-ctx.Done():
				return
			case <-wake:
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-frame.C:
			if err := c.liveTick(gen, 1); err != nil {
				return
			}
		}
	}
}

// liveTick advances one tick and emits a frame every `every` ticks.
func (c *Controller) liveTick(gen uint64, every int) error {
	var f *graph.Frame
	if err := c.locked(gen, func() {
		c.sim.Tick(1)
		c.ticks++
		if c.ticks%every == 0 {
			fr := c.frameLocked()
			f = &fr
		}
	}); err != nil {
		return err
	}
	if f != nil && c.cfg.OnFrame != nil {
		c.cfg.OnFrame(*f)
	}
	return nil
}

// locked runs fn under the lock if gen is still current.
func (c *Controller) locked(gen uint64, fn func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return ErrSuperseded
	}
	fn()
	return nil
}

func (c *Controller) transition(ctx context.Context, gen uint64, s State) bool {
	if err := c.locked(gen, func() { c.state = s }); err != nil {
		return false
	}
	observability.Layout().OnPhase(ctx, s.String())
	c.emitState(s)
	return true
}

func (c *Controller) emitState(s State) {
	if c.cfg.OnState != nil {
		c.cfg.OnState(s)
	}
}

func (c *Controller) progress(phase State, strategy Strategy, i, total int) {
	if c.cfg.OnProgress == nil || total <= 0 {
		return
	}
	c.cfg.OnProgress(Progress{
		Phase:     phase,
		Strategy:  strategy,
		Iteration: i,
		Total:     total,
		Percent:   float64(i) / float64(total) * 100,
	})
}

func (c *Controller) snapshotTicks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}
