// Package session ties the pieces of one visualization together.
//
// A [Session] owns the canonical dataset, the active mode and category
// selection, an optional time threshold, the filtered view derived from
// them, and the layout controller that positions that view. Nothing here is
// global: every visualization gets its own session, and a [Manager] holds
// many of them side by side.
//
// # Ownership
//
// While a layout pass runs, the controller owns the position and velocity
// fields of the filtered nodes. The session therefore performs every store
// merge and filter under [layout.Controller.Sync], and hands positions to
// callers only as copies.
//
// # Usage
//
//	s := session.New("", session.Options{Mode: filter.ModeProject})
//	s.Load(data)
//	if err := s.Wait(ctx); err != nil {
//	    return err
//	}
//	frame := s.Snapshot()
package session

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/forceweave/pkg/errors"
	"github.com/matzehuels/forceweave/pkg/filter"
	"github.com/matzehuels/forceweave/pkg/graph"
	"github.com/matzehuels/forceweave/pkg/layout"
	"github.com/matzehuels/forceweave/pkg/stats"
	"github.com/matzehuels/forceweave/pkg/store"
)

// PhaseBeeswarm is the frame phase reported in the temporal-swarm mode.
const PhaseBeeswarm = "beeswarm"

// Options configures a session. Zero fields take defaults.
type Options struct {
	// Mode is the initial visualization mode. Defaults to filter.DefaultMode.
	Mode filter.Mode
	// Selection is the initial category selection. Defaults to every
	// category.
	Selection filter.Selection
	// Layout configures the session's controller.
	Layout layout.Config
	Logger *log.Logger
}

// Session is the state of one visualization.
type Session struct {
	id      string
	created time.Time
	logger  *log.Logger
	ctrl    *layout.Controller
	width   float64
	height  float64

	mu        sync.Mutex
	store     *store.Store
	mode      filter.Mode
	selection filter.Selection
	slider    *float64
	filtered  graph.Data
	swarm     *layout.Swarm
}

// Info summarizes a session.
type Info struct {
	ID        string          `json:"id"`
	Mode      filter.Mode     `json:"mode"`
	Selection []string        `json:"selection"`
	Slider    *float64        `json:"slider,omitempty"`
	State     string          `json:"state"`
	Strategy  layout.Strategy `json:"strategy,omitempty"`
	Nodes     int             `json:"nodes"`
	Links     int             `json:"links"`
	CreatedAt time.Time       `json:"createdAt"`
}

// New returns an empty session. An empty id is replaced by a random uuid.
func New(id string, opts Options) *Session {
	if id == "" {
		id = newID()
	}
	if opts.Mode == "" {
		opts.Mode = filter.DefaultMode
	}
	if opts.Selection == nil {
		opts.Selection = filter.AllCategories()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	logger := opts.Logger.With("session", id)
	if opts.Layout.Logger == nil {
		opts.Layout.Logger = logger
	}
	ctrl := layout.New(opts.Layout)
	w, h := opts.Layout.Width, opts.Layout.Height
	if w <= 0 {
		w = layout.DefaultWidth
	}
	if h <= 0 {
		h = layout.DefaultHeight
	}
	return &Session{
		id:        id,
		created:   time.Now(),
		logger:    logger,
		ctrl:      ctrl,
		width:     w,
		height:    h,
		store:     store.New(graph.Data{}),
		mode:      opts.Mode,
		selection: opts.Selection.Clone(),
	}
}

func newID() string { return uuid.NewString() }

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Controller returns the session's layout controller.
func (s *Session) Controller() *layout.Controller { return s.ctrl }

// Mode returns the active mode.
func (s *Session) Mode() filter.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Selection returns a copy of the category selection.
func (s *Session) Selection() filter.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Clone()
}

// Load replaces the dataset and starts a fresh layout of its filtered view.
func (s *Session) Load(d graph.Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.Sync(func() {
		s.store.SetData(d)
		s.refilterLocked()
	})
	s.relayoutLocked(true)
}

// Refresh merges freshly fetched data, keeping the positions of nodes that
// survive, and restarts the layout.
func (s *Session) Refresh(d graph.Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.Sync(func() {
		s.store.MergeIncoming(d)
		s.refilterLocked()
	})
	s.logger.Debug("dataset refreshed", "nodes", len(d.Nodes), "visible", len(s.filtered.Nodes))
	s.relayoutLocked(true)
}

// SetMode switches the visualization mode. A mode switch supersedes the
// running pass.
func (s *Session) SetMode(m filter.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
	s.ctrl.Sync(s.refilterLocked)
	s.relayoutLocked(true)
}

// SetSelection replaces the category selection and re-applies the forces
// to the new view without restarting the pass.
func (s *Session) SetSelection(sel filter.Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = sel.Clone()
	s.ctrl.Sync(s.refilterLocked)
	s.relayoutLocked(false)
}

// SetTimeSlider restricts the view to nodes created up to the slider
// position in [0, filter.SliderMax].
func (s *Session) SetTimeSlider(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slider = &v
	s.ctrl.Sync(s.refilterLocked)
	s.relayoutLocked(false)
}

// ClearTimeSlider removes the time restriction.
func (s *Session) ClearTimeSlider() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slider = nil
	s.ctrl.Sync(s.refilterLocked)
	s.relayoutLocked(false)
}

// refilterLocked recomputes the filtered view. Callers hold s.mu and run
// it under the controller's Sync.
func (s *Session) refilterLocked() {
	spec := filter.Compute(s.mode, s.selection)
	data := s.store.Data()
	if s.slider != nil {
		if t, ok := filter.TimeThreshold(data.Nodes, *s.slider, filter.SliderMax); ok {
			spec = filter.WithCreatedBefore(spec, t)
		}
	}
	s.filtered = filter.Apply(data, spec)
}

// relayoutLocked positions the filtered view. restart supersedes the pass;
// otherwise the running simulation is rebound to the view.
func (s *Session) relayoutLocked(restart bool) {
	if s.mode == filter.ModeBeeswarm {
		s.ctrl.Stop()
		swarm := layout.Beeswarm(s.filtered.Nodes, s.width, s.height)
		s.swarm = &swarm
		return
	}
	s.swarm = nil
	if restart || !s.ctrl.Running() {
		s.ctrl.Start(s.filtered)
		return
	}
	s.ctrl.Rebind(s.filtered, layout.DefaultUpdateAlpha)
}

// Wait blocks until the layout is interactive. In the beeswarm mode the
// layout is computed synchronously and Wait returns at once.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	swarm := s.swarm
	s.mu.Unlock()
	if swarm != nil {
		return nil
	}
	return s.ctrl.Wait(ctx)
}

// Snapshot copies the current positions of the filtered view.
func (s *Session) Snapshot() graph.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.swarm == nil {
		return s.ctrl.Snapshot()
	}
	f := graph.Snapshot(s.filtered)
	f.Phase = PhaseBeeswarm
	f.Width, f.Height = s.width, s.height
	return f
}

// Swarm returns the beeswarm result, if the session is in that mode.
func (s *Session) Swarm() (layout.Swarm, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.swarm == nil {
		return layout.Swarm{}, false
	}
	return *s.swarm, true
}

// Filtered returns a deep copy of the filtered view.
func (s *Session) Filtered() graph.Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out graph.Data
	s.ctrl.Sync(func() { out = s.filtered.Clone() })
	return out
}

// Statistics counts the filtered view for the active mode and derives the
// indicators. Non-finite indicators are returned as they are and logged.
func (s *Session) Statistics() (stats.Counters, stats.Indicators) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var c stats.Counters
	s.ctrl.Sync(func() { c = stats.Count(s.filtered, s.mode) })
	ind := stats.Derive(c)
	if ind.Degenerate() {
		users, _ := c.Get(stats.Users)
		s.logger.Debug("indicators not finite", "mode", s.mode, "users", users, "code", errors.ErrCodeDegenerateStatistic)
	}
	return c, ind
}

// Info summarizes the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		ID:        s.id,
		Mode:      s.mode,
		Slider:    s.slider,
		State:     s.ctrl.State().String(),
		Strategy:  s.ctrl.Strategy(),
		Nodes:     len(s.filtered.Nodes),
		Links:     len(s.filtered.Links),
		CreatedAt: s.created,
	}
	if s.swarm != nil {
		info.State = PhaseBeeswarm
	}
	for _, c := range s.selection.Slice() {
		info.Selection = append(info.Selection, string(c))
	}
	return info
}

// Close stops the layout.
func (s *Session) Close() {
	s.ctrl.Stop()
}
