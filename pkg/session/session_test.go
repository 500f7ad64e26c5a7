package session

import (
	"bytes"
	"context"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/forceweave/pkg/errors"
	"github.com/matzehuels/forceweave/pkg/filter"
	"github.com/matzehuels/forceweave/pkg/graph"
	"github.com/matzehuels/forceweave/pkg/layout"
	"github.com/matzehuels/forceweave/pkg/stats"
)

func testOptions(mode filter.Mode) Options {
	return Options{
		Mode: mode,
		Layout: layout.Config{
			Width:         400,
			Height:        300,
			PollInterval:  5 * time.Millisecond,
			FrameInterval: time.Millisecond,
			Seed:          1,
		},
		Logger: log.New(io.Discard),
	}
}

func node(id string, c graph.Category, day int) *graph.Node {
	n := graph.NewNode(id, c)
	n.Title = id
	n.CreatedAt = time.Date(2024, 1, 1+day, 0, 0, 0, 0, time.UTC)
	return n
}

func sample() graph.Data {
	return graph.Data{
		Nodes: []*graph.Node{
			node("p", graph.CategoryProject, 0),
			node("u1", graph.CategoryUser, 1),
			node("u2", graph.CategoryUser, 2),
			node("c1", graph.CategoryComment, 3),
			node("c2", graph.CategoryComment, 10),
		},
		Links: []*graph.Link{
			graph.NewLink("u1", "c1"),
			graph.NewLink("c1", "p"),
			graph.NewLink("u2", "c2"),
			graph.NewLink("c2", "p"),
		},
	}
}

func wait(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func ids(d graph.Data) map[string]bool {
	out := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		out[n.ID] = true
	}
	return out
}

func TestProjectModeExcludesUsers(t *testing.T) {
	s := New("", testOptions(filter.ModeProject))
	defer s.Close()
	s.Load(graph.Data{
		Nodes: []*graph.Node{graph.NewNode("a", graph.CategoryProject), graph.NewNode("b", graph.CategoryUser)},
		Links: []*graph.Link{graph.NewLink("a", "b")},
	})
	wait(t, s)

	f := s.Filtered()
	if len(f.Nodes) != 1 || f.Nodes[0].ID != "a" || len(f.Links) != 0 {
		t.Errorf("filtered = %d nodes, %d links", len(f.Nodes), len(f.Links))
	}
	if len(s.Snapshot().Nodes) != 1 {
		t.Error("layout should only see the filtered view")
	}
}

func TestSessionID(t *testing.T) {
	if New("fixed", testOptions(filter.ModeUser)).ID() != "fixed" {
		t.Error("explicit id ignored")
	}
	a, b := New("", testOptions(filter.ModeUser)), New("", testOptions(filter.ModeUser))
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("generated ids %q, %q", a.ID(), b.ID())
	}
}

func TestSetSelectionRebinds(t *testing.T) {
	s := New("", testOptions(filter.ModeUser))
	defer s.Close()
	s.Load(sample())
	wait(t, s)
	if got := len(s.Filtered().Nodes); got != 4 {
		t.Fatalf("user mode nodes = %d, want 4", got)
	}

	s.SetSelection(filter.NewSelection(graph.CategoryUser))
	if got := ids(s.Filtered()); len(got) != 2 || !got["u1"] || !got["u2"] {
		t.Errorf("selection view = %v", got)
	}
	if s.Controller().State() == layout.Idle {
		t.Error("selection change should not restart the pass")
	}
	if n := len(s.Snapshot().Nodes); n != 2 {
		t.Errorf("snapshot after selection = %d nodes", n)
	}
}

func TestSetTimeSlider(t *testing.T) {
	s := New("", testOptions(filter.ModeUser))
	defer s.Close()
	s.Load(sample())
	wait(t, s)

	// Halfway through a ten day span keeps everything up to day five.
	s.SetTimeSlider(filter.SliderMax / 2)
	got := ids(s.Filtered())
	if got["c2"] || !got["c1"] || !got["u2"] {
		t.Errorf("time-filtered view = %v", got)
	}
	if info := s.Info(); info.Slider == nil || *info.Slider != filter.SliderMax/2 {
		t.Errorf("info slider = %v", info.Slider)
	}

	s.ClearTimeSlider()
	if len(s.Filtered().Nodes) != 4 {
		t.Error("clearing the slider should restore the view")
	}
}

func TestStatistics(t *testing.T) {
	s := New("", testOptions(filter.ModeUser))
	defer s.Close()
	s.Load(sample())
	wait(t, s)

	counters, ind := s.Statistics()
	if v, _ := counters.Get(stats.Users); v != 2 {
		t.Errorf("users = %d, want 2", v)
	}
	if v, _ := counters.Get(stats.ActiveUsers); v != 2 {
		t.Errorf("active users = %d, want 2", v)
	}
	if ind.ActivityIndex != 100 {
		t.Errorf("activity index = %v, want 100", ind.ActivityIndex)
	}
}

func TestRefreshMergesMembership(t *testing.T) {
	s := New("", testOptions(filter.ModeUser))
	defer s.Close()
	s.Load(sample())
	wait(t, s)

	next := sample()
	next.Nodes = append(next.Nodes[:4], node("c3", graph.CategoryComment, 4))
	next.Links = []*graph.Link{graph.NewLink("u1", "c3")}
	s.Refresh(next)
	wait(t, s)

	got := ids(s.Filtered())
	if got["c2"] || !got["c3"] || len(got) != 4 {
		t.Errorf("refreshed view = %v", got)
	}
	s.Controller().Sync(func() {
		for _, n := range next.Nodes {
			if !got[n.ID] {
				continue
			}
			if !n.Placed() || math.IsNaN(n.VX) {
				t.Errorf("node %s not placed after refresh", n.ID)
			}
		}
	})
}

func TestBeeswarmMode(t *testing.T) {
	s := New("", testOptions(filter.ModeBeeswarm))
	defer s.Close()
	s.Load(sample())
	wait(t, s)

	f := s.Snapshot()
	if f.Phase != PhaseBeeswarm || len(f.Nodes) == 0 {
		t.Fatalf("beeswarm frame = %s with %d nodes", f.Phase, len(f.Nodes))
	}
	swarm, ok := s.Swarm()
	if !ok || len(swarm.Radii) != len(f.Nodes) {
		t.Errorf("swarm = %+v, %v", swarm, ok)
	}
	if s.Info().State != PhaseBeeswarm {
		t.Errorf("state = %s", s.Info().State)
	}

	s.SetMode(filter.ModeUser)
	wait(t, s)
	if _, ok := s.Swarm(); ok {
		t.Error("leaving beeswarm mode should drop the swarm")
	}
	if s.Controller().State() != layout.Interactive {
		t.Errorf("state after mode switch = %s", s.Controller().State())
	}
}

func TestManager(t *testing.T) {
	m := NewManager(testOptions(filter.ModeProject))
	defer m.Close()

	var bound string
	a := m.Create(func(id string, opts *Options) {
		bound = id
		opts.Mode = filter.ModeUser
	})
	b := m.Create(nil)
	if bound != a.ID() || a.Mode() != filter.ModeUser || b.Mode() != filter.ModeProject {
		t.Errorf("create: bound = %q, modes = %s, %s", bound, a.Mode(), b.Mode())
	}
	if m.Len() != 2 || len(m.List()) != 2 {
		t.Errorf("len = %d, list = %v", m.Len(), m.List())
	}

	got, err := m.Get(a.ID())
	if err != nil || got != a {
		t.Errorf("Get() = %v, %v", got, err)
	}
	if err := m.Delete(a.ID()); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(a.ID()); !errors.Is(err, errors.ErrCodeSessionNotFound) {
		t.Errorf("Get(deleted) error = %v", err)
	}
	if err := m.Delete("missing"); !errors.Is(err, errors.ErrCodeSessionNotFound) {
		t.Errorf("Delete(missing) error = %v", err)
	}

	m.Close()
	if m.Len() != 0 {
		t.Error("Close should remove every session")
	}
}

// lockedBuffer is a bytes.Buffer safe for the logger's writer goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStatisticsLogsDegenerateIndicators(t *testing.T) {
	var out lockedBuffer
	opts := testOptions(filter.ModeProject)
	opts.Logger = log.NewWithOptions(&out, log.Options{Level: log.DebugLevel})
	s := New("", opts)
	defer s.Close()
	s.Load(graph.Data{Nodes: []*graph.Node{node("p", graph.CategoryProject, 0)}})
	wait(t, s)

	_, ind := s.Statistics()
	if !ind.Degenerate() || !math.IsNaN(ind.ActivityIndex) {
		t.Fatalf("activity index without users = %v, want NaN", ind.ActivityIndex)
	}
	if got := out.String(); !strings.Contains(got, string(errors.ErrCodeDegenerateStatistic)) {
		t.Errorf("log output %q does not mention %s", got, errors.ErrCodeDegenerateStatistic)
	}
}
