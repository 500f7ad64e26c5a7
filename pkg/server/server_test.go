package server

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	json "github.com/goccy/go-json"

	"github.com/matzehuels/forceweave/pkg/errors"
	"github.com/matzehuels/forceweave/pkg/filter"
	"github.com/matzehuels/forceweave/pkg/graph"
	"github.com/matzehuels/forceweave/pkg/layout"
	"github.com/matzehuels/forceweave/pkg/session"
)

func testServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	logger := log.New(io.Discard)
	m := session.NewManager(session.Options{
		Layout: layout.Config{
			Width:         400,
			Height:        300,
			PollInterval:  5 * time.Millisecond,
			FrameInterval: time.Millisecond,
			Seed:          1,
		},
		Logger: logger,
	})
	opts.Logger = logger
	srv := New(m, opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		m.Close()
	})
	return srv, ts
}

func sampleJSON(t *testing.T) json.RawMessage {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id string, c graph.Category, day int) *graph.Node {
		n := graph.NewNode(id, c)
		n.CreatedAt = base.AddDate(0, 0, day)
		n.Title = id
		return n
	}
	d := graph.Data{
		Nodes: []*graph.Node{
			mk("p", graph.CategoryProject, 0),
			mk("q", graph.CategoryQuestion, 1),
			mk("u1", graph.CategoryUser, 1),
			mk("c1", graph.CategoryComment, 2),
			mk("r1", graph.CategoryReply, 3),
		},
		Links: []*graph.Link{
			graph.NewLink("q", "p"),
			graph.NewLink("c1", "q"),
			graph.NewLink("u1", "c1"),
			graph.NewLink("r1", "c1"),
		},
	}
	data, err := graph.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func create(t *testing.T, srv *Server, ts *httptest.Server, mode filter.Mode) *session.Session {
	t.Helper()
	resp := do(t, http.MethodPost, ts.URL+"/sessions", map[string]any{
		"data": sampleJSON(t),
		"mode": mode,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	info := decode[session.Info](t, resp)
	sess, err := srv.sessions.Get(info.ID)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sess.Wait(ctx); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	return sess
}

func TestHealth(t *testing.T) {
	_, ts := testServer(t, Options{})
	resp := do(t, http.MethodGet, ts.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["build"].(map[string]any); !ok {
		t.Errorf("missing build info: %v", body)
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "forceweave_up 1\n")
	})
	_, ts := testServer(t, Options{Metrics: metrics})
	resp := do(t, http.MethodGet, ts.URL+"/metrics", nil)
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "forceweave_up") {
		t.Errorf("metrics body = %q", b)
	}

	_, bare := testServer(t, Options{})
	if resp := do(t, http.MethodGet, bare.URL+"/metrics", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("metrics without handler status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateAndGetSession(t *testing.T) {
	srv, ts := testServer(t, Options{})
	sess := create(t, srv, ts, filter.ModeProject)

	resp := do(t, http.MethodGet, ts.URL+"/sessions/"+sess.ID(), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[sessionResponse](t, resp)
	if got.ID != sess.ID() || got.Mode != filter.ModeProject {
		t.Errorf("info = %+v", got.Info)
	}
	if got.State != layout.Interactive.String() {
		t.Errorf("state = %q, want interactive", got.State)
	}
	if len(got.Frame.Nodes) != got.Nodes || got.Nodes == 0 {
		t.Errorf("frame has %d nodes, info says %d", len(got.Frame.Nodes), got.Nodes)
	}

	list := decode[[]session.Info](t, do(t, http.MethodGet, ts.URL+"/sessions", nil))
	if len(list) != 1 || list[0].ID != sess.ID() {
		t.Errorf("list = %+v", list)
	}
}

func TestErrors(t *testing.T) {
	srv, ts := testServer(t, Options{})
	sess := create(t, srv, ts, filter.ModeProject)
	base := ts.URL + "/sessions/" + sess.ID()

	tests := []struct {
		name   string
		method string
		url    string
		body   any
		status int
		code   errors.Code
	}{
		{"unknown session", http.MethodGet, ts.URL + "/sessions/nope", nil, 404, errors.ErrCodeSessionNotFound},
		{"bad mode", http.MethodPut, base + "/mode", map[string]string{"mode": "sideways"}, 400, errors.ErrCodeInvalidMode},
		{"bad category", http.MethodPut, base + "/selection", map[string][]string{"categories": {"nope"}}, 400, errors.ErrCodeInvalidCategory},
		{"bad drag phase", http.MethodPost, base + "/drag", map[string]any{"id": "p", "phase": "fling"}, 400, errors.ErrCodeInvalidInput},
		{"unknown node", http.MethodPost, base + "/drag", map[string]any{"id": "ghost", "phase": "start"}, 404, errors.ErrCodeNodeNotFound},
		{"malformed body", http.MethodPut, base + "/mode", "not an object", 400, errors.ErrCodeMalformedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, tt.url, tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if body := decode[errorBody](t, resp); body.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Code, tt.code)
			}
		})
	}
}

func TestModeSelectionAndTime(t *testing.T) {
	srv, ts := testServer(t, Options{})
	sess := create(t, srv, ts, filter.ModeProject)
	base := ts.URL + "/sessions/" + sess.ID()

	info := decode[session.Info](t, do(t, http.MethodPut, base+"/mode", map[string]string{"mode": "user"}))
	if info.Mode != filter.ModeUser {
		t.Errorf("mode = %q", info.Mode)
	}

	info = decode[session.Info](t, do(t, http.MethodPut, base+"/selection",
		map[string][]string{"categories": {"user", "comment"}}))
	if len(info.Selection) != 2 {
		t.Errorf("selection = %v", info.Selection)
	}

	v := 0.0
	info = decode[session.Info](t, do(t, http.MethodPut, base+"/time", map[string]*float64{"value": &v}))
	if info.Slider == nil || *info.Slider != 0 {
		t.Errorf("slider = %v", info.Slider)
	}
	info = decode[session.Info](t, do(t, http.MethodPut, base+"/time", map[string]*float64{"value": nil}))
	if info.Slider != nil {
		t.Errorf("slider not cleared: %v", *info.Slider)
	}
}

func TestStats(t *testing.T) {
	srv, ts := testServer(t, Options{})
	sess := create(t, srv, ts, filter.ModeUser)

	resp := do(t, http.MethodGet, ts.URL+"/sessions/"+sess.ID()+"/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[statsResponse](t, resp)
	if got.Mode != filter.ModeUser || len(got.Counters) == 0 {
		t.Errorf("stats = %+v", got)
	}
	if len(got.Indicators) != 7 {
		t.Errorf("indicators = %d, want 7", len(got.Indicators))
	}
}

func TestDragAndDelete(t *testing.T) {
	srv, ts := testServer(t, Options{})
	sess := create(t, srv, ts, filter.ModeProject)
	base := ts.URL + "/sessions/" + sess.ID()

	for _, phase := range []string{DragStart, DragMove, DragEnd} {
		resp := do(t, http.MethodPost, base+"/drag", map[string]any{"id": "p", "x": 1, "y": 2, "phase": phase})
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("drag %s status = %d", phase, resp.StatusCode)
		}
	}

	if resp := do(t, http.MethodDelete, base, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, base, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d", resp.StatusCode)
	}
}

func TestRefreshData(t *testing.T) {
	srv, ts := testServer(t, Options{})
	sess := create(t, srv, ts, filter.ModeProject)

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/sessions/"+sess.ID()+"/data",
		strings.NewReader(`{"nodes":[
			{"id":"p","category":"project","createdAt":"2024-01-01T00:00:00Z"},
			{"id":"q","category":"question","createdAt":"2024-01-02T00:00:00Z"},
			{"id":"q2","category":"question","createdAt":"2024-01-05T00:00:00Z"}
		],"links":[{"source":"q","target":"p"},{"source":"q2","target":"p"}]}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	info := decode[session.Info](t, resp)
	if info.Nodes != 3 {
		t.Errorf("nodes after refresh = %d, want 3", info.Nodes)
	}
}

func TestEvents(t *testing.T) {
	srv, ts := testServer(t, Options{})
	sess := create(t, srv, ts, filter.ModeProject)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/sessions/"+sess.ID()+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	seen := map[string]bool{}
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() && !(seen[EventState] && seen[EventFrame]) {
		if typ, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
			seen[typ] = true
		}
	}
	if !seen[EventState] || !seen[EventFrame] {
		t.Errorf("initial events = %v", seen)
	}
	if n := srv.Hub().Subscribers(sess.ID()); n != 1 {
		t.Errorf("Subscribers() = %d, want 1", n)
	}
}

func TestHubPublish(t *testing.T) {
	h := NewHub(log.New(io.Discard))
	sub := h.subscribe("s")
	h.Publish("s", Event{Type: EventProgress, Data: layout.Progress{Percent: 50}})
	h.Publish("other", Event{Type: EventProgress})

	select {
	case msg := <-sub.events:
		if !strings.HasPrefix(string(msg), "event: progress\ndata: {") {
			t.Errorf("message = %q", msg)
		}
	default:
		t.Fatal("no event delivered")
	}

	h.Close("s")
	if _, ok := <-sub.events; ok {
		t.Error("channel open after Close")
	}
	h.unsubscribe("s", sub)
	if n := h.Subscribers("s"); n != 0 {
		t.Errorf("Subscribers() = %d", n)
	}
}

func TestImage(t *testing.T) {
	srv, ts := testServer(t, Options{})
	sess := create(t, srv, ts, filter.ModeProject)

	resp := do(t, http.MethodGet, ts.URL+"/sessions/"+sess.ID()+"/image?format=dot&labels=true", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/vnd.graphviz" {
		t.Errorf("Content-Type = %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "digraph") {
		t.Errorf("body is not DOT:\n%s", body)
	}

	bad := do(t, http.MethodGet, ts.URL+"/sessions/"+sess.ID()+"/image?format=gif", nil)
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("gif status = %d, want 400", bad.StatusCode)
	}
}
