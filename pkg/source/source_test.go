package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/forceweave/pkg/graph"
)

func TestRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		retryable bool
		wantCalls int
		wantErr   bool
	}{
		{"success", 0, true, 1, false},
		{"recovers", 2, true, 3, false},
		{"exhausted", 5, true, RetryAttempts, true},
		{"permanent", 5, false, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retry(context.Background(), time.Millisecond, func() error {
				calls++
				if calls > tt.failures {
					return nil
				}
				err := errors.New("boom")
				if tt.retryable {
					return Retryable(err)
				}
				return err
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := retry(ctx, time.Hour, func() error { return Retryable(errors.New("boom")) })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should be nil")
	}
	base := errors.New("base")
	wrapped := fmt.Errorf("outer: %w", Retryable(base))
	if !IsRetryable(wrapped) || !errors.Is(wrapped, base) {
		t.Error("retryable marker must survive wrapping and unwrap to the cause")
	}
	if IsRetryable(base) {
		t.Error("plain errors are not retryable")
	}
}

func writeGraph(t *testing.T, path string, ids ...string) {
	t.Helper()
	d := graph.Data{}
	for _, id := range ids {
		d.Nodes = append(d.Nodes, graph.NewNode(id, graph.CategoryComment))
	}
	if err := graph.WriteFile(d, path); err != nil {
		t.Fatal(err)
	}
}

func TestFileFetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	writeGraph(t, path, "a", "b")

	f := NewFile(path, log.New(os.Stderr))
	d, err := FetchWithRetry(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Nodes) != 2 || d.Nodes[1].ID != "b" {
		t.Errorf("fetched %d nodes", len(d.Nodes))
	}
	if f.Name() != "file:"+path {
		t.Errorf("Name() = %q", f.Name())
	}
}

func TestFileFetchMissing(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "missing.json"), nil)
	_, err := f.Fetch(context.Background())
	if err == nil || IsRetryable(err) {
		t.Errorf("missing file error = %v, want permanent", err)
	}
}

func TestFileWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	writeGraph(t, path, "a")

	f := NewFile(path, nil)
	f.Debounce = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- f.Watch(ctx, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	// The watcher needs a moment to register; keep writing until it fires.
	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for fired := false; !fired; {
		select {
		case <-changed:
			fired = true
		case <-tick.C:
			writeGraph(t, path, "a", "b")
		case <-deadline:
			t.Fatal("no change notification")
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch() = %v", err)
	}
}

func TestFunc(t *testing.T) {
	s := Func{Label: "static", Fn: func(context.Context) (graph.Data, error) {
		return graph.Data{Nodes: []*graph.Node{graph.NewNode("x", graph.CategoryUser)}}, nil
	}}
	d, err := s.Fetch(context.Background())
	if err != nil || len(d.Nodes) != 1 || s.Name() != "static" {
		t.Errorf("Func source = %v, %v", d, err)
	}
}

func TestMongo(t *testing.T) {
	uri := os.Getenv("FORCEWEAVE_MONGO_URI")
	if uri == "" {
		t.Skip("FORCEWEAVE_MONGO_URI not set")
	}
	ctx := context.Background()
	m, err := NewMongo(ctx, uri, "forceweave_test", "p1", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close(ctx)

	db := m.client.Database("forceweave_test")
	defer db.Drop(ctx)
	_, err = db.Collection(NodesCollection).InsertMany(ctx, []any{
		map[string]any{"project": "p1", "id": "a", "category": "comment", "title": "hello"},
		map[string]any{"project": "p1", "id": "b", "category": "bogus"},
		map[string]any{"project": "p2", "id": "c", "category": "user"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Collection(LinksCollection).InsertOne(ctx, map[string]any{"project": "p1", "source": "a", "target": "b"}); err != nil {
		t.Fatal(err)
	}

	d, err := m.Fetch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Nodes) != 1 || d.Nodes[0].Title != "hello" || len(d.Links) != 1 {
		t.Errorf("fetched %d nodes, %d links", len(d.Nodes), len(d.Links))
	}
}
