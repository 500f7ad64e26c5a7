package observability

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	l := NoopLayoutHooks{}
	l.OnLayoutStart(ctx, "in-process", 100)
	l.OnPhase(ctx, "precalc")
	l.OnLayoutComplete(ctx, "in-process", time.Second, nil)

	w := NoopWorkerHooks{}
	w.OnJob(ctx, "local", 600)
	w.OnJobComplete(ctx, "local", time.Second, nil)

	r := NoopRefreshHooks{}
	r.OnRefresh(ctx, "file", 10, time.Second, nil)
	r.OnRefreshSkipped(ctx, "file")
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Layout().(NoopLayoutHooks); !ok {
		t.Error("Layout() should return NoopLayoutHooks by default")
	}
	if _, ok := Worker().(NoopWorkerHooks); !ok {
		t.Error("Worker() should return NoopWorkerHooks by default")
	}
	if _, ok := Refresh().(NoopRefreshHooks); !ok {
		t.Error("Refresh() should return NoopRefreshHooks by default")
	}

	customLayout := &testLayoutHooks{}
	SetLayoutHooks(customLayout)
	if Layout() != customLayout {
		t.Error("SetLayoutHooks should set custom hooks")
	}

	customWorker := &testWorkerHooks{}
	SetWorkerHooks(customWorker)
	if Worker() != customWorker {
		t.Error("SetWorkerHooks should set custom hooks")
	}

	customRefresh := &testRefreshHooks{}
	SetRefreshHooks(customRefresh)
	if Refresh() != customRefresh {
		t.Error("SetRefreshHooks should set custom hooks")
	}

	Reset()
	if _, ok := Layout().(NoopLayoutHooks); !ok {
		t.Error("Reset() should restore NoopLayoutHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testLayoutHooks{}
	SetLayoutHooks(custom)
	SetLayoutHooks(nil)

	if Layout() != custom {
		t.Error("SetLayoutHooks(nil) should be ignored")
	}

	Reset()
}

func TestPrometheusHandler(t *testing.T) {
	ctx := context.Background()
	p := NewPrometheus("forceweave_test")

	p.OnLayoutStart(ctx, "worker", 800)
	p.OnPhase(ctx, "precalc")
	p.OnLayoutComplete(ctx, "worker", 2*time.Second, nil)
	p.OnLayoutComplete(ctx, "in-process", time.Second, errors.New("superseded"))
	p.OnJobComplete(ctx, "redis", time.Second, nil)
	p.OnRefresh(ctx, "mongo", 10, time.Millisecond, nil)
	p.OnRefreshSkipped(ctx, "mongo")

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`forceweave_test_layouts_total{status="ok",strategy="worker"} 1`,
		`forceweave_test_layouts_total{status="error",strategy="in-process"} 1`,
		`forceweave_test_layout_phases_total{phase="precalc"} 1`,
		`forceweave_test_worker_jobs_total{status="ok",transport="redis"} 1`,
		`forceweave_test_refresh_skipped_total{source="mongo"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

var (
	_ LayoutHooks  = (*Prometheus)(nil)
	_ WorkerHooks  = (*Prometheus)(nil)
	_ RefreshHooks = (*Prometheus)(nil)
)

type testLayoutHooks struct{ NoopLayoutHooks }
type testWorkerHooks struct{ NoopWorkerHooks }
type testRefreshHooks struct{ NoopRefreshHooks }
