// Package observability provides hooks for metrics about layout passes,
// worker jobs and periodic refreshes.
//
// This package enables optional instrumentation without adding hard
// dependencies on a specific backend. Consumers register hooks at startup;
// libraries emit events through the registry and get no-op behavior when
// nothing is registered.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    metrics := observability.NewPrometheus("forceweave")
//	    observability.SetLayoutHooks(metrics)
//	    observability.SetWorkerHooks(metrics)
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Layout().OnLayoutStart(ctx, "worker", nodeCount)
//	// ... run the pass ...
//	observability.Layout().OnLayoutComplete(ctx, "worker", duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Layout Hooks
// =============================================================================

// LayoutHooks receives events from the layout controller.
type LayoutHooks interface {
	// OnLayoutStart records the start of a layout pass with the chosen
	// strategy ("in-process" or "worker").
	OnLayoutStart(ctx context.Context, strategy string, nodeCount int)

	// OnPhase records entry into a phase of the pass.
	OnPhase(ctx context.Context, phase string)

	// OnLayoutComplete records the end of a pass. err is non-nil when the
	// pass was superseded or cancelled.
	OnLayoutComplete(ctx context.Context, strategy string, duration time.Duration, err error)
}

// =============================================================================
// Worker Hooks
// =============================================================================

// WorkerHooks receives events from simulation workers.
type WorkerHooks interface {
	// OnJob records a job handed to a worker transport.
	OnJob(ctx context.Context, transport string, nodeCount int)

	// OnJobComplete records the end of a job.
	OnJobComplete(ctx context.Context, transport string, duration time.Duration, err error)
}

// =============================================================================
// Refresh Hooks
// =============================================================================

// RefreshHooks receives events from the periodic refresher.
type RefreshHooks interface {
	// OnRefresh records one completed refresh.
	OnRefresh(ctx context.Context, source string, nodeCount int, duration time.Duration, err error)

	// OnRefreshSkipped records a tick dropped because the previous refresh
	// was still running.
	OnRefreshSkipped(ctx context.Context, source string)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopLayoutHooks is a no-op implementation of LayoutHooks.
type NoopLayoutHooks struct{}

func (NoopLayoutHooks) OnLayoutStart(context.Context, string, int)                     {}
func (NoopLayoutHooks) OnPhase(context.Context, string)                                {}
func (NoopLayoutHooks) OnLayoutComplete(context.Context, string, time.Duration, error) {}

// NoopWorkerHooks is a no-op implementation of WorkerHooks.
type NoopWorkerHooks struct{}

func (NoopWorkerHooks) OnJob(context.Context, string, int)                          {}
func (NoopWorkerHooks) OnJobComplete(context.Context, string, time.Duration, error) {}

// NoopRefreshHooks is a no-op implementation of RefreshHooks.
type NoopRefreshHooks struct{}

func (NoopRefreshHooks) OnRefresh(context.Context, string, int, time.Duration, error) {}
func (NoopRefreshHooks) OnRefreshSkipped(context.Context, string)                     {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	layoutHooks  LayoutHooks  = NoopLayoutHooks{}
	workerHooks  WorkerHooks  = NoopWorkerHooks{}
	refreshHooks RefreshHooks = NoopRefreshHooks{}
	hooksMu      sync.RWMutex
)

// SetLayoutHooks registers custom layout hooks.
func SetLayoutHooks(h LayoutHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		layoutHooks = h
	}
}

// SetWorkerHooks registers custom worker hooks.
func SetWorkerHooks(h WorkerHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		workerHooks = h
	}
}

// SetRefreshHooks registers custom refresh hooks.
func SetRefreshHooks(h RefreshHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		refreshHooks = h
	}
}

// Layout returns the registered layout hooks.
func Layout() LayoutHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return layoutHooks
}

// Worker returns the registered worker hooks.
func Worker() WorkerHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return workerHooks
}

// Refresh returns the registered refresh hooks.
func Refresh() RefreshHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return refreshHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	layoutHooks = NoopLayoutHooks{}
	workerHooks = NoopWorkerHooks{}
	refreshHooks = NoopRefreshHooks{}
}
