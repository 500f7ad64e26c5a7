// Package worker offloads force pre-calculation for large graphs.
//
// The protocol is message based. The caller posts one init message with a
// copy of the graph; the worker answers with progress messages and finally
// a complete message carrying the laid-out nodes, or an error message.
// Nothing is shared: positions are copied both ways.
//
// Two transports implement [Spawner]:
//
//   - [Local] runs each job on its own goroutine.
//   - [Redis] pushes jobs onto a Redis list consumed by a [Server], possibly
//     in another process, and streams replies over pub/sub.
package worker

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/matzehuels/forceweave/pkg/errors"
	"github.com/matzehuels/forceweave/pkg/observability"
)

// Worker is one running job.
type Worker interface {
	// Post sends a message to the worker. Only init is meaningful, and
	// only once.
	Post(ctx context.Context, m Message) error
	// Messages delivers worker replies. The channel is closed after a
	// complete or error message, or after Terminate.
	Messages() <-chan Message
	// Terminate stops the job. It is safe to call more than once.
	Terminate()
}

// Spawner creates workers.
type Spawner interface {
	Spawn(ctx context.Context) (Worker, error)
	// Available reports whether the transport can take work now.
	Available() bool
	// Name identifies the transport in logs and metrics.
	Name() string
}

// messageBuffer is the reply channel capacity. Progress is sent roughly
// ten times per job, so a job never blocks on a slow reader.
const messageBuffer = 16

// =============================================================================
// Local
// =============================================================================

// Local runs jobs on goroutines in this process.
type Local struct{}

// NewLocal returns a local spawner.
func NewLocal() *Local { return &Local{} }

// Name returns "local".
func (*Local) Name() string { return "local" }

// Available reports whether more than one CPU is usable; on a single CPU a
// background goroutine only competes with the caller.
func (*Local) Available() bool { return runtime.GOMAXPROCS(0) > 1 }

// Spawn starts an idle worker goroutine waiting for its init message.
func (*Local) Spawn(ctx context.Context) (Worker, error) {
	ctx, cancel := context.WithCancel(ctx)
	w := &localWorker{
		ctx:    ctx,
		cancel: cancel,
		inbox:  make(chan Message, 1),
		out:    make(chan Message, messageBuffer),
	}
	go w.loop()
	return w, nil
}

type localWorker struct {
	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan Message
	out    chan Message
	once   sync.Once
}

func (w *localWorker) Post(ctx context.Context, m Message) error {
	if w.ctx.Err() != nil {
		return errors.New(errors.ErrCodeWorkerFailed, "worker terminated")
	}
	select {
	case w.inbox <- m:
		return nil
	case <-w.ctx.Done():
		return errors.New(errors.ErrCodeWorkerFailed, "worker terminated")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *localWorker) Messages() <-chan Message { return w.out }

func (w *localWorker) Terminate() { w.once.Do(w.cancel) }

func (w *localWorker) loop() {
	defer close(w.out)
	var init Message
	select {
	case init = <-w.inbox:
	case <-w.ctx.Done():
		return
	}

	start := time.Now()
	observability.Worker().OnJob(w.ctx, "local", len(init.Nodes))
	err := Run(w.ctx, init, w.send)
	observability.Worker().OnJobComplete(w.ctx, "local", time.Since(start), err)
	if err != nil && w.ctx.Err() == nil {
		w.send(Message{Type: TypeError, Job: init.Job, Error: err.Error()})
	}
}

func (w *localWorker) send(m Message) {
	select {
	case w.out <- m:
	case <-w.ctx.Done():
	}
}
