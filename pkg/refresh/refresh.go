// Package refresh periodically re-fetches a session's data.
//
// Each tick fetches from a [source.Source], merges the result into the
// session (keeping the positions of surviving nodes) and reports the new
// filtered view. A tick that fires while the previous refresh is still in
// flight is skipped rather than queued, so a slow source never piles up
// concurrent fetches.
package refresh

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"

	"github.com/matzehuels/forceweave/pkg/errors"
	"github.com/matzehuels/forceweave/pkg/graph"
	"github.com/matzehuels/forceweave/pkg/observability"
	"github.com/matzehuels/forceweave/pkg/source"
)

// DefaultInterval is the refresh period when none is configured.
const DefaultInterval = 30 * time.Second

// Target receives refreshed data. *session.Session satisfies it.
type Target interface {
	Refresh(d graph.Data)
	Filtered() graph.Data
}

// Refresher re-fetches Source into Target every Interval.
type Refresher struct {
	Source   source.Source
	Target   Target
	Interval time.Duration
	// OnUpdate receives the filtered view after each successful refresh.
	OnUpdate func(filtered graph.Data)
	// OnError receives fetch failures. The loop keeps running.
	OnError func(err error)
	Logger  *log.Logger

	sem *semaphore.Weighted
}

// New returns a refresher with the default interval.
func New(src source.Source, target Target, logger *log.Logger) *Refresher {
	return &Refresher{Source: src, Target: target, Interval: DefaultInterval, Logger: logger}
}

func (r *Refresher) init() {
	if r.Interval <= 0 {
		r.Interval = DefaultInterval
	}
	if r.Logger == nil {
		r.Logger = log.Default()
	}
	if r.sem == nil {
		r.sem = semaphore.NewWeighted(1)
	}
}

// Run refreshes on every tick until ctx ends. It does not refresh
// immediately; call Once first for that.
func (r *Refresher) Run(ctx context.Context) error {
	r.init()
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	r.Logger.Info("periodic refresh started", "source", r.Source.Name(), "interval", r.Interval)
	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("periodic refresh stopped", "source", r.Source.Name())
			return nil
		case <-ticker.C:
			go r.tick(ctx)
		}
	}
}

// tick refreshes unless a refresh is already in flight.
func (r *Refresher) tick(ctx context.Context) {
	if !r.sem.TryAcquire(1) {
		r.Logger.Warn("refresh still in flight, skipping tick", "source", r.Source.Name())
		observability.Refresh().OnRefreshSkipped(ctx, r.Source.Name())
		return
	}
	defer r.sem.Release(1)
	_ = r.refresh(ctx)
}

// Once refreshes now, waiting for any refresh in flight to finish.
func (r *Refresher) Once(ctx context.Context) error {
	r.init()
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer r.sem.Release(1)
	return r.refresh(ctx)
}

func (r *Refresher) refresh(ctx context.Context) error {
	start := time.Now()
	d, err := source.FetchWithRetry(ctx, r.Source)
	if err != nil {
		observability.Refresh().OnRefresh(ctx, r.Source.Name(), 0, time.Since(start), err)
		if ctx.Err() != nil {
			return err
		}
		r.Logger.Error("refresh failed", "source", r.Source.Name(), "error", err, "code", errors.GetCode(err))
		if r.OnError != nil {
			r.OnError(err)
		}
		return err
	}

	r.Target.Refresh(d)
	observability.Refresh().OnRefresh(ctx, r.Source.Name(), len(d.Nodes), time.Since(start), nil)
	r.Logger.Debug("refreshed", "source", r.Source.Name(), "nodes", len(d.Nodes), "links", len(d.Links), "duration", time.Since(start))
	if r.OnUpdate != nil {
		r.OnUpdate(r.Target.Filtered())
	}
	return nil
}
