// Package source fetches graph data for a session.
//
// A [Source] produces a complete, normalized [graph.Data] on every call; the
// session decides how to merge it. Two implementations are provided:
//
//   - [File] reads a JSON graph file and can watch it for changes.
//   - [Mongo] reads the nodes and links collections of one project.
//
// Transient failures are marked with [Retryable] and retried by [Retry].
package source

import (
	"context"
	"errors"
	"time"

	"github.com/matzehuels/forceweave/pkg/graph"
)

// Source fetches graph data.
type Source interface {
	Fetch(ctx context.Context) (graph.Data, error)
	// Name identifies the source in logs and metrics.
	Name() string
}

// Func adapts a function to Source.
type Func struct {
	Label string
	Fn    func(ctx context.Context) (graph.Data, error)
}

// Fetch calls f.Fn.
func (f Func) Fetch(ctx context.Context) (graph.Data, error) { return f.Fn(ctx) }

// Name returns f.Label.
func (f Func) Name() string { return f.Label }

// =============================================================================
// Retry
// =============================================================================

// RetryableError marks an error as transient.
type RetryableError struct{ Err error }

// Retryable wraps err as transient. It returns nil for a nil err.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err was marked transient.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Retry policy.
const (
	RetryAttempts = 3
	RetryDelay    = time.Second
)

// Retry runs fn up to RetryAttempts times, doubling the delay after each
// failure. Only errors marked Retryable are retried.
func Retry(ctx context.Context, fn func() error) error {
	return retry(ctx, RetryDelay, fn)
}

func retry(ctx context.Context, delay time.Duration, fn func() error) error {
	var lastErr error
	for i := range RetryAttempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}
		if i < RetryAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

// FetchWithRetry fetches from s under Retry.
func FetchWithRetry(ctx context.Context, s Source) (graph.Data, error) {
	var d graph.Data
	err := Retry(ctx, func() error {
		var err error
		d, err = s.Fetch(ctx)
		return err
	})
	return d, err
}
