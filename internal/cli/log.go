// Package cli implements the forceweave command-line interface.
//
// # Commands
//
// The main commands are:
//   - layout: Filter a graph and compute node positions
//   - filter: Write the filtered view of a graph
//   - stats: Print counters and engagement indicators
//   - render: Draw a layout as SVG, PNG or PDF
//   - watch: Refresh a source periodically with a live dashboard
//   - serve: Run the HTTP API
//   - worker: Consume offloaded layout jobs from Redis
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a logger with timestamps formatted as "HH:MM:SS.ms".
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// elapsed logs completion of an operation with its elapsed time.
type elapsed struct {
	logger *log.Logger
	start  time.Time
}

func newElapsed(l *log.Logger) *elapsed {
	return &elapsed{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time, e.g. "Layout converged (1.234s)".
func (p *elapsed) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger returns a new context carrying l.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
