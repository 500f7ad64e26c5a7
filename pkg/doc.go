// Package pkg holds the forceweave libraries.
//
// Forceweave lays out participatory-discussion graphs (projects, questions,
// comments, replies, agreements and the users behind them) with a
// force-directed simulation, filters them by perspective and derives
// engagement statistics from what is visible.
//
// # Data flow
//
//	source (file, MongoDB)
//	     ↓
//	[graph]     lenient decoding, sanitizing, frames
//	     ↓
//	[filter]    mode and category selection, time slider
//	     ↓
//	[layout]    state machine over [force], offloaded through [worker]
//	     ↓
//	[render]    DOT, SVG, PNG, PDF (cached by [cache])
//
// A [session] ties one dataset to one filter state and one layout
// controller; [refresh] keeps it current with its source, [stats] reports
// on its view and [server] exposes sessions over HTTP with server-sent
// events.
//
// # Supporting packages
//
//   - [config]: TOML/YAML configuration with validation
//   - [errors]: coded errors mapped to HTTP statuses
//   - [observability]: layout, worker and refresh hooks with a Prometheus
//     implementation
//   - [store]: the node store that keeps positions across refreshes
//   - [buildinfo]: version information set at link time
//
// [graph]: github.com/matzehuels/forceweave/pkg/graph
// [filter]: github.com/matzehuels/forceweave/pkg/filter
// [layout]: github.com/matzehuels/forceweave/pkg/layout
// [force]: github.com/matzehuels/forceweave/pkg/force
// [worker]: github.com/matzehuels/forceweave/pkg/worker
// [render]: github.com/matzehuels/forceweave/pkg/render
// [cache]: github.com/matzehuels/forceweave/pkg/cache
// [session]: github.com/matzehuels/forceweave/pkg/session
// [refresh]: github.com/matzehuels/forceweave/pkg/refresh
// [stats]: github.com/matzehuels/forceweave/pkg/stats
// [server]: github.com/matzehuels/forceweave/pkg/server
// [config]: github.com/matzehuels/forceweave/pkg/config
// [errors]: github.com/matzehuels/forceweave/pkg/errors
// [observability]: github.com/matzehuels/forceweave/pkg/observability
// [store]: github.com/matzehuels/forceweave/pkg/store
// [buildinfo]: github.com/matzehuels/forceweave/pkg/buildinfo
package pkg
