// Package graph provides the data model shared by every forceweave component.
//
// # Core Types
//
//   - [Node]: an entity with identity, [Category], timestamp and simulated position
//   - [Link]: a connection whose [Endpoint]s are raw ids or resolved nodes
//   - [Data]: nodes (unique by id) and the links between them
//   - [Frame]: a copied snapshot of positions, the unit handed to renderers
//
// # Categories
//
// Categories form a closed set. Use [ParseCategory] at input boundaries and
// [Category.Valid] to check decoded values:
//
//	graph.CategoryProject  // "project"
//	graph.CategoryUser     // "user"
//	graph.Categories       // all nine, canonical order
//
// # Positions
//
// A node that has never been laid out has NaN coordinates ([Node.Placed]
// reports false). The JSON codec omits NaN values and decodes absent
// coordinates back to NaN, so a layout file can be fed back in and its
// positions survive.
//
// # Serialization
//
// Graphs use a node-link JSON format:
//
//	{
//	  "nodes": [{"id": "p1", "category": "project", "createdAt": "2024-03-01T10:00:00Z"}],
//	  "links": [{"source": "u1", "target": "p1"}]
//	}
//
// Link endpoints may also be objects ({"source": {"id": "u1"}}), which is how
// a graph looks after a browser-side layout pass. [Decode] is lenient: a
// "nodes" or "links" member that is not an array becomes empty and is logged
// rather than failing the whole document.
//
//	d, _ := graph.ReadFile("network.json", logger)  // File → Data
//	graph.WriteFile(d, "out.json")                   // Data → File
//
// # Concurrency
//
// Data is not synchronized. The layout controller owns position fields while
// a pass runs; everybody else reads [Frame] snapshots.
package graph
