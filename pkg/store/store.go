// Package store holds the canonical graph dataset of one visualization.
//
// The store is deliberately unsynchronized: it belongs to a single logical
// owner (a session) which must not merge while a layout pass holds the same
// node objects. Use [Store.MergeIncoming] for periodic refreshes so that
// nodes that survive a refresh keep their kinematic state.
package store

import (
	"github.com/matzehuels/forceweave/pkg/graph"
)

// Store is the canonical dataset.
type Store struct {
	data graph.Data
}

// New returns a store holding d.
func New(d graph.Data) *Store {
	return &Store{data: d}
}

// Data returns the canonical dataset.
func (s *Store) Data() graph.Data {
	return s.data
}

// SetData replaces the canonical dataset unconditionally.
func (s *Store) SetData(d graph.Data) {
	s.data = d
}

// MergeIncoming makes next canonical, carrying kinematic state over from
// the previous dataset. For every node in next whose id was present before,
// the previous node's X, Y, VX, VY and Index are copied onto it, provided the
// previous node had been placed. Nodes absent from next are dropped; the
// latest fetch is authoritative for membership. Links come from next; one
// that joins the same endpoints as a previous link keeps its index.
func (s *Store) MergeIncoming(next graph.Data) graph.Data {
	s.data = Merge(s.data, next)
	return s.data
}

// Merge copies kinematic state from prev onto matching nodes of next and
// returns next.
func Merge(prev, next graph.Data) graph.Data {
	old := make(map[string]*graph.Node, len(prev.Nodes))
	for _, n := range prev.Nodes {
		if n != nil {
			old[n.ID] = n
		}
	}
	for _, n := range next.Nodes {
		if n == nil {
			continue
		}
		o, ok := old[n.ID]
		if !ok || o == n || !o.Placed() {
			continue
		}
		n.X, n.Y = o.X, o.Y
		n.VX, n.VY = o.VX, o.VY
		n.Index = o.Index
	}

	oldLinks := make(map[[2]string]int, len(prev.Links))
	for _, l := range prev.Links {
		if l == nil {
			continue
		}
		k := linkKey(l)
		if _, dup := oldLinks[k]; !dup {
			oldLinks[k] = l.Index
		}
	}
	for _, l := range next.Links {
		if l == nil {
			continue
		}
		if i, ok := oldLinks[linkKey(l)]; ok {
			l.Index = i
		}
	}
	return next
}

func linkKey(l *graph.Link) [2]string {
	return [2]string{l.Source.ID(), l.Target.ID()}
}
