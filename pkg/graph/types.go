package graph

import (
	"math"
	"slices"
	"time"

	"github.com/matzehuels/forceweave/pkg/errors"
)

// =============================================================================
// Category - Closed Node Category Set
// =============================================================================

// Category is the kind of entity a node represents.
type Category string

// The fixed category set. Order matches the display palette.
const (
	CategoryProject   Category = "project"
	CategoryMap       Category = "map"
	CategoryDivpoint  Category = "divpoint"
	CategoryQuestion  Category = "question"
	CategoryComment   Category = "comment"
	CategoryReply     Category = "reply"
	CategoryAgreement Category = "agreement"
	CategoryUser      Category = "user"
	CategoryUsers     Category = "users"
)

// Categories lists every category in canonical order.
var Categories = []Category{
	CategoryProject,
	CategoryMap,
	CategoryDivpoint,
	CategoryQuestion,
	CategoryComment,
	CategoryReply,
	CategoryAgreement,
	CategoryUser,
	CategoryUsers,
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

// Ordinal returns the position of c in [Categories], or -1.
func (c Category) Ordinal() int {
	return slices.Index(Categories, c)
}

// ParseCategory converts a string into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", errors.New(errors.ErrCodeInvalidCategory, "unknown category %q", s)
	}
	return c, nil
}

// =============================================================================
// Field - Filterable Node Attributes
// =============================================================================

// Field names a node attribute that filter predicates can target.
type Field string

// Filterable fields.
const (
	FieldID          Field = "id"
	FieldCategory    Field = "category"
	FieldTitle       Field = "title"
	FieldCreatedAt   Field = "createdAt"
	FieldExternalURL Field = "externalUrl"
)

// =============================================================================
// Node
// =============================================================================

// Node is a graph entity with identity, category, timestamp and simulated
// position. Positions and velocities are NaN until the node has been placed.
//
// While a layout pass is active the position fields belong to the layout
// controller; readers take a [Frame] instead of reading them directly.
type Node struct {
	ID          string
	Category    Category
	Title       string
	CreatedAt   time.Time
	ExternalURL string

	Index int
	X, Y  float64
	VX    float64
	VY    float64

	// FX and FY pin the node while it is being dragged.
	FX, FY *float64
}

// NewNode returns an unplaced node.
func NewNode(id string, c Category) *Node {
	return &Node{
		ID:       id,
		Category: c,
		X:        math.NaN(),
		Y:        math.NaN(),
		VX:       math.NaN(),
		VY:       math.NaN(),
	}
}

// Placed reports whether the node has finite coordinates.
func (n *Node) Placed() bool {
	return isFinite(n.X) && isFinite(n.Y)
}

// Pinned reports whether the node is held at a fixed position.
func (n *Node) Pinned() bool {
	return n.FX != nil || n.FY != nil
}

// Pin fixes the node at (x, y).
func (n *Node) Pin(x, y float64) {
	n.FX, n.FY = &x, &y
}

// Unpin releases a pinned node.
func (n *Node) Unpin() {
	n.FX, n.FY = nil, nil
}

// Value returns the value of field f and whether the node carries it.
// Empty strings, zero timestamps and unknown fields count as absent.
func (n *Node) Value(f Field) (any, bool) {
	switch f {
	case FieldID:
		return n.ID, n.ID != ""
	case FieldCategory:
		return n.Category, n.Category != ""
	case FieldTitle:
		return n.Title, n.Title != ""
	case FieldCreatedAt:
		return n.CreatedAt, !n.CreatedAt.IsZero()
	case FieldExternalURL:
		return n.ExternalURL, n.ExternalURL != ""
	default:
		return nil, false
	}
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	if n.FX != nil {
		fx := *n.FX
		c.FX = &fx
	}
	if n.FY != nil {
		fy := *n.FY
		c.FY = &fy
	}
	return &c
}

// =============================================================================
// Link and Endpoint
// =============================================================================

// Endpoint is one end of a link: either a raw node id, or a node object
// once a layout pass has resolved it. Both forms answer ID.
type Endpoint struct {
	id   string
	node *Node
}

// Ref returns an unresolved endpoint for id.
func Ref(id string) Endpoint { return Endpoint{id: id} }

// Resolved returns an endpoint bound to n.
func Resolved(n *Node) Endpoint { return Endpoint{id: n.ID, node: n} }

// ID returns the node id the endpoint refers to.
func (e Endpoint) ID() string {
	if e.node != nil {
		return e.node.ID
	}
	return e.id
}

// Node returns the resolved node, or nil.
func (e Endpoint) Node() *Node { return e.node }

// IsResolved reports whether the endpoint is bound to a node object.
func (e Endpoint) IsResolved() bool { return e.node != nil }

// Link connects two nodes.
type Link struct {
	Source Endpoint
	Target Endpoint
	Index  int
}

// NewLink returns an unresolved link between two node ids.
func NewLink(source, target string) *Link {
	return &Link{Source: Ref(source), Target: Ref(target)}
}

// Resolve binds both endpoints to the node objects in index.
// It returns false, leaving the link untouched, when either id is unknown.
func (l *Link) Resolve(index map[string]*Node) bool {
	s, ok := index[l.Source.ID()]
	if !ok {
		return false
	}
	t, ok := index[l.Target.ID()]
	if !ok {
		return false
	}
	l.Source, l.Target = Resolved(s), Resolved(t)
	return true
}

// Clone returns a copy of the link with unresolved endpoints.
func (l *Link) Clone() *Link {
	return &Link{Source: Ref(l.Source.ID()), Target: Ref(l.Target.ID()), Index: l.Index}
}

// =============================================================================
// Data
// =============================================================================

// Data is a node collection, unique by id, and the links between its nodes.
type Data struct {
	Nodes []*Node
	Links []*Link
}

// NodeIDs returns the set of node ids.
func (d Data) NodeIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(d.Nodes))
	for _, n := range d.Nodes {
		ids[n.ID] = struct{}{}
	}
	return ids
}

// Index maps node ids to nodes.
func (d Data) Index() map[string]*Node {
	idx := make(map[string]*Node, len(d.Nodes))
	for _, n := range d.Nodes {
		idx[n.ID] = n
	}
	return idx
}

// Validate returns an error naming the first link endpoint that does not
// resolve to a node in d.
func (d Data) Validate() error {
	ids := d.NodeIDs()
	for i, l := range d.Links {
		for _, id := range []string{l.Source.ID(), l.Target.ID()} {
			if _, ok := ids[id]; !ok {
				return errors.New(errors.ErrCodeInvalidInput, "link %d references unknown node %q", i, id)
			}
		}
	}
	return nil
}

// Clone deep-copies d. Links in the copy are resolved against the copied
// nodes when their endpoints exist.
func (d Data) Clone() Data {
	out := Data{
		Nodes: make([]*Node, len(d.Nodes)),
		Links: make([]*Link, len(d.Links)),
	}
	for i, n := range d.Nodes {
		out.Nodes[i] = n.Clone()
	}
	idx := out.Index()
	for i, l := range d.Links {
		c := l.Clone()
		if l.Source.IsResolved() || l.Target.IsResolved() {
			c.Resolve(idx)
		}
		out.Links[i] = c
	}
	return out
}

// Report counts the problems [Data.Sanitize] repaired.
type Report struct {
	NilNodes       int
	DuplicateNodes int
	NilLinks       int
	DanglingLinks  int
}

// Clean reports whether nothing had to be repaired.
func (r Report) Clean() bool {
	return r == Report{}
}

// Sanitize drops nil nodes, repeated ids, nil links and links whose
// endpoints are not in the node collection. The first occurrence of a
// repeated id wins.
func (d Data) Sanitize() (Data, Report) {
	var rep Report
	out := Data{
		Nodes: make([]*Node, 0, len(d.Nodes)),
		Links: make([]*Link, 0, len(d.Links)),
	}
	seen := make(map[string]struct{}, len(d.Nodes))
	for _, n := range d.Nodes {
		if n == nil {
			rep.NilNodes++
			continue
		}
		if _, dup := seen[n.ID]; dup {
			rep.DuplicateNodes++
			continue
		}
		seen[n.ID] = struct{}{}
		out.Nodes = append(out.Nodes, n)
	}
	for _, l := range d.Links {
		if l == nil {
			rep.NilLinks++
			continue
		}
		_, okS := seen[l.Source.ID()]
		_, okT := seen[l.Target.ID()]
		if !okS || !okT {
			rep.DanglingLinks++
			continue
		}
		out.Links = append(out.Links, l)
	}
	return out, rep
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
