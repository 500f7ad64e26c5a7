package graph

// =============================================================================
// Frame - Serialized Layout Snapshot
// =============================================================================

// Position is the rendered state of one node.
type Position struct {
	ID       string   `json:"id"`
	Category Category `json:"category,omitempty"`
	Title    string   `json:"title,omitempty"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	VX       float64  `json:"vx"`
	VY       float64  `json:"vy"`
	Pinned   bool     `json:"pinned,omitempty"`
}

// Edge is a link reduced to its endpoint ids.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Frame is a copy of node positions taken at one instant. It is the only
// form in which positions leave an active layout pass: renderers, the
// HTTP stream and output files all consume frames.
type Frame struct {
	Phase  string     `json:"phase,omitempty"`
	Tick   int        `json:"tick"`
	Alpha  float64    `json:"alpha"`
	Width  float64    `json:"width,omitempty"`
	Height float64    `json:"height,omitempty"`
	Nodes  []Position `json:"nodes"`
	Links  []Edge     `json:"links"`
}

// Snapshot copies positions out of d. Unplaced coordinates are written as 0.
func Snapshot(d Data) Frame {
	f := Frame{
		Nodes: make([]Position, len(d.Nodes)),
		Links: make([]Edge, len(d.Links)),
	}
	for i, n := range d.Nodes {
		f.Nodes[i] = Position{
			ID:       n.ID,
			Category: n.Category,
			Title:    n.Title,
			X:        zeroIfNaN(n.X),
			Y:        zeroIfNaN(n.Y),
			VX:       zeroIfNaN(n.VX),
			VY:       zeroIfNaN(n.VY),
			Pinned:   n.Pinned(),
		}
	}
	for i, l := range d.Links {
		f.Links[i] = Edge{Source: l.Source.ID(), Target: l.Target.ID()}
	}
	return f
}

// ApplyTo copies the frame's coordinates onto the nodes of d with matching
// ids. It returns the number of nodes updated.
func (f Frame) ApplyTo(d Data) int {
	pos := make(map[string]Position, len(f.Nodes))
	for _, p := range f.Nodes {
		pos[p.ID] = p
	}
	updated := 0
	for _, n := range d.Nodes {
		p, ok := pos[n.ID]
		if !ok {
			continue
		}
		n.X, n.Y, n.VX, n.VY = p.X, p.Y, p.VX, p.VY
		updated++
	}
	return updated
}

// Bounds returns the bounding box of the frame's nodes.
func (f Frame) Bounds() (minX, minY, maxX, maxY float64) {
	for i, p := range f.Nodes {
		if i == 0 {
			minX, maxX, minY, maxY = p.X, p.X, p.Y, p.Y
			continue
		}
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	return minX, minY, maxX, maxY
}

func zeroIfNaN(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return v
}
