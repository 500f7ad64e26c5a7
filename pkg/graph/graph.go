package graph

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	json "github.com/goccy/go-json"

	"github.com/matzehuels/forceweave/pkg/errors"
)

// =============================================================================
// Graph Serialization API
// =============================================================================

// Marshal converts graph data to indented JSON bytes.
func Marshal(d Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(d, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write writes graph data as indented JSON to w.
func Write(d Data, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteFile writes graph data to a JSON file.
// The file is created with 0644 permissions.
func WriteFile(d Data, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return Write(d, f)
}

// ReadFile reads and leniently decodes a JSON graph file.
func ReadFile(path string, logger *log.Logger) (Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return Data{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f, logger)
}

// Decode reads a JSON object with "nodes" and "links" members.
//
// Decoding is lenient: a member that is absent, null, not an array, or has
// undecodable elements becomes an empty collection and a warning is logged.
// Null array elements are dropped the same way. Decode only fails when the
// document itself is not a JSON object.
func Decode(r io.Reader, logger *log.Logger) (Data, error) {
	if logger == nil {
		logger = log.Default()
	}
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Data{}, errors.Wrap(errors.ErrCodeMalformedInput, err, "decode graph")
	}

	nodes := decodeArray[Node](raw["nodes"], "nodes", logger)
	links := decodeArray[Link](raw["links"], "links", logger)
	return Data{Nodes: nodes, Links: links}, nil
}

// Unmarshal leniently decodes graph data from bytes. See [Decode].
func Unmarshal(data []byte, logger *log.Logger) (Data, error) {
	return Decode(bytes.NewReader(data), logger)
}

func decodeArray[T any](raw json.RawMessage, member string, logger *log.Logger) []*T {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		logger.Warn("input is not an array, using empty collection",
			"member", member, "code", errors.ErrCodeMalformedInput)
		return []*T{}
	}
	var items []*T
	if err := json.Unmarshal(trimmed, &items); err != nil {
		logger.Warn("undecodable elements, using empty collection",
			"member", member, "code", errors.ErrCodeMalformedInput, "err", err)
		return []*T{}
	}
	out := items[:0]
	for _, it := range items {
		if it != nil {
			out = append(out, it)
		}
	}
	if dropped := len(items) - len(out); dropped > 0 {
		logger.Warn("dropped null elements", "member", member, "count", dropped,
			"code", errors.ErrCodeMalformedInput)
	}
	return out
}

// =============================================================================
// Wire Types
// =============================================================================

type dataJSON struct {
	Nodes []*Node `json:"nodes"`
	Links []*Link `json:"links"`
}

// MarshalJSON writes nil collections as empty arrays.
func (d Data) MarshalJSON() ([]byte, error) {
	out := dataJSON{Nodes: d.Nodes, Links: d.Links}
	if out.Nodes == nil {
		out.Nodes = []*Node{}
	}
	if out.Links == nil {
		out.Links = []*Link{}
	}
	return json.Marshal(out)
}

// nodeJSON is the wire form of a Node. "group" is accepted as an alias for
// "category"; createdAt may be RFC 3339 or epoch milliseconds.
type nodeJSON struct {
	ID          string          `json:"id"`
	Category    Category        `json:"category,omitempty"`
	Group       Category        `json:"group,omitempty"`
	Title       string          `json:"title,omitempty"`
	CreatedAt   json.RawMessage `json:"createdAt,omitempty"`
	ExternalURL string          `json:"externalUrl,omitempty"`
	Index       *int            `json:"index,omitempty"`
	X           *float64        `json:"x,omitempty"`
	Y           *float64        `json:"y,omitempty"`
	VX          *float64        `json:"vx,omitempty"`
	VY          *float64        `json:"vy,omitempty"`
	FX          *float64        `json:"fx,omitempty"`
	FY          *float64        `json:"fy,omitempty"`
}

// MarshalJSON omits unset positions and zero timestamps.
func (n *Node) MarshalJSON() ([]byte, error) {
	w := nodeJSON{
		ID:          n.ID,
		Category:    n.Category,
		Title:       n.Title,
		ExternalURL: n.ExternalURL,
		X:           finitePtr(n.X),
		Y:           finitePtr(n.Y),
		VX:          finitePtr(n.VX),
		VY:          finitePtr(n.VY),
		FX:          n.FX,
		FY:          n.FY,
	}
	if n.Placed() {
		idx := n.Index
		w.Index = &idx
	}
	if !n.CreatedAt.IsZero() {
		ts, err := json.Marshal(n.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return nil, err
		}
		w.CreatedAt = ts
	}
	return json.Marshal(w)
}

// UnmarshalJSON fills absent positions with NaN.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w nodeJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	created, err := parseTimestamp(w.CreatedAt)
	if err != nil {
		return fmt.Errorf("node %q: %w", w.ID, err)
	}
	*n = Node{
		ID:          w.ID,
		Category:    w.Category,
		Title:       w.Title,
		CreatedAt:   created,
		ExternalURL: w.ExternalURL,
		X:           orNaN(w.X),
		Y:           orNaN(w.Y),
		VX:          orNaN(w.VX),
		VY:          orNaN(w.VY),
		FX:          w.FX,
		FY:          w.FY,
	}
	if n.Category == "" {
		n.Category = w.Group
	}
	if w.Index != nil {
		n.Index = *w.Index
	}
	return nil
}

type linkJSON struct {
	Source Endpoint `json:"source"`
	Target Endpoint `json:"target"`
}

// MarshalJSON writes both endpoints as raw ids.
func (l *Link) MarshalJSON() ([]byte, error) {
	return json.Marshal(linkJSON{Source: l.Source, Target: l.Target})
}

// UnmarshalJSON accepts raw-id or object endpoints.
func (l *Link) UnmarshalJSON(data []byte) error {
	var w linkJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	l.Source, l.Target = w.Source, w.Target
	return nil
}

// MarshalJSON writes the endpoint as its id.
func (e Endpoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ID())
}

// UnmarshalJSON accepts a string id, a numeric id, or an object with an
// "id" member.
func (e *Endpoint) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty endpoint")
	}
	switch data[0] {
	case '"':
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*e = Ref(id)
	case '{':
		var obj struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		return e.UnmarshalJSON(obj.ID)
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return fmt.Errorf("endpoint must be an id or an object: %w", err)
		}
		*e = Ref(num.String())
	}
	return nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		if s == "" {
			return time.Time{}, nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		return time.Parse(time.RFC3339Nano, s)
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}

func finitePtr(v float64) *float64 {
	if !isFinite(v) {
		return nil
	}
	return &v
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
