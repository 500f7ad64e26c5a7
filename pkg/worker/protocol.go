package worker

import (
	"github.com/goccy/go-json"

	"github.com/matzehuels/forceweave/pkg/errors"
	"github.com/matzehuels/forceweave/pkg/graph"
)

// MessageType discriminates the worker wire messages.
type MessageType string

// Message types.
const (
	TypeInit     MessageType = "init"
	TypeProgress MessageType = "progress"
	TypeComplete MessageType = "complete"
	TypeError    MessageType = "error"
	TypeCancel   MessageType = "cancel"
)

// Message is the single wire type exchanged with a worker. Which fields
// are meaningful depends on Type:
//
//	init      Nodes, Links, Width, Height
//	progress  Progress, Alpha, Iteration, TotalIterations
//	complete  Nodes, Links, Iterations
//	error     Error
type Message struct {
	Type MessageType `json:"type"`
	Job  string      `json:"job,omitempty"`

	Nodes  []*graph.Node `json:"nodes,omitempty"`
	Links  []*graph.Link `json:"links,omitempty"`
	Width  float64       `json:"width,omitempty"`
	Height float64       `json:"height,omitempty"`

	Progress        float64 `json:"progress,omitempty"`
	Alpha           float64 `json:"alpha,omitempty"`
	Iteration       int     `json:"iteration,omitempty"`
	TotalIterations int     `json:"totalIterations,omitempty"`

	Iterations int `json:"iterations,omitempty"`

	Error string `json:"error,omitempty"`
}

// Init builds an init message from deep copies of d.
func Init(d graph.Data, width, height float64) Message {
	c := d.Clone()
	return Message{Type: TypeInit, Nodes: c.Nodes, Links: c.Links, Width: width, Height: height}
}

// Data returns the message payload as graph data.
func (m Message) Data() graph.Data {
	return graph.Data{Nodes: m.Nodes, Links: m.Links}
}

// Err converts an error message into an error.
func (m Message) Err() error {
	if m.Type != TypeError {
		return nil
	}
	return errors.New(errors.ErrCodeWorkerFailed, "%s", m.Error)
}

// Encode marshals m.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode unmarshals a message and rejects unknown types.
func Decode(b []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, errors.Wrap(errors.ErrCodeMalformedInput, err, "decode worker message")
	}
	switch m.Type {
	case TypeInit, TypeProgress, TypeComplete, TypeError, TypeCancel:
		return m, nil
	default:
		return Message{}, errors.New(errors.ErrCodeMalformedInput, "unknown worker message type %q", m.Type)
	}
}
