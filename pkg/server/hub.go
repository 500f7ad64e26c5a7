package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	json "github.com/goccy/go-json"
)

// Event types sent over the events stream.
const (
	EventState    = "state"
	EventProgress = "progress"
	EventFrame    = "frame"
	EventRefresh  = "refresh"
)

// KeepAlive is the interval between comment lines on idle streams.
const KeepAlive = 30 * time.Second

// subscriberBuffer is the per-client queue length. Events beyond it are
// dropped for that client.
const subscriberBuffer = 64

// Event is one server-sent event.
type Event struct {
	Type string
	Data any
}

type subscriber struct {
	events chan []byte
}

// Hub fans session events out to server-sent event streams.
type Hub struct {
	logger *log.Logger

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

// NewHub returns an empty hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{logger: logger, subs: make(map[string]map[*subscriber]struct{})}
}

// Publish sends e to every stream of the session. Slow clients miss events
// rather than block the publisher.
func (h *Hub) Publish(session string, e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs := h.subs[session]
	if len(subs) == 0 {
		return
	}
	msg, err := encodeEvent(e)
	if err != nil {
		h.logger.Warn("dropping unencodable event", "session", session, "type", e.Type, "err", err)
		return
	}
	for sub := range subs {
		select {
		case sub.events <- msg:
		default:
			h.logger.Debug("slow events client, skipping", "session", session, "type", e.Type)
		}
	}
}

// Subscribers returns the number of open streams of the session.
func (h *Hub) Subscribers(session string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[session])
}

// Close ends every stream of the session.
func (h *Hub) Close(session string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[session] {
		close(sub.events)
	}
	delete(h.subs, session)
}

func (h *Hub) subscribe(session string) *subscriber {
	sub := &subscriber{events: make(chan []byte, subscriberBuffer)}
	h.mu.Lock()
	if h.subs[session] == nil {
		h.subs[session] = make(map[*subscriber]struct{})
	}
	h.subs[session][sub] = struct{}{}
	n := len(h.subs[session])
	h.mu.Unlock()
	h.logger.Debug("events client connected", "session", session, "clients", n)
	return sub
}

func (h *Hub) unsubscribe(session string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subs[session]
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.events)
	if len(subs) == 0 {
		delete(h.subs, session)
	}
}

// Serve streams the session's events to w until the client disconnects or
// the session is closed. initial is written first.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, session string, initial ...Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.subscribe(session)
	defer h.unsubscribe(session, sub)

	fmt.Fprint(w, ": connected\n\n")
	for _, e := range initial {
		if msg, err := encodeEvent(e); err == nil {
			w.Write(msg)
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(KeepAlive)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-sub.events:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func encodeEvent(e Event) ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", e.Type, data), nil
}
