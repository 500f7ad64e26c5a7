package session

import (
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/forceweave/pkg/errors"
)

// Manager holds concurrent sessions by id.
type Manager struct {
	defaults Options
	logger   *log.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager returns a manager whose sessions start from defaults.
func NewManager(defaults Options) *Manager {
	if defaults.Logger == nil {
		defaults.Logger = log.Default()
	}
	return &Manager{
		defaults: defaults,
		logger:   defaults.Logger,
		sessions: make(map[string]*Session),
	}
}

// Create registers a new session. configure, if non-nil, adjusts the
// options of this session before it is built; the session id is passed so
// callbacks can be bound to it.
func (m *Manager) Create(configure func(id string, opts *Options)) *Session {
	opts := m.defaults
	if opts.Selection != nil {
		opts.Selection = opts.Selection.Clone()
	}
	id := newID()
	if configure != nil {
		configure(id, &opts)
	}
	s := New(id, opts)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.logger.Debug("session created", "session", s.ID(), "sessions", n)
	return s
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeSessionNotFound, "session %q not found", id)
	}
	return s, nil
}

// Delete closes and removes a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return errors.New(errors.ErrCodeSessionNotFound, "session %q not found", id)
	}
	s.Close()
	m.logger.Debug("session deleted", "session", id)
	return nil
}

// List returns the ids of all sessions in sorted order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close closes and removes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
