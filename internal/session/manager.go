package session

// Session manager: one Session per open connection, keyed by a generated
// connection ID.

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kbaxter/serialforge/internal/framing"
	"github.com/kbaxter/serialforge/internal/logging"
)

// Manager owns the sessions of all open connections.
type Manager struct {
	mu       sync.Mutex
	clock    Clock
	log      *logging.Logger
	sessions map[string]*Session
}

// NewManager creates a manager. A nil clock means the system clock; a nil
// logger discards.
func NewManager(clock Clock, log *logging.Logger) *Manager {
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Manager{
		clock:    clock,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Open creates a session with a fresh connection ID.
func (m *Manager) Open(cfg framing.Config) (*Session, error) {
	id := uuid.NewString()
	s, err := newSession(id, cfg, m.clock, m.log)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	m.log.Verbose("session %s opened (%s framing)", id, cfg.Strategy)
	return s, nil
}

// Get looks up an open session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close discards a session and its accumulated state.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown session %q", id)
	}
	s.Reset()
	m.log.Verbose("session %s closed", id)
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
