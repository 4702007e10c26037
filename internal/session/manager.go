package session

import (
	"errors"
	"sync"
)

var ErrNotFound = errors.New("session not found")

// Manager is the registry of live sessions, keyed by customer name.
// Sessions live for the process lifetime; they are never persisted.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	window   int
}

func NewManager(historyWindow int) *Manager {
	if historyWindow <= 0 {
		historyWindow = 10
	}
	return &Manager{
		sessions: make(map[string]*Session),
		window:   historyWindow,
	}
}

// Resolve returns the session for the customer, creating it with an empty
// history on first use. The second return reports whether a new session
// was created.
func (m *Manager) Resolve(customerName string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[customerName]
	m.mu.RUnlock()
	if ok {
		return s, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[customerName]; ok {
		return s, false
	}
	s = newSession(customerName, m.window)
	m.sessions[customerName] = s
	return s, true
}

// Get returns the session for the customer if one exists.
func (m *Manager) Get(customerName string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[customerName]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Reset drops every session. Teardown hook for tests and credential
// registry eviction.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*Session)
}
