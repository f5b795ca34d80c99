package service

import (
	"sync"

	"github.com/rl1809/scan-intake/internal/core/domain"
)

// SessionFactory builds a fresh Session for a technician.
type SessionFactory func(tech domain.Technician) *Session

// Manager hands out one Session per technician identity. Identity itself is
// established by the surrounding application; the manager only keys on it.
type Manager struct {
	factory SessionFactory

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(factory SessionFactory) *Manager {
	return &Manager{
		factory:  factory,
		sessions: make(map[string]*Session),
	}
}

// Session returns the technician's session, creating it on first use.
func (m *Manager) Session(tech domain.Technician) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[tech.ID]; ok {
		return s
	}
	s := m.factory(tech)
	m.sessions[tech.ID] = s
	return s
}

// Close tears down a technician's session: pending work is cancelled and the
// next request starts from a clean Scan state.
func (m *Manager) Close(techID string) {
	m.mu.Lock()
	s, ok := m.sessions[techID]
	delete(m.sessions, techID)
	m.mu.Unlock()

	if ok {
		s.Cancel()
	}
}
