package reschedule

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"telehealth-portal/internal/models"
)

var (
	ErrSessionNotFound = errors.New("reschedule session not found")
	ErrNotSessionOwner = errors.New("reschedule session belongs to another user")
)

const DefaultSessionTTL = 30 * time.Minute

type entry struct {
	session *Session
	touched time.Time
}

// Manager holds the open reschedule sessions of all viewers in memory.
type Manager struct {
	deps Deps
	ttl  time.Duration

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewManager creates a manager whose sessions expire after ttl without access.
func NewManager(deps Deps, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Manager{deps: deps, ttl: ttl, sessions: make(map[string]*entry)}
}

// Create starts an idle session. An earlier session of the same viewer for the same
// appointment is closed, so picks never carry over between dialog openings.
func (m *Manager) Create(appt models.Appointment, viewer models.Viewer) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.deps.Clock()
	m.sweepLocked(now)
	for id, e := range m.sessions {
		if e.session.appointment.ID == appt.ID && e.session.viewer == viewer {
			e.session.Close()
			delete(m.sessions, id)
		}
	}

	s := NewSession(uuid.NewString(), appt, viewer, m.deps)
	m.sessions[s.id] = &entry{session: s, touched: now}
	m.deps.Metrics.SetSessionsOpen(len(m.sessions))
	return s
}

// Get returns the session with id when viewer, role included, opened it.
func (m *Manager) Get(id string, viewer models.Viewer) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.deps.Clock()
	m.sweepLocked(now)
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if e.session.viewer != viewer {
		return nil, ErrNotSessionOwner
	}
	e.touched = now
	return e.session, nil
}

// Remove closes and forgets a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[id]; ok {
		e.session.Close()
		delete(m.sessions, id)
	}
	m.deps.Metrics.SetSessionsOpen(len(m.sessions))
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) sweepLocked(now time.Time) {
	for id, e := range m.sessions {
		if now.Sub(e.touched) > m.ttl {
			e.session.Close()
			delete(m.sessions, id)
		}
	}
	m.deps.Metrics.SetSessionsOpen(len(m.sessions))
}
