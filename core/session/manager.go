package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMaxSessions = 1000
	DefaultIdleTimeout = time.Hour
)

// Manager holds the sessions of all users by id.
// Sessions idle for longer than the idle timeout are dropped, and the least
// recently used session makes room when the manager is full.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[uuid.UUID]*Session
	maxSessions int
	idleTimeout time.Duration
	now         func() time.Time
}

// NewManager creates a manager holding at most maxSessions sessions.
// Non-positive values use DefaultMaxSessions and DefaultIdleTimeout.
func NewManager(maxSessions int, idleTimeout time.Duration) *Manager {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Manager{
		sessions:    make(map[uuid.UUID]*Session),
		maxSessions: maxSessions,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Create registers a new session.
func (m *Manager) Create() *Session {
	s := New()

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s.lastUsed = now
	m.sweep(now)
	for len(m.sessions) >= m.maxSessions {
		m.evictLeastRecentlyUsed()
	}
	m.sessions[s.ID] = s

	return s
}

// Get returns the session with id if it has not expired and marks it as used.
func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	now := m.now()
	if m.expired(s, now) {
		return nil, false
	}
	s.touch(now)
	return s, true
}

// Lookup returns the stored session for the raw id without creating one.
func (m *Manager) Lookup(rawID string) (*Session, bool) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, false
	}
	return m.Get(id)
}

// GetOrCreate returns the session for the raw id or a new one
// if the id is malformed, unknown or expired.
func (m *Manager) GetOrCreate(rawID string) *Session {
	if s, ok := m.Lookup(rawID); ok {
		return s
	}
	return m.Create()
}

// Delete forgets the session with id.
func (m *Manager) Delete(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len returns the number of stored sessions, expired ones included until the next sweep.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) expired(s *Session, now time.Time) bool {
	return now.Sub(s.LastUsed()) > m.idleTimeout
}

// sweep drops expired sessions, m.mu must be held for writing.
func (m *Manager) sweep(now time.Time) {
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
		}
	}
}

// evictLeastRecentlyUsed drops the oldest session, m.mu must be held for writing.
func (m *Manager) evictLeastRecentlyUsed() {
	var oldestID uuid.UUID
	var oldest time.Time
	found := false
	for id, s := range m.sessions {
		if used := s.LastUsed(); !found || used.Before(oldest) {
			oldestID, oldest, found = id, used, true
		}
	}
	if found {
		delete(m.sessions, oldestID)
	}
}
