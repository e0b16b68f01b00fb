package checkout

import (
	"context"
	"sync"
	"time"
)

type session struct {
	ctrl     *Controller
	lastSeen time.Time
}

// SessionManager hands out one live controller per checkout-session key. On
// a miss it rebuilds the controller from the persisted snapshot, which is
// how transient state (step, selections, errors) resets across sessions.
type SessionManager struct {
	mu       sync.Mutex
	store    SnapshotStore
	sessions map[string]*session
	idleTTL  time.Duration
	onCreate func(*Controller)
}

// NewSessionManager builds a manager evicting controllers idle longer than
// idleTTL. onCreate, when non-nil, runs once per new controller (used to
// attach event listeners); it may be nil.
func NewSessionManager(store SnapshotStore, idleTTL time.Duration, onCreate func(*Controller)) *SessionManager {
	return &SessionManager{
		store:    store,
		sessions: make(map[string]*session),
		idleTTL:  idleTTL,
		onCreate: onCreate,
	}
}

// Get returns the live controller for key, restoring it from the snapshot
// store when the session is not resident.
func (m *SessionManager) Get(ctx context.Context, key string) (*Controller, error) {
	m.mu.Lock()
	if s, ok := m.sessions[key]; ok {
		s.lastSeen = time.Now()
		ctrl := s.ctrl
		m.mu.Unlock()
		return ctrl, nil
	}
	m.mu.Unlock()

	// Restore outside the manager lock; a slow snapshot load must not stall
	// unrelated sessions.
	ctrl := NewController(key, m.store)
	if err := ctrl.Restore(ctx); err != nil {
		return nil, err
	}
	if m.onCreate != nil {
		m.onCreate(ctrl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		// Lost the race to another request for the same session.
		s.lastSeen = time.Now()
		return s.ctrl, nil
	}
	m.sessions[key] = &session{ctrl: ctrl, lastSeen: time.Now()}
	return ctrl, nil
}

// PurgeIdle evicts sessions idle longer than the TTL and returns how many
// were dropped. The persisted subset survives in the snapshot store.
func (m *SessionManager) PurgeIdle() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-m.idleTTL)
	n := 0
	for key, s := range m.sessions {
		if s.lastSeen.Before(cutoff) && !s.ctrl.IsProcessing() {
			delete(m.sessions, key)
			n++
		}
	}
	return n
}

// Len reports how many sessions are resident.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
