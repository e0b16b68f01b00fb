package checkout

import (
	"context"
	"sync"
	"testing"
	"time"
)

// memorySnapshotStore is a test double for the Redis-backed store. It keeps
// a log of every save so tests can assert write ordering.
type memorySnapshotStore struct {
	mu      sync.Mutex
	snaps   map[string]*Snapshot
	saveLog []*Snapshot
}

func newMemorySnapshotStore() *memorySnapshotStore {
	return &memorySnapshotStore{snaps: map[string]*Snapshot{}}
}

func (m *memorySnapshotStore) Load(_ context.Context, key string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[key]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return snap, nil
}

func (m *memorySnapshotStore) Save(_ context.Context, key string, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[key] = snap
	m.saveLog = append(m.saveLog, snap)
	return nil
}

func (m *memorySnapshotStore) savedNotes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.saveLog))
	for i, s := range m.saveLog {
		out[i] = s.OrderNotes
	}
	return out
}

func (m *memorySnapshotStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, key)
	return nil
}

func (m *memorySnapshotStore) peek(key string) (*Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[key]
	return snap, ok
}

// waitForSnapshot polls until a fire-and-forget save matching cond lands.
// Saves are unordered, so waiting on mere existence is not enough.
func waitForSnapshot(t *testing.T, store *memorySnapshotStore, key string, cond func(*Snapshot) bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if snap, ok := store.peek(key); ok && cond(snap) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("snapshot for %q was never persisted", key)
}
