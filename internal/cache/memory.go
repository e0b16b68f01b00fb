package cache

import (
	"context"
	"sync"

	"mercado/internal/checkout"
)

// MemorySnapshotStore is an in-process SnapshotStore. It backs tests and
// single-node deployments that run without Redis.
type MemorySnapshotStore struct {
	mu    sync.RWMutex
	snaps map[string]*checkout.Snapshot
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snaps: make(map[string]*checkout.Snapshot)}
}

func (s *MemorySnapshotStore) Load(_ context.Context, key string) (*checkout.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[key]
	if !ok {
		return nil, checkout.ErrSnapshotNotFound
	}
	cp := *snap
	return &cp, nil
}

func (s *MemorySnapshotStore) Save(_ context.Context, key string, snap *checkout.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *snap
	s.snaps[key] = &cp
	return nil
}

func (s *MemorySnapshotStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, key)
	return nil
}
