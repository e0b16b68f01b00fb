package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_SameKeySameController(t *testing.T) {
	m := NewSessionManager(newMemorySnapshotStore(), time.Minute, nil)
	ctx := context.Background()

	a, err := m.Get(ctx, "buyer-1")
	require.NoError(t, err)
	b, err := m.Get(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Same(t, a, b)

	other, err := m.Get(ctx, "buyer-2")
	require.NoError(t, err)
	assert.NotSame(t, a, other)
	assert.Equal(t, 2, m.Len())
}

func TestSessionManager_OnCreateRunsOncePerController(t *testing.T) {
	created := 0
	m := NewSessionManager(newMemorySnapshotStore(), time.Minute, func(*Controller) { created++ })
	ctx := context.Background()

	_, err := m.Get(ctx, "buyer-1")
	require.NoError(t, err)
	_, err = m.Get(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestSessionManager_EvictedSessionRestoresFromSnapshot(t *testing.T) {
	store := newMemorySnapshotStore()
	m := NewSessionManager(store, 0, nil)
	ctx := context.Background()

	ctrl, err := m.Get(ctx, "buyer-1")
	require.NoError(t, err)
	_, err = ctrl.AddItem(testLine(1, 10_000, 2))
	require.NoError(t, err)
	require.True(t, ctrl.GoToNextStep())

	waitForSnapshot(t, store, "buyer-1", func(s *Snapshot) bool { return len(s.Items) == 1 })

	// TTL of zero makes everything idle immediately.
	assert.Equal(t, 1, m.PurgeIdle())
	assert.Equal(t, 0, m.Len())

	revived, err := m.Get(ctx, "buyer-1")
	require.NoError(t, err)
	assert.NotSame(t, ctrl, revived)
	assert.Len(t, revived.Items(), 1, "cart survives eviction via the snapshot store")
	assert.Equal(t, StepCart, revived.CurrentStep(), "step is transient and resets")
}

func TestSessionManager_PurgeSkipsProcessing(t *testing.T) {
	m := NewSessionManager(newMemorySnapshotStore(), 0, nil)
	ctx := context.Background()

	ctrl, err := m.Get(ctx, "buyer-1")
	require.NoError(t, err)
	require.True(t, ctrl.SetProcessing(true))

	assert.Equal(t, 0, m.PurgeIdle(), "a session with an order in flight is never evicted")
	assert.Equal(t, 1, m.Len())

	require.True(t, ctrl.SetProcessing(false))
	assert.Equal(t, 1, m.PurgeIdle())
}
