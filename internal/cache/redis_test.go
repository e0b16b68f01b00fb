package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"mercado/internal/checkout"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisSnapshotStore instance
func setupTestRedis(t *testing.T) (*RedisSnapshotStore, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	store := NewRedisSnapshotStore(client, time.Hour)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return store, mr, cleanup
}

func testSnapshot() *checkout.Snapshot {
	return &checkout.Snapshot{
		Items: []checkout.CartLine{
			{ID: "l1", ProductID: 1, Name: "Camiseta", UnitPriceCents: 45_000, Quantity: 2},
		},
		SavedAddresses: []checkout.ShippingAddress{
			{ID: "a1", Name: "Casa", City: "Bogotá"},
		},
		OrderNotes: "dejar en portería",
	}
}

func TestLoad_Success(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	snap := testSnapshot()

	data, _ := json.Marshal(snap)
	mr.Set(snapshotKey("buyer-1"), string(data))

	got, err := store.Load(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)
	assert.Equal(t, int64(45_000), got.Items[0].UnitPriceCents)
	assert.Equal(t, "dejar en portería", got.OrderNotes)
}

func TestLoad_Miss(t *testing.T) {
	store, _, cleanup := setupTestRedis(t)
	defer cleanup()

	_, err := store.Load(context.Background(), "never-seen")
	assert.ErrorIs(t, err, checkout.ErrSnapshotNotFound)
}

func TestLoad_CorruptData(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.Set(snapshotKey("buyer-1"), "{not json")

	_, err := store.Load(context.Background(), "buyer-1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, checkout.ErrSnapshotNotFound)
}

func TestSave_RoundTripAndTTL(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "buyer-1", testSnapshot()))

	got, err := store.Load(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Len(t, got.SavedAddresses, 1)

	assert.Greater(t, mr.TTL(snapshotKey("buyer-1")), time.Duration(0), "snapshots must age out")

	mr.FastForward(2 * time.Hour)
	_, err = store.Load(ctx, "buyer-1")
	assert.ErrorIs(t, err, checkout.ErrSnapshotNotFound)
}

func TestDelete(t *testing.T) {
	store, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "buyer-1", testSnapshot()))
	require.NoError(t, store.Delete(ctx, "buyer-1"))

	_, err := store.Load(ctx, "buyer-1")
	assert.ErrorIs(t, err, checkout.ErrSnapshotNotFound)

	// Deleting an absent key is not an error.
	assert.NoError(t, store.Delete(ctx, "buyer-1"))
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemorySnapshotStore()
	ctx := context.Background()

	_, err := store.Load(ctx, "buyer-1")
	assert.ErrorIs(t, err, checkout.ErrSnapshotNotFound)

	snap := testSnapshot()
	require.NoError(t, store.Save(ctx, "buyer-1", snap))

	got, err := store.Load(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, snap.OrderNotes, got.OrderNotes)

	// The store keeps its own copy.
	snap.OrderNotes = "mutated"
	got2, err := store.Load(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, "dejar en portería", got2.OrderNotes)

	require.NoError(t, store.Delete(ctx, "buyer-1"))
	_, err = store.Load(ctx, "buyer-1")
	assert.ErrorIs(t, err, checkout.ErrSnapshotNotFound)
}
