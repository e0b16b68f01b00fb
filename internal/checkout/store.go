package checkout

import (
	"context"
	"errors"
)

// ErrSnapshotNotFound is returned by SnapshotStore.Load when no snapshot
// exists for the given session key.
var ErrSnapshotNotFound = errors.New("checkout snapshot not found")

// Snapshot is the subset of controller state that survives across sessions.
// Step, processing flag, shipping/payment selections, order id and errors are
// deliberately absent: they are transient and reset on every session.
type Snapshot struct {
	Items          []CartLine        `json:"items"`
	SavedAddresses []ShippingAddress `json:"saved_addresses,omitempty"`
	OrderNotes     string            `json:"order_notes,omitempty"`
}

// SnapshotStore is a durable key-value persistence mechanism for checkout
// snapshots, keyed by checkout-session key.
type SnapshotStore interface {
	Load(ctx context.Context, key string) (*Snapshot, error)
	Save(ctx context.Context, key string, snap *Snapshot) error
	Delete(ctx context.Context, key string) error
}
