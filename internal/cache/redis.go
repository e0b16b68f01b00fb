package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mercado/internal/checkout"

	"github.com/redis/go-redis/v9"
)

// RedisSnapshotStore persists checkout snapshots in Redis, keyed by the
// checkout-session key. Snapshots carry a TTL so abandoned carts age out on
// their own.
type RedisSnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSnapshotStore(client *redis.Client, ttl time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client, ttl: ttl}
}

func (s *RedisSnapshotStore) Load(ctx context.Context, key string) (*checkout.Snapshot, error) {
	data, err := s.client.Get(ctx, snapshotKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, checkout.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var snap checkout.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot failed: %w", err)
	}
	return &snap, nil
}

func (s *RedisSnapshotStore) Save(ctx context.Context, key string, snap *checkout.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot failed: %w", err)
	}
	if err := s.client.Set(ctx, snapshotKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *RedisSnapshotStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, snapshotKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func snapshotKey(sessionKey string) string {
	return fmt.Sprintf("checkout:%s", sessionKey)
}
