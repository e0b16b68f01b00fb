package pushtokens

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mercado/internal/infra/dbx"
)

var QueryTimeoutDuration = time.Second * 5

// Store keeps Expo push tokens per checkout session. The storefront has no
// account login, so a device registers its token against the session key.
type Store interface {
	AddOrUpdatePushToken(ctx context.Context, sessionKey, token string, deviceInfo json.RawMessage) error
	RemovePushToken(ctx context.Context, sessionKey, token string) error
	RemoveTokensByTokenList(ctx context.Context, tokens []string) error
	GetTokensBySessionKeys(ctx context.Context, sessionKeys []string) (map[string][]string, error)
	PruneStaleTokens(ctx context.Context, olderThan time.Duration) error
}

type Repository struct {
	db dbx.Querier
}

func NewRepository(q dbx.Querier) Store {
	return &Repository{db: q}
}

// AddOrUpdatePushToken upserts token + device info, refreshing last_updated.
func (r *Repository) AddOrUpdatePushToken(ctx context.Context, sessionKey, token string, deviceInfo json.RawMessage) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	q := `
	INSERT INTO session_push_tokens (session_key, expo_push_token, device_info, last_updated)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (session_key, expo_push_token)
	DO UPDATE SET device_info = EXCLUDED.device_info, last_updated = NOW();
	`

	_, err := r.db.Exec(ctx, q, sessionKey, token, deviceInfo)
	return err
}

func (r *Repository) RemovePushToken(ctx context.Context, sessionKey, token string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	q := `DELETE FROM session_push_tokens WHERE session_key = $1 AND expo_push_token = $2`
	_, err := r.db.Exec(ctx, q, sessionKey, token)
	return err
}

// RemoveTokensByTokenList deletes tokens Expo reported as dead.
func (r *Repository) RemoveTokensByTokenList(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	q := `DELETE FROM session_push_tokens WHERE expo_push_token = ANY($1)`
	_, err := r.db.Exec(ctx, q, tokens)
	return err
}

// GetTokensBySessionKeys returns push tokens grouped by session key.
func (r *Repository) GetTokensBySessionKeys(ctx context.Context, sessionKeys []string) (map[string][]string, error) {
	result := make(map[string][]string)
	if len(sessionKeys) == 0 {
		return result, nil
	}
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	q := `SELECT session_key, expo_push_token FROM session_push_tokens WHERE session_key = ANY($1)`
	rows, err := r.db.Query(ctx, q, sessionKeys)
	if err != nil {
		return nil, fmt.Errorf("get tokens: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, token string
		if err := rows.Scan(&key, &token); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		result[key] = append(result[key], token)
	}
	return result, rows.Err()
}

func (r *Repository) PruneStaleTokens(ctx context.Context, olderThan time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	q := `DELETE FROM session_push_tokens WHERE last_updated < NOW() - $1::interval`
	_, err := r.db.Exec(ctx, q, fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	return err
}
