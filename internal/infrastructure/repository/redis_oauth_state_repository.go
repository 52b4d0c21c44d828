package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"helpdesk-integration-layer/internal/domain"

	"github.com/redis/go-redis/v9"
)

const oauthStateKeyPrefix = "oauth_state:"

// RedisOAuthStateRepository keeps nonces in Redis under a TTL that outlives their expiry
type RedisOAuthStateRepository struct {
	client *redis.Client
}

func NewRedisOAuthStateRepository(client *redis.Client) *RedisOAuthStateRepository {
	return &RedisOAuthStateRepository{client: client}
}

func (r *RedisOAuthStateRepository) Save(ctx context.Context, state *domain.OAuthState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode oauth state: %w", err)
	}
	// the key outlives ExpiresAt so late callbacks report state_expired rather than invalid_state
	ttl := state.ExpiresAt.Sub(state.CreatedAt) + forensicRetention
	if err := r.client.Set(ctx, oauthStateKeyPrefix+state.State, data, ttl).Err(); err != nil {
		return storeError("save oauth state", err)
	}
	return nil
}

// Take uses GETDEL so the nonce can be consumed once
func (r *RedisOAuthStateRepository) Take(ctx context.Context, state string) (*domain.OAuthState, error) {
	data, err := r.client.GetDel(ctx, oauthStateKeyPrefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storeError("take oauth state", err)
	}

	var st domain.OAuthState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode oauth state: %w", err)
	}
	return &st, nil
}

// DeleteExpired is a no-op; Redis evicts keys on TTL
func (r *RedisOAuthStateRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}
