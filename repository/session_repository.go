package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yashrajoria/stripe-payment-service/models"
)

// SessionRepository keeps checkout session state between requests.
type SessionRepository interface {
	Get(ctx context.Context, sessionID string) (models.SessionState, error)
	Save(ctx context.Context, sessionID string, state models.SessionState) error
	Delete(ctx context.Context, sessionID string) error
}

type RedisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionRepository(client *redis.Client, ttl time.Duration) *RedisSessionRepository {
	return &RedisSessionRepository{client: client, ttl: ttl}
}

func (r *RedisSessionRepository) key(sessionID string) string {
	return fmt.Sprintf("payment:session:%s", sessionID)
}

// Get returns the zero state when nothing is stored for sessionID.
func (r *RedisSessionRepository) Get(ctx context.Context, sessionID string) (models.SessionState, error) {
	var state models.SessionState
	data, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return state, nil
	}
	if err != nil {
		return state, err
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return models.SessionState{}, fmt.Errorf("corrupt session state: %w", err)
	}
	return state, nil
}

// Save stores state and refreshes the TTL. An empty state deletes the key.
func (r *RedisSessionRepository) Save(ctx context.Context, sessionID string, state models.SessionState) error {
	if state.IsEmpty() {
		return r.Delete(ctx, sessionID)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(sessionID), data, r.ttl).Err()
}

func (r *RedisSessionRepository) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, r.key(sessionID)).Err()
}
