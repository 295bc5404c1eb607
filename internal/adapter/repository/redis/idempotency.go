package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyPending = "processing"

// IdempotencyStore implements usecase.IdempotencyStore using Redis.
type IdempotencyStore struct {
	client *redis.Client
	prefix string
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{
		client: client,
		prefix: "payengine:idempotency:",
	}
}

// Begin reserves key with a placeholder, or returns what is already stored.
func (s *IdempotencyStore) Begin(ctx context.Context, key string, ttl time.Duration) ([]byte, bool, error) {
	fullKey := s.prefix + key

	set, err := s.client.SetNX(ctx, fullKey, idempotencyPending, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if set {
		return nil, true, nil
	}

	existing, err := s.client.Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		set, err = s.client.SetNX(ctx, fullKey, idempotencyPending, ttl).Result()
		if err != nil {
			return nil, false, err
		}
		return nil, set, nil
	}
	if err != nil {
		return nil, false, err
	}
	if string(existing) == idempotencyPending {
		return nil, false, nil
	}
	return existing, false, nil
}

// Complete stores the final response for key.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, response, ttl).Err()
}

// Abort removes the reservation for key.
func (s *IdempotencyStore) Abort(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
