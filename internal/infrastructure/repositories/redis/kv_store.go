package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"interviewroom/internal/core/domain"
	"interviewroom/pkg/tracing"

	"github.com/redis/go-redis/v9"
)

// KeyValueStore keeps string values in Redis. Keys written with a TTL expire server side, so a
// credential never outlives its lifetime even if the process dies.
type KeyValueStore struct {
	client redis.Cmdable
}

func NewKeyValueStore(client redis.Cmdable) *KeyValueStore {
	return &KeyValueStore{client: client}
}

func (s *KeyValueStore) Get(ctx context.Context, key string) (value string, err error) {
	ctx, span := tracing.TraceStoreOperation(ctx, "get", "redis")
	defer func() {
		if errors.Is(err, domain.ErrKeyNotFound) {
			tracing.EndSpan(span, nil)
			return
		}
		tracing.EndSpan(span, err)
	}()

	value, err = s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

// Set stores value; ttl <= 0 keeps it until deleted.
func (s *KeyValueStore) Set(ctx context.Context, key, value string, ttl time.Duration) (err error) {
	ctx, span := tracing.TraceStoreOperation(ctx, "set", "redis")
	defer func() { tracing.EndSpan(span, err) }()

	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *KeyValueStore) Delete(ctx context.Context, keys ...string) (err error) {
	if len(keys) == 0 {
		return nil
	}
	ctx, span := tracing.TraceStoreOperation(ctx, "del", "redis")
	defer func() { tracing.EndSpan(span, err) }()

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
