package credstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the pairs as fields of one Redis hash. Useful when the
// same session should follow the user across machines.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore constructs a Redis-backed store using hash key.
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Get(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	values, err := s.client.HMGet(ctx, s.key, keys...).Result()
	if err != nil {
		if err == redis.Nil {
			return out, nil
		}
		return nil, fmt.Errorf("credstore: load %s: %w", s.key, err)
	}
	for i, raw := range values {
		if str, ok := raw.(string); ok {
			out[keys[i]] = str
		}
	}
	return out, nil
}

func (s *RedisStore) Set(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	fields := make(map[string]any, len(values))
	for k, v := range values {
		fields[k] = v
	}
	if err := s.client.HSet(ctx, s.key, fields).Err(); err != nil {
		return fmt.Errorf("credstore: persist %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, s.key, keys...).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("credstore: delete fields of %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("credstore: delete %s: %w", s.key, err)
	}
	return nil
}
