package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces the token key.
const DefaultRedisPrefix = "sg"

// Redis stores the token under "<prefix>:<key>".
type Redis struct {
	redis redis.UniversalClient
	key   string
	ttl   time.Duration
}

// NewRedis returns a Redis-backed store. A zero ttl keeps the key until Delete.
func NewRedis(client redis.UniversalClient, prefix, key string, ttl time.Duration) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if key == "" {
		return nil, errors.New("token key is empty")
	}
	if ttl < 0 {
		return nil, errors.New("negative token ttl")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{
		redis: client,
		key:   prefix + ":" + key,
		ttl:   ttl,
	}, nil
}

// Key returns the fully qualified Redis key.
func (s *Redis) Key() string {
	return s.key
}

func (s *Redis) Load(ctx context.Context) (string, error) {
	token, err := s.redis.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

func (s *Redis) Save(ctx context.Context, token string) error {
	if err := s.redis.Set(ctx, s.key, token, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Redis) Delete(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
