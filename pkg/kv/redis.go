package kv

import (
	"context"
	"fmt"

	pkgredis "github.com/coursevault/coursevault-backend/pkg/redis"
)

// Redis adapts the shared redis client to the Store contract.
type Redis struct {
	client *pkgredis.Client
}

// NewRedis wraps an established redis client.
func NewRedis(client *pkgredis.Client) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key)
	if err != nil {
		if pkgredis.IsMissing(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value string) error {
	if err := r.client.Set(ctx, key, value, 0); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}
