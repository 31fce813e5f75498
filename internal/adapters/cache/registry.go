package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/fairhold/escrow-arbitration-service/internal/domain"
)

const registryKey = "escrow:registry"

// RedisComponentRegistry resolves well-known component names to their
// current addresses out of a shared Redis hash.
type RedisComponentRegistry struct {
	client *redis.Client
}

func NewRedisComponentRegistry(client *redis.Client) *RedisComponentRegistry {
	return &RedisComponentRegistry{client: client}
}

func (r *RedisComponentRegistry) Resolve(ctx context.Context, component string) (string, error) {
	addr, err := r.client.HGet(ctx, registryKey, component).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return addr, nil
}

// StaticComponentRegistry serves fixed entries from configuration. Used when
// no Redis is wired.
type StaticComponentRegistry struct {
	entries map[string]string
}

func NewStaticComponentRegistry(entries map[string]string) *StaticComponentRegistry {
	if entries == nil {
		entries = map[string]string{}
	}
	return &StaticComponentRegistry{entries: entries}
}

func (r *StaticComponentRegistry) Resolve(_ context.Context, component string) (string, error) {
	addr, ok := r.entries[component]
	if !ok {
		return "", domain.ErrNotFound
	}
	return addr, nil
}
