package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type redisSettingsRepository struct {
	client    *redis.Client
	namespace string
}

// NewRedisSettingsRepository stores each setting under "<namespace>:settings:<key>".
func NewRedisSettingsRepository(client *redis.Client, namespace string) SettingsRepository {
	return &redisSettingsRepository{client: client, namespace: namespace}
}

func (r *redisSettingsRepository) key(name string) string {
	return fmt.Sprintf("%s:settings:%s", r.namespace, name)
}

func (r *redisSettingsRepository) Get(ctx context.Context, key string, out interface{}) (bool, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode setting %s: %w", key, err)
	}
	return true, nil
}

func (r *redisSettingsRepository) Set(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}
	return r.client.Set(ctx, r.key(key), payload, 0).Err()
}
