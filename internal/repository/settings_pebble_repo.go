package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

type pebbleSettingsRepository struct {
	db        *pebble.DB
	namespace string
}

// NewPebbleSettingsRepository stores settings in an embedded pebble database under "settings/<namespace>/<key>".
func NewPebbleSettingsRepository(db *pebble.DB, namespace string) SettingsRepository {
	return &pebbleSettingsRepository{db: db, namespace: namespace}
}

func (r *pebbleSettingsRepository) key(name string) []byte {
	return []byte("settings/" + r.namespace + "/" + name)
}

func (r *pebbleSettingsRepository) Get(ctx context.Context, key string, out interface{}) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	value, closer, err := r.db.Get(r.key(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()

	if err := json.Unmarshal(value, out); err != nil {
		return false, fmt.Errorf("decode setting %s: %w", key, err)
	}
	return true, nil
}

func (r *pebbleSettingsRepository) Set(ctx context.Context, key string, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}
	return r.db.Set(r.key(key), payload, pebble.Sync)
}
