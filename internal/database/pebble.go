package database

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// OpenPebble opens (or creates) the embedded settings store at path.
func OpenPebble(path string) (*pebble.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("pebble path must not be empty")
	}

	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", path, err)
	}

	return db, nil
}
