package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Key is a typed, versioned handle on a stored value. The version is part
// of the storage key, so a layout change bumps the version and old values
// simply go unread instead of being misdecoded.
type Key[T any] struct {
	name    string
	version int
}

// NewKey creates a typed key. Name should be dotted lowercase
// ("fullscreen.zoom"); version starts at 1.
func NewKey[T any](name string, version int) Key[T] {
	return Key[T]{name: name, version: version}
}

// String returns the storage key, e.g. "v1:fullscreen.zoom".
func (k Key[T]) String() string {
	return fmt.Sprintf("v%d:%s", k.version, k.name)
}

// Get loads and decodes the value. Returns ErrNotFound when absent.
func (k Key[T]) Get(ctx context.Context, s Store) (T, error) {
	var zero T

	raw, err := s.Get(ctx, k.String())
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return zero, fmt.Errorf("decode %s: %w", k.String(), err)
	}
	return out, nil
}

// GetOr loads the value, returning fallback when the key is absent.
// Decode errors still surface.
func (k Key[T]) GetOr(ctx context.Context, s Store, fallback T) (T, error) {
	v, err := k.Get(ctx, s)
	if err != nil {
		if err == ErrNotFound {
			return fallback, nil
		}
		return fallback, err
	}
	return v, nil
}

// Set encodes and stores the value.
func (k Key[T]) Set(ctx context.Context, s Store, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", k.String(), err)
	}
	return s.Set(ctx, k.String(), string(raw))
}

// Delete removes the value.
func (k Key[T]) Delete(ctx context.Context, s Store) error {
	return s.Delete(ctx, k.String())
}
