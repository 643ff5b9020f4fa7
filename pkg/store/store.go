// Package store provides a small typed key-value store used to persist
// client-side state (viewer zoom, info-box expansion, auth tokens)
// behind versioned keys instead of scattering raw storage access.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("store: key not found")

// Store is the minimal persistence surface. Values are stored as strings;
// typed access goes through Key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
