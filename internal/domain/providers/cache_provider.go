package providers

import (
	"context"
	"errors"
)

// ErrCacheMiss is returned by CacheProvider.Get when the key is absent
var ErrCacheMiss = errors.New("cache miss")

// CacheProvider stores the serialized location collection, cached HTTP
// responses and per-user current locations
type CacheProvider interface {
	// Get retrieves a value; a missing key yields ErrCacheMiss
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value (expirationSeconds 0 keeps it until deleted)
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	// Delete removes keys; absent keys are ignored
	Delete(ctx context.Context, keys ...string) error
}
