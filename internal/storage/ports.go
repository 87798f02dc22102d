package storage

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when the key holds no value.
var ErrKeyNotFound = errors.New("key not found")

// KV is the key-value contract the record store is built on. Values are
// opaque bytes; Set overwrites whatever the key held before.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Keys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, keys ...string) error
}
