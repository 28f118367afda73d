// Package store provides the key-value backends that hold guest identities
// between page loads.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when the key is absent
var ErrNotFound = errors.New("store: key not found")

// Store is an origin-scoped string key-value store
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// Keys lists every key starting with prefix
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Backend names accepted by Open
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Options selects and configures a backend
type Options struct {
	Backend   string
	Path      string
	RedisAddr string
	RedisDB   int
	Prefix    string
}

// Open returns the backend named in opts
func Open(opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendFile:
		if opts.Path == "" {
			return nil, errors.New("store path is required for the file backend")
		}
		return NewFileStore(opts.Path), nil
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendBadger:
		if opts.Path == "" {
			return nil, errors.New("store path is required for the badger backend")
		}
		return NewBadgerStore(opts.Path)
	case BackendRedis:
		return NewRedisStore(opts.RedisAddr, opts.RedisDB, opts.Prefix)
	default:
		return nil, fmt.Errorf("unknown store backend %q (use memory, file, badger, redis)", opts.Backend)
	}
}
