// Package state holds short-lived server state: in-progress assessment drafts
// and revoked login tokens. Backends are an in-process map or Redis.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get when a key does not exist or has expired.
var ErrNotFound = errors.New("state: key not found")

// Store is a small TTL key-value store with set support.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX sets key only if it does not exist and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	AddMember(ctx context.Context, key, member string, ttl time.Duration) error
	RemoveMember(ctx context.Context, key, member string) error
	Members(ctx context.Context, key string) ([]string, error)
	Close() error
}

// Backend names
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

// Config selects and configures a backend.
type Config struct {
	Backend    string
	Redis      *RedisConfig
	GCInterval time.Duration
}

// New builds the configured store.
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendRedis:
		return NewRedis(cfg)
	case BackendMemory, "":
		return NewMemory(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported state backend: %s", cfg.Backend)
	}
}
