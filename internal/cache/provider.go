package cache

import (
	"context"
	"errors"
	"time"

	"github.com/miradorstack/mirador-digest/internal/config"
)

// Provider is the key/value store backing run claims and delivered reports.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	Close() error
}

// ErrCacheMiss signals that a cache key was not found.
var ErrCacheMiss = errors.New("cache miss")

// New returns a Valkey-backed provider when the cache is enabled and a
// NoopProvider otherwise.
func New(cfg config.CacheConfig) (Provider, error) {
	if !cfg.Enabled {
		return NoopProvider{}, nil
	}
	return NewValkeyProvider(cfg)
}

// NoopProvider stores nothing. Every claim succeeds, so runs are never
// de-duplicated.
type NoopProvider struct{}

func (NoopProvider) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }

func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NoopProvider) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return true, nil
}

func (NoopProvider) Del(context.Context, string) error { return nil }

func (NoopProvider) Close() error { return nil }
