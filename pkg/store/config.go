package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/stores/redis"
)

// Config selects and configures an object store backend.
type Config struct {
	Type   string `json:",default=filesystem,options=filesystem|s3|spaces|redis|memory"`
	Prefix string `json:",optional"`

	// filesystem
	Root string `json:",optional"`

	// s3 / DigitalOcean Spaces
	Bucket    string `json:",optional"`
	Region    string `json:",default=nyc3"`
	Endpoint  string `json:",optional"`
	AccessKey string `json:",optional"`
	SecretKey string `json:",optional"`
	PathStyle bool   `json:",optional"`

	// redis
	Redis redis.RedisConf `json:",optional"`

	Timeout time.Duration `json:",default=30s"`
}

// Builder constructs a backend from configuration.
type Builder func(cfg Config) (ObjectStore, error)

var (
	registry   = make(map[string]Builder)
	registryMu sync.RWMutex
)

// Register makes a backend available to New. Backends call it from init.
func Register(typeName string, builder Builder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(strings.TrimSpace(typeName))] = builder
}

func lookup(typeName string) (Builder, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := registry[strings.ToLower(strings.TrimSpace(typeName))]
	return b, ok
}

func init() {
	Register("memory", func(Config) (ObjectStore, error) { return NewMemory(), nil })
}

// New builds the configured backend, wrapped with the per-call timeout.
func New(cfg Config) (ObjectStore, error) {
	builder, ok := lookup(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("store: unsupported type %q", cfg.Type)
	}
	s, err := builder(cfg)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", cfg.Type, err)
	}
	return WithTimeout(s, cfg.Timeout), nil
}

type timeoutStore struct {
	next    ObjectStore
	timeout time.Duration
}

// WithTimeout bounds every Get/Put with d. Non-positive d disables it.
func WithTimeout(s ObjectStore, d time.Duration) ObjectStore {
	if d <= 0 {
		return s
	}
	return &timeoutStore{next: s, timeout: d}
}

func (t *timeoutStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Get(ctx, key)
}

func (t *timeoutStore) Put(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Put(ctx, key, data)
}
