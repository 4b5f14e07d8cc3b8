package redisstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeromicro/go-zero/core/stores/redis"

	"candlekeep/pkg/store"
)

const backend = "redis"

var _ store.Stamped = (*Store)(nil)

// envelope is the msgpack value stored under each key.
type envelope struct {
	Data      []byte `msgpack:"d"`
	UpdatedAt int64  `msgpack:"u"`
}

// Store keeps blobs as msgpack envelopes in Redis. SET replaces the value in a
// single command, so readers see either the old or the new blob.
type Store struct {
	rds       *redis.Redis
	namespace string
	now       func() time.Time
}

// New wraps a go-zero redis client. Keys are prefixed with namespace.
func New(rds *redis.Redis, namespace string) (*Store, error) {
	if rds == nil {
		return nil, fmt.Errorf("redisstore: redis client is required")
	}
	return &Store{rds: rds, namespace: strings.Trim(namespace, ":"), now: time.Now}, nil
}

func init() {
	store.Register(backend, func(cfg store.Config) (store.ObjectStore, error) {
		if strings.TrimSpace(cfg.Redis.Host) == "" {
			return nil, fmt.Errorf("redisstore: Redis.Host is required")
		}
		rds, err := redis.NewRedis(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return New(rds, "candlekeep:blob")
	})
}

func (s *Store) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + ":" + k
}

// Get returns the blob or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.rds.GetCtx(ctx, s.key(key))
	if err != nil {
		return nil, store.Wrap(backend, "get", key, err)
	}
	if raw == "" {
		return nil, store.ErrNotFound
	}
	var env envelope
	if err := msgpack.Unmarshal([]byte(raw), &env); err != nil {
		return nil, store.Wrap(backend, "get", key, fmt.Errorf("decode envelope: %w", err))
	}
	return env.Data, nil
}

// Put overwrites the blob.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	payload, err := msgpack.Marshal(envelope{Data: data, UpdatedAt: s.now().UTC().Unix()})
	if err != nil {
		return store.Wrap(backend, "put", key, err)
	}
	return store.Wrap(backend, "put", key, s.rds.SetCtx(ctx, s.key(key), string(payload)))
}

// UpdatedAt reports when key was last written, or store.ErrNotFound.
func (s *Store) UpdatedAt(ctx context.Context, key string) (time.Time, error) {
	raw, err := s.rds.GetCtx(ctx, s.key(key))
	if err != nil {
		return time.Time{}, store.Wrap(backend, "get", key, err)
	}
	if raw == "" {
		return time.Time{}, store.ErrNotFound
	}
	var env envelope
	if err := msgpack.Unmarshal([]byte(raw), &env); err != nil {
		return time.Time{}, store.Wrap(backend, "get", key, err)
	}
	return time.Unix(env.UpdatedAt, 0).UTC(), nil
}
