package oracle

import (
	"context"
	"time"

	"github.com/coocood/freecache"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var ErrKeyNotFound = errors.New("key not found")

// Store is the byte-level backend of the cached oracle.
type Store interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, value []byte, ttl time.Duration) error
	Close() error
}

// FreeCacheStore keeps entries in process memory.
type FreeCacheStore struct {
	cache *freecache.Cache
}

// NewFreeCacheStore allocates a cache of size bytes. freecache enforces a
// 512KiB minimum.
func NewFreeCacheStore(size int) *FreeCacheStore {
	return &FreeCacheStore{cache: freecache.NewCache(size)}
}

func (s *FreeCacheStore) Get(_ context.Context, key []byte) ([]byte, error) {
	v, err := s.cache.Get(key)
	if err != nil {
		return nil, ErrKeyNotFound
	}
	return v, nil
}

func (s *FreeCacheStore) Set(_ context.Context, key, value []byte, ttl time.Duration) error {
	return errors.Wrap(s.cache.Set(key, value, int(ttl.Seconds())), "freecache set")
}

func (s *FreeCacheStore) Close() error {
	s.cache.Clear()
	return nil
}

// RedisStore shares cached answers between processes.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

type RedisStoreOptions struct {
	Addr     string `yaml:"addr" toml:"addr" ini:"addr" validate:"required,hostname_port"`
	Password string `yaml:"password" toml:"password" ini:"password"`
	DB       int    `yaml:"db" toml:"db" ini:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix" toml:"prefix" ini:"prefix"`
}

// NewRedisStoreWithOptions connects and pings the server.
func NewRedisStoreWithOptions(ctx context.Context, options *RedisStoreOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     options.Addr,
		Password: options.Password,
		DB:       options.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "ping redis %s", options.Addr)
	}
	return NewRedisStore(client, options.Prefix), nil
}

func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "plainapi:oracle:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k []byte) string {
	return s.prefix + string(k)
}

func (s *RedisStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	v, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value []byte, ttl time.Duration) error {
	return errors.Wrap(s.client.Set(ctx, s.key(key), value, ttl).Err(), "redis set")
}

func (s *RedisStore) Close() error {
	if c, ok := s.client.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
