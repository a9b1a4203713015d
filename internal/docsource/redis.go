package docsource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "roimap:"

type RedisConfig struct {
	Addr        string
	Username    string
	Password    string
	DB          int
	Prefix      string
	DialTimeout time.Duration
}

// RedisStore keeps each document as a string value under
// <prefix><collection>:<id>.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return NewRedisStoreFromClient(rdb, cfg.Prefix), nil
}

func NewRedisStoreFromClient(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (r *RedisStore) key(collection, id string) string {
	return r.prefix + collection + ":" + id
}

func (r *RedisStore) Fetch(ctx context.Context, collection, id string) ([]byte, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, err
	}
	blob, err := r.rdb.Get(ctx, r.key(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s/%s: %w", collection, id, err)
	}
	return blob, nil
}

func (r *RedisStore) Put(ctx context.Context, collection, id string, body []byte) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.key(collection, id), body, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
