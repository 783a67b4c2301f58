// Package redis implements snapshot.KV on top of Redis.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-redis/redis/v8"

	"github.com/xenking/kart-cart/internal/storage/snapshot"
)

var _ snapshot.KV = (*KV)(nil)

// KV stores snapshots as plain string values under a key prefix.
type KV struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewClient connects to addr, which may be a redis:// URL or a host:port.
func NewClient(addr string) *redis.Client {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{
			Addr:         addr,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     4,
		}
	}
	return redis.NewClient(opts)
}

// New returns a KV using client. Keys are stored as prefix+key; a zero ttl
// keeps snapshots forever.
func New(client *redis.Client, prefix string, ttl time.Duration) *KV {
	return &KV{client: client, prefix: prefix, ttl: ttl}
}

// Get implements snapshot.KV.
func (kv *KV) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := kv.client.Get(ctx, kv.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, snapshot.ErrNotFound
		}
		return nil, errors.Wrapf(err, "redis get %s", key)
	}
	return data, nil
}

// Set implements snapshot.KV.
func (kv *KV) Set(ctx context.Context, key string, value []byte) error {
	if err := kv.client.Set(ctx, kv.prefix+key, value, kv.ttl).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", key)
	}
	return nil
}

// Ping checks connectivity.
func (kv *KV) Ping(ctx context.Context) error {
	return kv.client.Ping(ctx).Err()
}

// Close releases the client connections.
func (kv *KV) Close() error {
	return kv.client.Close()
}
