package sessionx

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores entries as plain redis strings under "<scope>:<key>".
type RedisBackend struct {
	client redis.UniversalClient
	scope  string
}

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client redis.UniversalClient, scope string) *RedisBackend {
	return &RedisBackend{client: client, scope: scope}
}

// OpenRedisBackend dials the server named in cfg.
func OpenRedisBackend(cfg StoreConfig) *RedisBackend {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	return NewRedisBackend(client, cfg.Scope)
}

func (b *RedisBackend) Probe(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Load(ctx context.Context, key string) (string, bool, error) {
	value, err := b.client.Get(ctx, b.scoped(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (b *RedisBackend) Save(ctx context.Context, key, value string) error {
	return b.client.Set(ctx, b.scoped(key), value, 0).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, b.scoped(key)).Err()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func (b *RedisBackend) scoped(key string) string {
	return b.scope + ":" + key
}
