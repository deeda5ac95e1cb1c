package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores slots in Redis so multiple API instances share one
// snapshot. Expired keys vanish from Redis, so a stale read degrades to
// never-computed rather than serving wrong-period data.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

// Get returns the stored bytes for key.
func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// SetMulti writes all slots in one transactional pipeline.
func (r *RedisBackend) SetMulti(ctx context.Context, values map[string]Value) error {
	pipe := r.client.TxPipeline()
	for key, value := range values {
		// keep keys twice the TTL so stale reads can still serve the last
		// snapshot before it disappears entirely
		pipe.Set(ctx, r.key(key), value.Data, 2*value.TTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Delete removes one slot.
func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Clear removes every slot under the prefix.
func (r *RedisBackend) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.key("*"), 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
