package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisBroker implements Broker on top of a Redis client, using plain
// list/hash/string commands: each one is already atomic at the single-key
// level, so no Lua scripting is used. Callers that touch several keys (such
// as the orchestrator's sweeper) issue one command per key.
type RedisBroker struct {
	Redis *redis.Client
}

var _ Broker = (*RedisBroker)(nil)

// NewRedisBroker wraps an existing Redis client.
func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{Redis: client}
}

// Append pushes payload onto the tail of queueName.
func (b *RedisBroker) Append(ctx context.Context, queueName string, payload []byte) error {
	return b.Redis.RPush(ctx, queueName, payload).Err()
}

// PopHead pops and returns the head of queueName, or ok=false if empty.
func (b *RedisBroker) PopHead(ctx context.Context, queueName string) ([]byte, bool, error) {
	res, err := b.Redis.LPop(ctx, queueName).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("queue: pop head %q: %w", queueName, err)
	}
	return res, true, nil
}

// Length returns the number of elements in queueName.
func (b *RedisBroker) Length(ctx context.Context, queueName string) (int64, error) {
	n, err := b.Redis.LLen(ctx, queueName).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: length %q: %w", queueName, err)
	}
	return n, nil
}

// Clear removes queueName entirely.
func (b *RedisBroker) Clear(ctx context.Context, queueName string) error {
	if err := b.Redis.Del(ctx, queueName).Err(); err != nil {
		return fmt.Errorf("queue: clear %q: %w", queueName, err)
	}
	return nil
}

// HashSet sets field to value within the hash at key.
func (b *RedisBroker) HashSet(ctx context.Context, key, field string, value []byte) error {
	if err := b.Redis.HSet(ctx, key, field, value).Err(); err != nil {
		return fmt.Errorf("queue: hash set %q[%q]: %w", key, field, err)
	}
	return nil
}

// HashLen returns the number of fields set in the hash at key.
func (b *RedisBroker) HashLen(ctx context.Context, key string) (int64, error) {
	n, err := b.Redis.HLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: hash len %q: %w", key, err)
	}
	return n, nil
}

// HashGetAll returns all field/value pairs in the hash at key.
func (b *RedisBroker) HashGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	res, err := b.Redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: hash get all %q: %w", key, err)
	}
	out := make(map[string][]byte, len(res))
	for field, value := range res {
		out[field] = []byte(value)
	}
	return out, nil
}

// Del removes key (of any type).
func (b *RedisBroker) Del(ctx context.Context, key string) error {
	if err := b.Redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("queue: del %q: %w", key, err)
	}
	return nil
}

// Expire sets a TTL on key.
func (b *RedisBroker) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := b.Redis.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("queue: expire %q: %w", key, err)
	}
	return nil
}

// SetEx sets key to value with a TTL.
func (b *RedisBroker) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.Redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("queue: set ex %q: %w", key, err)
	}
	return nil
}

// Get returns the value at key, or ok=false if absent.
func (b *RedisBroker) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := b.Redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("queue: get %q: %w", key, err)
	}
	return res, true, nil
}

// MGet returns the values for the given keys, in order.
func (b *RedisBroker) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	res, err := b.Redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: mget: %w", err)
	}
	out := make([][]byte, len(res))
	for i, v := range res {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("queue: mget: unexpected value type %T", v)
		}
		out[i] = []byte(s)
	}
	return out, nil
}

// ScanKeys returns all keys matching pattern.
func (b *RedisBroker) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := b.Redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("queue: scan %q: %w", pattern, err)
	}
	return keys, nil
}
