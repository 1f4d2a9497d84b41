// Package queue wraps a key/list/hash-capable broker (Redis) behind the
// narrow, non-blocking interface the orchestrator needs: FIFO lists for
// tasks and results, TTL-bounded hashes for partial results, and
// TTL-bounded strings for progress snapshots and liveness keys.
//
// The interface is intentionally non-blocking. The orchestrator simulates
// blocking pops by polling at a caller-supplied cadence up to a deadline;
// if the broker is swapped for one with a native blocking pop, the caller
// sees the exact same contract.
package queue

import (
	"context"
	"time"
)

// Broker is the queue substrate required by the orchestrator.
type Broker interface {
	// Append pushes payload onto the tail of queue.
	Append(ctx context.Context, queueName string, payload []byte) error
	// PopHead pops and returns the head of queue, or ok=false if empty.
	PopHead(ctx context.Context, queueName string) (payload []byte, ok bool, err error)
	// Length returns the number of elements in queue.
	Length(ctx context.Context, queueName string) (int64, error)
	// Clear removes queue entirely.
	Clear(ctx context.Context, queueName string) error

	// HashSet sets field to value within the hash at key.
	HashSet(ctx context.Context, key, field string, value []byte) error
	// HashLen returns the number of fields set in the hash at key.
	HashLen(ctx context.Context, key string) (int64, error)
	// HashGetAll returns all field/value pairs in the hash at key.
	HashGetAll(ctx context.Context, key string) (map[string][]byte, error)
	// Del removes key (of any type).
	Del(ctx context.Context, key string) error
	// Expire sets a TTL on key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// SetEx sets key to value with a TTL.
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the value at key, or ok=false if absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// MGet returns the values for the given keys, in order; a missing key
	// yields a nil entry at that position.
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	// ScanKeys returns all keys matching pattern.
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
}

// BlockingPopHead polls PopHead at interval until it returns a payload, the
// deadline elapses, or ctx is cancelled.
func BlockingPopHead(ctx context.Context, b Broker, queueName string, interval, deadline time.Duration) ([]byte, bool, error) {
	timeout := time.NewTimer(deadline)
	defer timeout.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		payload, ok, err := b.PopHead(ctx, queueName)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return payload, true, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-timeout.C:
			return nil, false, nil
		case <-ticker.C:
		}
	}
}
