package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.evalmesh.dev/engine/pkg/queue"
	"go.evalmesh.dev/engine/pkg/redistest"
)

func TestRedisBrokerListOps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	instance := redistest.NewRedis(ctx, t)
	defer instance.Close(t)
	b := instance.Broker()

	n, err := b.Length(ctx, "q")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	require.NoError(t, b.Append(ctx, "q", []byte("a")))
	require.NoError(t, b.Append(ctx, "q", []byte("b")))

	n, err = b.Length(ctx, "q")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	payload, ok, err := b.PopHead(ctx, "q")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", string(payload))

	payload, ok, err = b.PopHead(ctx, "q")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", string(payload))

	_, ok, err = b.PopHead(ctx, "q")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisBrokerClear(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	instance := redistest.NewRedis(ctx, t)
	defer instance.Close(t)
	b := instance.Broker()

	require.NoError(t, b.Append(ctx, "q", []byte("a")))
	require.NoError(t, b.Clear(ctx, "q"))
	n, err := b.Length(ctx, "q")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestRedisBrokerHashOps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	instance := redistest.NewRedis(ctx, t)
	defer instance.Close(t)
	b := instance.Broker()

	require.NoError(t, b.HashSet(ctx, "h", "instruction", []byte("0.9")))
	require.NoError(t, b.HashSet(ctx, "h", "accuracy", []byte("0.8")))
	// Re-set is idempotent: overwrites, not duplicates.
	require.NoError(t, b.HashSet(ctx, "h", "instruction", []byte("0.95")))

	n, err := b.HashLen(ctx, "h")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	all, err := b.HashGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, "0.95", string(all["instruction"]))
	assert.Equal(t, "0.8", string(all["accuracy"]))

	require.NoError(t, b.Expire(ctx, "h", time.Hour))
	require.NoError(t, b.Del(ctx, "h"))

	n, err = b.HashLen(ctx, "h")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestRedisBrokerStringOps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	instance := redistest.NewRedis(ctx, t)
	defer instance.Close(t)
	b := instance.Broker()

	require.NoError(t, b.SetEx(ctx, "k1", []byte("v1"), time.Hour))
	require.NoError(t, b.SetEx(ctx, "k2", []byte("v2"), time.Hour))

	v, ok, err := b.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", string(v))

	_, ok, err = b.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	vals, err := b.MGet(ctx, []string{"k1", "missing", "k2"})
	require.NoError(t, err)
	require.Len(t, vals, 3)
	assert.Equal(t, "v1", string(vals[0]))
	assert.Nil(t, vals[1])
	assert.Equal(t, "v2", string(vals[2]))

	keys, err := b.ScanKeys(ctx, "k*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"k1", "k2"}, keys)
}

func TestBlockingPopHeadReturnsWhenPushed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	instance := redistest.NewRedis(ctx, t)
	defer instance.Close(t)
	b := instance.Broker()

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = b.Append(ctx, "q", []byte("late"))
	}()

	payload, ok, err := queue.BlockingPopHead(ctx, b, "q", 10*time.Millisecond, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "late", string(payload))
}

func TestBlockingPopHeadDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	instance := redistest.NewRedis(ctx, t)
	defer instance.Close(t)
	b := instance.Broker()

	_, ok, err := queue.BlockingPopHead(ctx, b, "empty", 10*time.Millisecond, 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}
