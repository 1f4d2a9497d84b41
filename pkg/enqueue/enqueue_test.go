package enqueue_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go.evalmesh.dev/engine/pkg/enqueue"
	"go.evalmesh.dev/engine/pkg/eval"
	"go.evalmesh.dev/engine/pkg/queue"
	"go.evalmesh.dev/engine/pkg/redistest"
	"go.evalmesh.dev/engine/pkg/storetest"
)

func TestEnqueueBatchPushesOneTaskPerRecord(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Docker/Redis-backed test in short mode")
	}
	ctx := context.Background()
	redisInstance := redistest.NewRedis(ctx, t)
	defer redisInstance.Close(t)
	d := storetest.NewDocker(t)
	defer d.Close(t)

	f := enqueue.New(redisInstance.Broker(), d.Store, 3, zap.NewNop())

	records := []eval.Record{
		{RecordID: "r1", AgentID: "a1", Prompt: "p1", ResponseText: "resp1"},
		{RecordID: "r2", AgentID: "a2", Prompt: "p2", ResponseText: "resp2"},
	}
	require.NoError(t, f.EnqueueBatch(ctx, "b1", records))

	n, err := redisInstance.Broker().Length(ctx, queue.MainQueue)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	rec, err := d.Store.GetRecord(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, eval.RecordQueued, rec.Status)
}

func TestRequeueFailedExhaustsAfterMaxRetries(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Docker/Redis-backed test in short mode")
	}
	ctx := context.Background()
	redisInstance := redistest.NewRedis(ctx, t)
	defer redisInstance.Close(t)
	d := storetest.NewDocker(t)
	defer d.Close(t)

	f := enqueue.New(redisInstance.Broker(), d.Store, 2, zap.NewNop())

	require.NoError(t, f.EnqueueBatch(ctx, "b1", []eval.Record{
		{RecordID: "r1", AgentID: "a1", Prompt: "p", ResponseText: "resp"},
	}))
	require.NoError(t, d.Store.MarkRecordStatus(ctx, "r1", eval.RecordFailed))

	require.NoError(t, f.RequeueFailed(ctx, "r1"))
	require.NoError(t, d.Store.MarkRecordStatus(ctx, "r1", eval.RecordFailed))

	require.NoError(t, f.RequeueFailed(ctx, "r1"))
	require.NoError(t, d.Store.MarkRecordStatus(ctx, "r1", eval.RecordFailed))

	err := f.RequeueFailed(ctx, "r1")
	assert.ErrorIs(t, err, enqueue.ErrRetryExhausted)
}

func TestPauseResumeCancel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Docker/Redis-backed test in short mode")
	}
	ctx := context.Background()
	redisInstance := redistest.NewRedis(ctx, t)
	defer redisInstance.Close(t)
	d := storetest.NewDocker(t)
	defer d.Close(t)

	f := enqueue.New(redisInstance.Broker(), d.Store, 3, zap.NewNop())
	require.NoError(t, f.EnqueueBatch(ctx, "b1", []eval.Record{
		{RecordID: "r1", AgentID: "a1", Prompt: "p", ResponseText: "resp"},
	}))

	require.NoError(t, f.Pause(ctx, "b1"))
	status, err := d.Store.GetBatchStatus(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, eval.BatchPaused, status)

	assert.ErrorIs(t, f.Pause(ctx, "b1"), enqueue.ErrBadTransition)

	require.NoError(t, f.Resume(ctx, "b1"))
	status, err = d.Store.GetBatchStatus(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, eval.BatchProcessing, status)

	require.NoError(t, f.Cancel(ctx, "b1"))
	status, err = d.Store.GetBatchStatus(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, eval.BatchCancelled, status)

	assert.ErrorIs(t, f.Cancel(ctx, "b1"), enqueue.ErrBadTransition)
}
