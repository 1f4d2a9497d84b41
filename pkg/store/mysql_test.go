package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.evalmesh.dev/engine/pkg/eval"
	"go.evalmesh.dev/engine/pkg/store"
	"go.evalmesh.dev/engine/pkg/storetest"
)

func TestMySQLStoreLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Docker-backed test in short mode")
	}
	d := storetest.NewDocker(t)
	defer d.Close(t)
	ctx := context.Background()
	s := d.Store

	require.NoError(t, s.CreateBatch(ctx, "b1", 2))
	require.NoError(t, s.InsertRecords(ctx, []eval.Record{
		{RecordID: "r1", BatchID: "b1", AgentID: "a1", Prompt: "p", ResponseText: "resp"},
		{RecordID: "r2", BatchID: "b1", AgentID: "a2", Prompt: "p", ResponseText: "resp"},
	}))

	require.NoError(t, s.MarkRecordStatus(ctx, "r1", eval.RecordProcessing))

	rec, err := s.GetRecord(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "a1", rec.AgentID)
	assert.Equal(t, eval.RecordProcessing, rec.Status)

	progress, err := s.GetBatchProgress(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, eval.BatchCounters{Total: 2, Pending: 1, Processing: 1}, progress)

	ev := eval.Evaluation{
		RecordID:         "r1",
		BatchID:          "b1",
		AgentID:          "a1",
		Scores:           map[eval.Dimension]float64{eval.DimensionAccuracy: 0.8},
		FinalScore:       0.8,
		ProcessingTimeMs: 42,
		ProcessedAt:      time.Now(),
	}
	require.NoError(t, s.WriteEvaluation(ctx, ev))
	require.ErrorIs(t, s.WriteEvaluation(ctx, ev), store.ErrAlreadyFinalized)

	require.NoError(t, s.MarkRecordStatus(ctx, "r1", eval.RecordCompleted))
	progress, err = s.GetBatchProgress(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, eval.BatchCounters{Total: 2, Pending: 1, Completed: 1}, progress)

	require.NoError(t, s.SetBatchStatus(ctx, "b1", eval.BatchProcessing, progress))
	status, err := s.GetBatchStatus(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, eval.BatchProcessing, status)

	require.NoError(t, s.CancelPendingRecords(ctx, "b1"))
}
