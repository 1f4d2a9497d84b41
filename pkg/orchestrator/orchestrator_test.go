package orchestrator_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/global"
	"go.uber.org/zap"

	"go.evalmesh.dev/engine/pkg/eval"
	"go.evalmesh.dev/engine/pkg/metrics"
	"go.evalmesh.dev/engine/pkg/orchestrator"
	"go.evalmesh.dev/engine/pkg/queue"
	"go.evalmesh.dev/engine/pkg/rankings"
	"go.evalmesh.dev/engine/pkg/redistest"
	"go.evalmesh.dev/engine/pkg/storetest"
)

func testOptions() orchestrator.Options {
	opts := orchestrator.DefaultOptions
	opts.MaxConcurrentTasks = 4
	opts.MainPopInterval = 10 * time.Millisecond
	opts.MainPopTimeout = 200 * time.Millisecond
	opts.ResultsPopInterval = 10 * time.Millisecond
	opts.ResultsPopTimeout = 200 * time.Millisecond
	opts.SweepInterval = 50 * time.Millisecond
	opts.TaskTimeout = 2 * time.Second
	opts.HardShutdownDeadline = 2 * time.Second
	return opts
}

// TestOrchestratorEndToEndAllDimensionsScore drives one task through
// dispatch, five simulated dimension workers, the collector, and the
// finaliser, and checks the aggregated final score and batch completion.
func TestOrchestratorEndToEndAllDimensionsScore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Docker/Redis-backed test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	redisInstance := redistest.NewRedis(ctx, t)
	defer redisInstance.Close(t)
	broker := redisInstance.Broker()

	d := storetest.NewDocker(t)
	defer d.Close(t)

	rk := rankings.New(d.DB)
	require.NoError(t, rk.CreateSchema(ctx))

	m, err := metrics.NewOrchestrator(global.Meter("orchestrator_test"))
	require.NoError(t, err)

	o, err := orchestrator.New(broker, d.Store, m, rk, zap.NewNop(), testOptions())
	require.NoError(t, err)

	require.NoError(t, d.Store.CreateBatch(ctx, "b1", 1))
	require.NoError(t, d.Store.InsertRecords(ctx, []eval.Record{
		{RecordID: "r1", BatchID: "b1", AgentID: "agent-a", Prompt: "p", ResponseText: "resp", Status: eval.RecordQueued},
	}))

	task := eval.Task{
		TaskID:       uuid.NewString(),
		RecordID:     "r1",
		BatchID:      "b1",
		AgentID:      "agent-a",
		Prompt:       "p",
		ResponseText: "resp",
		Dimensions:   eval.Dimensions,
		CreatedAt:    time.Now(),
	}
	body, err := json.Marshal(task)
	require.NoError(t, err)
	require.NoError(t, broker.Append(ctx, queue.MainQueue, body))

	o.Start(ctx)
	defer o.Stop()

	wantScores := map[eval.Dimension]float64{
		eval.DimensionInstruction:   0.9,
		eval.DimensionHallucination: 0.8,
		eval.DimensionAssumption:    0.7,
		eval.DimensionCoherence:     1.0,
		eval.DimensionAccuracy:      0.6,
	}

	for _, dim := range eval.Dimensions {
		dim := dim
		require.Eventually(t, func() bool {
			payload, ok, err := broker.PopHead(ctx, queue.DimensionQueue(dim))
			require.NoError(t, err)
			if !ok {
				return false
			}
			var sub eval.DimensionSubtask
			require.NoError(t, json.Unmarshal(payload, &sub))
			result := eval.DimensionResult{
				TaskID:           sub.TaskID,
				Dimension:        dim,
				RecordID:         sub.RecordID,
				BatchID:          sub.BatchID,
				AgentID:          sub.AgentID,
				Score:            wantScores[dim],
				ProcessingTimeMs: 5,
				WorkerID:         "worker-" + string(dim),
				CompletedAt:      time.Now(),
			}
			resultBody, err := json.Marshal(result)
			require.NoError(t, err)
			require.NoError(t, broker.Append(ctx, queue.ResultsQueue, resultBody))
			return true
		}, 3*time.Second, 20*time.Millisecond, "dimension subtask for %s never dispatched", dim)
	}

	var evScore float64
	require.Eventually(t, func() bool {
		row := d.DB.QueryRowContext(ctx, `SELECT final_score FROM evaluations WHERE record_id = ?`, "r1")
		return row.Scan(&evScore) == nil
	}, 5*time.Second, 50*time.Millisecond, "evaluation was never written")

	weights := eval.DefaultWeights()
	var want float64
	for dim, score := range wantScores {
		want += weights[dim] * score
	}
	assert.InDelta(t, want, evScore, 1e-6)

	rec, err := d.Store.GetRecord(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, eval.RecordCompleted, rec.Status)

	require.Eventually(t, func() bool {
		status, err := d.Store.GetBatchStatus(ctx, "b1")
		require.NoError(t, err)
		return status == eval.BatchCompleted
	}, 3*time.Second, 50*time.Millisecond, "batch never transitioned to completed")

	ranking, err := rk.Ranking(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, ranking, 1)
	assert.Equal(t, "agent-a", ranking[0].AgentID)
	assert.InDelta(t, want, ranking[0].ScoreMean, 1e-6)
}

// TestOrchestratorSweeperTimesOutStalledTask checks that a task which never
// receives all five dimension results is failed by the sweeper once
// TaskTimeout elapses, rather than staying in flight forever.
func TestOrchestratorSweeperTimesOutStalledTask(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Docker/Redis-backed test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	redisInstance := redistest.NewRedis(ctx, t)
	defer redisInstance.Close(t)
	broker := redisInstance.Broker()

	d := storetest.NewDocker(t)
	defer d.Close(t)

	m, err := metrics.NewOrchestrator(global.Meter("orchestrator_test_timeout"))
	require.NoError(t, err)

	opts := testOptions()
	opts.TaskTimeout = 100 * time.Millisecond
	opts.SweepInterval = 30 * time.Millisecond

	o, err := orchestrator.New(broker, d.Store, m, nil, zap.NewNop(), opts)
	require.NoError(t, err)

	require.NoError(t, d.Store.CreateBatch(ctx, "b2", 1))
	require.NoError(t, d.Store.InsertRecords(ctx, []eval.Record{
		{RecordID: "r2", BatchID: "b2", AgentID: "agent-b", Prompt: "p", ResponseText: "resp", Status: eval.RecordQueued},
	}))

	task := eval.Task{
		TaskID:     uuid.NewString(),
		RecordID:   "r2",
		BatchID:    "b2",
		AgentID:    "agent-b",
		Dimensions: eval.Dimensions,
		CreatedAt:  time.Now(),
	}
	body, err := json.Marshal(task)
	require.NoError(t, err)
	require.NoError(t, broker.Append(ctx, queue.MainQueue, body))

	o.Start(ctx)
	defer o.Stop()

	require.Eventually(t, func() bool {
		rec, err := d.Store.GetRecord(ctx, "r2")
		require.NoError(t, err)
		return rec.Status == eval.RecordFailed
	}, 5*time.Second, 50*time.Millisecond, "stalled task was never failed by the sweeper")

	assert.Equal(t, 0, o.InFlightCount())
}
