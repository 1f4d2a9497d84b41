package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"go.evalmesh.dev/engine/pkg/eval"
	"go.evalmesh.dev/engine/pkg/queue"
	"go.evalmesh.dev/engine/pkg/store"
)

// finalize reassembles a task's partial results, aggregates them into a
// weighted final score, persists the Evaluation, and retires the task from
// the in-flight table and the partial-result hash (§4.3).
func (o *Orchestrator) finalize(ctx context.Context, taskID, fallbackRecordID string) {
	log := o.log.With(zap.String("task_id", taskID))

	partialKey := queue.PartialResultsKey(taskID)
	fields, err := o.broker.HashGetAll(ctx, partialKey)
	if err != nil {
		log.Error("finalize: read partial results failed", zap.Error(err))
		return
	}

	var (
		recordID, batchID, agentID string
		processingTimeMs           int64
		scores                     = make(map[eval.Dimension]float64)
		failures                   []string
	)
	for dimName, raw := range fields {
		var r eval.DimensionResult
		if err := json.Unmarshal(raw, &r); err != nil {
			log.Error("finalize: malformed partial result", zap.String("dimension", dimName), zap.Error(err))
			continue
		}
		recordID, batchID, agentID = r.RecordID, r.BatchID, r.AgentID
		if r.ProcessingTimeMs > processingTimeMs {
			processingTimeMs = r.ProcessingTimeMs
		}
		if r.Error != "" {
			failures = append(failures, string(r.Dimension)+": "+r.Error)
			continue
		}
		if r.Score < 0 || r.Score > 1 {
			failures = append(failures, string(r.Dimension)+": score out of range")
			continue
		}
		scores[r.Dimension] = r.Score
	}

	if recordID == "" {
		// The in-flight entry resolves the identity when every dimension
		// errored before filling in the payload fields.
		if entry, ok := o.inFlight.get(taskID); ok {
			recordID, batchID = entry.recordID, entry.batchID
		} else {
			recordID = fallbackRecordID
		}
	}
	if recordID == "" {
		log.Error("finalize: cannot resolve record-id for task, dropping result")
		return
	}
	if agentID == "" {
		if e, ok := o.cache.Get(recordID); ok {
			agentID, batchID = e.AgentID, e.BatchID
		} else if rec, err := o.store.GetRecord(ctx, recordID); err == nil {
			agentID, batchID = rec.AgentID, rec.BatchID
		}
	}

	finalScore, scored := aggregate(o.opts.Weights, scores)
	ev := eval.Evaluation{
		RecordID:         recordID,
		BatchID:          batchID,
		AgentID:          agentID,
		Scores:           scores,
		FinalScore:       finalScore,
		ProcessingErrors: failures,
		ProcessingTimeMs: processingTimeMs,
		ProcessedAt:      o.now(),
	}

	status := eval.RecordCompleted
	if !scored {
		// Every dimension errored or was missing: nothing to aggregate, so
		// the record is failed rather than completed with a meaningless
		// zero score (§4.3, edge case B2).
		status = eval.RecordFailed
	}

	if err := o.store.WriteEvaluation(ctx, ev); err != nil {
		if errors.Is(err, store.ErrAlreadyFinalized) {
			// Already scored by a previous finalize call for this task: the
			// Evaluation and agent ranking mean were folded in then, so this
			// pass only needs to clear the now-redundant in-flight bookkeeping
			// and must not re-run rankings or record/batch status (§4.3).
			if err := o.broker.Del(ctx, partialKey); err != nil {
				log.Warn("finalize: delete partial result hash failed", zap.Error(err))
			}
			o.inFlight.remove(taskID)
			return
		}
		log.Error("finalize: write evaluation failed", zap.Error(err))
		return
	}
	if err := o.store.MarkRecordStatus(ctx, recordID, status); err != nil {
		log.Error("finalize: mark record status failed", zap.Error(err))
	}
	if err := o.broker.Del(ctx, partialKey); err != nil {
		log.Warn("finalize: delete partial result hash failed", zap.Error(err))
	}
	o.inFlight.remove(taskID)
	o.metrics.TaskFinalized(ctx)

	o.rankingsRecord(ctx, batchID, agentID, finalScore, scored)
	o.refreshBatchProgress(ctx, batchID)
}

// aggregate computes the weighted, renormalised final score from the
// dimensions that reported an error-free numeric score in [0, 1] (§4.3):
//
//	final = Σ weight[d]·score[d]  /  Σ weight[d]   for d in scored dimensions
//
// scored is false when no dimension contributed a usable score.
func aggregate(weights eval.Weights, scores map[eval.Dimension]float64) (final float64, scored bool) {
	var weightedSum, weightTotal float64
	for dim, score := range scores {
		w := weights[dim]
		weightedSum += w * score
		weightTotal += w
	}
	if weightTotal <= 0 {
		return 0, false
	}
	return weightedSum / weightTotal, true
}

// now is overridable in tests; production code always uses time.Now.
func (o *Orchestrator) now() time.Time {
	if o.clock != nil {
		return o.clock()
	}
	return time.Now()
}
