package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"go.evalmesh.dev/engine/pkg/eval"
	"go.evalmesh.dev/engine/pkg/metrics"
	"go.evalmesh.dev/engine/pkg/queue"
)

// runCollectorLoop drains the results queue, folds each DimensionResult into
// its task's partial-result hash, and finalises the task once all of its
// dimensions have reported (§4.3).
func (o *Orchestrator) runCollectorLoop(ctx context.Context) {
	for {
		payload, ok, err := queue.BlockingPopHead(ctx, o.broker, queue.ResultsQueue, o.opts.ResultsPopInterval, o.opts.ResultsPopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.log.Warn("collector: pop results queue failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(o.opts.ResultsPopInterval):
			}
			continue
		}
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		o.collectOne(ctx, payload)
	}
}

func (o *Orchestrator) collectOne(ctx context.Context, payload []byte) {
	var result eval.DimensionResult
	if err := json.Unmarshal(payload, &result); err != nil {
		o.log.Error("collector: malformed result payload", zap.Error(err))
		return
	}
	o.metrics.DimensionResultReceived(ctx)
	log := o.log.With(zap.String("task_id", result.TaskID), zap.String("dimension", string(result.Dimension)))

	if entry, ok := o.inFlight.get(result.TaskID); ok {
		metrics.DimensionResultTimer(string(result.Dimension)).UpdateSince(entry.startedAt)
	}

	body, err := json.Marshal(result)
	if err != nil {
		log.Error("collector: marshal result failed", zap.Error(err))
		return
	}
	partialKey := queue.PartialResultsKey(result.TaskID)
	// HashSet overwrites a prior report for the same dimension, so a
	// retransmitted or duplicate DimensionResult is idempotent (§4.3).
	if err := o.broker.HashSet(ctx, partialKey, string(result.Dimension), body); err != nil {
		log.Error("collector: write partial result failed", zap.Error(err))
		return
	}
	if err := o.broker.Expire(ctx, partialKey, o.opts.PartialResultsTTL); err != nil {
		log.Warn("collector: set partial result TTL failed", zap.Error(err))
	}

	n, err := o.broker.HashLen(ctx, partialKey)
	if err != nil {
		log.Error("collector: read partial result count failed", zap.Error(err))
		return
	}
	if int(n) < len(eval.Dimensions) {
		return
	}
	o.finalize(ctx, result.TaskID, result.RecordID)
}
