package orchestrator

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"go.evalmesh.dev/engine/pkg/eval"
	"go.evalmesh.dev/engine/pkg/queue"
)

// refreshBatchProgress recomputes a batch's per-status counters from the
// Store, persists them with the batch status, and republishes the
// TTL-bounded progress snapshot on the broker, transitioning the batch to
// completed once nothing is pending or processing (§4.4). The `status`
// subcommand reads the Store, not the broker snapshot.
func (o *Orchestrator) refreshBatchProgress(ctx context.Context, batchID string) {
	if batchID == "" {
		return
	}
	log := o.log.With(zap.String("batch_id", batchID))

	counters, err := o.store.GetBatchProgress(ctx, batchID)
	if err != nil {
		log.Error("progress: read batch counters failed", zap.Error(err))
		return
	}
	current, err := o.store.GetBatchStatus(ctx, batchID)
	if err != nil {
		log.Error("progress: read batch status failed", zap.Error(err))
		return
	}

	next := current
	switch current {
	case eval.BatchProcessing:
		if counters.Pending == 0 && counters.Processing == 0 {
			// Batch-level failure is decided once, at enqueue time, by the
			// Enqueue Facade's partial-failure policy (§4.1); individual
			// record failures surfaced during dispatch/collection do not by
			// themselves fail the batch (§4.4).
			next = eval.BatchCompleted
		}
	default:
		// Paused, completed, failed, and cancelled batches keep their
		// status; only a still-processing batch can self-transition here.
	}

	if err := o.store.SetBatchStatus(ctx, batchID, next, counters); err != nil {
		log.Error("progress: persist batch status failed", zap.Error(err))
		return
	}

	snapshot := eval.Batch{BatchID: batchID, Status: next, Counters: counters}
	body, err := json.Marshal(snapshot)
	if err != nil {
		log.Error("progress: marshal progress snapshot failed", zap.Error(err))
		return
	}
	if err := o.broker.SetEx(ctx, queue.BatchProgressKey(batchID), body, queue.BatchProgressTTL); err != nil {
		log.Warn("progress: publish progress snapshot failed", zap.Error(err))
	}
}
