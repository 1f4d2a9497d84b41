package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"go.evalmesh.dev/engine/pkg/eval"
	"go.evalmesh.dev/engine/pkg/queue"
)

// runSweepLoop periodically reaps in-flight tasks that have exceeded
// TaskTimeout and polls the broker-mediated shutdown control key so a
// separate `stop` invocation can request a graceful shutdown of a running
// `start` process (§4.5, §5.1).
func (o *Orchestrator) runSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(o.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.sweepOnce(ctx)
			if o.shutdownRequested(ctx) {
				if err := o.broker.Del(ctx, queue.ShutdownControlKey); err != nil {
					o.log.Warn("sweeper: clear shutdown control key failed", zap.Error(err))
				}
				o.cancel()
				return
			}
		}
	}
}

func (o *Orchestrator) sweepOnce(ctx context.Context) {
	now := o.now()
	for _, taskID := range o.inFlight.expired(now, o.opts.TaskTimeout) {
		entry, ok := o.inFlight.remove(taskID)
		if !ok {
			continue
		}
		log := o.log.With(zap.String("task_id", taskID), zap.String("record_id", entry.recordID))
		if err := o.store.MarkRecordStatus(ctx, entry.recordID, eval.RecordFailed); err != nil {
			log.Error("sweeper: mark timed-out record failed", zap.Error(err))
		}
		if err := o.broker.Del(ctx, queue.PartialResultsKey(taskID)); err != nil {
			log.Warn("sweeper: delete partial result hash failed", zap.Error(err))
		}
		o.metrics.TaskTimedOut(ctx)
		o.refreshBatchProgress(ctx, entry.batchID)
	}
}

// shutdownRequested reports whether the `stop` command has set the
// shutdown control key.
func (o *Orchestrator) shutdownRequested(ctx context.Context) bool {
	_, ok, err := o.broker.Get(ctx, queue.ShutdownControlKey)
	if err != nil {
		o.log.Warn("sweeper: read shutdown control key failed", zap.Error(err))
		return false
	}
	return ok
}
