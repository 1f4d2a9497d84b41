package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"go.evalmesh.dev/engine/pkg/eval"
	"go.evalmesh.dev/engine/pkg/queue"
	"go.evalmesh.dev/engine/pkg/recordcache"
)

// runDispatchLoop drains the main queue and fans each Task out to its
// dimensions' queues, capped at MaxConcurrentTasks tasks in flight at once.
// The cap is enforced against the in-flight table itself, not against the
// dispatch goroutines: a slot is held from the moment a task is inserted
// into the in-flight table until the collector's finalize or the sweeper's
// sweepOnce removes it, so a stalled task backs the main queue up rather
// than letting dispatch run ahead of it (§5).
// It returns when ctx is cancelled.
func (o *Orchestrator) runDispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if o.inFlight.len() >= o.opts.MaxConcurrentTasks {
			select {
			case <-ctx.Done():
				return
			case <-time.After(o.opts.MainPopInterval):
			}
			continue
		}
		payload, ok, err := queue.BlockingPopHead(ctx, o.broker, queue.MainQueue, o.opts.MainPopInterval, o.opts.MainPopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.log.Warn("dispatch: pop main queue failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(o.opts.MainPopInterval):
			}
			continue
		}
		if !ok {
			continue
		}
		// Dispatch synchronously so the task is in the in-flight table before
		// the cap is checked again.
		o.dispatchOne(ctx, payload)
	}
}

func (o *Orchestrator) dispatchOne(ctx context.Context, payload []byte) {
	var task eval.Task
	if err := json.Unmarshal(payload, &task); err != nil {
		o.log.Error("dispatch: malformed task payload", zap.Error(err))
		return
	}
	log := o.log.With(zap.String("task_id", task.TaskID), zap.String("record_id", task.RecordID))

	if err := o.store.MarkRecordStatus(ctx, task.RecordID, eval.RecordProcessing); err != nil {
		log.Error("dispatch: mark record processing failed", zap.Error(err))
		return
	}
	o.cache.Put(task.RecordID, recordcache.Entry{BatchID: task.BatchID, AgentID: task.AgentID})
	o.inFlight.insert(task.TaskID, task.RecordID, task.BatchID, time.Now())
	o.metrics.TaskDispatched(ctx)

	for _, dim := range task.Dimensions {
		sub := eval.DimensionSubtask{Task: task, Dimension: dim}
		body, err := json.Marshal(sub)
		if err != nil {
			log.Error("dispatch: marshal subtask failed", zap.String("dimension", string(dim)), zap.Error(err))
			continue
		}
		// Best-effort per dimension push: a dropped subtask leaves the
		// partial-result hash short of five fields, so the collector never
		// finalises the task and the sweeper fails it once TaskTimeout
		// elapses (§4.2, §4.5).
		if err := o.broker.Append(ctx, queue.DimensionQueue(dim), body); err != nil {
			log.Warn("dispatch: push to dimension queue failed", zap.String("dimension", string(dim)), zap.Error(err))
		}
	}
}
