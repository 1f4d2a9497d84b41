// Package enqueue implements the Enqueue Facade (§4.1): the only entry
// point that puts tasks onto the main queue, whether for a freshly
// submitted batch or a single record being retried after failure. It is
// grounded on the njobs push path, generalised to push a
// JSON-encoded Task rather than a protobuf assignment, and to bound each
// push with github.com/cenkalti/backoff/v4 rather than a bare loop.
package enqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"go.evalmesh.dev/engine/pkg/eval"
	"go.evalmesh.dev/engine/pkg/queue"
	"go.evalmesh.dev/engine/pkg/store"
)

// ErrRetryExhausted is returned by RequeueFailed when a record has already
// been retried MaxRetries times.
var ErrRetryExhausted = errors.New("enqueue: retry_exhausted")

// ErrBadTransition is returned by Pause/Resume/Cancel when the batch is not
// currently in a status the requested transition accepts from.
var ErrBadTransition = errors.New("enqueue: batch is not in a status that accepts this transition")

// Facade is the single writer of the main queue.
type Facade struct {
	Broker     queue.Broker
	Store      store.Store
	MaxRetries int
	Log        *zap.Logger
}

// New builds a Facade.
func New(broker queue.Broker, st store.Store, maxRetries int, log *zap.Logger) *Facade {
	return &Facade{Broker: broker, Store: st, MaxRetries: maxRetries, Log: log}
}

func (f *Facade) pushTask(ctx context.Context, task eval.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("enqueue: marshal task %q: %w", task.TaskID, err)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	return backoff.Retry(func() error {
		return f.Broker.Append(ctx, queue.MainQueue, body)
	}, b)
}

// EnqueueBatch persists a freshly submitted batch's records and pushes one
// Task per record onto the main queue, retrying each push with bounded
// attempts. If any record cannot be queued after those attempts, the whole
// batch is marked failed and the records that never made it onto the main
// queue are marked failed individually; successfully queued records keep
// their queued status (§4.1's partial-failure policy).
func (f *Facade) EnqueueBatch(ctx context.Context, batchID string, records []eval.Record) error {
	for i := range records {
		records[i].BatchID = batchID
		if records[i].Status == "" {
			records[i].Status = eval.RecordPending
		}
	}
	if err := f.Store.CreateBatch(ctx, batchID, len(records)); err != nil {
		return fmt.Errorf("enqueue: create batch %q: %w", batchID, err)
	}
	if err := f.Store.InsertRecords(ctx, records); err != nil {
		return fmt.Errorf("enqueue: insert records for batch %q: %w", batchID, err)
	}

	var errs error
	anyFailed := false
	for _, rec := range records {
		task := eval.Task{
			TaskID:       uuid.NewString(),
			RecordID:     rec.RecordID,
			BatchID:      batchID,
			AgentID:      rec.AgentID,
			Prompt:       rec.Prompt,
			ResponseText: rec.ResponseText,
			Context:      rec.Context,
			Reference:    rec.Reference,
			Metadata:     rec.Metadata,
			Dimensions:   eval.Dimensions,
			RetryCount:   0,
			CreatedAt:    time.Now(),
		}
		if err := f.pushTask(ctx, task); err != nil {
			f.Log.Error("enqueue: push task failed after bounded retries, marking record failed",
				zap.String("record_id", rec.RecordID), zap.Error(err))
			anyFailed = true
			if markErr := f.Store.MarkRecordStatus(ctx, rec.RecordID, eval.RecordFailed); markErr != nil {
				errs = multierr.Append(errs, markErr)
			}
			errs = multierr.Append(errs, err)
			continue
		}
		if err := f.Store.MarkRecordStatus(ctx, rec.RecordID, eval.RecordQueued); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	counters, err := f.Store.GetBatchProgress(ctx, batchID)
	if err != nil {
		return multierr.Append(errs, fmt.Errorf("enqueue: read batch progress for %q: %w", batchID, err))
	}
	status := eval.BatchProcessing
	if anyFailed {
		status = eval.BatchFailed
	}
	if err := f.Store.SetBatchStatus(ctx, batchID, status, counters); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("enqueue: set batch status for %q: %w", batchID, err))
	}
	return errs
}

// RequeueFailed re-dispatches a failed record as a fresh task with a new
// task-id, incrementing its retry count. It returns ErrRetryExhausted once
// the record has already hit MaxRetries (§4.1, R3).
func (f *Facade) RequeueFailed(ctx context.Context, recordID string) error {
	rec, err := f.Store.GetRecord(ctx, recordID)
	if err != nil {
		return fmt.Errorf("enqueue: requeue %q: %w", recordID, err)
	}
	if rec.RetryCount >= f.MaxRetries {
		return ErrRetryExhausted
	}
	retryCount, err := f.Store.IncrementRetryCount(ctx, recordID)
	if err != nil {
		return fmt.Errorf("enqueue: increment retry count for %q: %w", recordID, err)
	}
	task := eval.Task{
		TaskID:       uuid.NewString(),
		RecordID:     rec.RecordID,
		BatchID:      rec.BatchID,
		AgentID:      rec.AgentID,
		Prompt:       rec.Prompt,
		ResponseText: rec.ResponseText,
		Context:      rec.Context,
		Reference:    rec.Reference,
		Metadata:     rec.Metadata,
		Dimensions:   eval.Dimensions,
		RetryCount:   retryCount,
		CreatedAt:    time.Now(),
	}
	if err := f.pushTask(ctx, task); err != nil {
		return fmt.Errorf("enqueue: requeue %q: %w", recordID, err)
	}
	return f.Store.MarkRecordStatus(ctx, recordID, eval.RecordQueued)
}

// Pause transitions a processing batch to paused. It changes the batch's
// status only: already-queued and in-flight tasks are left to finalise or
// time out normally, and neither the dispatch loop nor this Facade's push
// paths consult the paused status.
func (f *Facade) Pause(ctx context.Context, batchID string) error {
	return f.transition(ctx, batchID, eval.BatchProcessing, eval.BatchPaused)
}

// Resume transitions a paused batch back to processing.
func (f *Facade) Resume(ctx context.Context, batchID string) error {
	return f.transition(ctx, batchID, eval.BatchPaused, eval.BatchProcessing)
}

// Cancel transitions a batch to cancelled from any non-terminal status and
// cancels its not-yet-processing records.
func (f *Facade) Cancel(ctx context.Context, batchID string) error {
	current, err := f.Store.GetBatchStatus(ctx, batchID)
	if err != nil {
		return fmt.Errorf("enqueue: cancel %q: %w", batchID, err)
	}
	switch current {
	case eval.BatchCompleted, eval.BatchFailed, eval.BatchCancelled:
		return ErrBadTransition
	}
	if err := f.Store.CancelPendingRecords(ctx, batchID); err != nil {
		return fmt.Errorf("enqueue: cancel pending records for %q: %w", batchID, err)
	}
	counters, err := f.Store.GetBatchProgress(ctx, batchID)
	if err != nil {
		return fmt.Errorf("enqueue: cancel %q: %w", batchID, err)
	}
	if err := f.Store.SetBatchStatus(ctx, batchID, eval.BatchCancelled, counters); err != nil {
		return fmt.Errorf("enqueue: cancel %q: %w", batchID, err)
	}
	return nil
}

func (f *Facade) transition(ctx context.Context, batchID string, from, to eval.BatchStatus) error {
	current, err := f.Store.GetBatchStatus(ctx, batchID)
	if err != nil {
		return fmt.Errorf("enqueue: transition %q: %w", batchID, err)
	}
	if current != from {
		return ErrBadTransition
	}
	counters, err := f.Store.GetBatchProgress(ctx, batchID)
	if err != nil {
		return fmt.Errorf("enqueue: transition %q: %w", batchID, err)
	}
	if err := f.Store.SetBatchStatus(ctx, batchID, to, counters); err != nil {
		return fmt.Errorf("enqueue: transition %q: %w", batchID, err)
	}
	return nil
}
