// Package store defines the persistence contract the orchestrator relies
// on (§6.3) and a concrete implementation against a SQL database via sqlx.
package store

import (
	"context"
	"errors"

	"go.evalmesh.dev/engine/pkg/eval"
)

// ErrAlreadyFinalized is returned by WriteEvaluation when an Evaluation for
// the given record-id already exists. The caller interprets this as "this
// task was already finalised by another collector" and treats it as a
// successful no-op rather than a failure.
var ErrAlreadyFinalized = errors.New("store: evaluation already exists for record")

// ErrRecordNotFound is returned by GetRecord when no record exists.
var ErrRecordNotFound = errors.New("store: record not found")

// Store is the persistence contract required by the orchestrator and the
// Enqueue Facade.
type Store interface {
	// CreateBatch inserts the initial row for a freshly submitted batch.
	CreateBatch(ctx context.Context, batchID string, total int) error
	// InsertRecords inserts newly submitted records, in pending status unless
	// a record already carries a status.
	InsertRecords(ctx context.Context, records []eval.Record) error
	// MarkRecordStatus sets a record's status.
	MarkRecordStatus(ctx context.Context, recordID string, status eval.RecordStatus) error
	// IncrementRetryCount bumps a record's retry counter and returns the
	// new value, used by the Enqueue Facade's requeue path.
	IncrementRetryCount(ctx context.Context, recordID string) (int, error)
	// WriteEvaluation persists ev, failing with ErrAlreadyFinalized if an
	// Evaluation already exists for ev.RecordID.
	WriteEvaluation(ctx context.Context, ev eval.Evaluation) error
	// GetRecord returns the batch-id/agent-id (and other payload fields) for
	// a record, used to resolve late-arriving results after the in-flight
	// table entry has been lost.
	GetRecord(ctx context.Context, recordID string) (eval.Record, error)
	// GetBatchProgress returns aggregated per-status counts for a batch.
	GetBatchProgress(ctx context.Context, batchID string) (eval.BatchCounters, error)
	// SetBatchStatus persists a batch's status alongside the latest
	// progress snapshot.
	SetBatchStatus(ctx context.Context, batchID string, status eval.BatchStatus, counters eval.BatchCounters) error
	// GetBatchStatus returns a batch's currently persisted status.
	GetBatchStatus(ctx context.Context, batchID string) (eval.BatchStatus, error)
	// CancelPendingRecords transitions every not-yet-processing record in a
	// batch to cancelled.
	CancelPendingRecords(ctx context.Context, batchID string) error
}
