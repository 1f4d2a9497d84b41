package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"go.evalmesh.dev/engine/pkg/eval"
)

// MySQLStore implements Store against a MySQL-compatible database via sqlx,
// following a table-per-concern, NamedExecContext style
// (pkg/db/items.go, pkg/items/store.go).
type MySQLStore struct {
	DB *sqlx.DB
}

var _ Store = (*MySQLStore)(nil)

// NewMySQLStore wraps an existing *sqlx.DB.
func NewMySQLStore(db *sqlx.DB) *MySQLStore {
	return &MySQLStore{DB: db}
}

// CreateSchema creates the tables used by this store. It is idempotent.
func (s *MySQLStore) CreateSchema(ctx context.Context) error {
	const recordsTable = `CREATE TABLE IF NOT EXISTS records (
	record_id VARCHAR(64) PRIMARY KEY,
	batch_id VARCHAR(64) NOT NULL,
	agent_id VARCHAR(128) NOT NULL,
	prompt TEXT NOT NULL,
	response_text TEXT NOT NULL,
	context TEXT,
	reference TEXT,
	metadata JSON,
	status VARCHAR(16) NOT NULL,
	retry_count INT UNSIGNED NOT NULL DEFAULT 0,
	INDEX (batch_id),
	INDEX (batch_id, status)
);`
	const evaluationsTable = `CREATE TABLE IF NOT EXISTS evaluations (
	record_id VARCHAR(64) PRIMARY KEY,
	batch_id VARCHAR(64) NOT NULL,
	agent_id VARCHAR(128) NOT NULL,
	scores JSON NOT NULL,
	final_score DOUBLE NOT NULL,
	processing_errors JSON,
	processing_time_ms BIGINT NOT NULL DEFAULT 0,
	processed_at DATETIME NOT NULL,
	INDEX (batch_id),
	INDEX (agent_id)
);`
	const batchesTable = `CREATE TABLE IF NOT EXISTS batches (
	batch_id VARCHAR(64) PRIMARY KEY,
	status VARCHAR(16) NOT NULL,
	total INT UNSIGNED NOT NULL DEFAULT 0,
	pending INT UNSIGNED NOT NULL DEFAULT 0,
	processing INT UNSIGNED NOT NULL DEFAULT 0,
	completed INT UNSIGNED NOT NULL DEFAULT 0,
	failed INT UNSIGNED NOT NULL DEFAULT 0,
	cancelled INT UNSIGNED NOT NULL DEFAULT 0
);`
	for _, stmt := range []string{recordsTable, evaluationsTable, batchesTable} {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: create schema: %w", err)
		}
	}
	return nil
}

type recordRow struct {
	RecordID     string         `db:"record_id"`
	BatchID      string         `db:"batch_id"`
	AgentID      string         `db:"agent_id"`
	Prompt       string         `db:"prompt"`
	ResponseText string         `db:"response_text"`
	Context      sql.NullString `db:"context"`
	Reference    sql.NullString `db:"reference"`
	Metadata     []byte         `db:"metadata"`
	Status       string         `db:"status"`
	RetryCount   int            `db:"retry_count"`
}

// CreateBatch inserts the initial row for a freshly ingested batch.
// Ingestion itself is out of scope; this is the store-side fixture the
// Enqueue Facade and tests build on.
func (s *MySQLStore) CreateBatch(ctx context.Context, batchID string, total int) error {
	const stmt = `INSERT INTO batches (batch_id, status, total, pending, processing, completed, failed, cancelled)
VALUES (:batch_id, :status, :total, :total, 0, 0, 0, 0);`
	_, err := s.DB.NamedExecContext(ctx, stmt, map[string]interface{}{
		"batch_id": batchID,
		"status":   string(eval.BatchProcessing),
		"total":    total,
	})
	if err != nil {
		return fmt.Errorf("store: create batch: %w", err)
	}
	return nil
}

// InsertRecords inserts newly submitted records, in pending status unless a
// record already carries a status. This is
// the store-side of ingestion (out of scope) that tests and the Enqueue
// Facade's integration suite use to seed fixtures.
func (s *MySQLStore) InsertRecords(ctx context.Context, records []eval.Record) error {
	if len(records) == 0 {
		return nil
	}
	const stmt = `INSERT INTO records
(record_id, batch_id, agent_id, prompt, response_text, context, reference, metadata, status, retry_count)
VALUES (:record_id, :batch_id, :agent_id, :prompt, :response_text, :context, :reference, :metadata, :status, :retry_count);`
	rows := make([]recordRow, len(records))
	for i, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("store: marshal metadata: %w", err)
		}
		status := r.Status
		if status == "" {
			status = eval.RecordPending
		}
		rows[i] = recordRow{
			RecordID:     r.RecordID,
			BatchID:      r.BatchID,
			AgentID:      r.AgentID,
			Prompt:       r.Prompt,
			ResponseText: r.ResponseText,
			Context:      sql.NullString{String: r.Context, Valid: r.Context != ""},
			Reference:    sql.NullString{String: r.Reference, Valid: r.Reference != ""},
			Metadata:     meta,
			Status:       string(status),
			RetryCount:   r.RetryCount,
		}
	}
	if _, err := s.DB.NamedExecContext(ctx, stmt, rows); err != nil {
		return fmt.Errorf("store: insert records: %w", err)
	}
	return nil
}

// MarkRecordStatus sets a record's status.
func (s *MySQLStore) MarkRecordStatus(ctx context.Context, recordID string, status eval.RecordStatus) error {
	const stmt = `UPDATE records SET status = ? WHERE record_id = ?;`
	res, err := s.DB.ExecContext(ctx, stmt, string(status), recordID)
	if err != nil {
		return fmt.Errorf("store: mark record status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: mark record status: %w", err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// IncrementRetryCount bumps a record's retry counter and returns the new
// value.
func (s *MySQLStore) IncrementRetryCount(ctx context.Context, recordID string) (int, error) {
	const stmt = `UPDATE records SET retry_count = retry_count + 1 WHERE record_id = ?;`
	res, err := s.DB.ExecContext(ctx, stmt, recordID)
	if err != nil {
		return 0, fmt.Errorf("store: increment retry count: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: increment retry count: %w", err)
	}
	if n == 0 {
		return 0, ErrRecordNotFound
	}
	rec, err := s.GetRecord(ctx, recordID)
	if err != nil {
		return 0, err
	}
	return rec.RetryCount, nil
}

// GetRecord returns a record by id.
func (s *MySQLStore) GetRecord(ctx context.Context, recordID string) (eval.Record, error) {
	const stmt = `SELECT record_id, batch_id, agent_id, prompt, response_text, context, reference, metadata, status, retry_count
FROM records WHERE record_id = ?;`
	var row recordRow
	if err := s.DB.GetContext(ctx, &row, stmt, recordID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return eval.Record{}, ErrRecordNotFound
		}
		return eval.Record{}, fmt.Errorf("store: get record: %w", err)
	}
	r := eval.Record{
		RecordID:     row.RecordID,
		BatchID:      row.BatchID,
		AgentID:      row.AgentID,
		Prompt:       row.Prompt,
		ResponseText: row.ResponseText,
		Context:      row.Context.String,
		Reference:    row.Reference.String,
		Status:       eval.RecordStatus(row.Status),
		RetryCount:   row.RetryCount,
	}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &r.Metadata); err != nil {
			return eval.Record{}, fmt.Errorf("store: unmarshal metadata: %w", err)
		}
	}
	return r, nil
}

// WriteEvaluation persists ev, failing with ErrAlreadyFinalized on conflict.
func (s *MySQLStore) WriteEvaluation(ctx context.Context, ev eval.Evaluation) error {
	scores, err := json.Marshal(ev.Scores)
	if err != nil {
		return fmt.Errorf("store: marshal scores: %w", err)
	}
	procErrs, err := json.Marshal(ev.ProcessingErrors)
	if err != nil {
		return fmt.Errorf("store: marshal processing errors: %w", err)
	}
	const stmt = `INSERT INTO evaluations
(record_id, batch_id, agent_id, scores, final_score, processing_errors, processing_time_ms, processed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);`
	processedAt := ev.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}
	_, err = s.DB.ExecContext(ctx, stmt,
		ev.RecordID, ev.BatchID, ev.AgentID, scores, ev.FinalScore, procErrs, ev.ProcessingTimeMs, processedAt)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrAlreadyFinalized
		}
		return fmt.Errorf("store: write evaluation: %w", err)
	}
	return nil
}

// GetBatchProgress returns aggregated per-status counts for a batch.
func (s *MySQLStore) GetBatchProgress(ctx context.Context, batchID string) (eval.BatchCounters, error) {
	const stmt = `SELECT status, COUNT(*) AS n FROM records WHERE batch_id = ? GROUP BY status;`
	rows, err := s.DB.QueryContext(ctx, stmt, batchID)
	if err != nil {
		return eval.BatchCounters{}, fmt.Errorf("store: get batch progress: %w", err)
	}
	defer rows.Close()
	var c eval.BatchCounters
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return eval.BatchCounters{}, fmt.Errorf("store: scan batch progress: %w", err)
		}
		c.Total += n
		switch eval.RecordStatus(status) {
		case eval.RecordPending, eval.RecordQueued:
			c.Pending += n
		case eval.RecordProcessing:
			c.Processing += n
		case eval.RecordCompleted:
			c.Completed += n
		case eval.RecordFailed:
			c.Failed += n
		case eval.RecordCancelled:
			c.Cancelled += n
		}
	}
	if err := rows.Err(); err != nil {
		return eval.BatchCounters{}, fmt.Errorf("store: scan batch progress: %w", err)
	}
	return c, nil
}

// SetBatchStatus persists a batch's status and progress snapshot.
func (s *MySQLStore) SetBatchStatus(ctx context.Context, batchID string, status eval.BatchStatus, counters eval.BatchCounters) error {
	const stmt = `UPDATE batches SET status = ?, total = ?, pending = ?, processing = ?, completed = ?, failed = ?, cancelled = ?
WHERE batch_id = ?;`
	_, err := s.DB.ExecContext(ctx, stmt,
		string(status), counters.Total, counters.Pending, counters.Processing, counters.Completed, counters.Failed, counters.Cancelled,
		batchID)
	if err != nil {
		return fmt.Errorf("store: set batch status: %w", err)
	}
	return nil
}

// GetBatchStatus returns the currently persisted status for a batch,
// used by pause/resume/cancel to avoid clobbering a terminal state.
func (s *MySQLStore) GetBatchStatus(ctx context.Context, batchID string) (eval.BatchStatus, error) {
	const stmt = `SELECT status FROM batches WHERE batch_id = ?;`
	var status string
	if err := s.DB.GetContext(ctx, &status, stmt, batchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrRecordNotFound
		}
		return "", fmt.Errorf("store: get batch status: %w", err)
	}
	return eval.BatchStatus(status), nil
}

// CancelPendingRecords transitions every not-yet-processing record in a
// batch to cancelled, used by batch cancel (§5).
func (s *MySQLStore) CancelPendingRecords(ctx context.Context, batchID string) error {
	const stmt = `UPDATE records SET status = ? WHERE batch_id = ? AND status IN (?, ?);`
	_, err := s.DB.ExecContext(ctx, stmt,
		string(eval.RecordCancelled), batchID, string(eval.RecordPending), string(eval.RecordQueued))
	if err != nil {
		return fmt.Errorf("store: cancel pending records: %w", err)
	}
	return nil
}

// ScoreSummary is a batch's score distribution, supplemental to the batch
// progress projection. It is computed on demand; a batch with no
// evaluations yet reports a zero count and zero scores.
type ScoreSummary struct {
	Count     int64   `db:"n"`
	MeanScore float64 `db:"mean_score"`
	MinScore  float64 `db:"min_score"`
	MaxScore  float64 `db:"max_score"`
}

// GetScoreSummary aggregates final scores across a batch's finalised
// evaluations.
func (s *MySQLStore) GetScoreSummary(ctx context.Context, batchID string) (ScoreSummary, error) {
	const stmt = `SELECT COUNT(*) AS n, COALESCE(AVG(final_score), 0) AS mean_score,
	COALESCE(MIN(final_score), 0) AS min_score, COALESCE(MAX(final_score), 0) AS max_score
FROM evaluations WHERE batch_id = ?;`
	var summary ScoreSummary
	if err := s.DB.GetContext(ctx, &summary, stmt, batchID); err != nil {
		return ScoreSummary{}, fmt.Errorf("store: get score summary: %w", err)
	}
	return summary, nil
}
