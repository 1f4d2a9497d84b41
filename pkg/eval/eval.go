// Package eval defines the core domain types shared by the queue broker,
// the store, and the orchestrator: records submitted for scoring, the tasks
// and dimension subtasks derived from them, the results workers report, and
// the evaluations and batch summaries that come out the other end.
package eval

import "time"

// Dimension identifies one of the five quality axes a response is scored on.
type Dimension string

// The five dimensions evaluated for every record.
const (
	DimensionInstruction   Dimension = "instruction"
	DimensionHallucination Dimension = "hallucination"
	DimensionAssumption    Dimension = "assumption"
	DimensionCoherence     Dimension = "coherence"
	DimensionAccuracy      Dimension = "accuracy"
)

// Dimensions lists all five dimensions in a stable order.
var Dimensions = []Dimension{
	DimensionInstruction,
	DimensionHallucination,
	DimensionAssumption,
	DimensionCoherence,
	DimensionAccuracy,
}

// RecordStatus is the lifecycle state of a Record.
type RecordStatus string

// Record lifecycle states.
const (
	RecordPending    RecordStatus = "pending"
	RecordQueued     RecordStatus = "queued"
	RecordProcessing RecordStatus = "processing"
	RecordCompleted  RecordStatus = "completed"
	RecordFailed     RecordStatus = "failed"
	RecordCancelled  RecordStatus = "cancelled"
)

// BatchStatus is the lifecycle state of a Batch.
type BatchStatus string

// Batch lifecycle states.
const (
	BatchProcessing BatchStatus = "processing"
	BatchPaused     BatchStatus = "paused"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
	BatchCancelled  BatchStatus = "cancelled"
)

// Record is one prompt/response pair submitted for scoring.
type Record struct {
	RecordID     string                 `json:"record_id" db:"record_id"`
	BatchID      string                 `json:"batch_id" db:"batch_id"`
	AgentID      string                 `json:"agent_id" db:"agent_id"`
	Prompt       string                 `json:"prompt" db:"prompt"`
	ResponseText string                 `json:"response_text" db:"response_text"`
	Context      string                 `json:"context,omitempty" db:"context"`
	Reference    string                 `json:"reference,omitempty" db:"reference"`
	Metadata     map[string]interface{} `json:"metadata,omitempty" db:"-"`
	Status       RecordStatus           `json:"status" db:"status"`
	RetryCount   int                    `json:"retry_count" db:"retry_count"`
}

// Task is one attempt at scoring a Record. It carries a task-id distinct
// from the record-id and from any prior attempt's task-id.
type Task struct {
	TaskID       string                 `json:"task_id"`
	RecordID     string                 `json:"response_id"`
	BatchID      string                 `json:"batch_id"`
	AgentID      string                 `json:"agent_id"`
	Prompt       string                 `json:"prompt"`
	ResponseText string                 `json:"response_text"`
	Context      string                 `json:"context,omitempty"`
	Reference    string                 `json:"reference,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Dimensions   []Dimension            `json:"dimensions"`
	RetryCount   int                    `json:"retry_count"`
	CreatedAt    time.Time              `json:"created_at"`
}

// DimensionSubtask is the per-dimension work item fanned out from a Task.
type DimensionSubtask struct {
	Task
	Dimension Dimension `json:"dimension"`
}

// DimensionResult is the scored response to a DimensionSubtask.
type DimensionResult struct {
	TaskID           string                 `json:"task_id"`
	Dimension        Dimension              `json:"dimension"`
	RecordID         string                 `json:"response_id"`
	BatchID          string                 `json:"batch_id"`
	AgentID          string                 `json:"agent_id"`
	Score            float64                `json:"score"`
	Details          map[string]interface{} `json:"details,omitempty"`
	Error            string                 `json:"error,omitempty"`
	ProcessingTimeMs int64                  `json:"processing_time_ms"`
	WorkerID         string                 `json:"worker_id"`
	CompletedAt      time.Time              `json:"-"`
}

// Evaluation is the final, aggregated outcome for a Record.
type Evaluation struct {
	RecordID         string                 `json:"record_id" db:"record_id"`
	BatchID          string                 `json:"batch_id" db:"batch_id"`
	AgentID          string                 `json:"agent_id" db:"agent_id"`
	Scores           map[Dimension]float64  `json:"scores" db:"-"`
	FinalScore       float64                `json:"final_score" db:"final_score"`
	ProcessingErrors []string               `json:"processing_errors,omitempty" db:"-"`
	ProcessingTimeMs int64                  `json:"processing_time_ms" db:"processing_time_ms"`
	ProcessedAt      time.Time              `json:"processed_at" db:"processed_at"`
}

// BatchCounters holds per-status record counts for a batch.
type BatchCounters struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
}

// Batch groups records submitted together and tracks aggregate progress.
type Batch struct {
	BatchID  string        `json:"batch_id" db:"batch_id"`
	Status   BatchStatus   `json:"status" db:"status"`
	Counters BatchCounters `json:"counters" db:"-"`
}

// WorkerLiveness is a TTL-bounded heartbeat record for a dimension worker.
type WorkerLiveness struct {
	WorkerID      string    `json:"worker_id"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Status        string    `json:"status"`
}

// Weights maps each dimension to its configured contribution to the final
// score. The five weights must sum to 1.0.
type Weights map[Dimension]float64

// DefaultWeights are the weights used when no configuration overrides them.
func DefaultWeights() Weights {
	return Weights{
		DimensionInstruction:   0.20,
		DimensionHallucination: 0.25,
		DimensionAssumption:    0.20,
		DimensionCoherence:     0.15,
		DimensionAccuracy:      0.20,
	}
}

// Validate checks that the weights are non-negative and sum to 1, within a
// small floating-point tolerance.
func (w Weights) Validate() error {
	var sum float64
	for _, dim := range Dimensions {
		v, ok := w[dim]
		if !ok {
			return errMissingWeight(dim)
		}
		if v < 0 {
			return errNegativeWeight(dim)
		}
		sum += v
	}
	const epsilon = 1e-6
	if sum < 1-epsilon || sum > 1+epsilon {
		return errWeightSum(sum)
	}
	return nil
}
