package queue

import (
	"fmt"
	"time"

	"go.evalmesh.dev/engine/pkg/eval"
)

// MainQueue is the FIFO list new tasks are pushed onto by the Enqueue
// Facade and drained by the dispatch loop.
const MainQueue = "main_evaluation_tasks"

// ResultsQueue is the FIFO list dimension workers push DimensionResults
// onto and the collector loop drains.
const ResultsQueue = "dimension_results"

// PartialResultsTTL is the default TTL on a task's partial-result hash.
const PartialResultsTTL = 3600 * time.Second

// BatchProgressTTL is the default TTL on a batch's progress snapshot.
const BatchProgressTTL = 86400 * time.Second

// WorkerLivenessTTL is the default TTL on a worker's liveness key.
const WorkerLivenessTTL = 60 * time.Second

// DimensionQueue returns the name of the FIFO list a given dimension's
// worker pool drains.
func DimensionQueue(dim eval.Dimension) string {
	return fmt.Sprintf("dimension_queue:%s", dim)
}

// PartialResultsKey returns the hash key holding the partial results
// collected so far for a task.
func PartialResultsKey(taskID string) string {
	return fmt.Sprintf("task:%s:results", taskID)
}

// BatchProgressKey returns the string key holding the progress snapshot
// for a batch.
func BatchProgressKey(batchID string) string {
	return fmt.Sprintf("batch:%s:progress", batchID)
}

// WorkerLivenessKey returns the string key holding a worker's heartbeat.
func WorkerLivenessKey(workerID string) string {
	return fmt.Sprintf("worker:%s:status", workerID)
}

// ShutdownControlKey is the string key the `stop` command sets to signal
// a running orchestrator to begin a graceful shutdown.
const ShutdownControlKey = "orchestrator:control:shutdown"
