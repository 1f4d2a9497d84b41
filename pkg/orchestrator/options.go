package orchestrator

import (
	"time"

	"go.evalmesh.dev/engine/pkg/eval"
)

// Options stores the orchestrator's tunable settings (§6.4). Only pass by
// value, not reference, to avoid modifying this globally — mirrors the
// njobs.Options/DefaultOptions split it is modeled on.
type Options struct {
	MaxConcurrentTasks   int           // dispatch concurrency cap
	MaxRetries           int           // task-level retry ceiling in the Enqueue Facade
	TaskTimeout          time.Duration // per-task deadline enforced by the sweeper
	SweepInterval        time.Duration // sweeper cadence
	PartialResultsTTL    time.Duration // TTL on the partial-result hash
	ResultsPopTimeout    time.Duration // simulated-blocking pop window, results queue
	MainPopTimeout       time.Duration // simulated-blocking pop window, main queue
	MainPopInterval      time.Duration // polling cadence while the main queue is empty
	ResultsPopInterval   time.Duration // polling cadence while the results queue is empty
	HardShutdownDeadline time.Duration // grace period Stop waits for loops to drain
	Weights              eval.Weights
}

// DefaultOptions returns the orchestrator's default configuration.
var DefaultOptions = Options{
	MaxConcurrentTasks:   10,
	MaxRetries:           3,
	TaskTimeout:          300 * time.Second,
	SweepInterval:        60 * time.Second,
	PartialResultsTTL:    3600 * time.Second,
	ResultsPopTimeout:    time.Second,
	MainPopTimeout:       5 * time.Second,
	MainPopInterval:      100 * time.Millisecond,
	ResultsPopInterval:   100 * time.Millisecond,
	HardShutdownDeadline: 30 * time.Second,
	Weights:              eval.DefaultWeights(),
}
