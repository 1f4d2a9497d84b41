package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go.evalmesh.dev/engine/pkg/appctx"
	"go.evalmesh.dev/engine/pkg/enqueue"
	"go.evalmesh.dev/engine/pkg/queue"
	"go.evalmesh.dev/engine/pkg/store"
)

var pauseCmd = cobra.Command{
	Use:   "pause <batch-id>",
	Short: "Pause a processing batch.",
	Args:  cobra.ExactArgs(1),
	Run:   runBatchTransition((*enqueue.Facade).Pause),
}

var resumeCmd = cobra.Command{
	Use:   "resume <batch-id>",
	Short: "Resume a paused batch.",
	Args:  cobra.ExactArgs(1),
	Run:   runBatchTransition((*enqueue.Facade).Resume),
}

var cancelCmd = cobra.Command{
	Use:   "cancel <batch-id>",
	Short: "Cancel a non-terminal batch and its not-yet-processing records.",
	Args:  cobra.ExactArgs(1),
	Run:   runBatchTransition((*enqueue.Facade).Cancel),
}

var requeueCmd = cobra.Command{
	Use:   "requeue <record-id>",
	Short: "Requeue a failed record as a fresh task, if it has not exhausted its retries.",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		f, closeFn := newEnqueueFacadeCLI()
		defer closeFn()
		if err := f.RequeueFailed(appctx.Context(), args[0]); err != nil {
			log.Fatal("Requeue failed", zap.String("record_id", args[0]), zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(&pauseCmd, &resumeCmd, &cancelCmd, &requeueCmd)
}

func runBatchTransition(transition func(*enqueue.Facade, context.Context, string) error) func(*cobra.Command, []string) {
	return func(_ *cobra.Command, args []string) {
		f, closeFn := newEnqueueFacadeCLI()
		defer closeFn()
		if err := transition(f, appctx.Context(), args[0]); err != nil {
			log.Fatal("Batch transition failed", zap.String("batch_id", args[0]), zap.Error(err))
		}
	}
}

// newEnqueueFacadeCLI builds a Facade against freshly opened connections for
// a single CLI invocation, mirroring the per-command connect/defer
// Close style (cmd/discovery.go) rather than the long-lived fx graph `start`
// uses.
func newEnqueueFacadeCLI() (*enqueue.Facade, func()) {
	rd := redisClientFromEnv()
	broker := queue.NewRedisBroker(rd)

	db, err := openDB()
	if err != nil {
		log.Fatal("Failed to connect to MySQL", zap.Error(err))
	}
	st := store.NewMySQLStore(db)

	opts, err := orchestratorOptionsFromEnv()
	if err != nil {
		log.Fatal("Failed to load orchestrator options", zap.Error(err))
	}

	closeFn := func() {
		if err := rd.Close(); err != nil {
			log.Error("Failed to close Redis client", zap.Error(err))
		}
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL client", zap.Error(err))
		}
	}
	return enqueue.New(broker, st, opts.MaxRetries, log), closeFn
}
