package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go.evalmesh.dev/engine/pkg/appctx"
	"go.evalmesh.dev/engine/pkg/eval"
	"go.evalmesh.dev/engine/pkg/queue"
	"go.evalmesh.dev/engine/pkg/store"
)

var statusCmd = cobra.Command{
	Use:   "status [batch-id]",
	Short: "Print queue lengths and, if a batch-id is given, that batch's progress counters.",
	Args:  cobra.MaximumNArgs(1),
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(&statusCmd)
}

func runStatus(_ *cobra.Command, args []string) {
	ctx := appctx.Context()

	rd := redisClientFromEnv()
	defer func() {
		if err := rd.Close(); err != nil {
			log.Error("Failed to close Redis client", zap.Error(err))
		}
	}()
	broker := queue.NewRedisBroker(rd)

	printQueueLength(ctx, broker, "main", queue.MainQueue)
	printQueueLength(ctx, broker, "results", queue.ResultsQueue)
	for _, dim := range eval.Dimensions {
		printQueueLength(ctx, broker, string(dim), queue.DimensionQueue(dim))
	}

	if len(args) == 0 {
		return
	}
	batchID := args[0]

	db, err := openDB()
	if err != nil {
		log.Fatal("Failed to connect to MySQL", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL client", zap.Error(err))
		}
	}()
	st := store.NewMySQLStore(db)

	status, err := st.GetBatchStatus(ctx, batchID)
	if err != nil {
		log.Fatal("Failed to read batch status", zap.String("batch_id", batchID), zap.Error(err))
	}
	counters, err := st.GetBatchProgress(ctx, batchID)
	if err != nil {
		log.Fatal("Failed to read batch progress", zap.String("batch_id", batchID), zap.Error(err))
	}
	fmt.Printf("batch %s: status=%s total=%d pending=%d processing=%d completed=%d failed=%d cancelled=%d\n",
		batchID, status, counters.Total, counters.Pending, counters.Processing,
		counters.Completed, counters.Failed, counters.Cancelled)

	summary, err := st.GetScoreSummary(ctx, batchID)
	if err != nil {
		log.Fatal("Failed to read score summary", zap.String("batch_id", batchID), zap.Error(err))
	}
	fmt.Printf("batch %s: scored=%d mean=%.4f min=%.4f max=%.4f\n",
		batchID, summary.Count, summary.MeanScore, summary.MinScore, summary.MaxScore)
}

func printQueueLength(ctx context.Context, broker queue.Broker, label, queueName string) {
	n, err := broker.Length(ctx, queueName)
	if err != nil {
		log.Error("Failed to read queue length", zap.String("queue", label), zap.Error(err))
		return
	}
	fmt.Printf("queue %s: %d\n", label, n)
}
