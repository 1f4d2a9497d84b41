package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go.evalmesh.dev/engine/pkg/appctx"
	"go.evalmesh.dev/engine/pkg/queue"
)

// shutdownControlTTL bounds how long a stop signal lingers if no orchestrator
// picks it up; a fresh `stop` invocation simply re-sets it.
const shutdownControlTTL = 5 * time.Minute

var stopCmd = cobra.Command{
	Use:   "stop",
	Short: "Signal a running orchestrator to begin a graceful shutdown.",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		rd := redisClientFromEnv()
		defer func() {
			if err := rd.Close(); err != nil {
				log.Error("Failed to close Redis client", zap.Error(err))
			}
		}()
		broker := queue.NewRedisBroker(rd)
		ctx := appctx.Context()
		if err := broker.SetEx(ctx, queue.ShutdownControlKey, []byte("1"), shutdownControlTTL); err != nil {
			log.Fatal("Failed to set shutdown control key", zap.Error(err))
		}
		log.Info("Shutdown signal sent, the running orchestrator will drain within its sweep interval")
	},
}

func init() {
	rootCmd.AddCommand(&stopCmd)
}
