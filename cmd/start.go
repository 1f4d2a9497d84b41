package main

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"go.evalmesh.dev/engine/pkg/metrics"
	"go.evalmesh.dev/engine/pkg/orchestrator"
)

// ConfMetricsAddr is the address the Prometheus scrape handler listens on.
const ConfMetricsAddr = "metrics.addr"

func init() {
	viper.SetDefault(ConfMetricsAddr, ":9090")
}

var startCmd = cobra.Command{
	Use:   "start",
	Short: "Run the evaluation orchestrator (dispatch, collector, sweeper).",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		app := fx.New(
			fx.Provide(providers),
			fx.Invoke(runMetricsServer, runOrchestrator),
			fx.Logger(zap.NewStdLog(log)),
		)
		app.Run()
	},
}

func init() {
	rootCmd.AddCommand(&startCmd)
}

func runMetricsServer(lc fx.Lifecycle) error {
	handler, err := metrics.Setup()
	if err != nil {
		return err
	}
	addr := viper.GetString(ConfMetricsAddr)
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{Addr: addr, Handler: mux}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("Serving Prometheus metrics", zap.String("addr", addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("Metrics server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
	return nil
}

func runOrchestrator(lc fx.Lifecycle, o *orchestrator.Orchestrator) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("Starting orchestrator")
			o.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Stopping orchestrator")
			o.Stop()
			return nil
		},
	})
}
