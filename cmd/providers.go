package main

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/metric/global"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"go.evalmesh.dev/engine/pkg/enqueue"
	"go.evalmesh.dev/engine/pkg/metrics"
	"go.evalmesh.dev/engine/pkg/orchestrator"
	"go.evalmesh.dev/engine/pkg/queue"
	"go.evalmesh.dev/engine/pkg/rankings"
	"go.evalmesh.dev/engine/pkg/store"
)

var providers = []interface{}{
	newRedis,
	newBroker,
	newMySQL,
	newStore,
	newRankingsTracker,
	newOrchestratorOptions,
	newOrchestratorMetrics,
	newOrchestrator,
	newEnqueueFacade,
}

func newRedis(ctx context.Context, lc fx.Lifecycle) (*redis.Client, error) {
	rd := redisClientFromEnv()
	if err := rd.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("Closing Redis client")
			err := rd.Close()
			if err != nil {
				log.Error("Failed to close Redis client", zap.Error(err))
			}
			return err
		},
	})
	return rd, nil
}

func newBroker(rd *redis.Client) queue.Broker {
	return queue.NewRedisBroker(rd)
}

func newMySQL(ctx context.Context, lc fx.Lifecycle) (*sqlx.DB, error) {
	db, err := openDB()
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("Failed to ping DB", zap.Error(err))
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})
	return db, nil
}

func newStore(ctx context.Context, db *sqlx.DB) (store.Store, error) {
	s := store.NewMySQLStore(db)
	if err := s.CreateSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func newRankingsTracker(ctx context.Context, db *sqlx.DB) (*rankings.Tracker, error) {
	rk := rankings.New(db)
	if err := rk.CreateSchema(ctx); err != nil {
		return nil, err
	}
	return rk, nil
}

func newOrchestratorOptions() (orchestrator.Options, error) {
	return orchestratorOptionsFromEnv()
}

func newOrchestratorMetrics() (*metrics.Orchestrator, error) {
	return metrics.NewOrchestrator(global.GetMeterProvider().Meter("orchestrator"))
}

func newOrchestrator(
	broker queue.Broker,
	st store.Store,
	m *metrics.Orchestrator,
	rk *rankings.Tracker,
	opts orchestrator.Options,
) (*orchestrator.Orchestrator, error) {
	return orchestrator.New(broker, st, m, rk, log, opts)
}

func newEnqueueFacade(broker queue.Broker, st store.Store, opts orchestrator.Options) *enqueue.Facade {
	return enqueue.New(broker, st, opts.MaxRetries, log)
}
