package main

import (
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"go.evalmesh.dev/engine/pkg/eval"
	"go.evalmesh.dev/engine/pkg/orchestrator"
)

// Config keys.
const (
	ConfRedisNetwork = "redis.network"
	ConfRedisAddr    = "redis.addr"
	ConfRedisDB      = "redis.db"

	ConfMySQLDSN = "mysql.dsn"

	ConfWeightsFile = "weights.file"

	ConfOrchestratorMaxConcurrentTasks   = "orchestrator.max_concurrent_tasks"
	ConfOrchestratorMaxRetries           = "orchestrator.max_retries"
	ConfOrchestratorTaskTimeout          = "orchestrator.task_timeout"
	ConfOrchestratorSweepInterval        = "orchestrator.sweep_interval"
	ConfOrchestratorPartialResultsTTL    = "orchestrator.partial_results_ttl"
	ConfOrchestratorResultsPopTimeout    = "orchestrator.results_pop_timeout"
	ConfOrchestratorMainPopTimeout       = "orchestrator.main_pop_timeout"
	ConfOrchestratorMainPopInterval      = "orchestrator.main_pop_interval"
	ConfOrchestratorResultsPopInterval   = "orchestrator.results_pop_interval"
	ConfOrchestratorHardShutdownDeadline = "orchestrator.hard_shutdown_deadline"
)

func init() {
	viper.SetDefault(ConfRedisNetwork, "tcp")
	viper.SetDefault(ConfRedisAddr, "localhost:6379")
	viper.SetDefault(ConfRedisDB, 0)

	viper.SetDefault(ConfMySQLDSN, "")

	viper.SetDefault(ConfWeightsFile, "")

	d := orchestrator.DefaultOptions
	viper.SetDefault(ConfOrchestratorMaxConcurrentTasks, d.MaxConcurrentTasks)
	viper.SetDefault(ConfOrchestratorMaxRetries, d.MaxRetries)
	viper.SetDefault(ConfOrchestratorTaskTimeout, d.TaskTimeout)
	viper.SetDefault(ConfOrchestratorSweepInterval, d.SweepInterval)
	viper.SetDefault(ConfOrchestratorPartialResultsTTL, d.PartialResultsTTL)
	viper.SetDefault(ConfOrchestratorResultsPopTimeout, d.ResultsPopTimeout)
	viper.SetDefault(ConfOrchestratorMainPopTimeout, d.MainPopTimeout)
	viper.SetDefault(ConfOrchestratorMainPopInterval, d.MainPopInterval)
	viper.SetDefault(ConfOrchestratorResultsPopInterval, d.ResultsPopInterval)
	viper.SetDefault(ConfOrchestratorHardShutdownDeadline, d.HardShutdownDeadline)
}

func redisClientFromEnv() *redis.Client {
	redisOpts := &redis.Options{
		Network: viper.GetString(ConfRedisNetwork),
		Addr:    viper.GetString(ConfRedisAddr),
		DB:      viper.GetInt(ConfRedisDB),
	}
	log.Info("Connecting to Redis",
		zap.String(ConfRedisNetwork, redisOpts.Network),
		zap.String(ConfRedisAddr, redisOpts.Addr),
		zap.Int(ConfRedisDB, redisOpts.DB))
	return redis.NewClient(redisOpts)
}

func openDB() (*sqlx.DB, error) {
	// Force Go-compatible time handling.
	cfg, err := mysql.ParseDSN(viper.GetString(ConfMySQLDSN))
	if err != nil {
		return nil, err
	}
	cfg.ParseTime = true
	cfg.Loc = time.Local
	log.Info("Connecting to MySQL DB",
		zap.String("mysql.net", cfg.Net),
		zap.String("mysql.addr", cfg.Addr),
		zap.String("mysql.db_name", cfg.DBName),
		zap.String("mysql.user", cfg.User))
	return sqlx.Open("mysql", cfg.FormatDSN())
}

func orchestratorOptionsFromEnv() (orchestrator.Options, error) {
	weights, err := eval.LoadWeightsFile(viper.GetString(ConfWeightsFile))
	if err != nil {
		return orchestrator.Options{}, err
	}
	return orchestrator.Options{
		MaxConcurrentTasks:   viper.GetInt(ConfOrchestratorMaxConcurrentTasks),
		MaxRetries:           viper.GetInt(ConfOrchestratorMaxRetries),
		TaskTimeout:          viper.GetDuration(ConfOrchestratorTaskTimeout),
		SweepInterval:        viper.GetDuration(ConfOrchestratorSweepInterval),
		PartialResultsTTL:    viper.GetDuration(ConfOrchestratorPartialResultsTTL),
		ResultsPopTimeout:    viper.GetDuration(ConfOrchestratorResultsPopTimeout),
		MainPopTimeout:       viper.GetDuration(ConfOrchestratorMainPopTimeout),
		MainPopInterval:      viper.GetDuration(ConfOrchestratorMainPopInterval),
		ResultsPopInterval:   viper.GetDuration(ConfOrchestratorResultsPopInterval),
		HardShutdownDeadline: viper.GetDuration(ConfOrchestratorHardShutdownDeadline),
		Weights:              weights,
	}, nil
}
