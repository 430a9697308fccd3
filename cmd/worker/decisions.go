package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/credit-gateway/internal/config"
	"github.com/jmehdipour/credit-gateway/internal/db"
	"github.com/jmehdipour/credit-gateway/internal/kafka"
	"github.com/jmehdipour/credit-gateway/internal/logger"
	"github.com/jmehdipour/credit-gateway/internal/metrics"
	"github.com/jmehdipour/credit-gateway/internal/repository"
	"github.com/jmehdipour/credit-gateway/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Project decision events from Kafka into ClickHouse",
	RunE:  runDecisions,
}

func runDecisions(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Encoding)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) ClickHouse
	chDB, err := db.NewClickHouseConnection(db.ClickHouseOptsFrom(cfg.ClickHouse))
	if err != nil {
		return fmt.Errorf("clickhouse connect: %w", err)
	}
	defer func() { _ = chDB.Close() }()

	// 3) kafka consumer
	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "creditgw-decisions"
	}
	consumer, err := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.DecisionsTopic,
		GroupID:        groupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	defer consumer.Close()

	w := worker.NewDecisionsProjector(consumer, repository.NewCHDecisionsRepository(chDB))

	// tune knobs
	if cfg.Worker.WorkerCount > 0 {
		w.Workers = cfg.Worker.WorkerCount
	}
	if cfg.Worker.BatchSize > 0 {
		w.BatchSize = cfg.Worker.BatchSize
	}
	if cfg.Worker.BatchWait > 0 {
		w.BatchWait = cfg.Worker.BatchWait
	}

	// 4) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Log.Info("decisions projector started",
		zap.String("topic", cfg.Kafka.DecisionsTopic),
		zap.String("group", groupID),
		zap.Int("workers", w.Workers),
		zap.Int("batch_size", w.BatchSize),
		zap.Duration("batch_wait", w.BatchWait),
	)

	err = w.Run(ctx)
	logger.Log.Info("decisions projector stopped", zap.Int64("lag", consumer.Lag()), zap.Error(err))
	return err
}
