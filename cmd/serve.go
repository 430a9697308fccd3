package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/credit-gateway/internal/db"
	"github.com/jmehdipour/credit-gateway/internal/engine"
	httpSrv "github.com/jmehdipour/credit-gateway/internal/http"
	"github.com/jmehdipour/credit-gateway/internal/logger"
	"github.com/jmehdipour/credit-gateway/internal/repository"
	"github.com/jmehdipour/credit-gateway/internal/service/lending"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		policy, err := cfg.Lending.Policy()
		if err != nil {
			return fmt.Errorf("lending policy: %w", err)
		}
		eng, err := engine.New(policy)
		if err != nil {
			return fmt.Errorf("engine: %w", err)
		}

		mysqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOptsFrom(cfg.MySQL))
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		var redisClient *redis.Client
		if cfg.RateLimit.RPS > 0 {
			redisClient, err = db.NewRedisClient(db.RedisOptsFrom(cfg.Redis))
			if err != nil {
				return fmt.Errorf("redis connect: %w", err)
			}
			defer func() { _ = redisClient.Close() }()
		}

		chDB, err := db.NewClickHouseConnection(db.ClickHouseOptsFrom(cfg.ClickHouse))
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer func() {
			_ = chDB.Close()
		}()

		// repos
		customersRepo := repository.NewCustomersRepository(mysqlDB)
		loansRepo := repository.NewLoansRepository(mysqlDB)
		outboxRepo := repository.NewOutboxRepository(mysqlDB)
		chDecisionsRepo := repository.NewCHDecisionsRepository(chDB)

		// services
		svc := lending.New(mysqlDB, customersRepo, loansRepo, outboxRepo, eng).WithTopic(cfg.Kafka.DecisionsTopic)

		server := httpSrv.NewServer(cfg, svc, chDecisionsRepo, redisClient)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			logger.Log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log.Error("http server exited", zap.Error(err))
				return err
			}
		}

		timeout := cfg.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return server.Shutdown(ctx)
	},
}
